// Package whatsapp connects EchoClaw to WhatsApp as a linked device, using
// whatsmeow. The device session lives in the shared SQLite database, so a
// restart resumes without a new QR scan.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/channels"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/storage"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// ChannelName is the identifier reported by Name.
const ChannelName = "whatsapp"

// Config holds WhatsApp channel configuration.
type Config struct {
	// DatabasePath is the SQLite file for the whatsmeow_ session tables.
	DatabasePath string `yaml:"database_path"`

	// DeviceName is shown under Linked devices on the phone.
	DeviceName string `yaml:"device_name"`

	// ReconnectBackoff is the delay before the first redial; later ones
	// grow linearly.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`

	// MaxReconnectAttempts caps redials per outage (0 = unlimited).
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	HealthMonitor HealthMonitorConfig `yaml:"health_monitor"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		DatabasePath:         "./data/echoclaw.db",
		DeviceName:           "EchoClaw",
		ReconnectBackoff:     5 * time.Second,
		MaxReconnectAttempts: 10,
		HealthMonitor:        DefaultHealthMonitorConfig(),
	}
}

// WhatsApp implements channels.PresenceChannel.
type WhatsApp struct {
	cfg    Config
	client *whatsmeow.Client
	logger *slog.Logger
	now    func() time.Time

	sess *session
	qr   *qrHub

	messages       chan *channels.IncomingMessage
	messagesClosed atomic.Bool

	redialing      atomic.Bool
	monitorRunning atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New returns an unconnected channel. Empty config fields take their
// defaults.
func New(cfg Config, logger *slog.Logger) *WhatsApp {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = def.ReconnectBackoff
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = def.DatabasePath
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = def.DeviceName
	}

	return &WhatsApp{
		cfg:      cfg,
		logger:   logger.With("component", "whatsapp"),
		now:      time.Now,
		sess:     newSession(time.Now()),
		qr:       newQRHub(),
		messages: make(chan *channels.IncomingMessage, 256),
		ctx:      context.Background(),
	}
}

// Name returns "whatsapp".
func (w *WhatsApp) Name() string { return ChannelName }

// State returns the session state.
func (w *WhatsApp) State() ConnectionState { return w.sess.current() }

// Connect opens the session store and dials. A device that was never
// linked goes through QR pairing in the background; see SubscribeQR.
func (w *WhatsApp) Connect(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.sess.moveTo(StateConnecting, w.now())
	w.logger.Info("whatsapp: opening session store", "database", w.cfg.DatabasePath)

	client, err := w.openClient(w.ctx)
	if err != nil {
		w.sess.moveTo(StateDisconnected, w.now())
		return err
	}
	w.client = client

	if client.Store.ID == nil {
		w.logger.Info("whatsapp: device not linked, waiting for QR scan")
		w.sess.moveTo(StateWaitingQR, w.now())
		w.repair()
		return nil
	}

	if err := client.Connect(); err != nil {
		w.sess.moveTo(StateDisconnected, w.now())
		return fmt.Errorf("connecting: %w", err)
	}
	w.sess.online(w.now())
	w.logger.Info("whatsapp: session resumed", "jid", w.clientJID())

	w.StartHealthMonitor(w.ctx, w.cfg.HealthMonitor)
	return nil
}

// openClient loads the first stored device, or a fresh one, and wires the
// event handler.
func (w *WhatsApp) openClient(ctx context.Context) (*whatsmeow.Client, error) {
	container, err := sqlstore.New(ctx, storage.DriverName, storage.DSN(w.cfg.DatabasePath), waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading device: %w", err)
	}

	store.SetOSInfo(w.cfg.DeviceName, [3]uint32{1, 0, 0})

	client := whatsmeow.NewClient(device, waLog.Noop)
	client.AddEventHandler(w.handleEvent)
	client.EnableAutoReconnect = true
	client.InitialAutoReconnect = true
	return client, nil
}

// Disconnect stops background work, closes the socket and ends the inbound
// stream. It is safe to call more than once.
func (w *WhatsApp) Disconnect() error {
	w.sess.moveTo(StateDisconnected, w.now())
	if w.cancel != nil {
		w.cancel()
	}
	if w.client != nil {
		w.client.Disconnect()
	}
	if w.messagesClosed.CompareAndSwap(false, true) {
		close(w.messages)
	}
	w.logger.Info("whatsapp: disconnected")
	return nil
}

// Send delivers a text reply, quoting msg.ReplyTo when set.
func (w *WhatsApp) Send(ctx context.Context, chatID string, msg *channels.OutgoingMessage) error {
	if !w.sess.isOnline() {
		return channels.ErrChannelDisconnected
	}
	jid, err := parseJID(chatID)
	if err != nil {
		return fmt.Errorf("invalid JID %q: %w", chatID, err)
	}
	if _, err := w.client.SendMessage(ctx, jid, buildTextMessage(msg)); err != nil {
		w.sess.failed()
		return fmt.Errorf("%w: %w", channels.ErrSendFailed, err)
	}
	return nil
}

// SendTyping shows the composing indicator. It does nothing while offline.
func (w *WhatsApp) SendTyping(ctx context.Context, chatID string) error {
	if !w.sess.isOnline() {
		return nil
	}
	jid, err := parseJID(chatID)
	if err != nil {
		return err
	}
	return w.client.SendChatPresence(ctx, jid, types.ChatPresenceComposing, types.ChatPresenceMediaText)
}

func (w *WhatsApp) Receive() <-chan *channels.IncomingMessage { return w.messages }

func (w *WhatsApp) IsConnected() bool { return w.sess.isOnline() }

// NeedsQR reports whether the device is waiting to be linked.
func (w *WhatsApp) NeedsQR() bool { return w.sess.current() == StateWaitingQR }

// Health reports the session as seen by the state machine.
func (w *WhatsApp) Health() channels.HealthStatus {
	st := w.sess.status()
	details := map[string]any{
		"state":              string(st.State),
		"state_since":        st.Since,
		"reconnect_attempts": st.Attempts,
	}
	if jid := w.clientJID(); jid != "" {
		details["jid"] = jid
	}
	if st.State == StateWaitingQR {
		details["needs_qr"] = true
	}
	return channels.HealthStatus{
		Connected:     st.State == StateConnected,
		LastMessageAt: st.LastActivity,
		ErrorCount:    st.Errors,
		Details:       details,
	}
}

func (w *WhatsApp) clientJID() string {
	if w.client != nil && w.client.Store != nil && w.client.Store.ID != nil {
		return w.client.Store.ID.String()
	}
	return ""
}

// emitMessage queues msg on the inbound stream, dropping it when full.
func (w *WhatsApp) emitMessage(msg *channels.IncomingMessage) {
	if w.messagesClosed.Load() {
		return
	}
	select {
	case w.messages <- msg:
	case <-w.ctx.Done():
	default:
		w.logger.Warn("whatsapp: inbound buffer full, dropping message", "chat_id", msg.ChatID)
	}
}

var _ channels.PresenceChannel = (*WhatsApp)(nil)
