// Package console implements a local terminal channel. Every line typed is
// an inbound message in a single chat; lines starting with ">" are treated
// as written by the owner, which lets persona learning and owner commands
// be exercised without a phone.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/channels"
)

// ChannelName is the identifier reported by Name.
const ChannelName = "console"

// OwnerPrefix marks a line as written by the owner.
const OwnerPrefix = ">"

// Config holds console channel configuration.
type Config struct {
	// ChatID identifies the simulated chat. Default: "console".
	ChatID string

	// IsGroup makes the simulated chat a group chat.
	IsGroup bool

	// Prompt is the readline prompt.
	Prompt string

	// HistoryFile keeps line history between sessions.
	HistoryFile string
}

// lineReader is the part of *readline.Instance the console uses.
type lineReader interface {
	Readline() (string, error)
	Stdout() io.Writer
	Close() error
}

// Console implements channels.Channel on a terminal.
type Console struct {
	cfg    Config
	logger *slog.Logger

	// newReader opens the terminal reader; replaced in tests.
	newReader func(Config) (lineReader, error)

	reader   lineReader
	messages chan *channels.IncomingMessage
	done     chan struct{}

	outMu sync.Mutex
	out   io.Writer

	connected atomic.Bool
	lastMsg   atomic.Value // time.Time
}

// New creates a console channel.
func New(cfg Config, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChatID == "" {
		cfg.ChatID = ChannelName
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "you> "
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = filepath.Join(os.TempDir(), ".echoclaw_history")
	}
	return &Console{
		cfg:       cfg,
		logger:    logger.With("component", "console"),
		newReader: openReadline,
		messages:  make(chan *channels.IncomingMessage, 16),
		done:      make(chan struct{}),
	}
}

func openReadline(cfg Config) (lineReader, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          cfg.Prompt,
		HistoryFile:     cfg.HistoryFile,
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

// Name returns "console".
func (c *Console) Name() string { return ChannelName }

// Connect opens the terminal and starts reading lines.
func (c *Console) Connect(ctx context.Context) error {
	r, err := c.newReader(c.cfg)
	if err != nil {
		return fmt.Errorf("console: initializing readline: %w", err)
	}
	c.reader = r
	c.out = r.Stdout()
	c.connected.Store(true)

	go c.readLoop(ctx)
	return nil
}

// readLoop turns lines into messages until EOF, interrupt, "exit" or
// cancellation. It owns the messages channel and closes it on return.
func (c *Console) readLoop(ctx context.Context) {
	defer close(c.done)
	defer close(c.messages)

	for {
		line, err := c.reader.Readline()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, readline.ErrInterrupt) {
				c.logger.Error("console: reading input", "error", err)
			}
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return
		}

		msg := c.parseLine(input)
		if msg == nil {
			continue
		}
		c.lastMsg.Store(time.Now())

		select {
		case c.messages <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// parseLine builds the message for one non-empty input line.
func (c *Console) parseLine(input string) *channels.IncomingMessage {
	fromMe := false
	if strings.HasPrefix(input, OwnerPrefix) {
		fromMe = true
		input = strings.TrimSpace(strings.TrimPrefix(input, OwnerPrefix))
		if input == "" {
			return nil
		}
	}

	from, name := "guest", "Guest"
	if fromMe {
		from, name = "owner", "Owner"
	}

	return &channels.IncomingMessage{
		ID:        uuid.NewString(),
		Channel:   ChannelName,
		From:      from,
		FromName:  name,
		ChatID:    c.cfg.ChatID,
		IsGroup:   c.cfg.IsGroup,
		FromMe:    fromMe,
		Content:   input,
		Timestamp: time.Now(),
	}
}

// Done is closed when the user ends the session.
func (c *Console) Done() <-chan struct{} { return c.done }

// Disconnect closes the terminal.
func (c *Console) Disconnect() error {
	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}

// Send prints a reply.
func (c *Console) Send(_ context.Context, _ string, msg *channels.OutgoingMessage) error {
	if !c.connected.Load() {
		return channels.ErrChannelDisconnected
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, err := fmt.Fprintf(c.out, "echoclaw> %s\n", msg.Content)
	return err
}

// Receive returns the incoming messages channel.
func (c *Console) Receive() <-chan *channels.IncomingMessage { return c.messages }

// IsConnected reports whether the terminal is open.
func (c *Console) IsConnected() bool { return c.connected.Load() }

// Health returns the channel health status.
func (c *Console) Health() channels.HealthStatus {
	h := channels.HealthStatus{Connected: c.connected.Load()}
	if t, ok := c.lastMsg.Load().(time.Time); ok {
		h.LastMessageAt = t
	}
	return h
}

var _ channels.Channel = (*Console)(nil)
