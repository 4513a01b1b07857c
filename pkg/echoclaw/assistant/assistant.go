// Package assistant is the EchoClaw orchestrator. It reads messages from
// every channel, runs owner commands, hands everything else to the router
// and sends the replies back where the message came from.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/access"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/channels"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/router"
)

// MessageRouter decides the reply for one message.
type MessageRouter interface {
	Route(ctx context.Context, msg router.Message) router.Reply
}

// PersonaInfo exposes the persona profile size for /persona and /status.
type PersonaInfo interface {
	SampleCount() int
	Eligible() bool
}

// Deps are the collaborators an Assistant needs.
type Deps struct {
	Channels  *channels.Manager
	AllowList *access.AllowList
	Persona   PersonaInfo
	Router    MessageRouter
	Options   router.Options
	Logger    *slog.Logger
}

// Assistant coordinates channels, owner commands and the router.
// Message flow: receive → owner command check → route → typing → send.
type Assistant struct {
	channelMgr *channels.Manager
	allow      *access.AllowList
	persona    PersonaInfo
	router     MessageRouter
	opts       router.Options
	logger     *slog.Logger

	startedAt time.Time
	handlers  sync.WaitGroup
	loopDone  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an assistant. A nil channel manager or allow-list is replaced
// by an empty one.
func New(deps Deps) *Assistant {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mgr := deps.Channels
	if mgr == nil {
		mgr = channels.NewManager(logger)
	}
	allow := deps.AllowList
	if allow == nil {
		allow = access.New(nil, nil, logger)
	}

	return &Assistant{
		channelMgr: mgr,
		allow:      allow,
		persona:    deps.Persona,
		router:     deps.Router,
		opts:       deps.Options,
		logger:     logger.With("component", "assistant"),
		loopDone:   make(chan struct{}),
	}
}

// ChannelManager returns the channel manager for registration.
func (a *Assistant) ChannelManager() *channels.Manager {
	return a.channelMgr
}

// Start connects the channels and starts the message loop.
func (a *Assistant) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.startedAt = time.Now()

	a.logger.Info("starting EchoClaw",
		"search", a.opts.SearchEnabled,
		"device", a.opts.DeviceEnabled,
		"persona", a.opts.PersonaEnabled,
		"learning", a.opts.LearningMode,
		"group_restriction", a.opts.GroupRestriction,
		"allowed_chats", a.allow.Len(),
	)

	if err := a.channelMgr.Start(a.ctx); err != nil {
		a.cancel()
		close(a.loopDone)
		return fmt.Errorf("failed to start channels: %w", err)
	}

	go a.messageLoop()

	a.logger.Info("EchoClaw started", "channels", a.channelMgr.Names())
	return nil
}

// Stop cancels in-flight work, waits for handlers and disconnects channels.
func (a *Assistant) Stop() {
	a.logger.Info("stopping EchoClaw")

	if a.cancel != nil {
		a.cancel()
	}
	<-a.loopDone
	a.handlers.Wait()
	a.channelMgr.Stop()

	a.logger.Info("EchoClaw stopped")
}

// messageLoop dispatches every inbound message to its own goroutine.
func (a *Assistant) messageLoop() {
	defer close(a.loopDone)
	for {
		select {
		case msg, ok := <-a.channelMgr.Messages():
			if !ok {
				return
			}
			a.handlers.Add(1)
			go func() {
				defer a.handlers.Done()
				a.handleMessage(msg)
			}()

		case <-a.ctx.Done():
			return
		}
	}
}

// handleMessage processes one message end to end.
func (a *Assistant) handleMessage(msg *channels.IncomingMessage) {
	start := time.Now()
	logger := a.logger.With(
		"request_id", uuid.NewString(),
		"channel", msg.Channel,
		"chat_id", msg.ChatID,
		"msg_id", msg.ID,
		"from_me", msg.FromMe,
	)

	// Owner commands bypass routing.
	if msg.FromMe && IsCommand(msg.Content) {
		if result := a.HandleCommand(msg); result.Handled {
			if result.Response != "" {
				a.sendReply(msg, result.Response)
			}
			logger.Info("owner command processed", "duration_ms", time.Since(start).Milliseconds())
			return
		}
	}

	reply := a.router.Route(a.ctx, router.Message{
		Text:           msg.Content,
		IsSelfAuthored: msg.FromMe,
		ChatID:         msg.ChatID,
		IsGroup:        msg.IsGroup,
	})

	if !reply.Send {
		logger.Debug("no reply", "outcome", reply.Outcome.String())
		return
	}

	a.channelMgr.SendTyping(a.ctx, msg.Channel, msg.ChatID)
	a.sendReply(msg, reply.Text)

	logger.Info("message processed",
		"outcome", reply.Outcome.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// sendReply answers in the original chat, quoting the original message.
func (a *Assistant) sendReply(original *channels.IncomingMessage, content string) {
	out := &channels.OutgoingMessage{
		Content:       content,
		ReplyTo:       original.ID,
		QuotedSender:  original.From,
		QuotedContent: original.Content,
	}

	if err := a.channelMgr.Send(a.ctx, original.Channel, original.ChatID, out); err != nil {
		a.logger.Error("failed to send reply",
			"channel", original.Channel,
			"chat_id", original.ChatID,
			"error", err,
		)
	}
}

// IsCommand returns true if the message starts with "/".
func IsCommand(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), "/")
}
