// Package router decides what happens to each inbound message: learn from
// the owner's own messages, drop messages from chats that are not allowed,
// or classify, execute and compose a reply.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/compose"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/executor"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/intent"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/persona"
)

// FallbackGeneric is the reply when message handling fails unexpectedly.
const FallbackGeneric = "Sorry, something went wrong while processing your message."

// Message is one inbound chat message.
type Message struct {
	Text           string
	IsSelfAuthored bool
	ChatID         string
	IsGroup        bool
}

// Options are the feature switches read once at startup.
type Options struct {
	SearchEnabled    bool
	DeviceEnabled    bool
	PersonaEnabled   bool
	LearningMode     bool
	GroupRestriction bool
}

// AllowList reports whether a chat may be answered while group restriction
// is on.
type AllowList interface {
	Contains(chatID string) bool
}

// Outcome records which path a message took.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeLearned
	OutcomeGated
	OutcomeDirect
	OutcomeSearch
	OutcomeDevice
	OutcomePersona
	OutcomeFailed
)

var outcomeNames = [...]string{
	OutcomeIgnored: "ignored",
	OutcomeLearned: "learned",
	OutcomeGated:   "gated",
	OutcomeDirect:  "direct",
	OutcomeSearch:  "search",
	OutcomeDevice:  "device",
	OutcomePersona: "persona",
	OutcomeFailed:  "failed",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Reply is the router's decision. Text is only meaningful when Send is true.
type Reply struct {
	Text    string
	Send    bool
	Outcome Outcome
}

// Classifier maps message text to an action.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Action
}

// Executor gathers context for an action.
type Executor interface {
	Execute(ctx context.Context, a intent.Action) executor.Result
}

// Composer writes replies.
type Composer interface {
	Compose(ctx context.Context, message string, a intent.Action, res executor.Result) string
	ComposePersona(ctx context.Context, message string, samples []string) string
}

// Persona is the owner's persona profile.
type Persona interface {
	Observe(ctx context.Context, text string)
	SampleCount() int
	StyleSamples(limit int) []string
}

var (
	_ Classifier = (*intent.Classifier)(nil)
	_ Executor   = (*executor.Executor)(nil)
	_ Composer   = (*compose.Composer)(nil)
	_ Persona    = (*persona.Store)(nil)
)

// Router runs the per-message pipeline.
type Router struct {
	opts       Options
	allow      AllowList
	persona    Persona
	classifier Classifier
	executor   Executor
	composer   Composer
	logger     *slog.Logger
}

// Deps are the collaborators a Router needs.
type Deps struct {
	AllowList  AllowList
	Persona    Persona
	Classifier Classifier
	Executor   Executor
	Composer   Composer
	Logger     *slog.Logger
}

// New creates a router.
func New(opts Options, deps Deps) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		opts:       opts,
		allow:      deps.AllowList,
		persona:    deps.Persona,
		classifier: deps.Classifier,
		executor:   deps.Executor,
		composer:   deps.Composer,
		logger:     logger.With("component", "router"),
	}
}

// Route handles msg. It never panics and never returns an error: failures
// become a generic apology, or silence while group restriction is on.
func (r *Router) Route(ctx context.Context, msg Message) (reply Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while routing message",
				"chat_id", msg.ChatID,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			if r.opts.GroupRestriction {
				reply = Reply{Outcome: OutcomeFailed}
				return
			}
			reply = Reply{Text: FallbackGeneric, Send: true, Outcome: OutcomeFailed}
		}
	}()

	if msg.IsSelfAuthored {
		if r.opts.LearningMode && r.persona != nil {
			r.persona.Observe(ctx, msg.Text)
			return Reply{Outcome: OutcomeLearned}
		}
		return Reply{Outcome: OutcomeIgnored}
	}

	if r.opts.GroupRestriction && (r.allow == nil || !r.allow.Contains(msg.ChatID)) {
		r.logger.Debug("message from chat not in allow-list dropped", "chat_id", msg.ChatID, "group", msg.IsGroup)
		return Reply{Outcome: OutcomeGated}
	}

	return r.answer(ctx, msg)
}

// answer runs exactly one fulfillment path, in fixed precedence:
// search, device, persona, then the classifier's own text.
func (r *Router) answer(ctx context.Context, msg Message) Reply {
	action := r.classifier.Classify(ctx, msg.Text)

	switch {
	case action.Kind == intent.KindSearch && r.opts.SearchEnabled:
		res := r.executor.Execute(ctx, action)
		return r.reply(r.composer.Compose(ctx, msg.Text, action, res), OutcomeSearch)

	case action.Kind == intent.KindDevice && r.opts.DeviceEnabled:
		res := r.executor.Execute(ctx, action)
		return r.reply(r.composer.Compose(ctx, msg.Text, action, res), OutcomeDevice)

	case r.opts.PersonaEnabled && r.persona != nil && r.persona.SampleCount() >= persona.MinSamplesForPersona:
		samples := r.persona.StyleSamples(compose.PersonaSampleLimit)
		return r.reply(r.composer.ComposePersona(ctx, msg.Text, samples), OutcomePersona)

	default:
		if action.Kind == intent.KindDirect {
			return r.reply(action.Response, OutcomeDirect)
		}
		return r.reply(action.Raw, OutcomeDirect)
	}
}

func (r *Router) reply(text string, outcome Outcome) Reply {
	return Reply{Text: text, Send: strings.TrimSpace(text) != "", Outcome: outcome}
}
