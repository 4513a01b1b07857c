package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/device"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/executor"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/intent"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/search"
)

type fakeClassifier struct {
	action intent.Action
	calls  int
	panics bool
}

func (f *fakeClassifier) Classify(context.Context, string) intent.Action {
	f.calls++
	if f.panics {
		panic("classifier exploded")
	}
	return f.action
}

type fakeExecutor struct {
	executed []intent.Action
}

func (f *fakeExecutor) Execute(_ context.Context, a intent.Action) executor.Result {
	f.executed = append(f.executed, a)
	switch a.Kind {
	case intent.KindSearch:
		return executor.Result{Search: []search.Result{{Title: "t", Snippet: "s"}}}
	case intent.KindDevice:
		return executor.Result{Device: device.ListData([]device.Contact{})}
	}
	return executor.Result{}
}

type fakeComposer struct {
	composed       []intent.Action
	personaSamples []string
}

func (f *fakeComposer) Compose(_ context.Context, _ string, a intent.Action, _ executor.Result) string {
	f.composed = append(f.composed, a)
	return "composed:" + a.Kind.String()
}

func (f *fakeComposer) ComposePersona(_ context.Context, _ string, samples []string) string {
	f.personaSamples = samples
	return "persona reply"
}

type fakePersona struct {
	observed []string
	samples  []string
}

func (f *fakePersona) Observe(_ context.Context, text string) { f.observed = append(f.observed, text) }
func (f *fakePersona) SampleCount() int { return len(f.samples) }

func (f *fakePersona) StyleSamples(limit int) []string {
	if len(f.samples) > limit {
		return f.samples[:limit]
	}
	return f.samples
}

type allowSet map[string]bool

func (a allowSet) Contains(id string) bool { return a[id] }

type harness struct {
	classifier *fakeClassifier
	executor   *fakeExecutor
	composer   *fakeComposer
	persona    *fakePersona
	router     *Router
}

func newHarness(opts Options, action intent.Action, samples int, allow AllowList) *harness {
	h := &harness{
		classifier: &fakeClassifier{action: action},
		executor:   &fakeExecutor{},
		composer:   &fakeComposer{},
		persona:    &fakePersona{},
	}
	for i := 0; i < samples; i++ {
		h.persona.samples = append(h.persona.samples, "a long enough style sample from the owner")
	}
	h.router = New(opts, Deps{
		AllowList:  allow,
		Persona:    h.persona,
		Classifier: h.classifier,
		Executor:   h.executor,
		Composer:   h.composer,
	})
	return h
}

func inbound(text string) Message {
	return Message{Text: text, ChatID: "123@s.whatsapp.net"}
}

func TestRoute_SelfAuthored(t *testing.T) {
	t.Run("learning enabled observes", func(t *testing.T) {
		h := newHarness(Options{LearningMode: true}, intent.Direct("x"), 0, nil)

		reply := h.router.Route(context.Background(), Message{Text: "my own message here", IsSelfAuthored: true})

		assert.Equal(t, Reply{Outcome: OutcomeLearned}, reply)
		assert.Equal(t, []string{"my own message here"}, h.persona.observed)
		assert.Zero(t, h.classifier.calls)
	})

	t.Run("learning disabled ignores", func(t *testing.T) {
		h := newHarness(Options{}, intent.Direct("x"), 0, nil)

		reply := h.router.Route(context.Background(), Message{Text: "my own message here", IsSelfAuthored: true})

		assert.Equal(t, Reply{Outcome: OutcomeIgnored}, reply)
		assert.Empty(t, h.persona.observed)
		assert.Zero(t, h.classifier.calls)
	})

	t.Run("self-authored bypasses gating", func(t *testing.T) {
		h := newHarness(Options{LearningMode: true, GroupRestriction: true}, intent.Direct("x"), 0, allowSet{})

		reply := h.router.Route(context.Background(), Message{Text: "in a random group", IsSelfAuthored: true, ChatID: "g@g.us", IsGroup: true})
		assert.Equal(t, OutcomeLearned, reply.Outcome)
	})
}

func TestRoute_Gating(t *testing.T) {
	allow := allowSet{"allowed@g.us": true}

	tests := []struct {
		name    string
		opts    Options
		msg     Message
		allow   AllowList
		outcome Outcome
		send    bool
	}{
		{"restricted group not allowed", Options{GroupRestriction: true}, Message{Text: "hi", ChatID: "other@g.us", IsGroup: true}, allow, OutcomeGated, false},
		{"restricted dm not allowed", Options{GroupRestriction: true}, Message{Text: "hi", ChatID: "555@s.whatsapp.net"}, allow, OutcomeGated, false},
		{"restricted without allow-list", Options{GroupRestriction: true}, Message{Text: "hi", ChatID: "allowed@g.us", IsGroup: true}, nil, OutcomeGated, false},
		{"restricted group allowed", Options{GroupRestriction: true}, Message{Text: "hi", ChatID: "allowed@g.us", IsGroup: true}, allow, OutcomeDirect, true},
		{"unrestricted", Options{}, Message{Text: "hi", ChatID: "other@g.us", IsGroup: true}, allow, OutcomeDirect, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.opts, intent.Direct("hello!"), 0, tt.allow)

			var reply Reply
			require.NotPanics(t, func() { reply = h.router.Route(context.Background(), tt.msg) })

			assert.Equal(t, tt.outcome, reply.Outcome)
			assert.Equal(t, tt.send, reply.Send)
			if !tt.send {
				assert.Zero(t, h.classifier.calls)
			}
		})
	}
}

func TestRoute_Precedence(t *testing.T) {
	all := Options{SearchEnabled: true, DeviceEnabled: true, PersonaEnabled: true}

	tests := []struct {
		name     string
		opts     Options
		action   intent.Action
		samples  int
		outcome  Outcome
		text     string
		executed int
	}{
		{"search beats persona", all, intent.Parse("SEARCH: weather in Lagos"), 10, OutcomeSearch, "composed:search", 1},
		{"device beats persona", all, intent.Parse("PHONE: contacts:"), 10, OutcomeDevice, "composed:device", 1},
		{"direct with eligible persona uses persona", all, intent.Parse("Sure thing!"), 5, OutcomePersona, "persona reply", 0},
		{"persona needs five samples", all, intent.Parse("Sure thing!"), 4, OutcomeDirect, "Sure thing!", 0},
		{
			"search disabled falls to persona",
			Options{DeviceEnabled: true, PersonaEnabled: true},
			intent.Parse("SEARCH: news"), 5, OutcomePersona, "persona reply", 0,
		},
		{
			"search disabled without persona returns raw output",
			Options{},
			intent.Parse("SEARCH: news"), 0, OutcomeDirect, "SEARCH: news", 0,
		},
		{
			"device disabled returns raw output",
			Options{SearchEnabled: true},
			intent.Parse("PHONE: files: taxes"), 0, OutcomeDirect, "PHONE: files: taxes", 0,
		},
		{"persona disabled", Options{SearchEnabled: true}, intent.Parse("Hi!"), 20, OutcomeDirect, "Hi!", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.opts, tt.action, tt.samples, nil)

			reply := h.router.Route(context.Background(), inbound("hello"))

			assert.Equal(t, tt.outcome, reply.Outcome)
			assert.Equal(t, tt.text, reply.Text)
			assert.True(t, reply.Send)
			assert.Len(t, h.executor.executed, tt.executed)
			assert.Equal(t, 1, h.classifier.calls)
		})
	}
}

func TestRoute_PersonaUsesOldestSamples(t *testing.T) {
	h := newHarness(Options{PersonaEnabled: true}, intent.Direct("x"), 0, nil)
	h.persona.samples = []string{"one", "two", "three", "four", "five", "six", "seven"}

	h.router.Route(context.Background(), inbound("hey"))

	assert.Equal(t, []string{"one", "two", "three", "four", "five"}, h.composer.personaSamples)
}

func TestRoute_EmptyDirectIsNotSent(t *testing.T) {
	h := newHarness(Options{}, intent.Direct(""), 0, nil)

	reply := h.router.Route(context.Background(), inbound("hey"))
	assert.False(t, reply.Send)
	assert.Equal(t, OutcomeDirect, reply.Outcome)
}

func TestRoute_DirectTextIsSentAsReturned(t *testing.T) {
	h := newHarness(Options{}, intent.Direct("  Sure:\n- one\n"), 0, nil)
	reply := h.router.Route(context.Background(), inbound("hey"))
	assert.True(t, reply.Send)
	assert.Equal(t, "  Sure:\n- one\n", reply.Text)

	h = newHarness(Options{}, intent.Direct(" \n\t"), 0, nil)
	assert.False(t, h.router.Route(context.Background(), inbound("hey")).Send)
}

func TestRoute_PanicRecovery(t *testing.T) {
	t.Run("apology when unrestricted", func(t *testing.T) {
		h := newHarness(Options{}, intent.Direct("x"), 0, nil)
		h.classifier.panics = true

		var reply Reply
		require.NotPanics(t, func() { reply = h.router.Route(context.Background(), inbound("hey")) })

		assert.Equal(t, Reply{Text: FallbackGeneric, Send: true, Outcome: OutcomeFailed}, reply)
	})

	t.Run("silent when restricted", func(t *testing.T) {
		h := newHarness(Options{GroupRestriction: true}, intent.Direct("x"), 0, allowSet{"123@s.whatsapp.net": true})
		h.classifier.panics = true

		var reply Reply
		require.NotPanics(t, func() { reply = h.router.Route(context.Background(), inbound("hey")) })

		assert.Equal(t, Reply{Outcome: OutcomeFailed}, reply)
	})
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "search", OutcomeSearch.String())
	assert.Equal(t, "gated", OutcomeGated.String())
	assert.Equal(t, "outcome(42)", Outcome(42).String())
}
