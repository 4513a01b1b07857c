package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/llm"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   Action
	}{
		{
			name:   "search",
			output: "SEARCH: weather in Lagos",
			want:   Action{Kind: KindSearch, Query: "weather in Lagos", Raw: "SEARCH: weather in Lagos"},
		},
		{
			name:   "search lower case with padding",
			output: "  search:   weather in Lagos  \n",
			want:   Action{Kind: KindSearch, Query: "weather in Lagos", Raw: "  search:   weather in Lagos  \n"},
		},
		{
			name:   "phone files",
			output: "PHONE: files: invoice 2023",
			want:   Action{Kind: KindDevice, Resource: ResourceFiles, Query: "invoice 2023", Raw: "PHONE: files: invoice 2023"},
		},
		{
			name:   "phone location empty query",
			output: "PHONE: location:",
			want:   Action{Kind: KindDevice, Resource: ResourceLocation, Query: "", Raw: "PHONE: location:"},
		},
		{
			name:   "phone kind is lower-cased",
			output: "Phone: Contacts:",
			want:   Action{Kind: KindDevice, Resource: ResourceContacts, Raw: "Phone: Contacts:"},
		},
		{
			name:   "phone extra colons stay in query",
			output: "PHONE: calendar: meeting at 10:30: room B",
			want:   Action{Kind: KindDevice, Resource: ResourceCalendar, Query: "meeting at 10:30: room B", Raw: "PHONE: calendar: meeting at 10:30: room B"},
		},
		{
			name:   "phone without separator",
			output: "PHONE: contacts",
			want:   Action{Kind: KindDevice, Resource: ResourceContacts, Raw: "PHONE: contacts"},
		},
		{
			name:   "direct",
			output: "Hello! I'm doing well.",
			want:   Action{Kind: KindDirect, Response: "Hello! I'm doing well.", Raw: "Hello! I'm doing well."},
		},
		{
			name:   "direct keeps the output untouched",
			output: "\n  Sure:\n- one\n- two\n",
			want:   Action{Kind: KindDirect, Response: "\n  Sure:\n- one\n- two\n", Raw: "\n  Sure:\n- one\n- two\n"},
		},
		{
			name:   "prefix not at start is direct",
			output: "You could try SEARCH: something",
			want:   Action{Kind: KindDirect, Response: "You could try SEARCH: something", Raw: "You could try SEARCH: something"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.output))
		})
	}
}

func TestParse_UnknownResourceIsDeviceQuery(t *testing.T) {
	a := Parse("PHONE: photos: beach")
	assert.Equal(t, KindDevice, a.Kind)
	assert.Equal(t, ResourceKind("photos"), a.Resource)
	assert.False(t, a.Resource.Valid())
}

func TestResourceKindValid(t *testing.T) {
	for _, k := range []ResourceKind{ResourceContacts, ResourceFiles, ResourceCalendar, ResourceLocation} {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, ResourceKind("").Valid())
	assert.False(t, ResourceKind("Files").Valid())
}

func TestClassifier_Classify(t *testing.T) {
	var gotPrompt string
	oracle := llm.OracleFunc(func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "SEARCH: weather in Lagos", nil
	})

	c := NewClassifier(oracle, true, false, nil)
	a := c.Classify(context.Background(), "what's the weather like in Lagos?")

	assert.Equal(t, KindSearch, a.Kind)
	assert.Equal(t, "weather in Lagos", a.Query)
	assert.Contains(t, gotPrompt, "what's the weather like in Lagos?")
	assert.Contains(t, gotPrompt, "SEARCH:")
	assert.NotContains(t, gotPrompt, "PHONE:")
}

func TestClassifier_PromptFollowsCapabilities(t *testing.T) {
	var gotPrompt string
	oracle := llm.OracleFunc(func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "hi", nil
	})

	NewClassifier(oracle, false, true, nil).Classify(context.Background(), "hello")
	assert.NotContains(t, gotPrompt, "SEARCH:")
	assert.Contains(t, gotPrompt, "PHONE: <type>:<query>")
}

func TestClassifier_OracleFailure(t *testing.T) {
	oracle := llm.OracleFunc(func(context.Context, string) (string, error) {
		return "", errors.New("quota exceeded")
	})

	a := NewClassifier(oracle, true, true, nil).Classify(context.Background(), "hello")
	require.Equal(t, KindDirect, a.Kind)
	assert.Equal(t, FallbackClassify, a.Response)
}
