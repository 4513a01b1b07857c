package intent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/llm"
)

// FallbackClassify is the reply used when the oracle cannot be reached.
const FallbackClassify = "Sorry, I'm having trouble processing your request right now. Please try again later."

// Classifier asks the oracle how a message should be handled.
type Classifier struct {
	oracle        llm.Oracle
	searchEnabled bool
	deviceEnabled bool
	logger        *slog.Logger
}

// NewClassifier creates a classifier. The enabled flags decide which
// options the oracle is offered.
func NewClassifier(oracle llm.Oracle, searchEnabled, deviceEnabled bool, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		oracle:        oracle,
		searchEnabled: searchEnabled,
		deviceEnabled: deviceEnabled,
		logger:        logger.With("component", "classifier"),
	}
}

// Classify returns the action for text. It never fails: an oracle error
// yields a direct apology.
func (c *Classifier) Classify(ctx context.Context, text string) Action {
	prompt := c.prompt(text)
	c.logger.Debug("classifying message", "prompt", prompt)

	out, err := c.oracle.Generate(ctx, prompt)
	if err != nil {
		c.logger.Error("classification failed", "error", err)
		return Direct(FallbackClassify)
	}

	a := Parse(out)
	c.logger.Debug("message classified", "kind", a.Kind, "resource", a.Resource, "query", a.Query)
	return a
}

func (c *Classifier) prompt(text string) string {
	var b strings.Builder
	b.WriteString("You are a helpful personal assistant replying to a chat message.\n")
	b.WriteString("Decide how to handle the message below and reply in exactly one of these forms:\n")
	if c.searchEnabled {
		b.WriteString("- If it needs current information from the web, reply with a single line: SEARCH: <search query>\n")
	}
	if c.deviceEnabled {
		b.WriteString("- If it needs data from the owner's phone, reply with a single line: PHONE: <type>:<query>\n")
		b.WriteString("  where <type> is one of contacts, files, calendar, location.\n")
	}
	b.WriteString("- Otherwise, reply with the answer itself, written for the person who sent the message.\n\n")
	b.WriteString("Message: ")
	b.WriteString(text)
	return b.String()
}
