// Package compose writes the final reply for a classified message from the
// context the executor gathered, or in the owner's voice from persona samples.
package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/device"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/executor"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/intent"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/llm"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/search"
)

// Replies used when the oracle fails.
const (
	FallbackSearch  = "Sorry, I couldn't find an answer to that right now. Please try rephrasing your question."
	FallbackDevice  = "Sorry, I couldn't get that information from the phone right now. Please try rephrasing your request."
	FallbackPersona = "Sorry, persona mode is temporarily unavailable. Please try again later."
)

// PersonaSampleLimit is the number of style samples put in a persona prompt.
const PersonaSampleLimit = 5

// Composer builds replies with the oracle.
type Composer struct {
	oracle llm.Oracle
	logger *slog.Logger
}

// New creates a composer.
func New(oracle llm.Oracle, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{oracle: oracle, logger: logger.With("component", "composer")}
}

// Compose returns the reply for message. Direct actions are returned as is;
// search and device actions are answered by the oracle over the gathered
// context. Always returns displayable text.
func (c *Composer) Compose(ctx context.Context, message string, a intent.Action, res executor.Result) string {
	switch a.Kind {
	case intent.KindSearch:
		prompt := fmt.Sprintf(
			"Answer the following message using the web search results below. "+
				"Be concise and conversational.\n\nSearch results:\n%s\n\nMessage: %s",
			SearchBlock(res.Search), message)
		return c.generate(ctx, "search", prompt, FallbackSearch)

	case intent.KindDevice:
		prompt := fmt.Sprintf(
			"Answer the following message using the %s data from the owner's phone below. "+
				"Be concise and conversational.\n\nPhone data:\n%s\n\nMessage: %s",
			a.Resource, DeviceBlock(res.Device), message)
		return c.generate(ctx, "device", prompt, FallbackDevice)

	default:
		return a.Response
	}
}

// ComposePersona replies to message in the owner's voice. samples should be
// the oldest-first style samples; at most PersonaSampleLimit are used.
func (c *Composer) ComposePersona(ctx context.Context, message string, samples []string) string {
	if len(samples) > PersonaSampleLimit {
		samples = samples[:PersonaSampleLimit]
	}

	var b strings.Builder
	b.WriteString("You are replying on behalf of a person. Here are examples of how they write:\n\n")
	for i, s := range samples {
		fmt.Fprintf(&b, "Example %d: %s\n", i+1, s)
	}
	b.WriteString("\nReply to the message below exactly as this person would. ")
	b.WriteString("Match their voice, tone, vocabulary, punctuation and message structure. ")
	b.WriteString("Do not mention that you are an assistant.\n\n")
	b.WriteString("Message: ")
	b.WriteString(message)

	return c.generate(ctx, "persona", b.String(), FallbackPersona)
}

func (c *Composer) generate(ctx context.Context, path, prompt, fallback string) string {
	c.logger.Debug("composing reply", "path", path, "prompt", prompt)

	out, err := c.oracle.Generate(ctx, prompt)
	if err != nil {
		c.logger.Error("compose failed", "path", path, "error", err)
		return fallback
	}
	return out
}

// SearchBlock renders results as "<n>. <title>: <snippet>" lines.
func SearchBlock(results []search.Result) string {
	if len(results) == 0 {
		return "No results found."
	}
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = fmt.Sprintf("%d. %s: %s", i+1, r.Title, r.Snippet)
	}
	return strings.Join(lines, "\n")
}

// DeviceBlock renders device data: "Error: <msg>" for the error marker, a
// numbered list of JSON items for lists, or the JSON record.
func DeviceBlock(d device.Data) string {
	switch d.Shape {
	case device.ShapeError:
		return "Error: " + d.Err
	case device.ShapeList:
		if len(d.List) == 0 {
			return "No items found."
		}
		lines := make([]string, len(d.List))
		for i, item := range d.List {
			lines[i] = fmt.Sprintf("%d. %s", i+1, toJSON(item))
		}
		return strings.Join(lines, "\n")
	case device.ShapeRecord:
		return toJSON(d.Record)
	default:
		return "No data."
	}
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
