// Package llm – llm.go defines the Oracle the assistant consults for
// classification and reply generation, and selects a provider from settings.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Default models per provider.
const (
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// ErrNoAPIKey is returned when a provider is built without credentials.
var ErrNoAPIKey = errors.New("API key not configured. Run 'echoclaw config set-key' or set AI_API_KEY")

// Oracle is a black-box language model: one prompt in, one completion out.
// Implementations do not retry.
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, prompt string) (string, error)

func (f OracleFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Settings selects and configures the model provider.
type Settings struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
}

// New creates the Oracle named by s.Provider (gemini when empty).
func New(ctx context.Context, s Settings, logger *slog.Logger) (Oracle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, s, logger)
	case ProviderOpenAI:
		return NewOpenAIClient(s, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider %q (want %s or %s)", s.Provider, ProviderGemini, ProviderOpenAI)
	}
}

// truncate shortens s to at most maxLen bytes, adding "..." when cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
