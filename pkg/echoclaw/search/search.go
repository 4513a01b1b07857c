// Package search provides the web search providers the assistant uses to
// ground answers: Google Custom Search, Brave Search and DuckDuckGo HTML.
// Providers only return ranked result lists; nothing here fetches the
// result pages themselves.
package search

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxResults is the number of results kept when none is configured.
const DefaultMaxResults = 3

// Provider names accepted by New.
const (
	ProviderGoogle     = "google"
	ProviderBrave      = "brave"
	ProviderDuckDuckGo = "duckduckgo"
)

// Result is one ranked search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Provider runs a web search. Results are in provider-ranked order and
// never longer than the provider's configured maximum.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

// Settings selects and configures a provider.
type Settings struct {
	Provider       string
	MaxResults     int
	GoogleAPIKey   string
	GoogleEngineID string
	BraveAPIKey    string
}

// New builds the configured provider. An empty provider name picks Google
// when its credentials are present, else DuckDuckGo. A keyed provider
// missing its credentials also falls back to DuckDuckGo.
func New(s Settings, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "search")

	limit := s.MaxResults
	if limit < 0 {
		limit = 0
	}
	client := &http.Client{Timeout: 15 * time.Second}

	name := strings.ToLower(strings.TrimSpace(s.Provider))
	if name == "" && s.GoogleAPIKey != "" && s.GoogleEngineID != "" {
		name = ProviderGoogle
	}

	switch name {
	case ProviderGoogle:
		if s.GoogleAPIKey != "" && s.GoogleEngineID != "" {
			return NewGoogle(client, s.GoogleAPIKey, s.GoogleEngineID, limit)
		}
		logger.Warn("google search selected without API key or engine ID, using duckduckgo")
	case ProviderBrave:
		if s.BraveAPIKey != "" {
			return NewBrave(client, s.BraveAPIKey, limit)
		}
		logger.Warn("brave search selected without API key, using duckduckgo")
	case ProviderDuckDuckGo, "":
	default:
		logger.Warn("unknown search provider, using duckduckgo", "provider", s.Provider)
	}
	return NewDuckDuckGo(client, limit)
}

// Head returns at most limit results, keeping the highest ranked.
func Head(results []Result, limit int) []Result {
	if limit <= 0 {
		return []Result{}
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
