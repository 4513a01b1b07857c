package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Search API.
type Brave struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	maxResults int
}

// NewBrave creates a Brave Search provider.
func NewBrave(client *http.Client, apiKey string, maxResults int) *Brave {
	return &Brave{
		client:     client,
		endpoint:   braveEndpoint,
		apiKey:     apiKey,
		maxResults: maxResults,
	}
}

func (b *Brave) Name() string { return ProviderBrave }

func (b *Brave) Search(ctx context.Context, query string) ([]Result, error) {
	if b.maxResults <= 0 {
		return []Result{}, nil
	}

	searchURL := fmt.Sprintf("%s?q=%s&count=%d", b.endpoint, url.QueryEscape(query), b.maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("brave search returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 200*1024)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parsing brave results: %w", err)
	}

	results := make([]Result, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		results = append(results, Result{Title: r.Title, Link: r.URL, Snippet: r.Description})
	}
	return Head(results, b.maxResults), nil
}
