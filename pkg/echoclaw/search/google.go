package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// Google queries the Custom Search JSON API.
type Google struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	engineID   string
	maxResults int
}

// NewGoogle creates a Google Custom Search provider.
func NewGoogle(client *http.Client, apiKey, engineID string, maxResults int) *Google {
	return &Google{
		client:     client,
		endpoint:   googleEndpoint,
		apiKey:     apiKey,
		engineID:   engineID,
		maxResults: maxResults,
	}
}

func (g *Google) Name() string { return ProviderGoogle }

// Search runs a query. The API serves at most 10 results per page.
func (g *Google) Search(ctx context.Context, query string) ([]Result, error) {
	if g.maxResults <= 0 {
		return []Result{}, nil
	}

	num := min(g.maxResults, 10)
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("google search returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 512*1024)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parsing google results: %w", err)
	}

	results := make([]Result, 0, len(payload.Items))
	for _, it := range payload.Items {
		results = append(results, Result{Title: it.Title, Link: it.Link, Snippet: it.Snippet})
	}
	return Head(results, g.maxResults), nil
}
