package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const serpAPIEndpoint = "https://serpapi.com/search"

var ErrSearchNotConfigured = errors.New("SERPAPI_KEY not configured")

type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// WebSearcher runs Google searches through SerpAPI.
type WebSearcher struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewWebSearcher(apiKey string) *WebSearcher {
	return &WebSearcher{
		apiKey:     apiKey,
		endpoint:   serpAPIEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Search returns at most eight organic results.
func (s *WebSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if s == nil || s.apiKey == "" {
		return nil, ErrSearchNotConfigured
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("engine", "google")
	params.Set("num", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		OrganicResults []SearchResult `json:"organic_results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	results := parsed.OrganicResults
	if len(results) > 8 {
		results = results[:8]
	}
	return results, nil
}
