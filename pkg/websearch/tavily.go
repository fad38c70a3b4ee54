// Package websearch gathers web evidence for a research session: the
// query is expanded into up to three variants, the variants are searched
// concurrently against the Tavily API, and the merged results are
// deduplicated and re-ranked into a single relevance-ordered list.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/reveralabs/revera/pkg/config"
	"github.com/reveralabs/revera/pkg/models"
)

// ErrNotConfigured indicates the client has no API key. Web search is
// optional; callers degrade to internal sources only.
var ErrNotConfigured = errors.New("web search is not configured")

const searchPath = "/search"

// Client calls the Tavily search API. Requests retry on 429 inside a
// circuit breaker, so a provider outage fails fast instead of stacking
// timeouts on every session.
type Client struct {
	apiKey     string
	baseURL    string
	depth      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a Tavily client from config. A client with an empty
// API key is valid but disabled: Search returns ErrNotConfigured.
func NewClient(cfg *config.TavilyConfig) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "tavily",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Web search circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// A caller hanging up says nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		depth:   cfg.SearchDepth,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &retryTransport{
				base:     http.DefaultTransport,
				maxRetry: cfg.MaxRetries,
			},
		},
		breaker: breaker,
	}
}

// Enabled reports whether the client holds an API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type searchRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth,omitempty"`
	MaxResults        int    `json:"max_results,omitempty"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
	IncludeImages     bool   `json:"include_images"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		URL           string  `json:"url"`
		Title         string  `json:"title"`
		Content       string  `json:"content"`
		RawContent    string  `json:"raw_content"`
		PublishedDate string  `json:"published_date"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

// SearchOptions tune a single provider call.
type SearchOptions struct {
	MaxResults    int
	IncludeAnswer bool
	IncludeRaw    bool
}

// ProviderResult is one raw Tavily response: the scored sources plus the
// provider-generated quick answer when IncludeAnswer was set.
type ProviderResult struct {
	Sources []models.WebSource
	Answer  string
}

// Search runs one search call through the circuit breaker.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (*ProviderResult, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doSearch(ctx, query, opts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("web search unavailable: %w", err)
		}
		return nil, err
	}
	return out.(*ProviderResult), nil
}

func (c *Client) doSearch(ctx context.Context, query string, opts SearchOptions) (*ProviderResult, error) {
	body, err := json.Marshal(searchRequest{
		Query:             query,
		SearchDepth:       c.depth,
		MaxResults:        opts.MaxResults,
		IncludeAnswer:     opts.IncludeAnswer,
		IncludeRawContent: opts.IncludeRaw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(detail))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := &ProviderResult{Answer: parsed.Answer}
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		result.Sources = append(result.Sources, models.WebSource{
			URL:           r.URL,
			Title:         r.Title,
			Content:       r.Content,
			RawContent:    r.RawContent,
			PublishedDate: r.PublishedDate,
			Score:         r.Score,
		})
	}
	return result, nil
}

// retryTransport retries on HTTP 429 with exponential backoff, honouring
// Retry-After.
type retryTransport struct {
	base     http.RoundTripper
	maxRetry int
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Buffer the body once so it can be replayed on every retry.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; attempt <= t.maxRetry; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		resp, err = t.base.RoundTrip(req)
		if err != nil || resp.StatusCode != http.StatusTooManyRequests {
			return resp, err
		}

		wait := t.backoff(attempt, resp)
		resp.Body.Close()
		slog.Warn("Web search rate limited, backing off",
			"wait", wait.String(), "attempt", attempt+1, "max_retries", t.maxRetry)
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(wait):
		}
	}
	return resp, err
}

func (t *retryTransport) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.ParseFloat(ra, 64); err == nil && secs >= 0 {
				return time.Duration(secs * float64(time.Second))
			}
		}
	}
	// 1s, 2s, 4s, ... capped at 30s.
	wait := time.Second << uint(attempt)
	if wait > 30*time.Second {
		wait = 30 * time.Second
	}
	return wait
}
