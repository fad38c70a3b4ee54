package websearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reveralabs/revera/pkg/models"
)

const (
	defaultMaxResults = 5

	// recencyWindow and recencyBoost reward fresh sources on temporal
	// queries during re-ranking.
	recencyWindow = 30 * 24 * time.Hour
	recencyBoost  = 0.1

	// Longer extracted content carries more evidence, capped so raw
	// length never dominates the provider score.
	maxContentBoost = 0.1
)

// Engine turns one research query into a ranked list of web sources:
// expand, search all variants concurrently, dedup by URL, re-rank.
type Engine struct {
	client     *Client
	generator  Generator
	maxResults int
}

// NewEngine creates a web search engine. generator may be nil to skip
// query expansion.
func NewEngine(client *Client, generator Generator, maxResults int) *Engine {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Engine{client: client, generator: generator, maxResults: maxResults}
}

// Search returns the re-ranked top sources for query plus the provider's
// quick answer when one was generated.
//
// Individual variant searches fail independently; the merged list is
// built from whichever variants succeeded. Only when every variant fails
// does Search return an error.
func (e *Engine) Search(ctx context.Context, query string) ([]models.WebSource, string, error) {
	if !e.client.Enabled() {
		return nil, "", ErrNotConfigured
	}

	exp := expandQuery(ctx, e.generator, query)
	queries := append([]string{exp.PrimaryQuery}, exp.AlternativeQueries...)

	results := make([]*ProviderResult, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			res, err := e.client.Search(ctx, q, SearchOptions{
				MaxResults: e.maxResults,
				// Only the primary query asks for a quick answer.
				IncludeAnswer: i == 0,
			})
			if err != nil {
				slog.Warn("Web search variant failed, continuing with the rest",
					"query", q, "error", err)
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if r != nil {
			succeeded++
		}
	}
	if succeeded == 0 {
		return nil, "", fmt.Errorf("all web searches failed: %w", errors.Join(errs...))
	}

	var quickAnswer string
	if results[0] != nil {
		quickAnswer = results[0].Answer
	}

	merged := dedupeByURL(results)
	rerank(merged, exp.QueryType, time.Now())
	if len(merged) > e.maxResults {
		merged = merged[:e.maxResults]
	}
	return merged, quickAnswer, nil
}

// dedupeByURL merges the per-variant result lists keeping the first
// occurrence of each URL. Variant order is fixed (primary first), so the
// merge is deterministic.
func dedupeByURL(results []*ProviderResult) []models.WebSource {
	seen := make(map[string]struct{})
	var merged []models.WebSource
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, s := range res.Sources {
			if _, ok := seen[s.URL]; ok {
				continue
			}
			seen[s.URL] = struct{}{}
			merged = append(merged, s)
		}
	}
	return merged
}

// rerank assigns each source its composite relevance and sorts by it,
// URL ascending on ties.
//
//	relevance = provider score + recency boost + content length boost
func rerank(sources []models.WebSource, queryType string, now time.Time) {
	for i := range sources {
		s := &sources[i]
		s.RelevanceScore = s.Score + recencyBonus(queryType, s.PublishedDate, now) + contentBonus(s.Content)
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].RelevanceScore != sources[j].RelevanceScore {
			return sources[i].RelevanceScore > sources[j].RelevanceScore
		}
		return sources[i].URL < sources[j].URL
	})
}

func recencyBonus(queryType, published string, now time.Time) float64 {
	if queryType != QueryTypeTemporal || published == "" {
		return 0
	}
	ts, ok := parsePublishedDate(published)
	if !ok {
		return 0
	}
	if now.Sub(ts) <= recencyWindow {
		return recencyBoost
	}
	return 0
}

// Providers report publication dates in several formats; unparseable
// dates simply earn no boost.
var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 MST",
}

func parsePublishedDate(raw string) (time.Time, bool) {
	for _, layout := range publishedLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func contentBonus(content string) float64 {
	bonus := float64(len(content)) / 2000
	if bonus > maxContentBoost {
		bonus = maxContentBoost
	}
	return bonus
}
