package websearch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/reveralabs/revera/pkg/llm"
)

// Query types steer re-ranking: temporal queries get a recency boost.
const (
	QueryTypeFactual     = "factual"
	QueryTypeConceptual  = "conceptual"
	QueryTypeComparative = "comparative"
	QueryTypeTemporal    = "temporal"
)

// maxAlternatives caps the expansion fan-out; each alternative costs one
// provider call.
const maxAlternatives = 2

const expansionSystemPrompt = `You expand a research question into web search queries.

Respond with JSON only:
{
  "primary_query": "the best single search query for the question",
  "alternative_queries": ["up to two rephrasings that could surface different sources"],
  "query_type": "factual" | "conceptual" | "comparative" | "temporal"
}

Rules:
- Queries are short keyword phrases, not full sentences.
- "temporal" means the answer depends on recent events or current data.
- Omit alternatives that would return the same results as the primary.`

// Generator is the slice of the model gateway expansion needs.
type Generator interface {
	GenerateJSON(ctx context.Context, req llm.GenerateRequest) (string, error)
}

// expansion is the parsed query expansion. Zero alternatives is valid.
type expansion struct {
	PrimaryQuery       string   `json:"primary_query"`
	AlternativeQueries []string `json:"alternative_queries"`
	QueryType          string   `json:"query_type"`
}

// expandQuery asks the model for search variants of query. Any failure
// degrades to a single-query factual expansion; web search never fails
// because expansion did.
func expandQuery(ctx context.Context, gen Generator, query string) expansion {
	fallback := expansion{PrimaryQuery: query, QueryType: QueryTypeFactual}
	if gen == nil {
		return fallback
	}

	out, err := gen.GenerateJSON(ctx, llm.GenerateRequest{
		System:      expansionSystemPrompt,
		Prompt:      query,
		Temperature: llm.Temperature(0.3),
		MaxTokens:   256,
	})
	if err != nil {
		slog.Warn("Query expansion failed, searching with original query", "error", err)
		return fallback
	}

	var exp expansion
	if err := json.Unmarshal([]byte(out), &exp); err != nil {
		slog.Warn("Query expansion returned invalid JSON, searching with original query", "error", err)
		return fallback
	}

	exp.PrimaryQuery = strings.TrimSpace(exp.PrimaryQuery)
	if exp.PrimaryQuery == "" {
		exp.PrimaryQuery = query
	}

	alternatives := exp.AlternativeQueries[:0]
	for _, alt := range exp.AlternativeQueries {
		alt = strings.TrimSpace(alt)
		if alt == "" || strings.EqualFold(alt, exp.PrimaryQuery) {
			continue
		}
		alternatives = append(alternatives, alt)
		if len(alternatives) == maxAlternatives {
			break
		}
	}
	exp.AlternativeQueries = alternatives

	switch exp.QueryType {
	case QueryTypeFactual, QueryTypeConceptual, QueryTypeComparative, QueryTypeTemporal:
	default:
		exp.QueryType = QueryTypeFactual
	}
	return exp
}
