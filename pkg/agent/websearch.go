package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reveralabs/revera/pkg/events"
	"github.com/reveralabs/revera/pkg/graph"
	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/websearch"
)

// webSearchNode runs expanded web search when the user allows it and the
// plan asks for it. It self-skips with an empty delta otherwise, which
// keeps the planning fan-out unconditional.
func webSearchNode(deps Deps) graph.NodeFunc[ResearchState, StateDelta] {
	return func(ctx context.Context, s ResearchState, nc *graph.NodeContext) (StateDelta, error) {
		if !s.UseWeb || !s.Plan.HasStep(models.ToolWeb) || deps.Web == nil {
			return StateDelta{}, nil
		}
		start := time.Now()

		results, answer, err := deps.Web.Search(ctx, s.Query)
		if err != nil {
			if ctx.Err() != nil {
				return StateDelta{}, ctx.Err()
			}
			summary := "Web search failed"
			if errors.Is(err, websearch.ErrNotConfigured) {
				summary = "Web search not configured"
			} else {
				slog.Warn("web search failed, continuing without web sources",
					"session_id", s.SessionID, "error", err)
			}
			entry := timelineEntry(NodeWebSearch, summary,
				map[string]any{"error": err.Error()}, start)
			return StateDelta{
				WebSources: []models.WebSource{},
				Timeline:   []models.TimelineEntry{entry},
			}, nil
		}

		normalized := make([]models.NormalizedSource, len(results))
		for i, src := range results {
			normalized[i] = NormalizeWeb(src)
		}
		emitSources(nc, normalized)

		delta := StateDelta{WebSources: results}
		if answer != "" {
			delta.QuickAnswer = strPtr(answer)
			_ = nc.Emit(events.TypeQuickAnswer, events.QuickAnswerPayload{
				Type:      events.TypeQuickAnswer,
				Answer:    answer,
				Source:    "tavily",
				Timestamp: events.Now(),
			})
		}
		entry := timelineEntry(NodeWebSearch,
			fmt.Sprintf("Found %d web results", len(results)),
			map[string]any{"quick_answer": answer != ""}, start)
		delta.Timeline = []models.TimelineEntry{entry}
		return delta, nil
	}
}
