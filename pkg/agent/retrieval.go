package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reveralabs/revera/pkg/graph"
	"github.com/reveralabs/revera/pkg/memory"
	"github.com/reveralabs/revera/pkg/models"
)

// retrievalNode runs hybrid retrieval over the user's documents. Failures
// degrade to empty sources with the error recorded in the timeline, so
// synthesis can still answer from whatever the other branches gather.
func retrievalNode(deps Deps) graph.NodeFunc[ResearchState, StateDelta] {
	return func(ctx context.Context, s ResearchState, nc *graph.NodeContext) (StateDelta, error) {
		start := time.Now()

		sources, rewritten, err := deps.Retriever.Search(ctx, s.Query, s.UserID, deps.TopK, s.DocumentIDs, true)
		if err != nil {
			if ctx.Err() != nil {
				return StateDelta{}, ctx.Err()
			}
			slog.Warn("retrieval failed, continuing without internal sources",
				"session_id", s.SessionID, "error", err)
			entry := timelineEntry(memory.AgentRetrieval, "Retrieval failed",
				map[string]any{"error": err.Error()}, start)
			return StateDelta{
				InternalSources: []models.InternalSource{},
				Timeline:        []models.TimelineEntry{entry},
			}, nil
		}

		normalized := make([]models.NormalizedSource, len(sources))
		for i, src := range sources {
			normalized[i] = NormalizeInternal(src)
		}
		emitSources(nc, normalized)

		meta := map[string]any{"rewritten_query": rewritten}
		entry := timelineEntry(memory.AgentRetrieval,
			fmt.Sprintf("Retrieved %d chunks", len(sources)), meta, start)
		return StateDelta{
			InternalSources: sources,
			Timeline:        []models.TimelineEntry{entry},
		}, nil
	}
}
