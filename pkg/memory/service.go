package memory

import (
	"context"
	"log/slog"

	"github.com/reveralabs/revera/pkg/models"
)

// Agent names used for memory namespacing and formatter dispatch.
const (
	AgentPlanner   = "planner"
	AgentRetrieval = "retrieval"
	AgentSynthesis = "synthesis"
	AgentCritic    = "critic"
)

// ResearchAgents lists every agent that reads and writes episodic
// memory.
var ResearchAgents = []string{AgentPlanner, AgentRetrieval, AgentSynthesis, AgentCritic}

// BuildContext loads the memory window for every research agent in a
// chat, ranked against the current query when one is given. A failing
// agent lookup degrades to an empty window; a session never fails
// because memory was unavailable.
func BuildContext(ctx context.Context, store Store, userID, chatID, query string) map[string][]models.MemoryItem {
	contexts := make(map[string][]models.MemoryItem, len(ResearchAgents))
	for _, agent := range ResearchAgents {
		items, err := store.Search(ctx, Episodic(userID, chatID, agent), query, DefaultWindow)
		if err != nil {
			slog.Warn("Failed to load agent memory", "agent", agent, "error", err)
			items = nil
		}
		contexts[agent] = items
	}
	return contexts
}
