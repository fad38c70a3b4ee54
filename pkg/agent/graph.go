package agent

import (
	"github.com/reveralabs/revera/pkg/graph"
)

// Node names of the research graph, as they appear in agent_status events.
const (
	NodePlanning  = "planning"
	NodeRetrieval = "retrieval"
	NodeWebSearch = "web_search"
	NodeImageGen  = "image_generation"
	NodeSynthesis = "synthesis"
	NodeCritic    = "critic"
)

// BuildResearchGraph compiles the research pipeline:
//
//	planning ─┬─ retrieval ────────┬─ synthesis ── critic ──▶ end
//	          ├─ web_search ───────┤      ▲                │
//	          └─ image_generation ─┘      └── refinement ──┘
//
// The fan-out after planning is unconditional; web search and image
// generation self-skip by returning empty deltas when the plan or the
// user preferences exclude them. The critic's conditional edge loops back
// to synthesis while NeedsRefinement holds.
func BuildResearchGraph(deps Deps, opts ...graph.Option) (*graph.Engine[ResearchState, StateDelta], error) {
	deps = deps.withDefaults()

	b := graph.NewBuilder[ResearchState, StateDelta](Reduce)
	b.AddNode(NodePlanning, planningNode(deps))
	b.AddNode(NodeRetrieval, retrievalNode(deps))
	b.AddNode(NodeWebSearch, webSearchNode(deps))
	b.AddNode(NodeImageGen, imageGenNode(deps))
	b.AddNode(NodeSynthesis, synthesisNode(deps))
	b.AddNode(NodeCritic, criticNode(deps))

	b.AddEdge(NodePlanning, NodeRetrieval)
	b.AddEdge(NodePlanning, NodeWebSearch)
	b.AddEdge(NodePlanning, NodeImageGen)
	b.AddEdge(NodeRetrieval, NodeSynthesis)
	b.AddEdge(NodeWebSearch, NodeSynthesis)
	b.AddEdge(NodeImageGen, NodeSynthesis)
	b.AddEdge(NodeSynthesis, NodeCritic)
	b.AddConditionalEdge(NodeCritic, shouldRefine, NodeSynthesis)
	b.SetEntry(NodePlanning)

	return b.Compile(opts...)
}

// shouldRefine routes the critic's verdict: back to synthesis for another
// pass, or out of the graph.
func shouldRefine(s ResearchState) string {
	if s.NeedsRefinement {
		return NodeSynthesis
	}
	return graph.End
}
