// Package agent implements the research graph: the shared run state, the
// six nodes (planning, retrieval, web search, image generation, synthesis,
// critic), and the wiring that assembles them into an executable graph.
//
// Nodes never mutate ResearchState. Each returns a StateDelta; Reduce folds
// deltas into the state on the scheduler goroutine, which is the only place
// state transitions happen. Nodes degrade on recoverable failures (empty
// output plus a timeline entry carrying the error) and only propagate
// context cancellation.
package agent

import (
	"time"

	"github.com/reveralabs/revera/pkg/models"
)

// ResearchState is the shared state of one research run. The orchestrator
// seeds the input fields, nodes fill the rest through deltas, and the final
// state is read once the run ends.
type ResearchState struct {
	// Inputs, set before the run starts and never changed by nodes.
	Query         string
	UserID        string
	ChatID        string
	ThreadID      string
	SessionID     string
	UseWeb        bool
	DocumentIDs   []string
	MaxIterations int

	// Context loaded pre-run: per-agent memory windows and chat images.
	MemoryContext map[string][]models.MemoryItem
	ImageContexts []models.ImageRef

	// Node outputs.
	Plan              *models.Plan
	InternalSources   []models.InternalSource
	WebSources        []models.WebSource
	QuickAnswer       string
	GeneratedImageURL string
	Synthesis         *models.SynthesisResult
	Verification      *models.Verification

	// Refinement loop bookkeeping, owned by the critic node.
	IterationCount  int
	NeedsRefinement bool

	// Timeline grows by append; every node execution adds one entry
	// except skipped nodes, which return an empty delta.
	Timeline []models.TimelineEntry
}

// StateDelta is a node's partial output. Nil fields leave the state
// untouched; a non-nil empty slice overwrites (a node that ran and found
// nothing reports that explicitly). Timeline is append-merged.
type StateDelta struct {
	Plan              *models.Plan
	InternalSources   []models.InternalSource
	WebSources        []models.WebSource
	QuickAnswer       *string
	GeneratedImageURL *string
	Synthesis         *models.SynthesisResult
	Verification      *models.Verification
	IterationCount    *int
	NeedsRefinement   *bool
	Timeline          []models.TimelineEntry
}

// Reduce folds a delta into the state: replace for scalar and pointer
// fields, append for the timeline. The timeline append allocates a fresh
// slice so snapshots held by in-flight nodes never observe the merge.
func Reduce(s ResearchState, d StateDelta) ResearchState {
	if d.Plan != nil {
		s.Plan = d.Plan
	}
	if d.InternalSources != nil {
		s.InternalSources = d.InternalSources
	}
	if d.WebSources != nil {
		s.WebSources = d.WebSources
	}
	if d.QuickAnswer != nil {
		s.QuickAnswer = *d.QuickAnswer
	}
	if d.GeneratedImageURL != nil {
		s.GeneratedImageURL = *d.GeneratedImageURL
	}
	if d.Synthesis != nil {
		s.Synthesis = d.Synthesis
	}
	if d.Verification != nil {
		s.Verification = d.Verification
	}
	if d.IterationCount != nil {
		s.IterationCount = *d.IterationCount
	}
	if d.NeedsRefinement != nil {
		s.NeedsRefinement = *d.NeedsRefinement
	}
	if len(d.Timeline) > 0 {
		merged := make([]models.TimelineEntry, 0, len(s.Timeline)+len(d.Timeline))
		merged = append(merged, s.Timeline...)
		merged = append(merged, d.Timeline...)
		s.Timeline = merged
	}
	return s
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
func boolPtr(b bool) *bool    { return &b }

// timelineEntry records one node execution for the session timeline.
func timelineEntry(agentName, summary string, metadata map[string]any, start time.Time) models.TimelineEntry {
	return models.TimelineEntry{
		AgentName:     agentName,
		ResultSummary: summary,
		Metadata:      metadata,
		LatencyMS:     time.Since(start).Milliseconds(),
		Timestamp:     time.Now().UTC(),
	}
}
