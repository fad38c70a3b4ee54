package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveralabs/revera/pkg/memory"
	"github.com/reveralabs/revera/pkg/models"
)

func runPlanning(t *testing.T, gen *fakeGenerator, s ResearchState) (StateDelta, *eventSink) {
	t.Helper()
	sink := &eventSink{}
	node := planningNode(Deps{Generator: gen}.withDefaults())
	delta, err := node(context.Background(), s, sink.context(NodePlanning))
	require.NoError(t, err)
	return delta, sink
}

func TestPlanningNode_ParsesPlan(t *testing.T) {
	gen := &fakeGenerator{jsonReplies: []jsonReply{
		{out: planJSON("rag", "web", "synthesis", "verification")},
	}}
	s := ResearchState{Query: "what changed in Q2?", UseWeb: true, SessionID: "sess-1"}

	delta, _ := runPlanning(t, gen, s)

	require.NotNil(t, delta.Plan)
	require.Len(t, delta.Plan.Steps, 4)
	assert.True(t, delta.Plan.HasStep(models.ToolRAG))
	assert.True(t, delta.Plan.HasStep(models.ToolSynthesis))

	require.Len(t, delta.Timeline, 1)
	assert.Equal(t, memory.AgentPlanner, delta.Timeline[0].AgentName)
	assert.Equal(t, "Planned 4 steps", delta.Timeline[0].ResultSummary)
	assert.NotContains(t, delta.Timeline[0].Metadata, "fallback")

	reqs := gen.jsonRequests()
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Temperature)
	assert.InDelta(t, 0.3, float64(*reqs[0].Temperature), 1e-6)
	assert.Contains(t, reqs[0].Prompt, "Query: what changed in Q2?")
	assert.Contains(t, reqs[0].Prompt, "Use web search: yes")
}

func TestPlanningNode_DefaultPlanOnCallFailure(t *testing.T) {
	gen := &fakeGenerator{jsonReplies: []jsonReply{
		{err: errors.New("model unavailable")},
	}}

	delta, _ := runPlanning(t, gen, ResearchState{Query: "q"})

	require.NotNil(t, delta.Plan)
	require.Len(t, delta.Plan.Steps, 2)
	assert.Equal(t, models.ToolRAG, delta.Plan.Steps[0].Tool)
	assert.Equal(t, models.ToolSynthesis, delta.Plan.Steps[1].Tool)
	assert.Equal(t, "generation failed", delta.Timeline[0].Metadata["fallback"])
}

func TestPlanningNode_DefaultPlanOnMalformedOutput(t *testing.T) {
	gen := &fakeGenerator{jsonReplies: []jsonReply{
		{out: "I think we should search the web first."},
	}}

	delta, _ := runPlanning(t, gen, ResearchState{Query: "q"})

	require.NotNil(t, delta.Plan)
	assert.Equal(t, models.DefaultPlan("q").Steps, delta.Plan.Steps)
	assert.Equal(t, "malformed plan", delta.Timeline[0].Metadata["fallback"])
}

func TestPlanningNode_AlwaysIncludesSynthesis(t *testing.T) {
	gen := &fakeGenerator{jsonReplies: []jsonReply{
		{out: planJSON("rag")},
	}}

	delta, _ := runPlanning(t, gen, ResearchState{Query: "q"})

	require.NotNil(t, delta.Plan)
	assert.True(t, delta.Plan.HasStep(models.ToolSynthesis))
}

func TestPlanningNode_MemorySnippetPrepended(t *testing.T) {
	gen := &fakeGenerator{jsonReplies: []jsonReply{
		{out: planJSON("rag", "synthesis")},
	}}
	s := ResearchState{
		Query: "q",
		MemoryContext: map[string][]models.MemoryItem{
			memory.AgentPlanner: {
				{Key: "m1", Value: map[string]any{"plan": "search docs; synthesize"}},
			},
		},
	}

	runPlanning(t, gen, s)

	reqs := gen.jsonRequests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "Previous planning strategies in this conversation:")
	assert.Contains(t, reqs[0].Prompt, "search docs; synthesize")
}

func TestPlanningNode_CancellationPropagates(t *testing.T) {
	gen := &fakeGenerator{jsonReplies: []jsonReply{
		{err: context.Canceled},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	node := planningNode(Deps{Generator: gen}.withDefaults())
	_, err := node(ctx, ResearchState{Query: "q"}, (&eventSink{}).context(NodePlanning))

	require.ErrorIs(t, err, context.Canceled)
}
