package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveralabs/revera/pkg/events"
	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/websearch"
)

func webPlanState(useWeb bool, tools ...string) ResearchState {
	steps := make([]models.PlanStep, len(tools))
	for i, tool := range tools {
		steps[i] = models.PlanStep{Tool: tool}
	}
	plan := models.Plan{Steps: steps}
	return ResearchState{Query: "latest release?", UseWeb: useWeb, Plan: &plan}
}

func TestWebSearchNode_ReturnsResultsAndQuickAnswer(t *testing.T) {
	web := &fakeWebSearcher{
		results: []models.WebSource{
			{URL: "https://w.example/a", Content: "fresh news", RelevanceScore: 0.8},
		},
		answer: "version 2.0",
	}
	sink := &eventSink{}
	node := webSearchNode(Deps{Web: web}.withDefaults())

	delta, err := node(context.Background(), webPlanState(true, models.ToolRAG, models.ToolWeb, models.ToolSynthesis), sink.context(NodeWebSearch))
	require.NoError(t, err)

	require.Len(t, delta.WebSources, 1)
	require.NotNil(t, delta.QuickAnswer)
	assert.Equal(t, "version 2.0", *delta.QuickAnswer)
	require.Len(t, delta.Timeline, 1)
	assert.Equal(t, NodeWebSearch, delta.Timeline[0].AgentName)
	assert.Equal(t, "Found 1 web results", delta.Timeline[0].ResultSummary)

	sources := sink.named(events.TypeSources)
	require.Len(t, sources, 1)
	quick := sink.named(events.TypeQuickAnswer)
	require.Len(t, quick, 1)
	payload, ok := quick[0].Payload.(events.QuickAnswerPayload)
	require.True(t, ok)
	assert.Equal(t, "version 2.0", payload.Answer)
	assert.Equal(t, "tavily", payload.Source)
}

func TestWebSearchNode_SkipsWhenDisabled(t *testing.T) {
	web := &fakeWebSearcher{}

	tests := []struct {
		name  string
		state ResearchState
		deps  Deps
	}{
		{
			name:  "use_web false",
			state: webPlanState(false, models.ToolWeb, models.ToolSynthesis),
			deps:  Deps{Web: web},
		},
		{
			name:  "plan has no web step",
			state: webPlanState(true, models.ToolRAG, models.ToolSynthesis),
			deps:  Deps{Web: web},
		},
		{
			name:  "no searcher wired",
			state: webPlanState(true, models.ToolWeb, models.ToolSynthesis),
			deps:  Deps{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			node := webSearchNode(tc.deps.withDefaults())
			delta, err := node(context.Background(), tc.state, (&eventSink{}).context(NodeWebSearch))
			require.NoError(t, err)
			assert.Equal(t, StateDelta{}, delta)
		})
	}
	assert.Empty(t, web.queries)
}

func TestWebSearchNode_DegradesOnFailure(t *testing.T) {
	web := &fakeWebSearcher{err: errors.New("provider down")}
	node := webSearchNode(Deps{Web: web}.withDefaults())

	delta, err := node(context.Background(), webPlanState(true, models.ToolWeb), (&eventSink{}).context(NodeWebSearch))
	require.NoError(t, err)

	require.NotNil(t, delta.WebSources)
	assert.Empty(t, delta.WebSources)
	assert.Nil(t, delta.QuickAnswer)
	require.Len(t, delta.Timeline, 1)
	assert.Equal(t, "Web search failed", delta.Timeline[0].ResultSummary)
}

func TestWebSearchNode_NotConfiguredIsQuiet(t *testing.T) {
	web := &fakeWebSearcher{err: websearch.ErrNotConfigured}
	node := webSearchNode(Deps{Web: web}.withDefaults())

	delta, err := node(context.Background(), webPlanState(true, models.ToolWeb), (&eventSink{}).context(NodeWebSearch))
	require.NoError(t, err)

	require.Len(t, delta.Timeline, 1)
	assert.Equal(t, "Web search not configured", delta.Timeline[0].ResultSummary)
}
