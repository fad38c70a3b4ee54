package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reveralabs/revera/pkg/agent/prompt"
	"github.com/reveralabs/revera/pkg/graph"
	"github.com/reveralabs/revera/pkg/llm"
	"github.com/reveralabs/revera/pkg/memory"
	"github.com/reveralabs/revera/pkg/models"
)

const (
	plannerTemperature = 0.3
	plannerMaxTokens   = 1024
)

// planningNode asks the model for an execution plan. Call failures and
// malformed output both fall back to the default plan so a run never dies
// at the planning stage; only cancellation propagates.
func planningNode(deps Deps) graph.NodeFunc[ResearchState, StateDelta] {
	return func(ctx context.Context, s ResearchState, nc *graph.NodeContext) (StateDelta, error) {
		start := time.Now()
		snippet := memory.FormatForPrompt(memory.AgentPlanner, s.MemoryContext[memory.AgentPlanner])

		req := llm.GenerateRequest{
			System:      prompt.PlannerSystem,
			Prompt:      prompt.Planner(s.Query, snippet, s.UseWeb, true),
			Temperature: llm.Temperature(plannerTemperature),
			MaxTokens:   plannerMaxTokens,
		}

		var plan models.Plan
		fallback := ""
		out, err := deps.Generator.GenerateJSON(ctx, req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return StateDelta{}, ctx.Err()
			}
			fallback = "generation failed"
			slog.Warn("planner generation failed, using default plan",
				"session_id", s.SessionID, "error", err)
		case RecoverJSON(out, &plan) != nil:
			fallback = "malformed plan"
			slog.Warn("planner output not parseable, using default plan",
				"session_id", s.SessionID)
		case len(plan.Steps) == 0:
			fallback = "empty plan"
		}
		if fallback != "" {
			plan = models.DefaultPlan(s.Query)
		}
		if !plan.HasStep(models.ToolSynthesis) {
			plan.Steps = append(plan.Steps, models.PlanStep{
				Tool:        models.ToolSynthesis,
				Description: "Synthesize an answer from gathered context",
			})
		}

		meta := map[string]any{"tools": planTools(&plan)}
		if fallback != "" {
			meta["fallback"] = fallback
		}
		entry := timelineEntry(memory.AgentPlanner,
			fmt.Sprintf("Planned %d steps", len(plan.Steps)), meta, start)
		return StateDelta{Plan: &plan, Timeline: []models.TimelineEntry{entry}}, nil
	}
}

func planTools(p *models.Plan) []string {
	tools := make([]string, len(p.Steps))
	for i, step := range p.Steps {
		tools[i] = step.Tool
	}
	return tools
}
