package agent

import (
	"context"
	"errors"
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
	criticTemperature = 0.2
	criticMaxTokens   = 2048
)

// refinementStatuses are the verification outcomes that send the run back
// to synthesis. Timeouts and partial verification do not.
var refinementStatuses = map[string]bool{
	models.VerificationLow:        true,
	models.VerificationFailed:     true,
	models.VerificationUnverified: true,
}

// criticNode verifies the synthesized answer against its sources under
// deps.CriticTimeout. It owns the refinement bookkeeping: the iteration
// count increments on every run and the conditional edge reads
// NeedsRefinement off the reduced state.
func criticNode(deps Deps) graph.NodeFunc[ResearchState, StateDelta] {
	return func(ctx context.Context, s ResearchState, nc *graph.NodeContext) (StateDelta, error) {
		start := time.Now()
		iteration := s.IterationCount + 1

		finish := func(v *models.Verification, needs bool) (StateDelta, error) {
			summary := fmt.Sprintf("Verification: %s (%.2f)",
				v.VerificationStatus, v.ConfidenceScore)
			meta := map[string]any{"needs_refinement": needs, "iteration": iteration}
			entry := timelineEntry(memory.AgentCritic, summary, meta, start)
			return StateDelta{
				Verification:    v,
				IterationCount:  intPtr(iteration),
				NeedsRefinement: boolPtr(needs),
				Timeline:        []models.TimelineEntry{entry},
			}, nil
		}

		if s.Synthesis == nil {
			return finish(&models.Verification{
				VerificationStatus: models.VerificationError,
				OverallAssessment:  "no synthesis result to verify",
			}, false)
		}

		packed := packSources(s.InternalSources, s.WebSources, s.ImageContexts)
		user := prompt.Critic(s.Query, s.Synthesis.Answer, sourcesForVerification(packed))
		if snippet := memory.FormatForPrompt(memory.AgentCritic, s.MemoryContext[memory.AgentCritic]); snippet != "" {
			user = snippet + "\n\n" + user
		}

		cctx, cancel := context.WithTimeout(ctx, deps.CriticTimeout)
		defer cancel()

		var v *models.Verification
		out, err := deps.Generator.GenerateJSON(cctx, llm.GenerateRequest{
			System:      prompt.CriticSystem,
			Prompt:      user,
			Temperature: llm.Temperature(criticTemperature),
			MaxTokens:   criticMaxTokens,
		})
		switch {
		case err != nil && ctx.Err() != nil:
			return StateDelta{}, ctx.Err()
		case err != nil && errors.Is(err, context.DeadlineExceeded):
			// Timeouts never refine: the answer stands as-is.
			slog.Warn("verification timed out",
				"session_id", s.SessionID, "timeout", deps.CriticTimeout)
			return finish(&models.Verification{
				VerificationStatus: models.VerificationTimeout,
				OverallAssessment:  "verification timed out",
			}, false)
		case err != nil:
			slog.Warn("verification call failed",
				"session_id", s.SessionID, "error", err)
			v = unverifiedDefault()
		default:
			v = &models.Verification{}
			if RecoverJSON(out, v) != nil || v.VerificationStatus == "" {
				v = unverifiedDefault()
			}
		}

		needs := s.IterationCount < s.MaxIterations && refinementStatuses[v.VerificationStatus]
		return finish(v, needs)
	}
}

// unverifiedDefault is the safe verdict when the critic's output cannot
// be used.
func unverifiedDefault() *models.Verification {
	return &models.Verification{
		VerificationStatus: models.VerificationUnverified,
		ConfidenceScore:    0,
		OverallAssessment:  "technical error",
	}
}
