package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/reveralabs/revera/pkg/agent/prompt"
	"github.com/reveralabs/revera/pkg/events"
	"github.com/reveralabs/revera/pkg/graph"
	"github.com/reveralabs/revera/pkg/llm"
	"github.com/reveralabs/revera/pkg/memory"
	"github.com/reveralabs/revera/pkg/models"
)

const (
	synthesisTemperature = 0.5
	synthesisMaxTokens   = 3072
)

// fallbackAnswer is streamed when generation fails before producing any
// answer text.
const fallbackAnswer = "I ran into a problem while composing this answer. Please try your question again."

// synthesisNode streams the answer: reasoning deltas as thought_chunk
// events, answer deltas as answer_chunk events, and the assembled
// SynthesisResult in the returned delta. A prior verification in state
// switches the prompt to refinement mode. Stream failures degrade to a
// fallback chunk plus a partial result.
func synthesisNode(deps Deps) graph.NodeFunc[ResearchState, StateDelta] {
	return func(ctx context.Context, s ResearchState, nc *graph.NodeContext) (StateDelta, error) {
		start := time.Now()
		packed := packSources(s.InternalSources, s.WebSources, s.ImageContexts)
		srcCtx := sourcesContext(packed)

		refining := s.Verification != nil && s.Synthesis != nil
		var user string
		if refining {
			user = prompt.SynthesisRefinement(s.Query, srcCtx, s.Synthesis.Answer, s.Verification)
		} else {
			snippet := memory.FormatForPrompt(memory.AgentSynthesis, s.MemoryContext[memory.AgentSynthesis])
			user = prompt.Synthesis(s.Query, srcCtx, snippet)
		}

		req := llm.GenerateRequest{
			System:        prompt.SynthesisSystem,
			Prompt:        user,
			Images:        imageParts(s.ImageContexts),
			Temperature:   llm.Temperature(synthesisTemperature),
			MaxTokens:     synthesisMaxTokens,
			SplitThinking: true,
		}

		var answer, reasoning strings.Builder
		var streamErr error
		chunks, err := deps.Generator.GenerateStream(ctx, req)
		if err != nil {
			streamErr = err
		} else {
			for chunk := range chunks {
				switch c := chunk.(type) {
				case *llm.ThoughtChunk:
					reasoning.WriteString(c.Content)
					emitThought(nc, c.Content)
				case *llm.TextChunk:
					answer.WriteString(c.Content)
					emitAnswer(nc, c.Content)
				case *llm.ErrorChunk:
					streamErr = errors.New(c.Message)
				}
			}
		}
		if streamErr != nil {
			if ctx.Err() != nil {
				return StateDelta{}, ctx.Err()
			}
			slog.Warn("synthesis stream failed",
				"session_id", s.SessionID, "error", streamErr)
			if answer.Len() == 0 {
				answer.WriteString(fallbackAnswer)
				emitAnswer(nc, fallbackAnswer)
			}
		}

		final := answer.String()
		if s.GeneratedImageURL != "" {
			joined := "\n\n![Generated Image](" + s.GeneratedImageURL + ")"
			final += joined
			emitAnswer(nc, joined)
		}

		result := models.SynthesisResult{
			Answer:      final,
			SourcesUsed: citationOrdinals(final),
			Confidence:  models.ConfidenceMedium,
			SourceMap:   sourceMap(packed),
			Reasoning:   reasoning.String(),
		}
		if streamErr != nil {
			result.Confidence = models.ConfidenceLow
		}

		summary := fmt.Sprintf("Synthesized answer citing %d sources", len(result.SourcesUsed))
		meta := map[string]any{"refinement": refining, "packed_sources": len(packed)}
		if streamErr != nil {
			summary = "Synthesis degraded"
			meta["error"] = streamErr.Error()
		}
		entry := timelineEntry(memory.AgentSynthesis, summary, meta, start)
		return StateDelta{Synthesis: &result, Timeline: []models.TimelineEntry{entry}}, nil
	}
}

func emitThought(nc *graph.NodeContext, text string) {
	if text == "" {
		return
	}
	_ = nc.Emit(events.TypeThoughtChunk, events.ThoughtChunkPayload{
		Type: events.TypeThoughtChunk,
		Text: text,
	})
}

func emitAnswer(nc *graph.NodeContext, text string) {
	if text == "" {
		return
	}
	_ = nc.Emit(events.TypeAnswerChunk, events.AnswerChunkPayload{
		Type: events.TypeAnswerChunk,
		Text: text,
	})
}

// imageParts collects the attachments that carry inline bytes, which is
// what switches generation to the multimodal path.
func imageParts(images []models.ImageRef) []llm.ImageInput {
	var parts []llm.ImageInput
	for _, img := range images {
		if len(img.Data) == 0 {
			continue
		}
		mime := img.MimeType
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, llm.ImageInput{MIMEType: mime, Data: img.Data})
	}
	return parts
}
