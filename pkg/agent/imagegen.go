package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reveralabs/revera/pkg/graph"
	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/storage"
)

// imageGenNode generates one image when the plan asks for it, stores the
// bytes, and records the public URL. On failure it records a timeline
// entry with the error and returns no URL; synthesis then proceeds
// without the generated-image join.
func imageGenNode(deps Deps) graph.NodeFunc[ResearchState, StateDelta] {
	return func(ctx context.Context, s ResearchState, nc *graph.NodeContext) (StateDelta, error) {
		step := s.Plan.Step(models.ToolImageGen)
		if step == nil {
			return StateDelta{}, nil
		}
		start := time.Now()

		fail := func(err error) (StateDelta, error) {
			if ctx.Err() != nil {
				return StateDelta{}, ctx.Err()
			}
			slog.Warn("image generation failed",
				"session_id", s.SessionID, "error", err)
			entry := timelineEntry(NodeImageGen, "Image generation failed",
				map[string]any{"error": err.Error()}, start)
			return StateDelta{Timeline: []models.TimelineEntry{entry}}, nil
		}

		if deps.Images == nil {
			return fail(errors.New("image storage not configured"))
		}

		promptText := step.Description
		if promptText == "" {
			promptText = s.Query
		}
		data, mime, err := deps.Generator.GenerateImage(ctx, promptText)
		if err != nil {
			return fail(err)
		}

		key := storage.ImageKey(s.UserID, uuid.NewString())
		if err := deps.Images.Put(ctx, key, data, mime); err != nil {
			return fail(err)
		}
		url, err := deps.Images.URL(ctx, key)
		if err != nil {
			return fail(err)
		}

		entry := timelineEntry(NodeImageGen, "Generated image",
			map[string]any{"key": key}, start)
		return StateDelta{
			GeneratedImageURL: strPtr(url),
			Timeline:          []models.TimelineEntry{entry},
		}, nil
	}
}
