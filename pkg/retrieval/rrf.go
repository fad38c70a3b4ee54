package retrieval

import (
	"sort"

	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/vector"
)

// RRFConstant is the K in reciprocal rank fusion: score = Σ 1/(K+rank).
// 60 is the standard choice; it keeps head ranks dominant without
// letting a single list run away with the fusion.
const RRFConstant = 60

// FuseRRF merges the dense-candidate and sparse-candidate rank lists
// with reciprocal rank fusion and returns the top-k fused sources.
//
// A chunk appearing in both lists accumulates both reciprocal ranks,
// which is what pushes consensus hits above single-list hits. Ties are
// broken by chunk ID so the output is deterministic. Each source
// carries the fused score plus the per-list score that contributed it.
func FuseRRF(dense, sparse []vector.ScoredChunk, topK int) []models.InternalSource {
	type fused struct {
		chunk       vector.ScoredChunk
		rrf         float64
		denseScore  *float64
		sparseScore *float64
	}

	byID := make(map[string]*fused, len(dense)+len(sparse))

	accumulate := func(list []vector.ScoredChunk, isDense bool) {
		for i, c := range list {
			rank := i + 1
			f, ok := byID[c.ChunkID]
			if !ok {
				f = &fused{chunk: c}
				byID[c.ChunkID] = f
			}
			f.rrf += 1.0 / float64(RRFConstant+rank)
			score := c.Score
			if isDense {
				f.denseScore = &score
			} else {
				f.sparseScore = &score
			}
		}
	}
	accumulate(dense, true)
	accumulate(sparse, false)

	ranked := make([]*fused, 0, len(byID))
	for _, f := range byID {
		ranked = append(ranked, f)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].rrf != ranked[j].rrf {
			return ranked[i].rrf > ranked[j].rrf
		}
		return ranked[i].chunk.ChunkID < ranked[j].chunk.ChunkID
	})

	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	sources := make([]models.InternalSource, 0, len(ranked))
	for _, f := range ranked {
		src := models.InternalSource{
			ChunkID:     f.chunk.ChunkID,
			DocumentID:  f.chunk.DocumentID,
			Content:     f.chunk.Content,
			Score:       f.rrf,
			RRFScore:    f.rrf,
			DenseScore:  f.denseScore,
			SparseScore: f.sparseScore,
		}
		if f.chunk.Filename != "" || f.chunk.Page > 0 {
			src.Metadata = map[string]any{
				"filename": f.chunk.Filename,
				"page":     f.chunk.Page,
			}
		}
		sources = append(sources, src)
	}
	return sources
}
