package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveralabs/revera/pkg/vector"
)

func chunk(id string, score float64) vector.ScoredChunk {
	return vector.ScoredChunk{ChunkID: id, DocumentID: "doc-" + id, Content: "content " + id, Score: score}
}

func TestFuseRRF_ConsensusOutranksSingleList(t *testing.T) {
	// "both" sits mid-list in dense and sparse; "dense-top" leads only
	// the dense list. Consensus across lists must win.
	dense := []vector.ScoredChunk{chunk("dense-top", 0.99), chunk("both", 0.80), chunk("dense-3", 0.70)}
	sparse := []vector.ScoredChunk{chunk("sparse-top", 12.0), chunk("both", 9.0), chunk("sparse-3", 7.0)}

	fused := FuseRRF(dense, sparse, 10)

	require.NotEmpty(t, fused)
	assert.Equal(t, "both", fused[0].ChunkID)

	// score(both) = 1/(60+2) + 1/(60+2)
	assert.InDelta(t, 2.0/62.0, fused[0].RRFScore, 1e-9)
	assert.Equal(t, fused[0].RRFScore, fused[0].Score)
}

func TestFuseRRF_AttachesContributingScores(t *testing.T) {
	dense := []vector.ScoredChunk{chunk("a", 0.9)}
	sparse := []vector.ScoredChunk{chunk("a", 8.0), chunk("b", 5.0)}

	fused := FuseRRF(dense, sparse, 10)
	require.Len(t, fused, 2)

	byID := map[string]int{}
	for i, s := range fused {
		byID[s.ChunkID] = i
	}

	a := fused[byID["a"]]
	require.NotNil(t, a.DenseScore)
	require.NotNil(t, a.SparseScore)
	assert.Equal(t, 0.9, *a.DenseScore)
	assert.Equal(t, 8.0, *a.SparseScore)

	b := fused[byID["b"]]
	assert.Nil(t, b.DenseScore)
	require.NotNil(t, b.SparseScore)
	assert.Equal(t, 5.0, *b.SparseScore)
}

func TestFuseRRF_TieBreakByChunkID(t *testing.T) {
	// Two chunks each appear only at rank 1 of one list: identical RRF
	// scores, so ordering must fall back to chunk ID.
	dense := []vector.ScoredChunk{chunk("zzz", 0.9)}
	sparse := []vector.ScoredChunk{chunk("aaa", 3.0)}

	fused := FuseRRF(dense, sparse, 10)
	require.Len(t, fused, 2)
	assert.Equal(t, "aaa", fused[0].ChunkID)
	assert.Equal(t, "zzz", fused[1].ChunkID)
}

func TestFuseRRF_Deterministic(t *testing.T) {
	dense := []vector.ScoredChunk{chunk("a", 0.9), chunk("b", 0.8), chunk("c", 0.7)}
	sparse := []vector.ScoredChunk{chunk("c", 9.0), chunk("d", 8.0), chunk("a", 7.0)}

	first := FuseRRF(dense, sparse, 10)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, FuseRRF(dense, sparse, 10))
	}
}

func TestFuseRRF_TopKCut(t *testing.T) {
	dense := []vector.ScoredChunk{chunk("a", 1), chunk("b", 1), chunk("c", 1)}

	fused := FuseRRF(dense, nil, 2)
	assert.Len(t, fused, 2)
}

func TestFuseRRF_EmptyLists(t *testing.T) {
	assert.Empty(t, FuseRRF(nil, nil, 5))
}
