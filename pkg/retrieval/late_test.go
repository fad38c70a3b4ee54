package retrieval

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveralabs/revera/pkg/vector"
)

func TestLateEncoder_OneUnitVectorPerToken(t *testing.T) {
	e := NewLateEncoder()

	vecs := e.Encode("three token query")
	require.Len(t, vecs, 3)

	for _, v := range vecs {
		require.Len(t, v, vector.ColbertDimensions)
		var sumSq float64
		for _, x := range v {
			sumSq += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-3)
	}
}

func TestLateEncoder_SameTokenSameVector(t *testing.T) {
	e := NewLateEncoder()

	a := e.Encode("qdrant qdrant")
	b := e.Encode("qdrant")

	require.Len(t, a, 2)
	assert.Equal(t, a[0], a[1])
	assert.Equal(t, b[0], a[0])
}

func TestLateEncoder_DifferentTokensDiffer(t *testing.T) {
	e := NewLateEncoder()

	vecs := e.Encode("alpha beta")
	require.Len(t, vecs, 2)
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestLateEncoder_CapsTokenCount(t *testing.T) {
	e := NewLateEncoder()

	long := strings.Repeat("word ", maxLateTokens*2)
	vecs := e.Encode(long)
	assert.Len(t, vecs, maxLateTokens)
}

func TestLateEncoder_EmptyText(t *testing.T) {
	e := NewLateEncoder()
	assert.Nil(t, e.Encode(""))
}
