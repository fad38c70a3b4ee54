package retrieval

import (
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/reveralabs/revera/pkg/vector"
)

// maxLateTokens bounds the multivector size per text. Long documents are
// chunked upstream, so the cap only truncates pathological inputs.
const maxLateTokens = 128

// LateEncoder produces token-level multivectors for late interaction.
// Each token maps to a deterministic unit vector drawn from a PRNG
// seeded by the token's hash, a hashed random projection. Identical
// tokens in query and document land on identical vectors, so the
// index-side MAX_SIM comparison rewards exact token overlap weighted by
// the surrounding candidate set.
//
// The encoder is stateless and safe for concurrent use.
type LateEncoder struct {
	dims int
}

// NewLateEncoder creates a late-interaction encoder producing vectors
// sized for the collection's colbert slot.
func NewLateEncoder() *LateEncoder {
	return &LateEncoder{dims: vector.ColbertDimensions}
}

// Encode returns one unit vector per token, at most maxLateTokens.
// Returns nil for texts with no tokens.
func (e *LateEncoder) Encode(text string) [][]float32 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) > maxLateTokens {
		tokens = tokens[:maxLateTokens]
	}

	out := make([][]float32, len(tokens))
	for i, tok := range tokens {
		out[i] = e.tokenVector(tok)
	}
	return out
}

func (e *LateEncoder) tokenVector(token string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, e.dims)
	var sumSq float64
	for i := range vec {
		v := rng.Float64()*2 - 1
		vec[i] = float32(v)
		sumSq += v * v
	}

	norm := float32(math.Sqrt(sumSq))
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
