package retrieval

import (
	"hash/fnv"
	"sort"
	"strings"
	"unicode"

	"github.com/reveralabs/revera/pkg/vector"
)

// BM25 parameters. IDF is applied index-side by the sparse vector
// modifier, so the encoder only produces term-frequency weights.
const (
	bm25K1     = 1.2
	bm25B      = 0.75
	bm25AvgLen = 256
)

// BM25Encoder produces sparse lexical encodings. Terms are hashed to
// vector indices with FNV-1a, so the encoder needs no vocabulary and
// queries and documents share the same index space.
//
// The encoder is stateless and safe for concurrent use.
type BM25Encoder struct{}

// NewBM25Encoder creates a sparse encoder.
func NewBM25Encoder() *BM25Encoder {
	return &BM25Encoder{}
}

// Encode returns the sparse encoding of text. Indices are sorted
// ascending so the output is deterministic.
func (e *BM25Encoder) Encode(text string) vector.SparseVector {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vector.SparseVector{}
	}

	counts := make(map[uint32]float32, len(tokens))
	for _, tok := range tokens {
		counts[hashToken(tok)]++
	}

	docLen := float32(len(tokens))
	norm := bm25K1 * (1 - bm25B + bm25B*docLen/bm25AvgLen)

	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		tf := counts[idx]
		values[i] = tf * (bm25K1 + 1) / (tf + norm)
	}

	return vector.SparseVector{Indices: indices, Values: values}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}
