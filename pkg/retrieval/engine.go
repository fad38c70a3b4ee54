// Package retrieval implements triple-hybrid document retrieval: dense,
// sparse, and late-interaction encodings of the same query fused with
// reciprocal ranks into one ranked source list.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/vector"
)

// prefetchMultiple sizes each candidate list relative to top-k. Fusion
// needs deeper lists than the final cut so consensus can reorder them.
const prefetchMultiple = 3

// ErrMissingUserID indicates a search without tenant scope. Retrieval
// never runs unscoped.
var ErrMissingUserID = errors.New("user id is required for retrieval")

// Index is the slice of the vector client the engine needs.
type Index interface {
	QueryDenseCandidates(ctx context.Context, in vector.QueryInput) ([]vector.ScoredChunk, error)
	QuerySparseCandidates(ctx context.Context, in vector.QueryInput) ([]vector.ScoredChunk, error)
}

// Embedder is the slice of the model gateway the engine needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Engine runs the triple-hybrid retrieval pipeline.
type Engine struct {
	embedder Embedder
	index    Index
	rewriter *Rewriter
	sparse   *BM25Encoder
	late     *LateEncoder
	topK     int
}

// NewEngine creates a retrieval engine with the given default top-k.
// rewriter may be nil to disable query rewriting.
func NewEngine(embedder Embedder, index Index, rewriter *Rewriter, topK int) *Engine {
	return &Engine{
		embedder: embedder,
		index:    index,
		rewriter: rewriter,
		sparse:   NewBM25Encoder(),
		late:     NewLateEncoder(),
		topK:     topK,
	}
}

// Search retrieves the top-k fused sources for a query.
//
// Pipeline: optionally rewrite the query, compute the three encodings
// concurrently, run the dense-candidate and sparse-candidate index
// queries concurrently (each prefetching 3·top-k and rescoring with the
// late-interaction vectors), then fuse both rank lists with RRF.
//
// If exactly one candidate query fails, fusion proceeds on the
// surviving list. The rewritten query is returned for caller metadata.
func (e *Engine) Search(ctx context.Context, query, userID string, topK int, documentIDs []string, rewrite bool) ([]models.InternalSource, string, error) {
	if userID == "" {
		return nil, query, ErrMissingUserID
	}
	if topK <= 0 {
		topK = e.topK
	}

	searchQuery := query
	if rewrite && e.rewriter != nil {
		searchQuery = e.rewriter.Rewrite(ctx, query)
	}

	var (
		dense     []float32
		sparseVec vector.SparseVector
		late      [][]float32
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dense, err = e.embedder.Embed(gctx, searchQuery)
		if err != nil {
			return fmt.Errorf("dense encoding failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sparseVec = e.sparse.Encode(searchQuery)
		return nil
	})
	g.Go(func() error {
		late = e.late.Encode(searchQuery)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, searchQuery, err
	}

	in := vector.QueryInput{
		Dense:       dense,
		Sparse:      sparseVec,
		Late:        late,
		UserID:      userID,
		DocumentIDs: documentIDs,
		Limit:       uint64(prefetchMultiple * topK),
	}

	var (
		denseList, sparseList []vector.ScoredChunk
		denseErr, sparseErr   error
	)
	var queries errgroup.Group
	queries.Go(func() error {
		denseList, denseErr = e.index.QueryDenseCandidates(ctx, in)
		return nil
	})
	queries.Go(func() error {
		sparseList, sparseErr = e.index.QuerySparseCandidates(ctx, in)
		return nil
	})
	_ = queries.Wait()

	if denseErr != nil && sparseErr != nil {
		return nil, searchQuery, fmt.Errorf("hybrid retrieval failed: %w", errors.Join(denseErr, sparseErr))
	}
	if denseErr != nil {
		slog.Warn("Dense candidate query failed, fusing sparse list only", "error", denseErr)
	}
	if sparseErr != nil {
		slog.Warn("Sparse candidate query failed, fusing dense list only", "error", sparseErr)
	}

	return FuseRRF(denseList, sparseList, topK), searchQuery, nil
}
