package agent

import (
	"context"
	"time"

	"github.com/reveralabs/revera/pkg/llm"
	"github.com/reveralabs/revera/pkg/models"
)

// Default tuning applied by withDefaults when the orchestrator leaves a
// field zero.
const (
	defaultTopK          = 10
	defaultCriticTimeout = 30 * time.Second
)

// Generator is the slice of the LLM gateway the nodes use.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (string, error)
	GenerateJSON(ctx context.Context, req llm.GenerateRequest) (string, error)
	GenerateStream(ctx context.Context, req llm.GenerateRequest) (<-chan llm.Chunk, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

// Retriever runs tenant-scoped hybrid retrieval. It returns the ranked
// chunks and the rewritten query actually used for encoding.
type Retriever interface {
	Search(ctx context.Context, query, userID string, topK int, documentIDs []string, rewrite bool) ([]models.InternalSource, string, error)
}

// WebSearcher runs expanded provider search. It returns the re-ranked
// results and the provider's quick answer, if any.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]models.WebSource, string, error)
}

// ImageStore persists generated images and resolves their public URLs.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	URL(ctx context.Context, key string) (string, error)
}

// Deps carries the shared clients the nodes close over. All of them are
// safe for concurrent use; per-run state lives only in ResearchState.
type Deps struct {
	Generator Generator
	Retriever Retriever

	// Web is optional. When nil, or when the underlying provider is not
	// configured, the web search node degrades to empty results.
	Web WebSearcher

	// Images is optional. When nil, the image generation node records a
	// failure instead of storing bytes.
	Images ImageStore

	// TopK is the retrieval depth. Zero means defaultTopK.
	TopK int

	// CriticTimeout bounds one verification call. Zero means
	// defaultCriticTimeout.
	CriticTimeout time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.TopK <= 0 {
		d.TopK = defaultTopK
	}
	if d.CriticTimeout <= 0 {
		d.CriticTimeout = defaultCriticTimeout
	}
	return d
}
