package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/reveralabs/revera/pkg/llm"
)

// maxRewriteWords caps the rewritten query length; longer outputs mean
// the model started answering instead of rewriting.
const maxRewriteWords = 20

const rewriteSystemPrompt = `You rewrite conversational questions into standalone search queries.

Rules:
- Resolve pronouns and references using nothing but the question itself.
- Keep every technical term, identifier, and number.
- At most 20 words.
- Output ONLY the rewritten query. No quotes, no explanation.`

// Generator is the slice of the model gateway the rewriter needs.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (string, error)
}

// Rewriter turns conversational queries into standalone search queries.
// It always degrades to the original query: retrieval with the raw
// question beats failing the whole search.
type Rewriter struct {
	gateway Generator
}

// NewRewriter creates a query rewriter.
func NewRewriter(gateway Generator) *Rewriter {
	return &Rewriter{gateway: gateway}
}

// Rewrite returns the standalone form of query, or query itself when
// rewriting fails or produces something unusable.
func (r *Rewriter) Rewrite(ctx context.Context, query string) string {
	out, err := r.gateway.Generate(ctx, llm.GenerateRequest{
		System:      rewriteSystemPrompt,
		Prompt:      query,
		Temperature: llm.Temperature(0.1),
		MaxTokens:   64,
	})
	if err != nil {
		slog.Warn("Query rewrite failed, using original query", "error", err)
		return query
	}

	rewritten := strings.TrimSpace(out)
	rewritten = strings.Trim(rewritten, `"'`)
	rewritten = strings.TrimSpace(rewritten)

	if rewritten == "" || len(strings.Fields(rewritten)) > maxRewriteWords {
		return query
	}
	return rewritten
}
