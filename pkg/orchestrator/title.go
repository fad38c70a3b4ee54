package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/reveralabs/revera/pkg/llm"
)

const (
	// titleTimeout bounds one title generation call.
	titleTimeout = 10 * time.Second

	// titleMaxTokens caps the model response; titles are a few words.
	titleMaxTokens = 20

	// titleMaxLen is the longest stored title, in bytes.
	titleMaxLen = 100

	// titleMaxWords caps heuristic titles built straight from the
	// query.
	titleMaxWords = 5

	// defaultTitle labels chats whose query gave nothing to work with.
	defaultTitle = "New Chat"
)

// titleSystem steers the model toward a short noun-phrase title.
const titleSystem = `Generate a concise title for a chat that begins with the user query below.

Rules:
- 3 to 5 words
- Extract the key concepts; do not answer the query
- Plain text only: no quotes, no JSON, no trailing punctuation

Examples:
Query: how does raft handle leader election during a network partition
Title: Raft Leader Election

Query: compare python and javascript for backend development
Title: Python Javascript Comparison`

// TitleModel is the single-call slice of the model gateway the title
// generator uses.
type TitleModel interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (string, error)
}

// TitleGenerator derives chat titles from research queries. One and
// two word queries are capitalized as-is; longer queries go through
// the model. A nil model degrades every query to the first words of
// the query itself.
type TitleGenerator struct {
	model TitleModel
}

// NewTitleGenerator creates a title generator. model may be nil.
func NewTitleGenerator(model TitleModel) *TitleGenerator {
	return &TitleGenerator{model: model}
}

// FromQuery derives a title from the query that started a chat. The
// error path means the model produced nothing usable; callers keep the
// existing title in that case.
func (g *TitleGenerator) FromQuery(ctx context.Context, query string) (string, error) {
	clean := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(query), "?.!"))
	if clean == "" {
		return defaultTitle, nil
	}

	words := strings.Fields(clean)
	if len(words) <= 2 {
		return sanitizeTitle(titleCase(words)), nil
	}
	if g.model == nil {
		if len(words) > titleMaxWords {
			words = words[:titleMaxWords]
		}
		return sanitizeTitle(titleCase(words)), nil
	}

	genCtx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()
	raw, err := g.model.Generate(genCtx, llm.GenerateRequest{
		System:    titleSystem,
		Prompt:    clean,
		MaxTokens: titleMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	title := strings.Trim(strings.TrimSpace(raw), `"'`)
	if title == "" || strings.HasPrefix(title, "{") {
		return "", fmt.Errorf("title model returned unusable output: %q", raw)
	}
	return sanitizeTitle(titleCase(strings.Fields(title))), nil
}

var controlRunes = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)

// sanitizeTitle strips control characters, collapses whitespace, and
// clamps to titleMaxLen at a word boundary.
func sanitizeTitle(raw string) string {
	clean := strings.Join(strings.Fields(raw), " ")
	clean = controlRunes.ReplaceAllString(clean, "")
	if clean == "" {
		return defaultTitle
	}
	if len(clean) > titleMaxLen {
		cut := truncate(clean, titleMaxLen)
		if i := strings.LastIndex(cut, " "); i > 0 {
			cut = cut[:i]
		}
		clean = cut + "..."
	}
	return clean
}

// titleCase joins words with each one capitalized.
func titleCase(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = capitalizeWord(w)
	}
	return strings.Join(out, " ")
}

// capitalizeWord uppercases the first rune and lowercases the rest.
func capitalizeWord(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError && size <= 1 {
		return w
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}
