// Package memory holds long-term agent memory for research sessions.
//
// Memories are namespaced by (user, chat, kind, agent) tuples. The
// in-process store keeps them only for the lifetime of the service:
// chat history persists in the database regardless, so losing agent
// learnings on restart costs nothing but a warm-up.
package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reveralabs/revera/pkg/models"
)

// DefaultWindow is how many memories a search returns unless the caller
// asks for fewer.
const DefaultWindow = 10

// KindEpisodic marks per-agent execution memories; KindSemantic marks
// chat-level facts.
const (
	KindEpisodic = "episodic"
	KindSemantic = "semantic"
)

// Namespace identifies one memory scope. Tuples are ordered from the
// broadest component to the narrowest.
type Namespace []string

// Episodic returns the namespace holding one agent's execution memories
// within a chat.
func Episodic(userID, chatID, agentName string) Namespace {
	return Namespace{userID, chatID, KindEpisodic, agentName}
}

// Semantic returns the namespace holding chat-level facts.
func Semantic(userID, chatID string) Namespace {
	return Namespace{userID, chatID, KindSemantic}
}

func (n Namespace) String() string {
	return strings.Join(n, "/")
}

// Store is the long-term memory interface. Search orders by vector
// similarity when query is non-empty, by recency otherwise.
type Store interface {
	Put(ctx context.Context, ns Namespace, key string, value map[string]any) error
	Search(ctx context.Context, ns Namespace, query string, limit int) ([]models.MemoryItem, error)
}

// Embedder is the slice of the model gateway the store needs for
// similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type entry struct {
	key       string
	value     map[string]any
	vector    []float32
	createdAt time.Time
}

// InMemoryStore is a mutex-guarded Store. Entries are embedded at write
// time so searches never call the embedding API per stored item.
type InMemoryStore struct {
	embedder Embedder

	mu     sync.RWMutex
	spaces map[string][]*entry
	now    func() time.Time
}

// NewInMemoryStore creates an empty store. embedder may be nil, which
// disables similarity search: queries then fall back to recency order.
func NewInMemoryStore(embedder Embedder) *InMemoryStore {
	return &InMemoryStore{
		embedder: embedder,
		spaces:   make(map[string][]*entry),
		now:      time.Now,
	}
}

// Put stores value under key, replacing any previous value for the same
// key. The stored document is embedded for later similarity search; an
// embedding failure degrades the entry to recency-only retrieval.
func (s *InMemoryStore) Put(ctx context.Context, ns Namespace, key string, value map[string]any) error {
	var vector []float32
	if s.embedder != nil {
		text := renderForEmbedding(value)
		var err error
		vector, err = s.embedder.Embed(ctx, text)
		if err != nil {
			slog.Warn("Failed to embed memory, storing without vector",
				"namespace", ns.String(), "key", key, "error", err)
			vector = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{key: key, value: value, vector: vector, createdAt: s.now()}
	space := s.spaces[ns.String()]
	for i, existing := range space {
		if existing.key == key {
			space[i] = e
			return nil
		}
	}
	s.spaces[ns.String()] = append(space, e)
	return nil
}

// Search returns up to limit items from ns. With a query it ranks by
// cosine similarity of the stored vectors; without one (or without an
// embedder) it returns the most recent items first.
func (s *InMemoryStore) Search(ctx context.Context, ns Namespace, query string, limit int) ([]models.MemoryItem, error) {
	if limit <= 0 {
		limit = DefaultWindow
	}

	var queryVec []float32
	if query != "" && s.embedder != nil {
		var err error
		queryVec, err = s.embedder.Embed(ctx, query)
		if err != nil {
			slog.Warn("Failed to embed memory query, falling back to recency",
				"namespace", ns.String(), "error", err)
			queryVec = nil
		}
	}

	s.mu.RLock()
	space := s.spaces[ns.String()]
	candidates := make([]*entry, len(space))
	copy(candidates, space)
	s.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, nil
	}

	items := make([]models.MemoryItem, 0, len(candidates))
	if queryVec != nil {
		for _, e := range candidates {
			items = append(items, models.MemoryItem{
				Key:       e.key,
				Value:     e.value,
				Score:     cosineSimilarity(queryVec, e.vector),
				CreatedAt: e.createdAt,
			})
		}
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Score != items[j].Score {
				return items[i].Score > items[j].Score
			}
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
	} else {
		// Most recent first: entries are stored in insert order.
		for i := len(candidates) - 1; i >= 0; i-- {
			e := candidates[i]
			items = append(items, models.MemoryItem{
				Key:       e.key,
				Value:     e.value,
				CreatedAt: e.createdAt,
			})
		}
	}

	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// DropChat removes every namespace scoped to one chat, episodic and
// semantic alike, and returns how many entries were dropped. Called
// when a chat is deleted.
func (s *InMemoryStore) DropChat(userID, chatID string) int {
	prefix := Namespace{userID, chatID}.String() + "/"

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, space := range s.spaces {
		if strings.HasPrefix(key, prefix) {
			dropped += len(space)
			delete(s.spaces, key)
		}
	}
	return dropped
}

// renderForEmbedding flattens a memory document into text. Keys are
// sorted so the same document always embeds the same string.
func renderForEmbedding(value map[string]any) string {
	keys := make([]string, 0, len(value))
	for k := range value {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteString(": ")
		switch v := value[k].(type) {
		case string:
			b.WriteString(v)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				continue
			}
			b.Write(raw)
		}
	}
	return b.String()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
