package models

import "time"

// MemoryItem is one episodic memory in a namespaced memory store.
// Value is an arbitrary JSON-like document; Score carries similarity when
// the item was returned by a vector search and is zero otherwise.
type MemoryItem struct {
	Key       string         `json:"key"`
	Value     map[string]any `json:"value"`
	Score     float64        `json:"score,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
