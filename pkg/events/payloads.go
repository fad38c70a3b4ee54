package events

import (
	"time"

	"github.com/reveralabs/revera/pkg/models"
)

// MessageIDPayload is the payload for message_id events.
// Published once, first, announcing the ID the assistant message row
// for this turn will be written under.
type MessageIDPayload struct {
	Type      string `json:"type"`       // always TypeMessageID
	MessageID string `json:"message_id"` // assistant message UUID
	Timestamp string `json:"timestamp"`  // RFC3339Nano
}

func (p MessageIDPayload) EventType() string { return TypeMessageID }

// AgentStatusPayload is the payload for agent_status events.
// Published on every node transition of the research graph.
type AgentStatusPayload struct {
	Type      string `json:"type"`      // always TypeAgentStatus
	Node      string `json:"node"`      // planning, retrieval, web_search, image_generation, synthesis, critic
	Status    string `json:"status"`    // running, complete, timeout, error
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

func (p AgentStatusPayload) EventType() string { return TypeAgentStatus }

// ThoughtChunkPayload is the payload for thought_chunk transient events.
// One per reasoning delta during synthesis; high frequency, never persisted.
type ThoughtChunkPayload struct {
	Type string `json:"type"` // always TypeThoughtChunk
	Text string `json:"text"` // incremental reasoning text
}

func (p ThoughtChunkPayload) EventType() string { return TypeThoughtChunk }

// AnswerChunkPayload is the payload for answer_chunk transient events.
// One per answer delta during synthesis; high frequency, never persisted.
type AnswerChunkPayload struct {
	Type string `json:"type"` // always TypeAnswerChunk
	Text string `json:"text"` // incremental answer text
}

func (p AnswerChunkPayload) EventType() string { return TypeAnswerChunk }

// SourcesPayload is the payload for sources events.
// Published as evidence arrives (retrieval, web search) and once more
// with the authoritative fused list before the terminal event.
type SourcesPayload struct {
	Type      string                    `json:"type"` // always TypeSources
	Sources   []models.NormalizedSource `json:"sources"`
	Timestamp string                    `json:"timestamp"` // RFC3339Nano
}

func (p SourcesPayload) EventType() string { return TypeSources }

// QuickAnswerPayload is the payload for quick_answer events.
// An optional pre-synthesis snippet produced by the web search provider.
type QuickAnswerPayload struct {
	Type      string `json:"type"`      // always TypeQuickAnswer
	Answer    string `json:"answer"`    // short provider-generated answer
	Source    string `json:"source"`    // provider name, e.g. "tavily"
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

func (p QuickAnswerPayload) EventType() string { return TypeQuickAnswer }

// TitleUpdatedPayload is the payload for title_updated events.
// Published when a chat receives its derived title.
type TitleUpdatedPayload struct {
	Type      string `json:"type"`              // always TypeTitleUpdated
	ChatID    string `json:"chat_id,omitempty"` // owning chat UUID
	Title     string `json:"title"`             // new chat title
	Timestamp string `json:"timestamp"`         // RFC3339Nano
}

func (p TitleUpdatedPayload) EventType() string { return TypeTitleUpdated }

// CompletePayload is the terminal payload for successful runs.
// Carries the full answer so reconnecting clients need no chunk replay.
type CompletePayload struct {
	Type           string                    `json:"type"`       // always TypeComplete
	MessageID      string                    `json:"message_id"` // persisted assistant message UUID
	SessionID      string                    `json:"session_id"` // research session UUID
	Answer         string                    `json:"answer"`     // full final answer (markdown)
	Confidence     string                    `json:"confidence"` // high, medium, low
	TotalLatencyMS int64                     `json:"total_latency_ms"`
	Sources        []models.NormalizedSource `json:"sources"`
	Verification   *models.Verification      `json:"verification,omitempty"`
	Timestamp      string                    `json:"timestamp"` // RFC3339Nano
}

func (p CompletePayload) EventType() string { return TypeComplete }

// ErrorPayload is the terminal payload for failed runs.
type ErrorPayload struct {
	Type      string `json:"type"`      // always TypeError
	Message   string `json:"message"`   // human-readable failure description
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

func (p ErrorPayload) EventType() string { return TypeError }

// Now returns the current time formatted for payload Timestamp fields.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
