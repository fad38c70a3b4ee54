package models

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a persisted chat turn: the user query plus the assistant answer
// with its citations, verification verdict and agent timeline.
type Message struct {
	ID            string             `json:"id"`
	ChatID        string             `json:"chat_id"`
	SessionID     string             `json:"session_id"`
	Query         string             `json:"query"`
	Answer        string             `json:"answer"`
	Role          string             `json:"role"`
	Thinking      string             `json:"thinking,omitempty"`
	Sources       []NormalizedSource `json:"sources,omitempty"`
	Verification  *Verification      `json:"verification,omitempty"`
	Confidence    string             `json:"confidence,omitempty"`
	AgentTimeline []TimelineEntry    `json:"agent_timeline,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// CreateMessageRequest contains fields for persisting an assistant message.
type CreateMessageRequest struct {
	ID            string             `json:"id"`
	ChatID        string             `json:"chat_id"`
	SessionID     string             `json:"session_id"`
	Query         string             `json:"query"`
	Answer        string             `json:"answer"`
	Role          string             `json:"role"`
	Thinking      string             `json:"thinking,omitempty"`
	Sources       []NormalizedSource `json:"sources,omitempty"`
	Verification  *Verification      `json:"verification,omitempty"`
	Confidence    string             `json:"confidence,omitempty"`
	AgentTimeline []TimelineEntry    `json:"agent_timeline,omitempty"`
}
