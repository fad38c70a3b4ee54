package api

import (
	"time"

	"github.com/reveralabs/revera/pkg/models"
)

// HealthCheck is one component's health within HealthResponse.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// VerificationStatusResponse is returned by the verification polling
// endpoint. Status is "pending" until the critic lands, then
// "complete".
type VerificationStatusResponse struct {
	Confidence   string               `json:"confidence"`
	Verification *models.Verification `json:"verification,omitempty"`
	Status       string               `json:"status"`
}

// ChatCleanupStats summarizes what a chat deletion removed beyond the
// row cascade.
type ChatCleanupStats struct {
	ChatID           string `json:"chat_id"`
	CancelledRuns    int    `json:"cancelled_runs"`
	MemoriesDeleted  int    `json:"agent_memories_deleted"`
	DocumentsDeleted int    `json:"documents_deleted"`
}

// ChatDeletedResponse is returned by DELETE /api/chats/:id.
type ChatDeletedResponse struct {
	Message string           `json:"message"`
	Stats   ChatCleanupStats `json:"stats"`
}

// CancelResponse is returned by POST /api/chats/:id/cancel.
type CancelResponse struct {
	Cancelled int `json:"cancelled"`
}

// AgentMemoryResponse is returned by GET /api/chats/:id/memory/:agent.
type AgentMemoryResponse struct {
	Agent    string              `json:"agent"`
	Memories []models.MemoryItem `json:"memories"`
}

// ResearchResponse is returned by POST /api/research/query.
type ResearchResponse struct {
	SessionID      string                    `json:"session_id"`
	Query          string                    `json:"query"`
	Answer         string                    `json:"answer"`
	Sources        []models.NormalizedSource `json:"sources"`
	Verification   *models.Verification      `json:"verification,omitempty"`
	Confidence     string                    `json:"confidence"`
	TotalLatencyMS int64                     `json:"total_latency_ms"`
}

// SessionSummary is one entry in GET /api/research/history.
type SessionSummary struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionDetail is returned by GET /api/research/history/:id.
type SessionDetail struct {
	ID        string         `json:"id"`
	Query     string         `json:"query"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	Result    map[string]any `json:"result,omitempty"`
}

// AgentTimelineItem is one agent execution in a session timeline.
type AgentTimelineItem struct {
	Agent     string         `json:"agent"`
	Events    map[string]any `json:"events,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
	Timestamp time.Time      `json:"timestamp"`
}

// AgentTimelineResponse is returned by GET /api/research/:id/timeline.
type AgentTimelineResponse struct {
	SessionID string              `json:"session_id"`
	Timeline  []AgentTimelineItem `json:"timeline"`
}

// DocumentDeletedResponse is returned by DELETE /api/documents/:id.
type DocumentDeletedResponse struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
}

// FeedbackResponse is returned by POST /api/feedback.
type FeedbackResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
