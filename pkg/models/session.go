package models

import "time"

// Research session statuses.
const (
	SessionStatusRunning   = "running"
	SessionStatusCompleted = "completed"
	SessionStatusFailed    = "failed"
)

// ResearchSession is one end-to-end research run.
type ResearchSession struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	ChatID      string         `json:"chat_id,omitempty"`
	ThreadID    string         `json:"thread_id,omitempty"`
	Query       string         `json:"query"`
	Status      string         `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// CreateSessionRequest contains fields for creating a research session.
type CreateSessionRequest struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	ChatID   string `json:"chat_id,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
	Query    string `json:"query"`
}

// SessionResult is the terminal payload stored on the session row.
type SessionResult struct {
	Answer         string             `json:"answer"`
	Sources        []NormalizedSource `json:"sources,omitempty"`
	Verification   *Verification      `json:"verification,omitempty"`
	Confidence     string             `json:"confidence"`
	TotalLatencyMS int64              `json:"total_latency_ms"`
	Error          string             `json:"error,omitempty"`
}

// SessionFilters contains filtering options for listing sessions.
type SessionFilters struct {
	UserID        string     `json:"user_id"`
	ChatID        string     `json:"chat_id,omitempty"`
	Status        string     `json:"status,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	Offset        int        `json:"offset,omitempty"`
}

// SessionListResponse contains a paginated session list.
type SessionListResponse struct {
	Sessions   []ResearchSession `json:"sessions"`
	TotalCount int               `json:"total_count"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}

// AgentLog is one persisted agent execution record for a session.
type AgentLog struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	AgentName string         `json:"agent_name"`
	Events    map[string]any `json:"events,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
	CreatedAt time.Time      `json:"created_at"`
}
