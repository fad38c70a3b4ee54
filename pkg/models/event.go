package models

import "time"

// Event is a persisted session event row used for SSE catch-up after reconnect.
type Event struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Channel   string         `json:"channel"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// CreateEventRequest contains fields for creating an event
type CreateEventRequest struct {
	SessionID string         `json:"session_id"`
	Channel   string         `json:"channel"`
	Payload   map[string]any `json:"payload"`
}

// EventsResponse contains list of events since a given ID
type EventsResponse struct {
	Events []Event `json:"events"`
}
