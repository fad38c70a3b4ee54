package services

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reveralabs/revera/pkg/models"
)

// EventService persists the session event stream so reconnecting clients can
// catch up on what they missed.
type EventService struct {
	db *stdsql.DB
}

// NewEventService creates a new EventService
func NewEventService(db *stdsql.DB) *EventService {
	return &EventService{db: db}
}

// CreateEvent appends an event row to a session's stream.
func (s *EventService) CreateEvent(httpCtx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	if req.SessionID == "" {
		return nil, NewValidationError("session_id", "required")
	}
	if req.Channel == "" {
		return nil, NewValidationError("channel", "required")
	}
	if req.Payload == nil {
		return nil, NewValidationError("payload", "required")
	}

	// Events must land even when the subscriber has gone away.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payloadJSON, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	evt := &models.Event{
		SessionID: req.SessionID,
		Channel:   req.Channel,
		Payload:   req.Payload,
		CreatedAt: time.Now().UTC(),
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO events (session_id, channel, payload, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		evt.SessionID, evt.Channel, payloadJSON, evt.CreatedAt).Scan(&evt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return evt, nil
}

// GetEventsSince retrieves a session's events after the given event ID.
func (s *EventService) GetEventsSince(ctx context.Context, sessionID string, sinceID int64) ([]models.Event, error) {
	if sessionID == "" {
		return nil, NewValidationError("session_id", "required")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, channel, payload, created_at
		FROM events WHERE session_id = $1 AND id > $2 ORDER BY id ASC`,
		sessionID, sinceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			evt         models.Event
			payloadJSON []byte
		)
		if err := rows.Scan(
			&evt.ID, &evt.SessionID, &evt.Channel, &payloadJSON, &evt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if err := json.Unmarshal(payloadJSON, &evt.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode event payload: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}

	return events, nil
}

// CleanupSessionEvents removes all events for a session.
func (s *EventService) CleanupSessionEvents(ctx context.Context, sessionID string) (int, error) {
	if sessionID == "" {
		return 0, NewValidationError("session_id", "required")
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(writeCtx,
		`DELETE FROM events WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup session events: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return int(n), nil
}

// CleanupOrphanedEvents removes events older than the TTL.
func (s *EventService) CleanupOrphanedEvents(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	writeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(writeCtx,
		`DELETE FROM events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup orphaned events: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return int(n), nil
}
