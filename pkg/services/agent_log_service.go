package services

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reveralabs/revera/pkg/models"
)

// AgentLogService persists per-agent execution records for completed sessions.
type AgentLogService struct {
	db *stdsql.DB
}

// NewAgentLogService creates a new AgentLogService
func NewAgentLogService(db *stdsql.DB) *AgentLogService {
	return &AgentLogService{db: db}
}

// Append stores one agent's execution record for a session.
func (s *AgentLogService) Append(httpCtx context.Context, sessionID, agentName string, events map[string]any, latencyMS int64) (*models.AgentLog, error) {
	if sessionID == "" {
		return nil, NewValidationError("session_id", "required")
	}
	if agentName == "" {
		return nil, NewValidationError("agent_name", "required")
	}

	// Logs are written after the run; keep them even if the client is gone.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eventsJSON, err := marshalNonNil(events, len(events) > 0)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agent events: %w", err)
	}

	log := &models.AgentLog{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		AgentName: agentName,
		Events:    events,
		LatencyMS: latencyMS,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_logs (id, session_id, agent_name, events, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		log.ID, log.SessionID, log.AgentName, eventsJSON, log.LatencyMS, log.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to append agent log: %w", err)
	}

	return log, nil
}

// ListForSession returns a session's agent logs in insertion order.
func (s *AgentLogService) ListForSession(httpCtx context.Context, sessionID string) ([]models.AgentLog, error) {
	if sessionID == "" {
		return nil, NewValidationError("session_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, agent_name, events, latency_ms, created_at
		FROM agent_logs WHERE session_id = $1 ORDER BY created_at ASC, id ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent logs: %w", err)
	}
	defer rows.Close()

	logs := []models.AgentLog{}
	for rows.Next() {
		var (
			log        models.AgentLog
			eventsJSON []byte
		)
		if err := rows.Scan(
			&log.ID, &log.SessionID, &log.AgentName, &eventsJSON,
			&log.LatencyMS, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent log row: %w", err)
		}
		if len(eventsJSON) > 0 {
			if err := json.Unmarshal(eventsJSON, &log.Events); err != nil {
				return nil, fmt.Errorf("failed to decode agent events: %w", err)
			}
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate agent log rows: %w", err)
	}

	return logs, nil
}
