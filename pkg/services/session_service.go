package services

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reveralabs/revera/pkg/models"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 100
)

// SessionService manages research session lifecycle rows.
type SessionService struct {
	db *stdsql.DB
}

// NewSessionService creates a new SessionService
func NewSessionService(db *stdsql.DB) *SessionService {
	return &SessionService{db: db}
}

// Create inserts a session in the running state.
func (s *SessionService) Create(httpCtx context.Context, req models.CreateSessionRequest) (*models.ResearchSession, error) {
	if req.UserID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	if req.Query == "" {
		return nil, NewValidationError("query", "required")
	}

	// Critical write: the session row anchors events and logs, so use a
	// background context that outlives the HTTP request.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	session := &models.ResearchSession{
		ID:        id,
		UserID:    req.UserID,
		ChatID:    req.ChatID,
		ThreadID:  req.ThreadID,
		Query:     req.Query,
		Status:    models.SessionStatusRunning,
		CreatedAt: time.Now().UTC(),
	}

	// chat_id is NULL for standalone runs so the chat foreign key only
	// applies when a chat is actually referenced.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO research_sessions
			(id, user_id, chat_id, thread_id, query, status, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $7)`,
		session.ID, session.UserID, session.ChatID, session.ThreadID,
		session.Query, session.Status, session.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Get returns one session by ID.
func (s *SessionService) Get(httpCtx context.Context, sessionID string) (*models.ResearchSession, error) {
	if sessionID == "" {
		return nil, NewValidationError("session_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	row := s.db.QueryRowContext(ctx, sessionSelect+` WHERE id = $1`, sessionID)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// Complete marks a running session completed and stores its result.
func (s *SessionService) Complete(httpCtx context.Context, sessionID string, result *models.SessionResult) error {
	if sessionID == "" {
		return NewValidationError("session_id", "required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resultJSON, err := marshalNonNil(result, result != nil)
	if err != nil {
		return fmt.Errorf("failed to marshal session result: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE research_sessions
		SET status = $1, result = $2, updated_at = $3, completed_at = $3
		WHERE id = $4 AND status = $5`,
		models.SessionStatusCompleted, resultJSON, time.Now().UTC(),
		sessionID, models.SessionStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// Fail marks a running session failed with a reason. Already-terminal
// sessions are left untouched.
func (s *SessionService) Fail(httpCtx context.Context, sessionID, reason string) error {
	if sessionID == "" {
		return NewValidationError("session_id", "required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resultJSON, err := json.Marshal(models.SessionResult{Error: reason})
	if err != nil {
		return fmt.Errorf("failed to marshal failure result: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE research_sessions
		SET status = $1, result = $2, updated_at = $3, completed_at = $3
		WHERE id = $4 AND status = $5`,
		models.SessionStatusFailed, resultJSON, time.Now().UTC(),
		sessionID, models.SessionStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark session failed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a user's session. Agent logs cascade with it.
func (s *SessionService) Delete(httpCtx context.Context, sessionID, userID string) error {
	if sessionID == "" {
		return NewValidationError("session_id", "required")
	}
	if userID == "" {
		return NewValidationError("user_id", "required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM research_sessions WHERE id = $1 AND user_id = $2`,
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// List returns the user's sessions matching the filters, newest first.
func (s *SessionService) List(httpCtx context.Context, filters models.SessionFilters) (*models.SessionListResponse, error) {
	if filters.UserID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	if filters.Status != "" &&
		filters.Status != models.SessionStatusRunning &&
		filters.Status != models.SessionStatusCompleted &&
		filters.Status != models.SessionStatusFailed {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filters.Status)
	}

	limit := clampLimit(filters.Limit, defaultSessionLimit, maxSessionLimit)
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	where := []string{"user_id = $1"}
	args := []any{filters.UserID}
	if filters.ChatID != "" {
		args = append(args, filters.ChatID)
		where = append(where, fmt.Sprintf("chat_id = $%d", len(args)))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.CreatedAfter != nil {
		args = append(args, *filters.CreatedAfter)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filters.CreatedBefore != nil {
		args = append(args, *filters.CreatedBefore)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM research_sessions WHERE `+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	pageArgs := append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx,
		sessionSelect+` WHERE `+whereClause+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2),
		pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.ResearchSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}

	return &models.SessionListResponse{
		Sessions:   sessions,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// MarkStaleFailed fails running sessions that have not progressed within
// olderThan. Returns the number of sessions transitioned.
func (s *SessionService) MarkStaleFailed(ctx context.Context, olderThan time.Duration) (int, error) {
	writeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-olderThan)

	res, err := s.db.ExecContext(writeCtx,
		`UPDATE research_sessions
		SET status = $1, updated_at = $2, completed_at = $2,
			result = COALESCE(result, '{}'::jsonb) || '{"error": "session timed out"}'::jsonb
		WHERE status = $3 AND updated_at < $4`,
		models.SessionStatusFailed, time.Now().UTC(),
		models.SessionStatusRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale sessions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return int(n), nil
}

const sessionSelect = `SELECT id, user_id, COALESCE(chat_id, ''), thread_id, query, status,
	result, created_at, completed_at
FROM research_sessions`

func scanSession(sc rowScanner) (*models.ResearchSession, error) {
	var (
		session     models.ResearchSession
		resultJSON  []byte
		completedAt stdsql.NullTime
	)

	err := sc.Scan(
		&session.ID, &session.UserID, &session.ChatID, &session.ThreadID,
		&session.Query, &session.Status, &resultJSON, &session.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &session.Result); err != nil {
			return nil, fmt.Errorf("failed to decode session result: %w", err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		session.CompletedAt = &t
	}

	return &session, nil
}
