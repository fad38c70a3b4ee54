package services

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reveralabs/revera/pkg/models"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200

	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// MessageService persists chat turns with their research artifacts.
type MessageService struct {
	db *stdsql.DB
}

// NewMessageService creates a new MessageService
func NewMessageService(db *stdsql.DB) *MessageService {
	return &MessageService{db: db}
}

// Create persists a message. Sources, verification and the agent timeline are
// stored as JSONB alongside the text columns.
func (s *MessageService) Create(httpCtx context.Context, req models.CreateMessageRequest) (*models.Message, error) {
	if req.ChatID == "" {
		return nil, NewValidationError("chat_id", "required")
	}
	if req.Role != models.RoleUser && req.Role != models.RoleAssistant {
		return nil, NewValidationError("role", "must be user or assistant")
	}
	if req.Query == "" && req.Answer == "" {
		return nil, NewValidationError("query", "query or answer required")
	}

	// Critical write: a finished run must land even if the client is gone.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	sourcesJSON, err := marshalNonNil(req.Sources, len(req.Sources) > 0)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sources: %w", err)
	}
	verificationJSON, err := marshalNonNil(req.Verification, req.Verification != nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verification: %w", err)
	}
	timelineJSON, err := marshalNonNil(req.AgentTimeline, len(req.AgentTimeline) > 0)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agent timeline: %w", err)
	}

	msg := &models.Message{
		ID:            id,
		ChatID:        req.ChatID,
		SessionID:     req.SessionID,
		Query:         req.Query,
		Answer:        req.Answer,
		Role:          req.Role,
		Thinking:      req.Thinking,
		Sources:       req.Sources,
		Verification:  req.Verification,
		Confidence:    req.Confidence,
		AgentTimeline: req.AgentTimeline,
		CreatedAt:     time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages
			(id, chat_id, session_id, role, query, answer,
			 sources, verification, confidence, thinking, agent_timeline, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12)`,
		msg.ID, msg.ChatID, msg.SessionID, msg.Role, msg.Query, msg.Answer,
		sourcesJSON, verificationJSON, msg.Confidence, msg.Thinking, timelineJSON, msg.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return msg, nil
}

// Get returns one message by ID.
func (s *MessageService) Get(httpCtx context.Context, messageID string) (*models.Message, error) {
	if messageID == "" {
		return nil, NewValidationError("message_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	row := s.db.QueryRowContext(ctx, messageSelect+` WHERE id = $1`, messageID)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// List returns a chat's messages in chronological order.
func (s *MessageService) List(httpCtx context.Context, chatID string, limit, offset int) ([]models.Message, error) {
	if chatID == "" {
		return nil, NewValidationError("chat_id", "required")
	}
	limit = clampLimit(limit, defaultMessageLimit, maxMessageLimit)
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		messageSelect+` WHERE chat_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`,
		chatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

// Search runs full-text search across the user's message history.
func (s *MessageService) Search(httpCtx context.Context, userID, query string, limit int) ([]models.Message, error) {
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	if query == "" {
		return nil, NewValidationError("query", "required")
	}
	limit = clampLimit(limit, defaultSearchLimit, maxSearchLimit)

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	// plainto_tsquery tolerates raw user text; to_tsquery would reject it.
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.chat_id, m.session_id, m.role, m.query, m.answer,
			m.sources, m.verification, COALESCE(m.confidence, ''), COALESCE(m.thinking, ''),
			m.agent_timeline, m.created_at
		FROM messages m
		JOIN chats c ON c.id = m.chat_id
		WHERE c.user_id = $1
			AND to_tsvector('english', m.query || ' ' || m.answer) @@ plainto_tsquery('english', $2)
		ORDER BY m.created_at DESC
		LIMIT $3`,
		userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

const messageSelect = `SELECT id, chat_id, session_id, role, query, answer,
	sources, verification, COALESCE(confidence, ''), COALESCE(thinking, ''),
	agent_timeline, created_at
FROM messages`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(sc rowScanner) (*models.Message, error) {
	var (
		msg              models.Message
		sourcesJSON      []byte
		verificationJSON []byte
		timelineJSON     []byte
	)

	err := sc.Scan(
		&msg.ID, &msg.ChatID, &msg.SessionID, &msg.Role, &msg.Query, &msg.Answer,
		&sourcesJSON, &verificationJSON, &msg.Confidence, &msg.Thinking,
		&timelineJSON, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &msg.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode sources: %w", err)
		}
	}
	if len(verificationJSON) > 0 {
		if err := json.Unmarshal(verificationJSON, &msg.Verification); err != nil {
			return nil, fmt.Errorf("failed to decode verification: %w", err)
		}
	}
	if len(timelineJSON) > 0 {
		if err := json.Unmarshal(timelineJSON, &msg.AgentTimeline); err != nil {
			return nil, fmt.Errorf("failed to decode agent timeline: %w", err)
		}
	}

	return &msg, nil
}

func collectMessages(rows *stdsql.Rows) ([]models.Message, error) {
	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

// marshalNonNil marshals v when present is true, otherwise returns nil so the
// JSONB column stays NULL.
func marshalNonNil(v any, present bool) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
