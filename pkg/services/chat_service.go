// Package services contains the persistence service layer over the shared
// PostgreSQL pool. Services validate input, own their statement timeouts, and
// map database failures onto the package sentinel errors.
package services

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reveralabs/revera/pkg/models"
)

// DefaultChatTitle is the placeholder title until the first research run
// generates a real one.
const DefaultChatTitle = "New Chat"

// ChatService manages chat containers and their tenant scoping.
type ChatService struct {
	db *stdsql.DB
}

// NewChatService creates a new ChatService
func NewChatService(db *stdsql.DB) *ChatService {
	return &ChatService{db: db}
}

// Create initializes a chat with a fresh thread ID.
func (s *ChatService) Create(httpCtx context.Context, req models.CreateChatRequest) (*models.Chat, error) {
	if req.UserID == "" {
		return nil, NewValidationError("user_id", "required")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DefaultChatTitle
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	chat := &models.Chat{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Title:     title,
		ThreadID:  uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, title, thread_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		chat.ID, chat.UserID, chat.Title, chat.ThreadID, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	return chat, nil
}

// Get returns a chat owned by the given user.
func (s *ChatService) Get(httpCtx context.Context, chatID, userID string) (*models.Chat, error) {
	if chatID == "" {
		return nil, NewValidationError("chat_id", "required")
	}
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	var chat models.Chat
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, thread_id, created_at, updated_at
		FROM chats WHERE id = $1 AND user_id = $2`,
		chatID, userID).Scan(
		&chat.ID, &chat.UserID, &chat.Title, &chat.ThreadID, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	return &chat, nil
}

// List returns the user's chats, most recently active first, each with a
// preview of its latest message.
func (s *ChatService) List(httpCtx context.Context, userID string) ([]models.ChatWithPreview, error) {
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.title, c.thread_id, c.created_at, c.updated_at,
			COALESCE(last.preview, ''), COALESCE(cnt.message_count, 0), last.created_at
		FROM chats c
		LEFT JOIN LATERAL (
			SELECT LEFT(CASE WHEN m.answer <> '' THEN m.answer ELSE m.query END, 200) AS preview,
				m.created_at
			FROM messages m
			WHERE m.chat_id = c.id
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT 1
		) last ON true
		LEFT JOIN LATERAL (
			SELECT count(*) AS message_count FROM messages m WHERE m.chat_id = c.id
		) cnt ON true
		WHERE c.user_id = $1
		ORDER BY c.updated_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	chats := []models.ChatWithPreview{}
	for rows.Next() {
		var c models.ChatWithPreview
		var lastActive stdsql.NullTime
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.Title, &c.ThreadID, &c.CreatedAt, &c.UpdatedAt,
			&c.LastMessage, &c.MessageCount, &lastActive); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		if lastActive.Valid {
			t := lastActive.Time
			c.LastActiveAt = &t
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat rows: %w", err)
	}

	return chats, nil
}

// UpdateTitle renames a chat owned by the user.
func (s *ChatService) UpdateTitle(httpCtx context.Context, chatID, userID, title string) error {
	if chatID == "" {
		return NewValidationError("chat_id", "required")
	}
	if userID == "" {
		return NewValidationError("user_id", "required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return NewValidationError("title", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET title = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`,
		title, time.Now().UTC(), chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to update chat title: %w", err)
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

// SetTitle updates a chat title without tenant scoping. Used by the title
// generator after a research run, which already holds a validated chat.
func (s *ChatService) SetTitle(httpCtx context.Context, chatID, title string) error {
	if chatID == "" {
		return NewValidationError("chat_id", "required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return NewValidationError("title", "required")
	}

	// Background write: the run already finished, so don't let a dropped
	// client connection lose the title.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET title = $1, updated_at = $2 WHERE id = $3`,
		title, time.Now().UTC(), chatID)
	if err != nil {
		return fmt.Errorf("failed to set chat title: %w", err)
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

// Touch bumps a chat's updated_at so it sorts to the top of list views.
func (s *ChatService) Touch(ctx context.Context, chatID string) error {
	if chatID == "" {
		return NewValidationError("chat_id", "required")
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE chats SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), chatID)
	if err != nil {
		return fmt.Errorf("failed to touch chat: %w", err)
	}

	return nil
}

// Delete removes a chat; messages, sessions and documents cascade with it.
func (s *ChatService) Delete(httpCtx context.Context, chatID, userID string) error {
	if chatID == "" {
		return NewValidationError("chat_id", "required")
	}
	if userID == "" {
		return NewValidationError("user_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 10*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chats WHERE id = $1 AND user_id = $2`,
		chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
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
