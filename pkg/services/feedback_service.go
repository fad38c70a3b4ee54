package services

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reveralabs/revera/pkg/models"
)

// FeedbackService records user ratings on assistant messages.
type FeedbackService struct {
	db *stdsql.DB
}

// NewFeedbackService creates a new FeedbackService
func NewFeedbackService(db *stdsql.DB) *FeedbackService {
	return &FeedbackService{db: db}
}

// Upsert stores a rating; a second vote from the same user on the same
// message replaces the first.
func (s *FeedbackService) Upsert(httpCtx context.Context, req models.CreateFeedbackRequest) (*models.Feedback, error) {
	if req.UserID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	if req.MessageID == "" {
		return nil, NewValidationError("message_id", "required")
	}
	if req.Rating != models.RatingUp && req.Rating != models.RatingDown {
		return nil, NewValidationError("rating", "must be up or down")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	fb := &models.Feedback{
		UserID:    req.UserID,
		MessageID: req.MessageID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}

	// The unique index on (user_id, message_id) makes this a replace; the
	// surviving row keeps its original ID.
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO feedback (id, user_id, message_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, message_id)
		DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment,
			created_at = EXCLUDED.created_at
		RETURNING id, created_at`,
		uuid.New().String(), fb.UserID, fb.MessageID, fb.Rating, fb.Comment,
		time.Now().UTC()).Scan(&fb.ID, &fb.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to upsert feedback: %w", err)
	}

	return fb, nil
}

// ListForMessage returns all feedback rows for a message.
func (s *FeedbackService) ListForMessage(httpCtx context.Context, messageID string) ([]models.Feedback, error) {
	if messageID == "" {
		return nil, NewValidationError("message_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, message_id, rating, comment, created_at
		FROM feedback WHERE message_id = $1 ORDER BY created_at ASC, id ASC`,
		messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	feedback := []models.Feedback{}
	for rows.Next() {
		var fb models.Feedback
		if err := rows.Scan(
			&fb.ID, &fb.UserID, &fb.MessageID, &fb.Rating, &fb.Comment, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		feedback = append(feedback, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}

	return feedback, nil
}
