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

// DocumentService registers ingested documents and enforces tenant scope.
type DocumentService struct {
	db *stdsql.DB
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(db *stdsql.DB) *DocumentService {
	return &DocumentService{db: db}
}

// Create registers a document row for an ingested file.
func (s *DocumentService) Create(httpCtx context.Context, req models.CreateDocumentRequest) (*models.Document, error) {
	if req.UserID == "" {
		return nil, NewValidationError("user_id", "required")
	}
	if req.ChatID == "" {
		return nil, NewValidationError("chat_id", "required")
	}
	if req.Type != models.DocumentTypePDF && req.Type != models.DocumentTypeImage {
		return nil, NewValidationError("type", "must be pdf or image")
	}
	if req.Filename == "" {
		return nil, NewValidationError("filename", "required")
	}

	// The row is created after chunks and objects are already stored, so the
	// write must survive a dropped upload connection.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	metadataJSON, err := marshalNonNil(req.Metadata, len(req.Metadata) > 0)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document metadata: %w", err)
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	doc := &models.Document{
		ID:        id,
		UserID:    req.UserID,
		ChatID:    req.ChatID,
		Type:      req.Type,
		Filename:  req.Filename,
		Title:     req.Title,
		ImageURL:  req.ImageURL,
		Metadata:  req.Metadata,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents
			(id, user_id, chat_id, type, filename, title, image_url, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		doc.ID, doc.UserID, doc.ChatID, doc.Type, doc.Filename, doc.Title,
		doc.ImageURL, metadataJSON, doc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return doc, nil
}

// Get returns a document owned by the given user.
func (s *DocumentService) Get(httpCtx context.Context, documentID, userID string) (*models.Document, error) {
	if documentID == "" {
		return nil, NewValidationError("document_id", "required")
	}
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		documentSelect+` WHERE id = $1 AND user_id = $2`, documentID, userID)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// ListByChat returns all documents attached to a chat in upload order.
// Retrieval scoping and image context loading both build on this list.
func (s *DocumentService) ListByChat(httpCtx context.Context, chatID string) ([]models.Document, error) {
	if chatID == "" {
		return nil, NewValidationError("chat_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		documentSelect+` WHERE chat_id = $1 ORDER BY created_at ASC, id ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// ListByUser returns all documents owned by a user, newest first.
func (s *DocumentService) ListByUser(httpCtx context.Context, userID string) (*models.DocumentListResponse, error) {
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		documentSelect+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user documents: %w", err)
	}
	defer rows.Close()

	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, err
	}

	return &models.DocumentListResponse{
		Documents:  docs,
		TotalCount: len(docs),
	}, nil
}

// Delete removes a document owned by the user and returns the removed row so
// callers can clean up derived artifacts (vectors, stored objects).
func (s *DocumentService) Delete(httpCtx context.Context, documentID, userID string) (*models.Document, error) {
	if documentID == "" {
		return nil, NewValidationError("document_id", "required")
	}
	if userID == "" {
		return nil, NewValidationError("user_id", "required")
	}

	ctx, cancel := context.WithTimeout(httpCtx, 10*time.Second)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		`DELETE FROM documents WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, chat_id, type, filename, title,
			COALESCE(image_url, ''), metadata, created_at`,
		documentID, userID)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete document: %w", err)
	}

	return doc, nil
}

const documentSelect = `SELECT id, user_id, chat_id, type, filename, title,
	COALESCE(image_url, ''), metadata, created_at
FROM documents`

func scanDocument(sc rowScanner) (*models.Document, error) {
	var (
		doc          models.Document
		metadataJSON []byte
	)

	err := sc.Scan(
		&doc.ID, &doc.UserID, &doc.ChatID, &doc.Type, &doc.Filename, &doc.Title,
		&doc.ImageURL, &metadataJSON, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode document metadata: %w", err)
		}
	}

	return &doc, nil
}

func collectDocuments(rows *stdsql.Rows) ([]models.Document, error) {
	docs := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate document rows: %w", err)
	}
	return docs, nil
}
