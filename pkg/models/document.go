package models

import "time"

// Document types.
const (
	DocumentTypePDF   = "pdf"
	DocumentTypeImage = "image"
)

// Document is an ingested file owned by a user and optionally scoped to a chat.
type Document struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	ChatID    string         `json:"chat_id,omitempty"`
	Type      string         `json:"type"`
	Filename  string         `json:"filename"`
	Title     string         `json:"title,omitempty"`
	ImageURL  string         `json:"image_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// CreateDocumentRequest contains fields for registering a document.
// ID is optional; ingestion assigns one up front so vector payloads can
// reference the document before its row exists.
type CreateDocumentRequest struct {
	ID       string         `json:"id,omitempty"`
	UserID   string         `json:"user_id"`
	ChatID   string         `json:"chat_id,omitempty"`
	Type     string         `json:"type"`
	Filename string         `json:"filename"`
	Title    string         `json:"title,omitempty"`
	ImageURL string         `json:"image_url,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentListResponse contains a user's documents.
type DocumentListResponse struct {
	Documents  []Document `json:"documents"`
	TotalCount int        `json:"total_count"`
}
