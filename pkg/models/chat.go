// Package models contains request/response models and business domain types.
package models

import "time"

// Chat is a conversation container owning messages and document scope.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	ThreadID  string    `json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatWithPreview decorates a chat with its latest message for list views.
type ChatWithPreview struct {
	Chat
	LastMessage  string     `json:"last_message,omitempty"`
	MessageCount int        `json:"message_count"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
}

// CreateChatRequest contains fields for creating a chat.
type CreateChatRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title,omitempty"`
}

// UpdateChatRequest contains mutable chat fields.
type UpdateChatRequest struct {
	Title string `json:"title"`
}
