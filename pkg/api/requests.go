package api

// maxQueryLength rejects oversized prompts before any model call.
const maxQueryLength = 2000

// CreateChatRequest is the body of POST /api/chats. Title is optional;
// the first research run derives one from the query.
type CreateChatRequest struct {
	Title string `json:"title"`
}

// UpdateChatRequest is the body of PUT /api/chats/:id.
type UpdateChatRequest struct {
	Title string `json:"title" binding:"required"`
}

// ChatQueryRequest is the body of POST /api/chats/:id/query/stream.
type ChatQueryRequest struct {
	Query         string   `json:"query" binding:"required"`
	UseWeb        *bool    `json:"use_web"`
	DocumentIDs   []string `json:"document_ids"`
	GenerateImage bool     `json:"generate_image"`
}

// ResearchRequest is the body of POST /api/research/query.
type ResearchRequest struct {
	Query       string   `json:"query" binding:"required"`
	UseWeb      *bool    `json:"use_web"`
	DocumentIDs []string `json:"document_ids"`
}

// FeedbackRequest is the body of POST /api/feedback.
type FeedbackRequest struct {
	MessageID string `json:"message_id" binding:"required"`
	Rating    string `json:"rating" binding:"required"`
	Comment   string `json:"comment"`
}

// useWebOrDefault applies the API default: web search is on unless the
// client turns it off.
func useWebOrDefault(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}
