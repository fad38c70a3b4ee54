package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reveralabs/revera/pkg/agent"
	"github.com/reveralabs/revera/pkg/events"
	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/orchestrator"
	"github.com/reveralabs/revera/pkg/storage"
)

// chatQueryStreamHandler handles POST /api/chats/:id/query/stream, the
// conversational entry point. The response is an SSE stream mirroring
// the run's event feed; closing the connection cancels the run.
func (s *Server) chatQueryStreamHandler(c *gin.Context) {
	chatID := c.Param("id")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id is required"})
		return
	}

	var req ChatQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Query) > maxQueryLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("query exceeds %d characters", maxQueryLength),
		})
		return
	}

	ctx := c.Request.Context()
	userID := currentUserID(c)
	chat, err := s.deps.Chats.Get(ctx, chatID, userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	if req.GenerateImage {
		sseHeaders(c)
		c.Writer.Flush()
		s.streamGeneratedImage(c, chat, req.Query)
		return
	}

	// The run inherits the request context, so a dropped connection
	// cancels research that nobody is watching.
	run, err := s.deps.Research.Stream(ctx, orchestrator.Request{
		Query:       req.Query,
		UserID:      userID,
		ChatID:      chat.ID,
		ThreadID:    chat.ThreadID,
		UseWeb:      useWebOrDefault(req.UseWeb),
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyQuery) || errors.Is(err, orchestrator.ErrMissingUserID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Error("Failed to start research run", "chat_id", chatID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start research"})
		return
	}

	sseHeaders(c)
	c.Writer.Flush()

	// Drain to the end even when the client is gone: the orchestrator
	// still needs its terminal event consumed.
	clientGone := false
	for payload := range run.Stream.Events() {
		if clientGone {
			continue
		}
		if err := sendSSE(c, "", payload.EventType(), payload); err != nil {
			clientGone = true
		}
	}
}

// streamGeneratedImage serves the generate_image short circuit: no
// research graph, one image model call whose result is stored and
// recorded as an assistant message. The event sequence mimics a
// research run so clients render both paths the same way.
func (s *Server) streamGeneratedImage(c *gin.Context, chat *models.Chat, prompt string) {
	ctx := c.Request.Context()
	userID := currentUserID(c)
	const confidence = "high"

	send := func(p events.Payload) {
		_ = sendSSE(c, "", p.EventType(), p)
	}

	send(events.AgentStatusPayload{
		Type:      events.TypeAgentStatus,
		Node:      agent.NodeImageGen,
		Status:    events.StatusRunning,
		Timestamp: events.Now(),
	})

	data, mimeType, err := s.deps.Images.GenerateImage(ctx, prompt)
	if err != nil {
		s.streamImageError(c, chat.ID, err)
		return
	}

	key := storage.ImageKey(userID, uuid.New().String())
	if err := s.deps.Objects.Put(ctx, key, data, mimeType); err != nil {
		s.streamImageError(c, chat.ID, fmt.Errorf("store image: %w", err))
		return
	}
	url, err := s.deps.Objects.URL(ctx, key)
	if err != nil {
		s.streamImageError(c, chat.ID, fmt.Errorf("resolve image url: %w", err))
		return
	}

	answer := fmt.Sprintf("![Generated Image](%s)", url)
	sources := []models.NormalizedSource{{
		Type:     models.SourceTypeImage,
		Content:  "Image generated for prompt: " + prompt,
		Title:    "Generated Image",
		ImageURL: url,
	}}

	msg, err := s.deps.Messages.Create(ctx, models.CreateMessageRequest{
		ChatID:     chat.ID,
		Query:      prompt,
		Answer:     answer,
		Role:       models.RoleAssistant,
		Sources:    sources,
		Confidence: confidence,
	})
	if err != nil {
		s.streamImageError(c, chat.ID, fmt.Errorf("persist message: %w", err))
		return
	}
	if err := s.deps.Chats.Touch(ctx, chat.ID); err != nil {
		slog.Warn("Failed to touch chat", "chat_id", chat.ID, "error", err)
	}

	send(events.AgentStatusPayload{
		Type:      events.TypeAgentStatus,
		Node:      agent.NodeImageGen,
		Status:    events.StatusComplete,
		Timestamp: events.Now(),
	})
	send(events.AnswerChunkPayload{Type: events.TypeAnswerChunk, Text: answer})
	send(events.CompletePayload{
		Type:       events.TypeComplete,
		MessageID:  msg.ID,
		Answer:     answer,
		Confidence: confidence,
		Sources:    sources,
		Timestamp:  events.Now(),
	})

	// Title refresh comes after the terminal event here: the image is
	// already on screen, and a title failure must not fail the stream.
	if s.deps.Titles != nil {
		title, err := s.deps.Titles.FromQuery(ctx, prompt)
		if err != nil {
			slog.Warn("Failed to generate chat title", "chat_id", chat.ID, "error", err)
			return
		}
		if err := s.deps.Chats.SetTitle(ctx, chat.ID, title); err != nil {
			slog.Warn("Failed to store chat title", "chat_id", chat.ID, "error", err)
			return
		}
		send(events.TitleUpdatedPayload{
			Type:      events.TypeTitleUpdated,
			ChatID:    chat.ID,
			Title:     title,
			Timestamp: events.Now(),
		})
	}
}

func (s *Server) streamImageError(c *gin.Context, chatID string, err error) {
	slog.Error("Image generation failed", "chat_id", chatID, "error", err)
	_ = sendSSE(c, "", events.TypeError, events.ErrorPayload{
		Type:      events.TypeError,
		Message:   "image generation failed: " + err.Error(),
		Timestamp: events.Now(),
	})
}

// cancelChatHandler handles POST /api/chats/:id/cancel, aborting every
// active run writing into the chat.
func (s *Server) cancelChatHandler(c *gin.Context) {
	chatID := c.Param("id")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id is required"})
		return
	}

	if _, err := s.deps.Chats.Get(c.Request.Context(), chatID, currentUserID(c)); err != nil {
		writeServiceError(c, err)
		return
	}

	cancelled := s.deps.Research.CancelChat(chatID)
	if cancelled > 0 {
		slog.Info("Cancelled chat runs", "chat_id", chatID, "count", cancelled)
	}
	c.JSON(http.StatusOK, CancelResponse{Cancelled: cancelled})
}
