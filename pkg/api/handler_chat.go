package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reveralabs/revera/pkg/memory"
	"github.com/reveralabs/revera/pkg/models"
)

// listChatsHandler handles GET /api/chats. Chats come back with their
// latest message preview, most recently active first.
func (s *Server) listChatsHandler(c *gin.Context) {
	chats, err := s.deps.Chats.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if chats == nil {
		chats = []models.ChatWithPreview{}
	}
	c.JSON(http.StatusOK, chats)
}

// createChatHandler handles POST /api/chats.
func (s *Server) createChatHandler(c *gin.Context) {
	var req CreateChatRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	chat, err := s.deps.Chats.Create(c.Request.Context(), models.CreateChatRequest{
		UserID: currentUserID(c),
		Title:  req.Title,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// getChatHandler handles GET /api/chats/:id.
func (s *Server) getChatHandler(c *gin.Context) {
	chatID := c.Param("id")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id is required"})
		return
	}

	chat, err := s.deps.Chats.Get(c.Request.Context(), chatID, currentUserID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// updateChatHandler handles PUT /api/chats/:id (rename).
func (s *Server) updateChatHandler(c *gin.Context) {
	chatID := c.Param("id")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id is required"})
		return
	}

	var req UpdateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	userID := currentUserID(c)
	if err := s.deps.Chats.UpdateTitle(ctx, chatID, userID, req.Title); err != nil {
		writeServiceError(c, err)
		return
	}

	chat, err := s.deps.Chats.Get(ctx, chatID, userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// deleteChatHandler handles DELETE /api/chats/:id.
//
// Agent memories and document vectors live outside the database, so
// deletion walks them explicitly before the chat row cascade takes the
// rest (messages, sessions, agent logs, feedback):
//  1. Cancel runs still writing into the chat.
//  2. Drop the chat's agent memory namespaces.
//  3. Delete each chat document (vectors and stored objects included).
//  4. Delete the chat row; the database cascades the remainder.
func (s *Server) deleteChatHandler(c *gin.Context) {
	chatID := c.Param("id")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id is required"})
		return
	}

	ctx := c.Request.Context()
	userID := currentUserID(c)

	if _, err := s.deps.Chats.Get(ctx, chatID, userID); err != nil {
		writeServiceError(c, err)
		return
	}

	stats := ChatCleanupStats{ChatID: chatID}
	stats.CancelledRuns = s.deps.Research.CancelChat(chatID)
	stats.MemoriesDeleted = s.deps.Memory.DropChat(userID, chatID)

	docs, err := s.deps.Documents.ListByChat(ctx, chatID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	for _, doc := range docs {
		if err := s.deps.Ingestor.DeleteDocument(ctx, doc.ID, userID); err != nil {
			slog.Warn("Failed to delete chat document",
				"chat_id", chatID, "document_id", doc.ID, "error", err)
			continue
		}
		stats.DocumentsDeleted++
	}

	if err := s.deps.Chats.Delete(ctx, chatID, userID); err != nil {
		writeServiceError(c, err)
		return
	}

	slog.Info("Chat deleted", "chat_id", chatID, "user_id", userID,
		"documents", stats.DocumentsDeleted, "memories", stats.MemoriesDeleted)
	c.JSON(http.StatusOK, ChatDeletedResponse{
		Message: "chat and all associated data deleted",
		Stats:   stats,
	})
}

// listMessagesHandler handles GET /api/chats/:id/messages.
func (s *Server) listMessagesHandler(c *gin.Context) {
	chatID := c.Param("id")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id is required"})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.deps.Chats.Get(ctx, chatID, currentUserID(c)); err != nil {
		writeServiceError(c, err)
		return
	}

	limit, offset := 0, 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	if v := c.Query("offset"); v != "" {
		offset, _ = strconv.Atoi(v)
	}

	messages, err := s.deps.Messages.List(ctx, chatID, limit, offset)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

// messageVerificationHandler handles
// GET /api/chats/:id/messages/:mid/verification.
// Clients poll it when the answer streamed before the critic finished.
// Returns 202 while verification is pending, 200 once it is complete.
func (s *Server) messageVerificationHandler(c *gin.Context) {
	chatID := c.Param("id")
	messageID := c.Param("mid")
	if chatID == "" || messageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id and message id are required"})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.deps.Chats.Get(ctx, chatID, currentUserID(c)); err != nil {
		writeServiceError(c, err)
		return
	}

	msg, err := s.deps.Messages.Get(ctx, messageID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if msg.ChatID != chatID {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}

	confidence := msg.Confidence
	if confidence == "" {
		confidence = "unknown"
	}

	httpStatus := http.StatusOK
	verificationStatus := "complete"
	if confidence == "pending" {
		httpStatus = http.StatusAccepted
		verificationStatus = "pending"
	}

	c.JSON(httpStatus, VerificationStatusResponse{
		Confidence:   confidence,
		Verification: msg.Verification,
		Status:       verificationStatus,
	})
}

// chatMemoryHandler handles GET /api/chats/:id/memory: the episodic
// memory window of every research agent, for the timeline panel.
func (s *Server) chatMemoryHandler(c *gin.Context) {
	chatID := c.Param("id")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id is required"})
		return
	}

	ctx := c.Request.Context()
	userID := currentUserID(c)
	if _, err := s.deps.Chats.Get(ctx, chatID, userID); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, memory.BuildContext(ctx, s.deps.Memory, userID, chatID, ""))
}

// agentMemoryHandler handles GET /api/chats/:id/memory/:agent.
func (s *Server) agentMemoryHandler(c *gin.Context) {
	chatID := c.Param("id")
	agentName := c.Param("agent")
	if chatID == "" || agentName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat id and agent name are required"})
		return
	}

	ctx := c.Request.Context()
	userID := currentUserID(c)
	if _, err := s.deps.Chats.Get(ctx, chatID, userID); err != nil {
		writeServiceError(c, err)
		return
	}

	items, err := s.deps.Memory.Search(ctx, memory.Episodic(userID, chatID, agentName), "", memory.DefaultWindow)
	if err != nil {
		slog.Warn("Failed to load agent memory", "agent", agentName, "error", err)
		items = nil
	}
	if items == nil {
		items = []models.MemoryItem{}
	}
	c.JSON(http.StatusOK, AgentMemoryResponse{Agent: agentName, Memories: items})
}
