package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reveralabs/revera/pkg/models"
)

// submitFeedbackHandler handles POST /api/feedback. One rating per
// user per message; submitting again replaces the previous rating.
func (s *Server) submitFeedbackHandler(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fb, err := s.deps.Feedback.Upsert(c.Request.Context(), models.CreateFeedbackRequest{
		UserID:    currentUserID(c),
		MessageID: req.MessageID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, FeedbackResponse{ID: fb.ID, Status: "submitted"})
}

// listFeedbackHandler handles GET /api/feedback/:mid, returning the
// ratings on one message. Only the owner of the message's chat may
// read them.
func (s *Server) listFeedbackHandler(c *gin.Context) {
	messageID := c.Param("mid")
	if messageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message id is required"})
		return
	}

	ctx := c.Request.Context()
	msg, err := s.deps.Messages.Get(ctx, messageID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if _, err := s.deps.Chats.Get(ctx, msg.ChatID, currentUserID(c)); err != nil {
		writeServiceError(c, err)
		return
	}

	items, err := s.deps.Feedback.ListForMessage(ctx, messageID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if items == nil {
		items = []models.Feedback{}
	}
	c.JSON(http.StatusOK, items)
}
