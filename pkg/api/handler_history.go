package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reveralabs/revera/pkg/models"
)

// listHistoryHandler handles GET /api/research/history: the caller's
// past research sessions, newest first. Supports status, chat_id,
// limit and offset query filters.
func (s *Server) listHistoryHandler(c *gin.Context) {
	filters := models.SessionFilters{
		UserID: currentUserID(c),
		Status: c.Query("status"),
		ChatID: c.Query("chat_id"),
	}
	if v := c.Query("limit"); v != "" {
		filters.Limit, _ = strconv.Atoi(v)
	}
	if v := c.Query("offset"); v != "" {
		filters.Offset, _ = strconv.Atoi(v)
	}

	list, err := s.deps.Sessions.List(c.Request.Context(), filters)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	summaries := make([]SessionSummary, 0, len(list.Sessions))
	for _, session := range list.Sessions {
		summaries = append(summaries, SessionSummary{
			ID:        session.ID,
			Query:     session.Query,
			Status:    session.Status,
			CreatedAt: session.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, summaries)
}

// getHistoryHandler handles GET /api/research/history/:id, returning
// one session with its stored result.
func (s *Server) getHistoryHandler(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
		return
	}

	session, err := s.deps.Sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if session.UserID != currentUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}

	c.JSON(http.StatusOK, SessionDetail{
		ID:        session.ID,
		Query:     session.Query,
		Status:    session.Status,
		CreatedAt: session.CreatedAt,
		Result:    session.Result,
	})
}

// deleteHistoryHandler handles DELETE /api/research/history/:id.
func (s *Server) deleteHistoryHandler(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
		return
	}

	if err := s.deps.Sessions.Delete(c.Request.Context(), sessionID, currentUserID(c)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}
