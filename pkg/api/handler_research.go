package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reveralabs/revera/pkg/events"
	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/orchestrator"
)

// eventPollInterval is how often the catch-up feed checks for new
// persisted events while a session is still running.
const eventPollInterval = time.Second

// researchQueryHandler handles POST /api/research/query: a blocking
// one-shot research call outside any chat. No events, no persistence of
// a message row; the session record is the only trace.
func (s *Server) researchQueryHandler(c *gin.Context) {
	var req ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Query) > maxQueryLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query exceeds 2000 characters"})
		return
	}

	result, err := s.deps.Research.Research(c.Request.Context(), orchestrator.Request{
		Query:       req.Query,
		UserID:      currentUserID(c),
		UseWeb:      useWebOrDefault(req.UseWeb),
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyQuery) || errors.Is(err, orchestrator.ErrMissingUserID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Error("Research query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ResearchResponse{
		SessionID:      result.SessionID,
		Query:          result.Query,
		Answer:         result.Answer,
		Sources:        result.Sources,
		Verification:   result.Verification,
		Confidence:     result.Confidence,
		TotalLatencyMS: result.TotalLatencyMS,
	})
}

// sessionTimelineHandler handles GET /api/research/:id/timeline: the
// per-agent execution log of one session, in execution order.
func (s *Server) sessionTimelineHandler(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
		return
	}

	ctx := c.Request.Context()
	session, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if session.UserID != currentUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}

	logs, err := s.deps.AgentLogs.ListForSession(ctx, sessionID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	timeline := make([]AgentTimelineItem, 0, len(logs))
	for _, log := range logs {
		timeline = append(timeline, AgentTimelineItem{
			Agent:     log.AgentName,
			Events:    log.Events,
			LatencyMS: log.LatencyMS,
			Timestamp: log.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, AgentTimelineResponse{SessionID: sessionID, Timeline: timeline})
}

// sessionEventsHandler handles GET /api/research/:id/events: the
// persisted event feed of a session served as SSE. Reconnecting clients
// resume after the last event they saw via Last-Event-ID (or ?since).
// Finished sessions replay their stored events and close; running ones
// are polled until a terminal event lands.
func (s *Server) sessionEventsHandler(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
		return
	}

	ctx := c.Request.Context()
	session, err := s.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if session.UserID != currentUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}

	var sinceID int64
	if v := c.GetHeader("Last-Event-ID"); v != "" {
		sinceID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := c.Query("since"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			sinceID = parsed
		}
	}

	sseHeaders(c)
	c.Writer.Flush()

	live := session.Status == models.SessionStatusRunning
	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()

	for {
		rows, err := s.deps.Events.GetEventsSince(ctx, sessionID, sinceID)
		if err != nil {
			slog.Error("Failed to load session events", "session_id", sessionID, "error", err)
			return
		}
		for _, row := range rows {
			if err := sendSSE(c, strconv.FormatInt(row.ID, 10), row.Channel, row.Payload); err != nil {
				return
			}
			sinceID = row.ID
			if row.Channel == events.TypeComplete || row.Channel == events.TypeError {
				return
			}
		}
		if !live {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Reload status so a run that died without writing a terminal
		// event cannot hold the feed open forever. One more fetch pass
		// runs after the flip to drain anything written in between.
		session, err = s.deps.Sessions.Get(ctx, sessionID)
		if err != nil || session.Status != models.SessionStatusRunning {
			live = false
		}
	}
}
