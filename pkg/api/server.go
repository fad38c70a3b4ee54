// Package api exposes the research service over HTTP: chat CRUD, the
// SSE research stream, document ingestion, session history, and
// feedback. Handlers depend on narrow store interfaces so tests run
// against in-memory fakes.
package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reveralabs/revera/pkg/config"
	"github.com/reveralabs/revera/pkg/memory"
	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/orchestrator"
	"github.com/reveralabs/revera/pkg/storage"
)

// ChatStore is the chat persistence surface the handlers use.
type ChatStore interface {
	Create(ctx context.Context, req models.CreateChatRequest) (*models.Chat, error)
	Get(ctx context.Context, chatID, userID string) (*models.Chat, error)
	List(ctx context.Context, userID string) ([]models.ChatWithPreview, error)
	UpdateTitle(ctx context.Context, chatID, userID, title string) error
	SetTitle(ctx context.Context, chatID, title string) error
	Touch(ctx context.Context, chatID string) error
	Delete(ctx context.Context, chatID, userID string) error
}

// MessageStore reads and writes chat messages.
type MessageStore interface {
	Create(ctx context.Context, req models.CreateMessageRequest) (*models.Message, error)
	Get(ctx context.Context, messageID string) (*models.Message, error)
	List(ctx context.Context, chatID string, limit, offset int) ([]models.Message, error)
}

// SessionStore reads research session history.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.ResearchSession, error)
	List(ctx context.Context, filters models.SessionFilters) (*models.SessionListResponse, error)
	Delete(ctx context.Context, sessionID, userID string) error
}

// AgentLogStore reads per-agent execution logs.
type AgentLogStore interface {
	ListForSession(ctx context.Context, sessionID string) ([]models.AgentLog, error)
}

// DocumentStore lists document rows. Creation and deletion go through
// the Ingestor, which also owns the vector and object cleanup.
type DocumentStore interface {
	ListByChat(ctx context.Context, chatID string) ([]models.Document, error)
	ListByUser(ctx context.Context, userID string) (*models.DocumentListResponse, error)
}

// FeedbackStore records message ratings.
type FeedbackStore interface {
	Upsert(ctx context.Context, req models.CreateFeedbackRequest) (*models.Feedback, error)
	ListForMessage(ctx context.Context, messageID string) ([]models.Feedback, error)
}

// EventStore replays persisted stream events for catch-up.
type EventStore interface {
	GetEventsSince(ctx context.Context, sessionID string, sinceID int64) ([]models.Event, error)
}

// MemoryStore extends the agent memory read side with the chat
// teardown used by chat deletion.
type MemoryStore interface {
	memory.Store
	DropChat(userID, chatID string) int
}

// Ingestor runs document ingestion and deletion, including vectors and
// stored objects.
type Ingestor interface {
	IngestPDF(ctx context.Context, data []byte, filename, userID, chatID string) (*models.Document, error)
	IngestImage(ctx context.Context, data []byte, filename, mimeType, userID, chatID string) (*models.Document, error)
	DeleteDocument(ctx context.Context, documentID, userID string) error
}

// Researcher drives research runs.
type Researcher interface {
	Stream(ctx context.Context, req orchestrator.Request) (*orchestrator.Run, error)
	Research(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
	CancelChat(chatID string) int
}

// ImageGenerator is the model slice behind the direct image path.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

// TitleMaker derives chat titles for runs that bypass the orchestrator.
type TitleMaker interface {
	FromQuery(ctx context.Context, query string) (string, error)
}

// Deps wires the handlers to the rest of the service.
type Deps struct {
	Chats     ChatStore
	Messages  MessageStore
	Sessions  SessionStore
	AgentLogs AgentLogStore
	Documents DocumentStore
	Feedback  FeedbackStore
	Events    EventStore
	Memory    MemoryStore
	Ingestor  Ingestor
	Research  Researcher
	Images    ImageGenerator
	Objects   storage.ObjectStore
	Titles    TitleMaker

	// DB backs the health check. nil skips the database probe.
	DB *sql.DB
}

// Server is the HTTP server for the research service.
type Server struct {
	deps     Deps
	cfg      config.ServerConfig
	research config.ResearchConfig

	httpServer *http.Server
}

// NewServer creates the server. research supplies the upload size caps.
func NewServer(deps Deps, cfg config.ServerConfig, research config.ResearchConfig) *Server {
	return &Server{deps: deps, cfg: cfg, research: research}
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), securityHeaders(), corsMiddleware(s.cfg.AllowedOrigins))

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", authMiddleware(s.cfg.AuthTokens))
	if s.cfg.RateLimitRPS > 0 {
		api.Use(newRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst).middleware())
	}

	chats := api.Group("/chats")
	{
		chats.GET("", s.listChatsHandler)
		chats.POST("", s.createChatHandler)
		chats.GET("/:id", s.getChatHandler)
		chats.PUT("/:id", s.updateChatHandler)
		chats.DELETE("/:id", s.deleteChatHandler)
		chats.GET("/:id/messages", s.listMessagesHandler)
		chats.GET("/:id/messages/:mid/verification", s.messageVerificationHandler)
		chats.POST("/:id/query/stream", s.chatQueryStreamHandler)
		chats.POST("/:id/cancel", s.cancelChatHandler)
		chats.GET("/:id/memory", s.chatMemoryHandler)
		chats.GET("/:id/memory/:agent", s.agentMemoryHandler)
	}

	research := api.Group("/research")
	{
		research.POST("/query", s.researchQueryHandler)
		research.GET("/history", s.listHistoryHandler)
		research.GET("/history/:id", s.getHistoryHandler)
		research.DELETE("/history/:id", s.deleteHistoryHandler)
		research.GET("/:id/timeline", s.sessionTimelineHandler)
		research.GET("/:id/events", s.sessionEventsHandler)
	}

	documents := api.Group("/documents")
	{
		documents.POST("/upload", s.uploadDocumentHandler)
		documents.GET("", s.listDocumentsHandler)
		documents.DELETE("/:id", s.deleteDocumentHandler)
	}

	api.POST("/feedback", s.submitFeedbackHandler)
	api.GET("/feedback/:mid", s.listFeedbackHandler)

	return r
}

// Start runs the HTTP server on addr, blocking until Shutdown or a
// listener error.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
