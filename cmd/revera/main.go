// Revera research server: hosts the HTTP API and drives multi-agent
// research runs over the document index, web search, and the model
// gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/reveralabs/revera/pkg/agent"
	"github.com/reveralabs/revera/pkg/api"
	"github.com/reveralabs/revera/pkg/cleanup"
	"github.com/reveralabs/revera/pkg/config"
	"github.com/reveralabs/revera/pkg/database"
	"github.com/reveralabs/revera/pkg/ingestion"
	"github.com/reveralabs/revera/pkg/llm"
	"github.com/reveralabs/revera/pkg/memory"
	"github.com/reveralabs/revera/pkg/orchestrator"
	"github.com/reveralabs/revera/pkg/retrieval"
	"github.com/reveralabs/revera/pkg/services"
	"github.com/reveralabs/revera/pkg/storage"
	"github.com/reveralabs/revera/pkg/vector"
	"github.com/reveralabs/revera/pkg/version"
	"github.com/reveralabs/revera/pkg/websearch"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setupLogging installs the process-wide slog handler from config.
func setupLogging(cfg *config.AppConfig) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.App)

	slog.Info("Starting revera",
		"version", version.Full(),
		"config_dir", *configDir)

	// 2. Initialize database (connects and applies pending migrations)
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	db := dbClient.DB()

	// 3. Initialize vector index
	vectorClient, err := vector.NewClient(cfg.Qdrant)
	if err != nil {
		slog.Error("Failed to create vector client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := vectorClient.Close(); err != nil {
			slog.Error("Error closing vector client", "error", err)
		}
	}()

	if err := vectorClient.EnsureCollection(ctx, cfg.Gemini.EmbeddingDimensions); err != nil {
		slog.Error("Failed to ensure vector collection", "error", err)
		os.Exit(1)
	}
	slog.Info("Vector collection ready",
		"collection", cfg.Qdrant.Collection,
		"dense_dims", cfg.Gemini.EmbeddingDimensions)

	// 4. Initialize object storage
	objectStore, err := storage.NewMinIOStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize object storage", "error", err)
		os.Exit(1)
	}
	slog.Info("Object storage ready",
		"endpoint", cfg.Storage.Endpoint,
		"bucket", cfg.Storage.Bucket)

	// 5. Initialize model gateway
	gateway, err := llm.NewGeminiGateway(ctx, cfg.Gemini)
	if err != nil {
		slog.Error("Failed to initialize model gateway", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			slog.Error("Error closing model gateway", "error", err)
		}
	}()
	slog.Info("Model gateway initialized",
		"reasoning_model", cfg.Gemini.ReasoningModel,
		"embedding_model", cfg.Gemini.EmbeddingModel)

	// 6. Initialize persistence services
	chatService := services.NewChatService(db)
	messageService := services.NewMessageService(db)
	sessionService := services.NewSessionService(db)
	agentLogService := services.NewAgentLogService(db)
	documentService := services.NewDocumentService(db)
	feedbackService := services.NewFeedbackService(db)
	eventService := services.NewEventService(db)
	slog.Info("Services initialized")

	// 7. Assemble the research pipeline
	memoryStore := memory.NewInMemoryStore(gateway)
	searchEngine := retrieval.NewEngine(
		gateway, vectorClient, retrieval.NewRewriter(gateway), cfg.Research.TopK)
	webEngine := websearch.NewEngine(
		websearch.NewClient(cfg.Tavily), gateway, cfg.Research.MaxWebResults)
	ingestService := ingestion.NewService(
		gateway, vectorClient, documentService, objectStore, *cfg.Research)
	titles := orchestrator.NewTitleGenerator(gateway)

	orch, err := orchestrator.New(
		agent.Deps{
			Generator: gateway,
			Retriever: searchEngine,
			Web:       webEngine,
			Images:    objectStore,
		},
		orchestrator.Stores{
			Sessions:  sessionService,
			Messages:  messageService,
			Chats:     chatService,
			AgentLogs: agentLogService,
			Events:    eventService,
			Documents: documentService,
		},
		*cfg.Research,
		orchestrator.Options{
			Memory: memoryStore,
			Blobs:  objectStore,
			Titles: titles,
		},
	)
	if err != nil {
		slog.Error("Failed to build orchestrator", "error", err)
		os.Exit(1)
	}
	slog.Info("Research orchestrator ready")

	// 8. Start retention loop
	cleanupService := cleanup.NewService(cfg.Retention, sessionService, eventService)
	cleanupService.Start(ctx)
	defer cleanupService.Stop()

	// 9. Create HTTP server
	httpServer := api.NewServer(api.Deps{
		Chats:     chatService,
		Messages:  messageService,
		Sessions:  sessionService,
		AgentLogs: agentLogService,
		Documents: documentService,
		Feedback:  feedbackService,
		Events:    eventService,
		Memory:    memoryStore,
		Ingestor:  ingestService,
		Research:  orch,
		Images:    gateway,
		Objects:   objectStore,
		Titles:    titles,
		DB:        db,
	}, *cfg.Server, *cfg.Research)

	// 10. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Revera started successfully", "version", version.Full())

	// 11. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 12. Graceful shutdown: stop accepting requests and let in-flight
	// research streams drain within the timeout.
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
