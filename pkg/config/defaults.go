package config

import "time"

// Built-in model and pipeline defaults. Overridable via revera.yaml.
const (
	DefaultReasoningModel = "gemini-3-flash-preview"
	DefaultEmbeddingModel = "gemini-embedding-001"
	DefaultImageModel     = "gemini-2.5-flash-image"

	DefaultEmbeddingDimensions = 3072
	DefaultCollection          = "revera_documents"
)

// DefaultConfig returns the built-in configuration. User YAML is merged
// on top of this, so every field the rest of the code reads must have a
// sane value here.
func DefaultConfig() *Config {
	return &Config{
		App: &AppConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Server: &ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			AllowedOrigins:    []string{"*"},
			RateLimitRPS:      10,
			RateLimitBurst:    20,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Gemini: &GeminiConfig{
			ReasoningModel:      DefaultReasoningModel,
			EmbeddingModel:      DefaultEmbeddingModel,
			ImageModel:          DefaultImageModel,
			EmbeddingDimensions: DefaultEmbeddingDimensions,
			MaxOutputTokens:     8192,
		},
		Qdrant: &QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: DefaultCollection,
		},
		Storage: &StorageConfig{
			Endpoint:      "localhost:9000",
			Bucket:        "revera",
			PresignExpiry: 24 * time.Hour,
		},
		Tavily: &TavilyConfig{
			BaseURL:     "https://api.tavily.com",
			SearchDepth: "advanced",
			Timeout:     30 * time.Second,
			MaxRetries:  3,
		},
		Research: &ResearchConfig{
			TopK:             10,
			MaxIterations:    2,
			MaxGraphSteps:    25,
			EventBuffer:      64,
			CriticTimeout:    30 * time.Second,
			MemoryWindow:     10,
			MaxWebResults:    5,
			MaxImageContexts: 4,
			ChunkSize:        1000,
			ChunkOverlap:     200,
			EmbedBatchSize:   100,
			UpsertBatchSize:  50,
			MaxPDFSizeMB:     50,
			MaxImageSizeMB:   10,
		},
		Retention: &RetentionConfig{
			EventTTL:        1 * time.Hour,
			StaleSessionTTL: 30 * time.Minute,
			CleanupInterval: 12 * time.Hour,
		},
	}
}
