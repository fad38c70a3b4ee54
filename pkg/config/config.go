// Package config provides YAML configuration loading, defaulting, and validation.
package config

import "time"

// Config is the fully resolved application configuration.
// Built by Initialize; treat as read-only after that.
type Config struct {
	configDir string

	App       *AppConfig
	Server    *ServerConfig
	Gemini    *GeminiConfig
	Qdrant    *QdrantConfig
	Storage   *StorageConfig
	Tavily    *TavilyConfig
	Research  *ResearchConfig
	Retention *RetentionConfig
}

// ConfigDir returns the directory configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// AppConfig groups application-wide settings.
type AppConfig struct {
	// LogLevel is one of: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFormat is one of: json, text.
	LogFormat string `yaml:"log_format"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// AllowedOrigins lists origins permitted by the CORS middleware.
	// "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// RateLimitRPS is the per-client sustained request rate.
	// Zero disables rate limiting.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`

	// RateLimitBurst is the per-client burst allowance.
	RateLimitBurst int `yaml:"rate_limit_burst"`

	// ReadHeaderTimeout bounds how long the server waits for request headers.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// ShutdownTimeout bounds graceful shutdown on SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AuthTokens maps bearer tokens to user IDs. When empty every
	// request runs as the development user.
	AuthTokens map[string]string `yaml:"auth_tokens"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API.
	// Set via {{.GEMINI_API_KEY}} in YAML.
	APIKey string `yaml:"api_key"`

	// ReasoningModel runs planning, synthesis, verification, and query
	// rewriting.
	ReasoningModel string `yaml:"reasoning_model"`

	// EmbeddingModel produces dense embeddings for chunks and queries.
	EmbeddingModel string `yaml:"embedding_model"`

	// ImageModel generates images when the plan requests one.
	ImageModel string `yaml:"image_model"`

	// EmbeddingDimensions is the dense vector width. Must match the
	// vector index schema.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`

	// MaxOutputTokens caps non-streaming generations.
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// QdrantConfig holds vector index connection settings.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`

	// Collection is the document collection name.
	Collection string `yaml:"collection"`
}

// StorageConfig holds object storage (MinIO / S3-compatible) settings.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`

	// Bucket stores uploaded attachments and generated images.
	Bucket string `yaml:"bucket"`

	// PublicBaseURL is the externally reachable base URL for stored
	// objects, e.g. "https://cdn.example.com/revera". When empty,
	// presigned URLs are issued instead.
	PublicBaseURL string `yaml:"public_base_url"`

	// PresignExpiry is the TTL for presigned object URLs.
	PresignExpiry time.Duration `yaml:"presign_expiry"`
}

// TavilyConfig holds web search provider settings.
type TavilyConfig struct {
	// APIKey authenticates against the Tavily API. Empty disables web
	// search; the web search stage then reports zero results.
	APIKey string `yaml:"api_key"`

	BaseURL string `yaml:"base_url"`

	// SearchDepth is "basic" or "advanced".
	SearchDepth string `yaml:"search_depth"`

	// Timeout bounds a single search request.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries caps retry attempts for transient failures.
	MaxRetries int `yaml:"max_retries"`
}

// ResearchConfig tunes the research pipeline.
type ResearchConfig struct {
	// TopK is the number of fused chunks returned by retrieval.
	TopK int `yaml:"top_k"`

	// MaxIterations caps synthesis refinement rounds.
	MaxIterations int `yaml:"max_iterations"`

	// MaxGraphSteps is the hard cap on node executions per run.
	MaxGraphSteps int `yaml:"max_graph_steps"`

	// EventBuffer is the bounded capacity of per-run event channels.
	EventBuffer int `yaml:"event_buffer"`

	// CriticTimeout bounds the verification stage.
	CriticTimeout time.Duration `yaml:"critic_timeout"`

	// MemoryWindow is the number of recent memories loaded per agent.
	MemoryWindow int `yaml:"memory_window"`

	// MaxWebResults is the cross-query cap on web sources.
	MaxWebResults int `yaml:"max_web_results"`

	// MaxImageContexts caps attachment images passed to synthesis.
	MaxImageContexts int `yaml:"max_image_contexts"`

	// ChunkSize is the target chunk length in characters.
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is the character overlap between adjacent chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`

	// EmbedBatchSize is the max texts per embedding API call.
	EmbedBatchSize int `yaml:"embed_batch_size"`

	// UpsertBatchSize is the max points per vector index upsert.
	UpsertBatchSize int `yaml:"upsert_batch_size"`

	// MaxPDFSizeMB caps uploaded PDF size.
	MaxPDFSizeMB int `yaml:"max_pdf_size_mb"`

	// MaxImageSizeMB caps uploaded image size.
	MaxImageSizeMB int `yaml:"max_image_size_mb"`
}

// RetentionConfig controls data retention and cleanup behavior.
type RetentionConfig struct {
	// EventTTL is the maximum age of persisted stream event rows before
	// deletion. Reconnecting clients only replay recent events, so old
	// rows are dead weight.
	EventTTL time.Duration `yaml:"event_ttl"`

	// StaleSessionTTL is how long a session may stay in "running" before
	// the cleanup loop marks it failed. Covers crashed pods.
	StaleSessionTTL time.Duration `yaml:"stale_session_ttl"`

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}
