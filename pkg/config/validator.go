package config

import (
	"fmt"
)

// Validator validates configuration comprehensively with clear error messages
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *Validator) ValidateAll() error {
	if err := v.validateApp(); err != nil {
		return fmt.Errorf("app validation failed: %w", err)
	}
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := v.validateGemini(); err != nil {
		return fmt.Errorf("gemini validation failed: %w", err)
	}
	if err := v.validateQdrant(); err != nil {
		return fmt.Errorf("qdrant validation failed: %w", err)
	}
	if err := v.validateStorage(); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}
	if err := v.validateTavily(); err != nil {
		return fmt.Errorf("tavily validation failed: %w", err)
	}
	if err := v.validateResearch(); err != nil {
		return fmt.Errorf("research validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateApp() error {
	app := v.cfg.App
	switch app.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return NewValidationError("app", "app", "log_level", fmt.Errorf("%w: %s", ErrInvalidValue, app.LogLevel))
	}
	switch app.LogFormat {
	case "json", "text":
	default:
		return NewValidationError("app", "app", "log_format", fmt.Errorf("%w: %s", ErrInvalidValue, app.LogFormat))
	}
	return nil
}

func (v *Validator) validateServer() error {
	srv := v.cfg.Server
	if srv.Port < 1 || srv.Port > 65535 {
		return NewValidationError("server", "server", "port", fmt.Errorf("%w: %d", ErrInvalidValue, srv.Port))
	}
	if srv.RateLimitRPS < 0 {
		return NewValidationError("server", "server", "rate_limit_rps", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	if srv.RateLimitRPS > 0 && srv.RateLimitBurst < 1 {
		return NewValidationError("server", "server", "rate_limit_burst", fmt.Errorf("%w: must be at least 1 when rate limiting is enabled", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateGemini() error {
	g := v.cfg.Gemini
	if g.APIKey == "" {
		return NewValidationError("gemini", "gemini", "api_key", fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingRequiredField))
	}
	if g.ReasoningModel == "" {
		return NewValidationError("gemini", "gemini", "reasoning_model", ErrMissingRequiredField)
	}
	if g.EmbeddingModel == "" {
		return NewValidationError("gemini", "gemini", "embedding_model", ErrMissingRequiredField)
	}
	if g.ImageModel == "" {
		return NewValidationError("gemini", "gemini", "image_model", ErrMissingRequiredField)
	}
	if g.EmbeddingDimensions < 1 {
		return NewValidationError("gemini", "gemini", "embedding_dimensions", fmt.Errorf("%w: %d", ErrInvalidValue, g.EmbeddingDimensions))
	}
	return nil
}

func (v *Validator) validateQdrant() error {
	q := v.cfg.Qdrant
	if q.Host == "" {
		return NewValidationError("qdrant", "qdrant", "host", ErrMissingRequiredField)
	}
	if q.Port < 1 || q.Port > 65535 {
		return NewValidationError("qdrant", "qdrant", "port", fmt.Errorf("%w: %d", ErrInvalidValue, q.Port))
	}
	if q.Collection == "" {
		return NewValidationError("qdrant", "qdrant", "collection", ErrMissingRequiredField)
	}
	return nil
}

func (v *Validator) validateStorage() error {
	s := v.cfg.Storage
	if s.Endpoint == "" {
		return NewValidationError("storage", "storage", "endpoint", ErrMissingRequiredField)
	}
	if s.Bucket == "" {
		return NewValidationError("storage", "storage", "bucket", ErrMissingRequiredField)
	}
	return nil
}

func (v *Validator) validateTavily() error {
	t := v.cfg.Tavily
	// Web search is optional; only validate when enabled.
	if t.APIKey == "" {
		return nil
	}
	if t.BaseURL == "" {
		return NewValidationError("tavily", "tavily", "base_url", ErrMissingRequiredField)
	}
	switch t.SearchDepth {
	case "basic", "advanced":
	default:
		return NewValidationError("tavily", "tavily", "search_depth", fmt.Errorf("%w: %s", ErrInvalidValue, t.SearchDepth))
	}
	if t.MaxRetries < 0 {
		return NewValidationError("tavily", "tavily", "max_retries", fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateResearch() error {
	r := v.cfg.Research
	positives := []struct {
		field string
		value int
	}{
		{"top_k", r.TopK},
		{"max_iterations", r.MaxIterations},
		{"max_graph_steps", r.MaxGraphSteps},
		{"event_buffer", r.EventBuffer},
		{"memory_window", r.MemoryWindow},
		{"max_web_results", r.MaxWebResults},
		{"chunk_size", r.ChunkSize},
		{"embed_batch_size", r.EmbedBatchSize},
		{"upsert_batch_size", r.UpsertBatchSize},
	}
	for _, p := range positives {
		if p.value < 1 {
			return NewValidationError("research", "research", p.field, fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
		}
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return NewValidationError("research", "research", "chunk_overlap", fmt.Errorf("%w: must be in [0, chunk_size)", ErrInvalidValue))
	}
	if r.CriticTimeout <= 0 {
		return NewValidationError("research", "research", "critic_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}
