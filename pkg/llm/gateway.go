// Package llm provides the model gateway: embeddings, text generation,
// streaming generation with thought separation, and image generation.
package llm

import (
	"context"
	"errors"
)

// Gateway is the single entry point to the underlying model provider.
// All research agents and the ingestion pipeline go through it.
type Gateway interface {
	// Embed returns the dense embedding for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds many texts, batching API calls as needed.
	// The result is index-aligned with texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Generate returns the full text completion for a request.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// GenerateJSON constrains the response to JSON and returns the raw
	// JSON string. Callers still run recovery parsing: models wrap JSON
	// in fences or prose more often than they should.
	GenerateJSON(ctx context.Context, req GenerateRequest) (string, error)

	// GenerateStream streams the completion as chunks. The returned
	// channel is closed when the stream completes; errors are delivered
	// as ErrorChunk values in the channel.
	//
	// When req.SplitThinking is set, reasoning the model wraps in
	// <thinking>...</thinking> tags is delivered as ThoughtChunk values
	// and everything else as TextChunk values. The tags themselves
	// never appear in either.
	GenerateStream(ctx context.Context, req GenerateRequest) (<-chan Chunk, error)

	// GenerateImage produces an image for the prompt. Returns the raw
	// bytes and their MIME type.
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)

	// Close releases the underlying client.
	Close() error
}

// GenerateRequest describes one generation call.
type GenerateRequest struct {
	// System is the system instruction (may be empty).
	System string

	// Prompt is the user-turn text.
	Prompt string

	// Images are optional inline image parts for multimodal requests.
	Images []ImageInput

	// Temperature overrides the model default when non-nil.
	Temperature *float32

	// MaxTokens caps the response length when positive.
	MaxTokens int32

	// SplitThinking enables <thinking> tag separation on streams.
	SplitThinking bool
}

// ImageInput is an inline image part.
type ImageInput struct {
	MIMEType string // e.g. "image/png"
	Data     []byte
}

// Chunk is the interface for all streaming chunk types.
type Chunk interface {
	chunkType() ChunkType
}

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

const (
	ChunkTypeText    ChunkType = "text"
	ChunkTypeThought ChunkType = "thought"
	ChunkTypeError   ChunkType = "error"
)

// TextChunk is a chunk of the model's answer text.
type TextChunk struct{ Content string }

// ThoughtChunk is a chunk of the model's reasoning text.
type ThoughtChunk struct{ Content string }

// ErrorChunk signals a provider error mid-stream.
type ErrorChunk struct {
	Message   string
	Retryable bool
}

func (c *TextChunk) chunkType() ChunkType    { return ChunkTypeText }
func (c *ThoughtChunk) chunkType() ChunkType { return ChunkTypeThought }
func (c *ErrorChunk) chunkType() ChunkType   { return ChunkTypeError }

var (
	// ErrEmptyResponse indicates the provider returned no usable content.
	ErrEmptyResponse = errors.New("model returned empty response")

	// ErrNoImage indicates an image generation produced no image part.
	ErrNoImage = errors.New("model returned no image")
)

// Temperature is a convenience for building GenerateRequest literals.
func Temperature(t float32) *float32 { return &t }
