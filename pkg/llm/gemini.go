package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/reveralabs/revera/pkg/config"
)

// maxEmbedBatch is the provider's per-call limit on batched embeddings.
const maxEmbedBatch = 100

// GeminiGateway implements Gateway against the Gemini API.
type GeminiGateway struct {
	client *genai.Client
	cfg    *config.GeminiConfig
}

// NewGeminiGateway creates a gateway using the configured API key.
func NewGeminiGateway(ctx context.Context, cfg *config.GeminiConfig) (*GeminiGateway, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGateway{client: client, cfg: cfg}, nil
}

// Close releases the underlying client.
func (g *GeminiGateway) Close() error {
	return g.client.Close()
}

// Embed returns the dense embedding for one text.
func (g *GeminiGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	em := g.client.EmbeddingModel(g.cfg.EmbeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, ErrEmptyResponse
	}
	return res.Embedding.Values, nil
}

// EmbedBatch embeds texts in provider-sized batches, preserving order.
func (g *GeminiGateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := g.client.EmbeddingModel(g.cfg.EmbeddingModel)
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))

		batch := em.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}
		res, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch embed failed at offset %d: %w", start, err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("batch embed returned %d embeddings for %d texts", len(res.Embeddings), end-start)
		}
		for _, e := range res.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

// Generate returns the full text completion for a request.
func (g *GeminiGateway) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	model := g.textModel(req, false)
	resp, err := model.GenerateContent(ctx, buildParts(req)...)
	if err != nil {
		return "", fmt.Errorf("generate failed: %w", err)
	}
	return textFromResponse(resp)
}

// GenerateJSON constrains the response MIME type to JSON.
func (g *GeminiGateway) GenerateJSON(ctx context.Context, req GenerateRequest) (string, error) {
	model := g.textModel(req, true)
	resp, err := model.GenerateContent(ctx, buildParts(req)...)
	if err != nil {
		return "", fmt.Errorf("generate json failed: %w", err)
	}
	return textFromResponse(resp)
}

// GenerateStream streams the completion, optionally splitting <thinking>
// tagged reasoning into ThoughtChunk values.
func (g *GeminiGateway) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan Chunk, error) {
	model := g.textModel(req, false)
	iter := model.GenerateContentStream(ctx, buildParts(req)...)

	ch := make(chan Chunk)
	go func() {
		defer close(ch)

		splitter := newThinkSplitter(req.SplitThinking)
		send := func(c Chunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}
		emit := func(thought, text string) bool {
			if thought != "" {
				if !send(&ThoughtChunk{Content: thought}) {
					return false
				}
			}
			if text != "" {
				if !send(&TextChunk{Content: text}) {
					return false
				}
			}
			return true
		}

		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				send(&ErrorChunk{Message: err.Error(), Retryable: isRetryable(err)})
				return
			}
			delta, err := textFromResponse(resp)
			if err != nil {
				// Streams may deliver metadata-only responses; skip them.
				continue
			}
			if !emit(splitter.feed(delta)) {
				return
			}
		}
		emit(splitter.flush())
	}()

	return ch, nil
}

// GenerateImage produces an image and returns its bytes and MIME type.
func (g *GeminiGateway) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	model := g.client.GenerativeModel(g.cfg.ImageModel)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, "", fmt.Errorf("image generation failed: %w", err)
	}
	data, mime, ok := imageFromResponse(resp)
	if !ok {
		return nil, "", ErrNoImage
	}
	return data, mime, nil
}

func (g *GeminiGateway) textModel(req GenerateRequest, jsonOutput bool) *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.cfg.ReasoningModel)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	} else if g.cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(g.cfg.MaxOutputTokens))
	}
	if jsonOutput {
		model.ResponseMIMEType = "application/json"
	}
	return model
}

func buildParts(req GenerateRequest) []genai.Part {
	parts := make([]genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}
	parts = append(parts, genai.Text(req.Prompt))
	return parts
}

func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		// Only the first candidate is requested; ignore any extras.
		break
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func imageFromResponse(resp *genai.GenerateContentResponse) ([]byte, string, bool) {
	if resp == nil {
		return nil, "", false
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
				mime := blob.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return blob.Data, mime, true
			}
		}
	}
	return nil, "", false
}

func isRetryable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "unavailable")
}
