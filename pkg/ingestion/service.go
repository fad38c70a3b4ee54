// Package ingestion turns uploads into retrievable artifacts. PDFs are
// parsed, chunked, triple-encoded, and upserted into the vector index;
// images are stored, captioned by the vision model, and indexed by
// their caption. The document row is written last, after every derived
// artifact exists, so a visible document is always a searchable one.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/reveralabs/revera/pkg/config"
	"github.com/reveralabs/revera/pkg/llm"
	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/retrieval"
	"github.com/reveralabs/revera/pkg/storage"
	"github.com/reveralabs/revera/pkg/vector"
)

// ErrUnsupportedImage indicates an upload with a MIME type outside the
// supported set.
var ErrUnsupportedImage = errors.New("unsupported image type")

// imageExtensions maps the accepted upload MIME types to file extensions.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// SupportedImageType reports whether uploads of the given MIME type are
// accepted.
func SupportedImageType(mimeType string) bool {
	_, ok := imageExtensions[mimeType]
	return ok
}

// captionPrompt drives the vision model toward text that can stand in
// for the image in retrieval.
const captionPrompt = "Describe this image in detail. Cover the subject, any visible text, " +
	"charts or diagrams and what they show, and notable visual details, so the " +
	"description can substitute for the image in a document search."

// ModelGateway is the slice of the model gateway the pipeline needs:
// batched embeddings for chunk text and multimodal generation for image
// captions.
type ModelGateway interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Generate(ctx context.Context, req llm.GenerateRequest) (string, error)
}

// Index is the slice of the vector client the pipeline needs.
type Index interface {
	Upsert(ctx context.Context, points []vector.ChunkPoint) error
	DeleteByDocument(ctx context.Context, userID, documentID string) error
}

// DocumentStore persists and removes document rows.
type DocumentStore interface {
	Create(ctx context.Context, req models.CreateDocumentRequest) (*models.Document, error)
	Delete(ctx context.Context, documentID, userID string) (*models.Document, error)
}

// Service runs the ingestion and deletion pipelines.
type Service struct {
	gateway   ModelGateway
	index     Index
	documents DocumentStore
	store     storage.ObjectStore
	sparse    *retrieval.BM25Encoder
	late      *retrieval.LateEncoder
	cfg       config.ResearchConfig
}

// NewService creates an ingestion service. The sparse and late encoders
// are the same ones retrieval uses, so chunk and query encodings live in
// the same space.
func NewService(gateway ModelGateway, index Index, documents DocumentStore, store storage.ObjectStore, cfg config.ResearchConfig) *Service {
	return &Service{
		gateway:   gateway,
		index:     index,
		documents: documents,
		store:     store,
		sparse:    retrieval.NewBM25Encoder(),
		late:      retrieval.NewLateEncoder(),
		cfg:       cfg,
	}
}

// IngestPDF parses, chunks, encodes, and indexes a PDF, then registers
// its document row. A PDF with no extractable text still gets a row so
// the upload is visible to the user.
func (s *Service) IngestPDF(ctx context.Context, data []byte, filename, userID, chatID string) (*models.Document, error) {
	pages, err := ExtractPages(data)
	if err != nil {
		return nil, err
	}
	chunks := ChunkPages(pages, s.cfg.ChunkSize, s.cfg.ChunkOverlap)

	documentID := uuid.New().String()
	if len(chunks) > 0 {
		if err := s.indexChunks(ctx, documentID, userID, filename, chunks); err != nil {
			return nil, err
		}
	}

	doc, err := s.documents.Create(ctx, models.CreateDocumentRequest{
		ID:       documentID,
		UserID:   userID,
		ChatID:   chatID,
		Type:     models.DocumentTypePDF,
		Filename: filename,
		Title:    titleFromFilename(filename),
		Metadata: map[string]any{
			"pages":      len(pages),
			"chunks":     len(chunks),
			"size_bytes": len(data),
		},
	})
	if err != nil {
		s.dropVectors(documentID, userID)
		return nil, fmt.Errorf("failed to register document: %w", err)
	}

	slog.Info("Ingested PDF",
		"document_id", documentID,
		"filename", filename,
		"pages", len(pages),
		"chunks", len(chunks))
	return doc, nil
}

// IngestImage stores the image bytes, captions them with the vision
// model, indexes the caption, and registers the document row with the
// image's URL.
func (s *Service) IngestImage(ctx context.Context, data []byte, filename, mimeType, userID, chatID string) (*models.Document, error) {
	if !SupportedImageType(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}

	documentID := uuid.New().String()
	key := storage.UploadKey(userID, documentID, filename)
	if err := s.store.Put(ctx, key, data, mimeType); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	caption, err := s.captionImage(ctx, data, mimeType)
	if err != nil {
		s.dropObject(key)
		return nil, err
	}

	if err := s.indexChunks(ctx, documentID, userID, filename, []Chunk{{Content: caption}}); err != nil {
		s.dropObject(key)
		return nil, err
	}

	url, err := s.store.URL(ctx, key)
	if err != nil {
		s.dropVectors(documentID, userID)
		s.dropObject(key)
		return nil, fmt.Errorf("failed to resolve image URL: %w", err)
	}

	doc, err := s.documents.Create(ctx, models.CreateDocumentRequest{
		ID:       documentID,
		UserID:   userID,
		ChatID:   chatID,
		Type:     models.DocumentTypeImage,
		Filename: filename,
		Title:    titleFromFilename(filename),
		ImageURL: url,
		Metadata: map[string]any{
			"mime_type":       mimeType,
			"size_bytes":      len(data),
			"caption_preview": preview(caption, 500),
		},
	})
	if err != nil {
		s.dropVectors(documentID, userID)
		s.dropObject(key)
		return nil, fmt.Errorf("failed to register image: %w", err)
	}

	slog.Info("Ingested image",
		"document_id", documentID,
		"filename", filename,
		"mime_type", mimeType,
		"caption_chars", len(caption))
	return doc, nil
}

// DeleteDocument removes the document row, its chunks in the vector
// index, and its stored object if it has one.
func (s *Service) DeleteDocument(ctx context.Context, documentID, userID string) error {
	doc, err := s.documents.Delete(ctx, documentID, userID)
	if err != nil {
		return err
	}

	if err := s.index.DeleteByDocument(ctx, userID, documentID); err != nil {
		return fmt.Errorf("document %s removed but its chunks were not: %w", documentID, err)
	}

	if doc.Type == models.DocumentTypeImage {
		key := storage.UploadKey(userID, documentID, doc.Filename)
		if err := s.store.Remove(ctx, key); err != nil {
			slog.Warn("Failed to remove stored image", "key", key, "error", err)
		}
	}

	slog.Info("Deleted document", "document_id", documentID, "type", doc.Type)
	return nil
}

// indexChunks computes the three encodings concurrently and upserts the
// chunk points in batches.
func (s *Service) indexChunks(ctx context.Context, documentID, userID, filename string, chunks []Chunk) error {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	var (
		dense  [][]float32
		sparse []vector.SparseVector
		late   [][][]float32
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dense, err = s.embedBatched(gctx, texts)
		if err != nil {
			return fmt.Errorf("dense encoding failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sparse = make([]vector.SparseVector, len(texts))
		for i, text := range texts {
			sparse[i] = s.sparse.Encode(text)
		}
		return nil
	})
	g.Go(func() error {
		late = make([][][]float32, len(texts))
		for i, text := range texts {
			late[i] = s.late.Encode(text)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	points := make([]vector.ChunkPoint, len(chunks))
	for i, chunk := range chunks {
		points[i] = vector.ChunkPoint{
			ID:     uuid.New().String(),
			Dense:  dense[i],
			Sparse: sparse[i],
			Late:   late[i],
			Payload: vector.ChunkPayload{
				Content:    chunk.Content,
				UserID:     userID,
				DocumentID: documentID,
				Filename:   filename,
				Page:       chunk.Page,
				ChunkIndex: chunk.Index,
			},
		}
	}

	batch := s.cfg.UpsertBatchSize
	if batch <= 0 {
		batch = len(points)
	}
	for start := 0; start < len(points); start += batch {
		end := min(start+batch, len(points))
		if err := s.index.Upsert(ctx, points[start:end]); err != nil {
			return fmt.Errorf("failed to upsert chunks %d..%d: %w", start, end, err)
		}
	}
	return nil
}

// embedBatched calls the gateway in config-sized groups so one large
// document does not become one oversized request.
func (s *Service) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	batch := s.cfg.EmbedBatchSize
	if batch <= 0 {
		batch = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		vecs, err := s.gateway.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("gateway returned %d embeddings for %d texts", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *Service) captionImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	caption, err := s.gateway.Generate(ctx, llm.GenerateRequest{
		Prompt: captionPrompt,
		Images: []llm.ImageInput{{MIMEType: mimeType, Data: data}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to caption image: %w", err)
	}
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return "", llm.ErrEmptyResponse
	}
	return caption, nil
}

// The rollback helpers run on fresh contexts; the failure that triggered
// them may have been a cancellation.

func (s *Service) dropVectors(documentID, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.index.DeleteByDocument(ctx, userID, documentID); err != nil {
		slog.Warn("Failed to roll back chunks", "document_id", documentID, "error", err)
	}
}

func (s *Service) dropObject(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.Remove(ctx, key); err != nil {
		slog.Warn("Failed to roll back stored object", "key", key, "error", err)
	}
}

func preview(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

// titleFromFilename derives a display title for a document row:
// extension dropped, separators spaced out, the first five words
// capitalized.
func titleFromFilename(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	words := strings.Fields(base)
	if len(words) == 0 {
		return "Untitled Document"
	}
	if len(words) > 5 {
		words = words[:5]
	}
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError && size <= 1 {
		return w
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}
