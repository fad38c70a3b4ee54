// Package vector wraps the Qdrant collection holding document chunks.
//
// Each chunk is stored once with three named encodings:
//
//	dense:   semantic embedding (cosine)
//	sparse:  lexical term weights (IDF applied index-side)
//	colbert: per-token multivector, compared with MAX_SIM
//
// Queries prefetch candidates by one encoding and rescore them with the
// colbert multivector at the index, so late interaction stays server-side.
package vector

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/reveralabs/revera/pkg/config"
)

// Named vector slots in the collection schema.
const (
	VectorDense   = "dense"
	VectorSparse  = "sparse"
	VectorColbert = "colbert"
)

// ColbertDimensions is the per-token vector width of the colbert slot.
const ColbertDimensions = 128

// Payload field keys.
const (
	FieldContent    = "content"
	FieldUserID     = "user_id"
	FieldDocumentID = "document_id"
	FieldFilename   = "filename"
	FieldPage       = "page"
	FieldChunkIndex = "chunk_index"
)

// maxRecvMsgSize allows large batched responses over gRPC.
const maxRecvMsgSize = 32 << 20

// SparseVector is a lexical encoding: parallel index/value slices.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// ChunkPoint is one chunk with its three encodings and payload.
type ChunkPoint struct {
	ID      string
	Dense   []float32
	Sparse  SparseVector
	Late    [][]float32
	Payload ChunkPayload
}

// ChunkPayload is the stored metadata for a chunk.
type ChunkPayload struct {
	Content    string
	UserID     string
	DocumentID string
	Filename   string
	Page       int
	ChunkIndex int
}

// ScoredChunk is a query hit with its payload flattened out.
type ScoredChunk struct {
	ChunkID    string
	DocumentID string
	Content    string
	Filename   string
	Page       int
	Score      float64
}

// QueryInput carries the three query encodings plus tenant scoping.
type QueryInput struct {
	Dense  []float32
	Sparse SparseVector
	Late   [][]float32

	// UserID scopes every query; it is never optional.
	UserID string

	// DocumentIDs further narrows the search when non-empty.
	DocumentIDs []string

	// Limit is the candidate list size.
	Limit uint64
}

// Client wraps the Qdrant connection for one collection.
type Client struct {
	client     *qdrant.Client
	collection string
}

// NewClient connects to Qdrant using the configured host and credentials.
func NewClient(cfg *config.QdrantConfig) (*Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvMsgSize)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &Client{client: client, collection: cfg.Collection}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Health checks connectivity to the Qdrant server.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// EnsureCollection creates the chunk collection and its payload indexes
// if they do not exist. denseDims must match the embedding model width.
func (c *Client) EnsureCollection(ctx context.Context, denseDims int) error {
	exists, err := c.client.CollectionExists(ctx, c.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %q: %w", c.collection, err)
	}
	if exists {
		return nil
	}

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			VectorDense: {
				Size:     uint64(denseDims),
				Distance: qdrant.Distance_Cosine,
			},
			VectorColbert: {
				Size:     ColbertDimensions,
				Distance: qdrant.Distance_Cosine,
				MultivectorConfig: &qdrant.MultiVectorConfig{
					Comparator: qdrant.MultiVectorComparator_MaxSim,
				},
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			VectorSparse: {
				Modifier: qdrant.Modifier_Idf.Enum(),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %w", c.collection, err)
	}

	// Keyword indexes back the tenant and document filters.
	for _, field := range []string{FieldUserID, FieldDocumentID} {
		_, err := c.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: c.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to index payload field %q: %w", field, err)
		}
	}
	return nil
}

// Upsert writes chunk points with all three encodings. The caller is
// responsible for batching to a reasonable size.
func (c *Client) Upsert(ctx context.Context, points []ChunkPoint) error {
	if len(points) == 0 {
		return nil
	}
	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id: qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				VectorDense:   qdrant.NewVector(p.Dense...),
				VectorSparse:  qdrant.NewVectorSparse(p.Sparse.Indices, p.Sparse.Values),
				VectorColbert: qdrant.NewVectorMulti(p.Late),
			}),
			Payload: qdrant.NewValueMap(map[string]any{
				FieldContent:    p.Payload.Content,
				FieldUserID:     p.Payload.UserID,
				FieldDocumentID: p.Payload.DocumentID,
				FieldFilename:   p.Payload.Filename,
				FieldPage:       p.Payload.Page,
				FieldChunkIndex: p.Payload.ChunkIndex,
			}),
		})
	}

	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

// QueryDenseCandidates prefetches by the dense encoding and rescores the
// candidates with the colbert multivector (MAX_SIM) at the index.
func (c *Client) QueryDenseCandidates(ctx context.Context, in QueryInput) ([]ScoredChunk, error) {
	prefetch := &qdrant.PrefetchQuery{
		Query:  qdrant.NewQuery(in.Dense...),
		Using:  qdrant.PtrOf(VectorDense),
		Filter: buildFilter(in.UserID, in.DocumentIDs),
		Limit:  qdrant.PtrOf(in.Limit),
	}
	return c.queryWithRescore(ctx, prefetch, in)
}

// QuerySparseCandidates prefetches by the sparse encoding and rescores
// the candidates with the colbert multivector (MAX_SIM) at the index.
func (c *Client) QuerySparseCandidates(ctx context.Context, in QueryInput) ([]ScoredChunk, error) {
	prefetch := &qdrant.PrefetchQuery{
		Query:  qdrant.NewQuerySparse(in.Sparse.Indices, in.Sparse.Values),
		Using:  qdrant.PtrOf(VectorSparse),
		Filter: buildFilter(in.UserID, in.DocumentIDs),
		Limit:  qdrant.PtrOf(in.Limit),
	}
	return c.queryWithRescore(ctx, prefetch, in)
}

func (c *Client) queryWithRescore(ctx context.Context, prefetch *qdrant.PrefetchQuery, in QueryInput) ([]ScoredChunk, error) {
	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collection,
		Prefetch:       []*qdrant.PrefetchQuery{prefetch},
		Query:          qdrant.NewQueryMulti(in.Late),
		Using:          qdrant.PtrOf(VectorColbert),
		Limit:          qdrant.PtrOf(in.Limit),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	chunks := make([]ScoredChunk, 0, len(points))
	for _, p := range points {
		chunks = append(chunks, fromScoredPoint(p))
	}
	return chunks, nil
}

// DeleteByDocument removes every chunk of a user's document.
func (c *Client) DeleteByDocument(ctx context.Context, userID, documentID string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchKeyword(FieldUserID, userID),
			qdrant.NewMatchKeyword(FieldDocumentID, documentID),
		},
	}
	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunks for document %s: %w", documentID, err)
	}
	return nil
}

func buildFilter(userID string, documentIDs []string) *qdrant.Filter {
	must := []*qdrant.Condition{
		qdrant.NewMatchKeyword(FieldUserID, userID),
	}
	if len(documentIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords(FieldDocumentID, documentIDs...))
	}
	return &qdrant.Filter{Must: must}
}

func fromScoredPoint(p *qdrant.ScoredPoint) ScoredChunk {
	chunk := ScoredChunk{
		ChunkID: p.GetId().GetUuid(),
		Score:   float64(p.GetScore()),
	}
	payload := p.GetPayload()
	if payload == nil {
		return chunk
	}
	chunk.Content = payload[FieldContent].GetStringValue()
	chunk.DocumentID = payload[FieldDocumentID].GetStringValue()
	chunk.Filename = payload[FieldFilename].GetStringValue()
	chunk.Page = int(payload[FieldPage].GetIntegerValue())
	return chunk
}
