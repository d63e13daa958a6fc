package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/smallnest/langgraphgo/rag"
)

// MilvusOptions holds configuration for the Milvus-backed vector store.
type MilvusOptions struct {
	// Client is the Milvus client instance. If nil, a new client is created
	// from Address and Port.
	Client client.Client

	// Address is the Milvus server address (used if Client is nil).
	Address string

	// Port is the Milvus server port (used if Client is nil).
	Port int

	// Collection is the collection holding document chunks. If empty, a
	// default name is used.
	Collection string

	// Dim is the embedding vector dimension. Required.
	Dim int
}

// MilvusStore is a Milvus-backed vector store for document chunks. It
// satisfies the downstream engine's VectorStore contract so retrieval can run
// against a persistent collection instead of process memory.
type MilvusStore struct {
	milvusClient client.Client
	embedder     rag.Embedder
	collection   string
	dim          int
}

// NewMilvusStore creates the store and ensures the chunk collection and its
// index exist.
//
// Example:
//
//	ms, err := pipeline.NewMilvusStore(pipeline.MilvusOptions{
//	    Address: "localhost",
//	    Port:    19530,
//	    Dim:     1536,
//	}, embedder)
func NewMilvusStore(opts MilvusOptions, embedder rag.Embedder) (*MilvusStore, error) {
	if opts.Dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be specified")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder must be provided")
	}

	milvusClient := opts.Client
	if milvusClient == nil {
		address := opts.Address
		if address == "" {
			address = "localhost"
		}
		port := opts.Port
		if port == 0 {
			port = 19530
		}

		var err error
		milvusClient, err = client.NewDefaultGrpcClient(context.Background(), fmt.Sprintf("%s:%d", address, port))
		if err != nil {
			return nil, fmt.Errorf("failed to create Milvus client: %w", err)
		}
	}

	collection := opts.Collection
	if collection == "" {
		collection = "azurerag_chunks"
	}

	s := &MilvusStore{
		milvusClient: milvusClient,
		embedder:     embedder,
		collection:   collection,
		dim:          opts.Dim,
	}

	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	return s, nil
}

// ensureCollection creates the chunk collection and its HNSW index if they do
// not exist yet.
func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	exists, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: s.collection,
		Description:    "Document chunk storage for retrieval",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "metadata",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(s.dim),
				},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	index, err := entity.NewIndexHNSW(entity.L2, 16, 200)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := s.milvusClient.CreateIndex(ctx, s.collection, "embedding", index, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := s.milvusClient.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

// Add inserts document chunks, embedding any that arrive without a vector.
func (s *MilvusStore) Add(ctx context.Context, documents []rag.Document) error {
	if len(documents) == 0 {
		return nil
	}

	ids := make([]string, len(documents))
	contents := make([]string, len(documents))
	metadatas := make([]string, len(documents))
	vectors := make([][]float32, len(documents))

	var missing []int
	var missingTexts []string
	for i, doc := range documents {
		ids[i] = doc.ID
		contents[i] = doc.Content
		metadatas[i] = encodeMetadata(doc.Metadata)
		if len(doc.Embedding) > 0 {
			vectors[i] = doc.Embedding
		} else {
			missing = append(missing, i)
			missingTexts = append(missingTexts, doc.Content)
		}
	}

	if len(missing) > 0 {
		embedded, err := s.embedder.EmbedDocuments(ctx, missingTexts)
		if err != nil {
			return fmt.Errorf("failed to embed documents: %w", err)
		}
		if len(embedded) != len(missing) {
			return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(missing), len(embedded))
		}
		for j, i := range missing {
			vectors[i] = embedded[j]
		}
	}

	insertData := []entity.Column{
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("metadata", metadatas),
		entity.NewColumnFloatVector("embedding", s.dim, vectors),
	}

	if _, err := s.milvusClient.Insert(ctx, s.collection, "", insertData...); err != nil {
		return fmt.Errorf("failed to insert into Milvus: %w", err)
	}

	return nil
}

// Search returns the k chunks closest to the query embedding.
func (s *MilvusStore) Search(ctx context.Context, queryEmbedding []float32, k int) ([]rag.DocumentSearchResult, error) {
	return s.search(ctx, queryEmbedding, k, nil)
}

// SearchWithFilter returns the k closest chunks whose metadata matches every
// filter entry. Filtering runs on the decoded metadata after the vector
// search, so it over-fetches to keep k results available.
func (s *MilvusStore) SearchWithFilter(ctx context.Context, queryEmbedding []float32, k int, filter map[string]any) ([]rag.DocumentSearchResult, error) {
	return s.search(ctx, queryEmbedding, k, filter)
}

func (s *MilvusStore) search(ctx context.Context, queryEmbedding []float32, k int, filter map[string]any) ([]rag.DocumentSearchResult, error) {
	if k <= 0 {
		k = 4
	}
	fetch := k
	if len(filter) > 0 {
		fetch = k * 4
	}

	searchParam, err := entity.NewIndexFlatSearchParam()
	if err != nil {
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collection,
		[]string{},
		"",
		[]string{"id", "content", "metadata"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		fetch,
		searchParam,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search Milvus: %w", err)
	}

	results := make([]rag.DocumentSearchResult, 0, k)
	for _, sr := range searchResults {
		var idCol, contentCol, metadataCol *entity.ColumnVarChar
		for _, col := range sr.Fields {
			switch col.Name() {
			case "id":
				idCol = col.(*entity.ColumnVarChar)
			case "content":
				contentCol = col.(*entity.ColumnVarChar)
			case "metadata":
				metadataCol = col.(*entity.ColumnVarChar)
			}
		}
		if contentCol == nil {
			continue
		}

		for i := 0; i < contentCol.Len() && len(results) < k; i++ {
			doc := rag.Document{}
			if idCol != nil {
				if v, err := idCol.Get(i); err == nil {
					doc.ID, _ = v.(string)
				}
			}
			if v, err := contentCol.Get(i); err == nil {
				doc.Content, _ = v.(string)
			}
			if metadataCol != nil {
				if v, err := metadataCol.Get(i); err == nil {
					if encoded, ok := v.(string); ok {
						doc.Metadata = decodeMetadata(encoded)
					}
				}
			}

			if len(filter) > 0 && !matchesFilter(doc.Metadata, filter) {
				continue
			}

			score := 0.0
			if i < len(sr.Scores) {
				score = l2Similarity(float64(sr.Scores[i]))
			}
			results = append(results, rag.DocumentSearchResult{Document: doc, Score: score})
		}
	}

	return results, nil
}

// Delete removes chunks by ID.
func (s *MilvusStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	expr := fmt.Sprintf("id in [%s]", strings.Join(quoted, ", "))

	if err := s.milvusClient.Delete(ctx, s.collection, "", expr); err != nil {
		return fmt.Errorf("failed to delete from Milvus: %w", err)
	}
	return nil
}

// Update replaces chunks by deleting and reinserting them.
func (s *MilvusStore) Update(ctx context.Context, documents []rag.Document) error {
	if len(documents) == 0 {
		return nil
	}

	ids := make([]string, len(documents))
	for i, doc := range documents {
		ids[i] = doc.ID
	}
	if err := s.Delete(ctx, ids); err != nil {
		return err
	}
	return s.Add(ctx, documents)
}

// GetStats reports collection-level counts.
func (s *MilvusStore) GetStats(ctx context.Context) (*rag.VectorStoreStats, error) {
	stats, err := s.milvusClient.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection statistics: %w", err)
	}

	count := 0
	if raw, ok := stats["row_count"]; ok {
		count, _ = strconv.Atoi(raw)
	}

	return &rag.VectorStoreStats{
		TotalDocuments: count,
		TotalVectors:   count,
		Dimension:      s.dim,
		LastUpdated:    time.Now(),
	}, nil
}

// Close closes the Milvus client connection.
func (s *MilvusStore) Close() error {
	if s.milvusClient != nil {
		return s.milvusClient.Close()
	}
	return nil
}

// l2Similarity folds an L2 distance into a descending similarity score so
// Milvus results rank the same way as the in-memory store's.
func l2Similarity(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

func encodeMetadata(metadata map[string]any) string {
	if len(metadata) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func decodeMetadata(encoded string) map[string]any {
	metadata := make(map[string]any)
	if encoded == "" {
		return metadata
	}
	_ = json.Unmarshal([]byte(encoded), &metadata)
	return metadata
}

func matchesFilter(metadata, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}
