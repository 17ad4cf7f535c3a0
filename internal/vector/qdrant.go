package vector

import (
	"context"
	"fmt"

	"studyrag/internal/models"

	"github.com/qdrant/go-client/qdrant"
)

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// qdrantAPI is the slice of *qdrant.Client the index needs.
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
}

type QdrantIndex struct {
	api        qdrantAPI
	closer     func() error
	collection string
}

func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("init qdrant client: %w", err)
	}
	idx := newQdrantIndex(client, cfg.Collection)
	idx.closer = client.Close
	return idx, nil
}

func newQdrantIndex(api qdrantAPI, collection string) *QdrantIndex {
	if collection == "" {
		collection = "doc_chunks"
	}
	return &QdrantIndex{api: api, collection: collection, closer: func() error { return nil }}
}

func (q *QdrantIndex) Close() error { return q.closer() }

func (q *QdrantIndex) EnsureCollection(ctx context.Context, dim int) error {
	exists, err := q.api.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}
	err = q.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	_, err = q.api.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      "document_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("index document_id: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, documentID string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id":  documentID,
				"page_number":  p.PageNumber,
				"chunk_number": p.ChunkNumber,
				"point_key":    PointKey(documentID, p.PageNumber, p.ChunkNumber),
				"text":         p.Text,
			}),
		})
	}
	wait := true
	if _, err := q.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         structs,
	}); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(structs), err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, queryVec []float32, documentID string, topK int) ([]models.RetrievalResult, error) {
	if topK <= 0 {
		topK = 3
	}
	limit := uint64(topK)
	points, err := q.api.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(queryVec...),
		Filter:         documentFilter(documentID),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	out := make([]models.RetrievalResult, 0, len(points))
	for _, p := range points {
		if p.Payload["document_id"].GetStringValue() != documentID {
			continue
		}
		out = append(out, models.RetrievalResult{
			PageNumber:  int(p.Payload["page_number"].GetIntegerValue()),
			ChunkNumber: int(p.Payload["chunk_number"].GetIntegerValue()),
			Text:        p.Payload["text"].GetStringValue(),
			Score:       float64(p.Score),
		})
	}
	return out, nil
}

func (q *QdrantIndex) DeleteDocument(ctx context.Context, documentID string) error {
	wait := true
	if _, err := q.api.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentID)),
	}); err != nil {
		return fmt.Errorf("delete points for %s: %w", documentID, err)
	}
	return nil
}

func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
	}
}
