package vector

import (
	"context"
	"fmt"

	"studyrag/internal/models"

	"github.com/google/uuid"
)

// pointNamespace seeds the name-based point ids so they are stable across runs.
var pointNamespace = uuid.MustParse("7f1d7f5e-3c55-4f0e-9a57-2a3c8d9a6b10")

type Point struct {
	ID          string
	PageNumber  int
	ChunkNumber int
	Text        string
	Vector      []float32
}

// Index stores chunk vectors. Every read and delete is scoped to one document.
type Index interface {
	EnsureCollection(ctx context.Context, dim int) error
	Upsert(ctx context.Context, documentID string, points []Point) error
	Search(ctx context.Context, queryVec []float32, documentID string, topK int) ([]models.RetrievalResult, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// PointKey is the human-readable identity of a chunk inside the index.
func PointKey(documentID string, page, chunk int) string {
	return fmt.Sprintf("%s-%d-%d", documentID, page, chunk)
}

// PointID derives a UUID from PointKey, so re-indexing a chunk overwrites it
// and equal page/chunk numbers in different documents never collide.
func PointID(documentID string, page, chunk int) string {
	return uuid.NewSHA1(pointNamespace, []byte(PointKey(documentID, page, chunk))).String()
}

func NewPoint(documentID string, page, chunk int, text string, vec []float32) Point {
	return Point{
		ID:          PointID(documentID, page, chunk),
		PageNumber:  page,
		ChunkNumber: chunk,
		Text:        text,
		Vector:      vec,
	}
}
