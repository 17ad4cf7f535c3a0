package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"studyrag/internal/models"
)

// MemoryIndex is an in-process Index for tests and single-binary development.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]map[string]Point
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: map[string]map[string]Point{}}
}

func (m *MemoryIndex) EnsureCollection(context.Context, int) error { return nil }

func (m *MemoryIndex) Upsert(_ context.Context, documentID string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[documentID]
	if !ok {
		doc = map[string]Point{}
		m.docs[documentID] = doc
	}
	for _, p := range points {
		doc[p.ID] = p
	}
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, queryVec []float32, documentID string, topK int) ([]models.RetrievalResult, error) {
	if topK <= 0 {
		topK = 3
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]models.RetrievalResult, 0, len(m.docs[documentID]))
	for _, p := range m.docs[documentID] {
		results = append(results, models.RetrievalResult{
			PageNumber:  p.PageNumber,
			ChunkNumber: p.ChunkNumber,
			Text:        p.Text,
			Score:       cosine(queryVec, p.Vector),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			if results[i].PageNumber == results[j].PageNumber {
				return results[i].ChunkNumber < results[j].ChunkNumber
			}
			return results[i].PageNumber < results[j].PageNumber
		}
		return results[i].Score > results[j].Score
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryIndex) DeleteDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, documentID)
	return nil
}

// Count reports how many points are stored for a document.
func (m *MemoryIndex) Count(documentID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[documentID])
}

// Has reports whether a point exists for the given page and chunk.
func (m *MemoryIndex) Has(documentID string, page, chunk int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[documentID][PointID(documentID, page, chunk)]
	return ok
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
