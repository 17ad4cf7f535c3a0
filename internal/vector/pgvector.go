package vector

import (
	"context"
	"fmt"

	"studyrag/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGIndex keeps vectors next to the relational data using the pgvector extension.
type PGIndex struct {
	q Queryer
}

func NewPGIndex(q Queryer) *PGIndex {
	return &PGIndex{q: q}
}

func (s *PGIndex) EnsureCollection(ctx context.Context, dim int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunk_vectors (
  point_id     uuid PRIMARY KEY,
  document_id  uuid NOT NULL,
  page_number  integer NOT NULL,
  chunk_number integer NOT NULL,
  text         text NOT NULL,
  embedding    vector(%d) NOT NULL
)`, dim),
		`CREATE INDEX IF NOT EXISTS chunk_vectors_document_idx ON chunk_vectors (document_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure chunk_vectors: %w", err)
		}
	}
	return nil
}

func (s *PGIndex) Upsert(ctx context.Context, documentID string, points []Point) error {
	for _, p := range points {
		_, err := s.q.Exec(ctx, `
INSERT INTO chunk_vectors (point_id, document_id, page_number, chunk_number, text, embedding)
VALUES ($1, $2, $3, $4, $5, $6::vector)
ON CONFLICT (point_id)
DO UPDATE SET
  text = EXCLUDED.text,
  embedding = EXCLUDED.embedding`,
			p.ID, documentID, p.PageNumber, p.ChunkNumber, p.Text, pgvector.NewVector(p.Vector),
		)
		if err != nil {
			return fmt.Errorf("upsert vector %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *PGIndex) Search(ctx context.Context, queryVec []float32, documentID string, topK int) ([]models.RetrievalResult, error) {
	if topK <= 0 {
		topK = 3
	}
	rows, err := s.q.Query(ctx, `
SELECT page_number,
       chunk_number,
       text,
       1 - (embedding <=> $2::vector) AS score
FROM chunk_vectors
WHERE document_id = $1
ORDER BY embedding <=> $2::vector
LIMIT $3`, documentID, pgvector.NewVector(queryVec), topK)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.RetrievalResult, 0, topK)
	for rows.Next() {
		var r models.RetrievalResult
		if err := rows.Scan(&r.PageNumber, &r.ChunkNumber, &r.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func (s *PGIndex) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM chunk_vectors WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete vectors for %s: %w", documentID, err)
	}
	return nil
}
