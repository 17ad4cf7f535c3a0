package storage

import (
	"context"
	"fmt"

	"studyrag/internal/models"
)

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertChunks stores a page's chunks in one transaction. Existing rows are left untouched.
func (r *ChunkRepo) InsertChunks(ctx context.Context, chunks []models.ParsedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx insert chunks: %w", err)
		}
		defer func() {
			_ = tx.Rollback(ctx)
		}()

		for _, c := range chunks {
			_, err := tx.Exec(ctx, `
INSERT INTO parsed_chunks (document_id, page_number, chunk_number, extracted_text, image_path)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (document_id, page_number, chunk_number) DO NOTHING`,
				c.DocumentID, c.PageNumber, c.ChunkNumber, c.ExtractedText, c.ImagePath,
			)
			if err != nil {
				return fmt.Errorf("insert chunk %d/%d: %w", c.PageNumber, c.ChunkNumber, err)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit chunks tx: %w", err)
		}
		return nil
	})
}

func (r *ChunkRepo) HasChunks(ctx context.Context, documentID string) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM parsed_chunks WHERE document_id=$1)`, documentID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check chunks: %w", err)
	}
	return ok, nil
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, documentID string) ([]models.ParsedChunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id::text, page_number, chunk_number, extracted_text, image_path, created_at
FROM parsed_chunks
WHERE document_id=$1
ORDER BY page_number ASC, chunk_number ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks by document: %w", err)
	}
	defer rows.Close()
	out := make([]models.ParsedChunk, 0, 64)
	for rows.Next() {
		var c models.ParsedChunk
		if err := rows.Scan(&c.DocumentID, &c.PageNumber, &c.ChunkNumber, &c.ExtractedText, &c.ImagePath, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk by document: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk by document: %w", err)
	}
	return out, nil
}
