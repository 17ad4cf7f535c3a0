package storage

import (
	"context"
	"errors"
	"fmt"

	"studyrag/internal/models"
	"studyrag/internal/util"

	"github.com/jackc/pgx/v5"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `document_id::text, owner_id, original_filename, file_location, checksum,
       uploaded_at, processing_status, total_pages, processed_pages, error_message`

func scanDocument(row pgx.Row) (models.Document, error) {
	var d models.Document
	err := row.Scan(&d.DocumentID, &d.OwnerID, &d.OriginalFilename, &d.FileLocation, &d.Checksum,
		&d.UploadedAt, &d.ProcessingStatus, &d.TotalPages, &d.ProcessedPages, &d.ErrorMessage)
	return d, err
}

func (r *DocumentRepo) Create(ctx context.Context, d models.Document) error {
	return withRetry(ctx, func(ctx context.Context) error {
		_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (document_id, owner_id, original_filename, file_location, checksum, processing_status)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (document_id) DO NOTHING`,
			d.DocumentID, d.OwnerID, d.OriginalFilename, d.FileLocation, d.Checksum, models.StatusPending)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return nil
	})
}

// Get loads a document regardless of owner. Used by the ingestion side.
func (r *DocumentRepo) Get(ctx context.Context, documentID string) (models.Document, error) {
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE document_id=$1`, documentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, util.ErrDocumentNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// GetOwned loads a document only when it belongs to ownerID.
func (r *DocumentRepo) GetOwned(ctx context.Context, ownerID, documentID string) (models.Document, error) {
	d, err := scanDocument(r.db.Pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE document_id=$1 AND owner_id=$2`, documentID, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, util.ErrDocumentNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get owned document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner_id=$1
ORDER BY uploaded_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// FindByOwnerAndFilename returns the most recent upload of filename by ownerID, or nil.
func (r *DocumentRepo) FindByOwnerAndFilename(ctx context.Context, ownerID, filename string) (*models.Document, error) {
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner_id=$1 AND original_filename=$2
ORDER BY uploaded_at DESC
LIMIT 1`, ownerID, filename))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find document by filename: %w", err)
	}
	return &d, nil
}

// Delete removes the row; parsed chunks go with it through ON DELETE CASCADE.
func (r *DocumentRepo) Delete(ctx context.Context, ownerID, documentID string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE document_id=$1 AND owner_id=$2`, documentID, ownerID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return util.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepo) SetProcessing(ctx context.Context, documentID string, totalPages int) error {
	return r.exec(ctx, "mark document processing", `
UPDATE documents
SET processing_status='processing', total_pages=$2, error_message=NULL
WHERE document_id=$1`, documentID, totalPages)
}

// AdvanceProcessed moves processed_pages forward to at least pages. Replays never move it back.
func (r *DocumentRepo) AdvanceProcessed(ctx context.Context, documentID string, pages int) error {
	return r.exec(ctx, "advance processed pages", `
UPDATE documents
SET processed_pages = GREATEST(processed_pages, $2)
WHERE document_id=$1`, documentID, pages)
}

func (r *DocumentRepo) Complete(ctx context.Context, documentID string) error {
	return r.exec(ctx, "mark document completed", `
UPDATE documents SET processing_status='completed', error_message=NULL WHERE document_id=$1`, documentID)
}

func (r *DocumentRepo) Fail(ctx context.Context, documentID, message string, maxLen int) error {
	if maxLen > 0 {
		message = util.TruncateRunes(message, maxLen)
	}
	return r.exec(ctx, "mark document failed", `
UPDATE documents SET processing_status='error', error_message=$2 WHERE document_id=$1`, documentID, message)
}

func (r *DocumentRepo) exec(ctx context.Context, op, sql string, args ...any) error {
	return withRetry(ctx, func(ctx context.Context) error {
		if _, err := r.db.Pool.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}
