package storage

import (
	"context"
	"fmt"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
  document_id UUID PRIMARY KEY,
  owner_id TEXT NOT NULL,
  original_filename TEXT NOT NULL,
  file_location TEXT NOT NULL,
  checksum TEXT NOT NULL DEFAULT '',
  uploaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  processing_status TEXT NOT NULL DEFAULT 'pending'
    CHECK (processing_status IN ('pending','processing','completed','error')),
  total_pages INT,
  processed_pages INT NOT NULL DEFAULT 0,
  error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id, uploaded_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_owner_filename ON documents(owner_id, original_filename);

CREATE TABLE IF NOT EXISTS parsed_chunks (
  document_id UUID NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
  page_number INT NOT NULL CHECK (page_number >= 1),
  chunk_number INT NOT NULL CHECK (chunk_number >= 1),
  extracted_text TEXT NOT NULL,
  image_path TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (document_id, page_number, chunk_number)
);
`

// Migrate creates the relational schema when it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.Pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
