package models

import "time"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

type Document struct {
	DocumentID       string    `json:"document_id"`
	OwnerID          string    `json:"owner_id"`
	OriginalFilename string    `json:"original_filename"`
	FileLocation     string    `json:"file_location"`
	Checksum         string    `json:"checksum,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
	ProcessingStatus string    `json:"processing_status"`
	TotalPages       *int      `json:"total_pages"`
	ProcessedPages   int       `json:"processed_pages"`
	ErrorMessage     *string   `json:"error_message"`
}

// ParsedChunk is one segment of one page; ChunkNumber is 1 when the page was not split.
type ParsedChunk struct {
	DocumentID    string    `json:"document_id"`
	PageNumber    int       `json:"page_number"`
	ChunkNumber   int       `json:"chunk_number"`
	ExtractedText string    `json:"extracted_text"`
	ImagePath     *string   `json:"image_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type RetrievalResult struct {
	PageNumber  int     `json:"page_number"`
	ChunkNumber int     `json:"chunk_number"`
	Text        string  `json:"text"`
	Score       float64 `json:"score"`
}
