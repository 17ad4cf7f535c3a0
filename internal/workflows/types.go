package workflows

type DocumentIngestInput struct {
	DocumentID    string `json:"document_id"`
	PageBatchSize int    `json:"page_batch_size"`
}

type IngestProgress struct {
	DocumentID       string `json:"document_id"`
	Status           string `json:"status"`
	TotalPages       int    `json:"total_pages"`
	ProcessedPages   int    `json:"processed_pages"`
	FailedPages      []int  `json:"failed_pages"`
	SkippedPages     int    `json:"skipped_pages"`
	IndexedChunks    int    `json:"indexed_chunks"`
	FailedEmbeddings int    `json:"failed_embeddings"`
	FailedIndexing   int    `json:"failed_indexing"`
	FailReason       string `json:"fail_reason,omitempty"`
}
