package activities

type BeginIngestionInput struct {
	DocumentID string `json:"document_id"`
}

type BeginIngestionOutput struct {
	TotalPages int `json:"total_pages"`
}

type ProcessPageBatchInput struct {
	DocumentID string `json:"document_id"`
	FirstPage  int    `json:"first_page"`
	LastPage   int    `json:"last_page"`
}

type ProcessPageBatchOutput struct {
	LastPage         int   `json:"last_page"`
	PagesStored      int   `json:"pages_stored"`
	PagesSkipped     int   `json:"pages_skipped"`
	FailedPages      []int `json:"failed_pages,omitempty"`
	ChunksIndexed    int   `json:"chunks_indexed"`
	FailedEmbeddings int   `json:"failed_embeddings"`
	FailedIndexing   int   `json:"failed_indexing"`
}

type CompleteIngestionInput struct {
	DocumentID string `json:"document_id"`
}

type FailIngestionInput struct {
	DocumentID string `json:"document_id"`
	Reason     string `json:"reason"`
}
