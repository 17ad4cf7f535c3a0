package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"studyrag/internal/extract"
	"studyrag/internal/models"
	"studyrag/internal/util"
	"studyrag/internal/vector"
)

type DocumentStore interface {
	Get(ctx context.Context, documentID string) (models.Document, error)
	SetProcessing(ctx context.Context, documentID string, totalPages int) error
	AdvanceProcessed(ctx context.Context, documentID string, pages int) error
	Complete(ctx context.Context, documentID string) error
	Fail(ctx context.Context, documentID, message string, maxLen int) error
}

type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []models.ParsedChunk) error
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	ChunkSize       int
	ChunkOverlap    int
	ErrorMessageMax int
}

// Pipeline runs the per-document ingestion steps. It keeps no state between calls,
// so every step can be retried.
type Pipeline struct {
	docs     DocumentStore
	chunks   ChunkStore
	opener   extract.Opener
	embedder Embedder
	index    vector.Index
	opts     Options
	logger   *slog.Logger
}

func NewPipeline(docs DocumentStore, chunks ChunkStore, opener extract.Opener, embedder Embedder, index vector.Index, opts Options, logger *slog.Logger) *Pipeline {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = util.DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = util.DefaultChunkOverlap
	}
	if opts.ErrorMessageMax <= 0 {
		opts.ErrorMessageMax = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		docs:     docs,
		chunks:   chunks,
		opener:   opener,
		embedder: embedder,
		index:    index,
		opts:     opts,
		logger:   logger,
	}
}

// Begin opens the source to learn its page count and moves the document to processing.
func (p *Pipeline) Begin(ctx context.Context, documentID string) (int, error) {
	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		return 0, err
	}
	src, err := p.opener.Open(ctx, doc.FileLocation)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", doc.FileLocation, err)
	}
	total := src.PageCount()
	_ = src.Close()

	if err := p.docs.SetProcessing(ctx, documentID, total); err != nil {
		return 0, err
	}
	p.logger.Info("ingestion started", "document_id", documentID, "total_pages", total)
	return total, nil
}

type BatchReport struct {
	First            int   `json:"first"`
	Last             int   `json:"last"`
	PagesStored      int   `json:"pages_stored"`
	PagesSkipped     int   `json:"pages_skipped"`
	FailedPages      []int `json:"failed_pages,omitempty"`
	ChunksStored     int   `json:"chunks_stored"`
	ChunksIndexed    int   `json:"chunks_indexed"`
	FailedEmbeddings int   `json:"failed_embeddings"`
	FailedIndexing   int   `json:"failed_indexing"`
}

// ProcessBatch ingests pages first..last. A page that fails to decode or store is
// logged and counted; it never fails the batch. Chunks stored in this batch are
// embedded and indexed together, then processed_pages advances to last. Embedding
// and indexing failures are counted too; only a cancelled ctx or an unreadable
// source fails the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, documentID string, first, last int) (BatchReport, error) {
	report := BatchReport{First: first, Last: last}
	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		return report, err
	}
	src, err := p.opener.Open(ctx, doc.FileLocation)
	if err != nil {
		return report, fmt.Errorf("open %s: %w", doc.FileLocation, err)
	}
	defer src.Close()
	if n := src.PageCount(); report.Last > n {
		report.Last = n
	}

	pending := make([]models.ParsedChunk, 0, 16)
	for page, err := range extract.Pages(ctx, src, first, last, p.logger) {
		if err != nil {
			var pageErr *extract.PageError
			if !errors.As(err, &pageErr) {
				return report, err
			}
			p.logger.Warn("page extraction failed", "document_id", documentID, "page", page.Number, "err", err)
			report.FailedPages = append(report.FailedPages, page.Number)
			continue
		}
		chunks := p.segment(documentID, page)
		if err := p.chunks.InsertChunks(ctx, chunks); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			p.logger.Warn("storing page chunks failed", "document_id", documentID, "page", page.Number, "err", err)
			report.FailedPages = append(report.FailedPages, page.Number)
			continue
		}
		report.PagesStored++
		report.ChunksStored += len(chunks)
		pending = append(pending, chunks...)
	}
	if span := report.Last - first + 1; span > 0 {
		report.PagesSkipped = span - report.PagesStored - len(report.FailedPages)
	}

	if err := p.indexChunks(ctx, documentID, pending, &report); err != nil {
		return report, err
	}
	if err := p.docs.AdvanceProcessed(ctx, documentID, report.Last); err != nil {
		return report, err
	}
	p.logger.Info("page batch processed",
		"document_id", documentID,
		"first", first,
		"last", report.Last,
		"pages_stored", report.PagesStored,
		"pages_failed", len(report.FailedPages),
		"chunks_indexed", report.ChunksIndexed,
		"failed_embeddings", report.FailedEmbeddings,
		"failed_indexing", report.FailedIndexing,
	)
	return report, nil
}

func (p *Pipeline) segment(documentID string, page extract.Page) []models.ParsedChunk {
	pieces := util.SegmentText(page.Text, p.opts.ChunkSize, p.opts.ChunkOverlap)
	out := make([]models.ParsedChunk, 0, len(pieces))
	for i, text := range pieces {
		out = append(out, models.ParsedChunk{
			DocumentID:    documentID,
			PageNumber:    page.Number,
			ChunkNumber:   i + 1,
			ExtractedText: text,
		})
	}
	return out
}

func (p *Pipeline) indexChunks(ctx context.Context, documentID string, chunks []models.ParsedChunk, report *BatchReport) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.ExtractedText
	}
	vecs, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	points := make([]vector.Point, 0, len(chunks))
	for i, c := range chunks {
		if vecs[i] == nil {
			report.FailedEmbeddings++
			continue
		}
		points = append(points, vector.NewPoint(documentID, c.PageNumber, c.ChunkNumber, c.ExtractedText, vecs[i]))
	}
	if len(points) == 0 {
		return nil
	}
	if err := p.index.Upsert(ctx, documentID, points); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("indexing batch failed", "document_id", documentID, "chunks", len(points), "err", err)
		report.FailedIndexing += len(points)
		return nil
	}
	report.ChunksIndexed = len(points)
	return nil
}

func (p *Pipeline) Complete(ctx context.Context, documentID string) error {
	if err := p.docs.Complete(ctx, documentID); err != nil {
		return err
	}
	p.logger.Info("ingestion completed", "document_id", documentID)
	return nil
}

func (p *Pipeline) Fail(ctx context.Context, documentID, reason string) error {
	p.logger.Error("ingestion failed", "document_id", documentID, "reason", reason)
	return p.docs.Fail(ctx, documentID, reason, p.opts.ErrorMessageMax)
}
