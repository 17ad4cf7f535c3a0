package documents

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"studyrag/internal/filestore"
	"studyrag/internal/lock"
	"studyrag/internal/models"
	"studyrag/internal/util"
	"studyrag/internal/vector"
	"studyrag/internal/workflows"

	"github.com/google/uuid"
)

type DocumentRepo interface {
	Create(ctx context.Context, d models.Document) error
	GetOwned(ctx context.Context, ownerID, documentID string) (models.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error)
	FindByOwnerAndFilename(ctx context.Context, ownerID, filename string) (*models.Document, error)
	Delete(ctx context.Context, ownerID, documentID string) error
	Fail(ctx context.Context, documentID, message string, maxLen int) error
}

type ChunkRepo interface {
	HasChunks(ctx context.Context, documentID string) (bool, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.ParsedChunk, error)
}

// Ingestor runs ingestion in the background, one run per document.
type Ingestor interface {
	StartIngest(ctx context.Context, documentID string) error
	QueryProgress(ctx context.Context, documentID string) (workflows.IngestProgress, error)
	StopIngest(ctx context.Context, documentID string) error
}

type Options struct {
	LockTTL         time.Duration
	ErrorMessageMax int
}

type Service struct {
	docs     DocumentRepo
	chunks   ChunkRepo
	files    filestore.Store
	index    vector.Index
	locker   lock.Locker
	ingestor Ingestor
	opts     Options
	logger   *slog.Logger
}

func NewService(docs DocumentRepo, chunks ChunkRepo, files filestore.Store, index vector.Index, locker lock.Locker, ingestor Ingestor, opts Options, logger *slog.Logger) *Service {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.ErrorMessageMax <= 0 {
		opts.ErrorMessageMax = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docs:     docs,
		chunks:   chunks,
		files:    files,
		index:    index,
		locker:   locker,
		ingestor: ingestor,
		opts:     opts,
		logger:   logger,
	}
}

type UploadResult struct {
	Document models.Document `json:"document"`
	Status   string          `json:"status"`
	Reused   bool            `json:"reused"`
}

// Upload stores a PDF and starts its ingestion. When the owner already uploaded
// a file with the same name that is still ingesting, or that finished with
// chunks, that document is returned and nothing new is stored or started. A
// document that ended in error is never reused, so uploading again retries it.
func (s *Service) Upload(ctx context.Context, ownerID, filename string, r io.ReadSeeker, size int64) (UploadResult, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if ownerID == "" {
		return UploadResult{}, fmt.Errorf("%w: owner is required", util.ErrInvalidUpload)
	}
	if name == "." || name == "/" || !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return UploadResult{}, fmt.Errorf("%w: only .pdf files are accepted", util.ErrInvalidUpload)
	}

	release, err := s.locker.Acquire(ctx, ownerID+"/"+name, s.opts.LockTTL)
	if err != nil {
		return UploadResult{}, fmt.Errorf("lock upload: %w", err)
	}
	defer release()

	existing, err := s.docs.FindByOwnerAndFilename(ctx, ownerID, name)
	if err != nil {
		return UploadResult{}, err
	}
	if existing != nil {
		reuse, err := s.reusable(ctx, *existing)
		if err != nil {
			return UploadResult{}, err
		}
		if reuse {
			s.logger.Info("re-upload reuses existing document", "document_id", existing.DocumentID, "owner_id", ownerID, "status", existing.ProcessingStatus)
			return UploadResult{Document: *existing, Status: existing.ProcessingStatus, Reused: true}, nil
		}
	}

	checksum, err := util.Checksum(r)
	if err != nil {
		return UploadResult{}, fmt.Errorf("hash upload: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return UploadResult{}, fmt.Errorf("rewind upload: %w", err)
	}

	doc := models.Document{
		DocumentID:       uuid.NewString(),
		OwnerID:          ownerID,
		OriginalFilename: name,
		Checksum:         checksum,
		UploadedAt:       time.Now().UTC(),
		ProcessingStatus: models.StatusPending,
	}
	doc.FileLocation, err = s.files.Save(ctx, ownerID, doc.DocumentID+"-"+name, r, size)
	if err != nil {
		return UploadResult{}, fmt.Errorf("save upload: %w", err)
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		_ = s.files.Delete(context.WithoutCancel(ctx), doc.FileLocation)
		return UploadResult{}, err
	}

	if err := s.ingestor.StartIngest(ctx, doc.DocumentID); err != nil {
		msg := fmt.Sprintf("start ingestion: %v", err)
		s.logger.Error("starting ingestion failed", "document_id", doc.DocumentID, "err", err)
		if ferr := s.docs.Fail(ctx, doc.DocumentID, msg, s.opts.ErrorMessageMax); ferr != nil {
			s.logger.Error("recording start failure", "document_id", doc.DocumentID, "err", ferr)
		}
		doc.ProcessingStatus = models.StatusError
		msg = util.TruncateRunes(msg, s.opts.ErrorMessageMax)
		doc.ErrorMessage = &msg
	}
	return UploadResult{Document: doc, Status: doc.ProcessingStatus}, nil
}

func (s *Service) reusable(ctx context.Context, doc models.Document) (bool, error) {
	switch doc.ProcessingStatus {
	case models.StatusPending, models.StatusProcessing:
		return true, nil
	case models.StatusError:
		return false, nil
	}
	return s.chunks.HasChunks(ctx, doc.DocumentID)
}

type PageChunk struct {
	ChunkNumber int    `json:"chunk_number"`
	Text        string `json:"text"`
}

type Page struct {
	PageNumber int         `json:"page_number"`
	Preview    string      `json:"preview"`
	Chunks     []PageChunk `json:"chunks"`
}

type Detail struct {
	Document models.Document `json:"document"`
	Pages    []Page          `json:"pages"`
}

func (s *Service) Get(ctx context.Context, ownerID, documentID string) (Detail, error) {
	doc, err := s.docs.GetOwned(ctx, ownerID, documentID)
	if err != nil {
		return Detail{}, err
	}
	chunks, err := s.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return Detail{}, err
	}
	pages := make([]Page, 0)
	for _, c := range chunks {
		if n := len(pages); n == 0 || pages[n-1].PageNumber != c.PageNumber {
			pages = append(pages, Page{PageNumber: c.PageNumber, Preview: util.DisplaySnippet(c.ExtractedText, 200)})
		}
		last := &pages[len(pages)-1]
		last.Chunks = append(last.Chunks, PageChunk{ChunkNumber: c.ChunkNumber, Text: c.ExtractedText})
	}
	return Detail{Document: doc, Pages: pages}, nil
}

func (s *Service) List(ctx context.Context, ownerID string) ([]models.Document, error) {
	return s.docs.ListByOwner(ctx, ownerID)
}

// Delete removes vectors first so a failure leaves the row in place for a retry.
func (s *Service) Delete(ctx context.Context, ownerID, documentID string) error {
	doc, err := s.docs.GetOwned(ctx, ownerID, documentID)
	if err != nil {
		return err
	}
	if doc.ProcessingStatus == models.StatusPending || doc.ProcessingStatus == models.StatusProcessing {
		if err := s.ingestor.StopIngest(ctx, documentID); err != nil {
			s.logger.Warn("stopping ingestion", "document_id", documentID, "err", err)
		}
	}
	if err := s.index.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := s.docs.Delete(ctx, ownerID, documentID); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, doc.FileLocation); err != nil {
		s.logger.Warn("deleting stored file", "document_id", documentID, "location", doc.FileLocation, "err", err)
	}
	s.logger.Info("document deleted", "document_id", documentID, "owner_id", ownerID)
	return nil
}

// Progress prefers live workflow counters and falls back to the stored row once
// the workflow is no longer queryable.
func (s *Service) Progress(ctx context.Context, ownerID, documentID string) (workflows.IngestProgress, error) {
	doc, err := s.docs.GetOwned(ctx, ownerID, documentID)
	if err != nil {
		return workflows.IngestProgress{}, err
	}
	prog, err := s.ingestor.QueryProgress(ctx, documentID)
	if err == nil {
		return prog, nil
	}
	out := workflows.IngestProgress{
		DocumentID:     doc.DocumentID,
		Status:         doc.ProcessingStatus,
		ProcessedPages: doc.ProcessedPages,
		FailedPages:    []int{},
	}
	if doc.TotalPages != nil {
		out.TotalPages = *doc.TotalPages
	}
	if doc.ErrorMessage != nil {
		out.FailReason = *doc.ErrorMessage
	}
	return out, nil
}
