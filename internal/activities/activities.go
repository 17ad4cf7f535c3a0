package activities

import (
	"context"
	"errors"

	"studyrag/internal/ingest"
	"studyrag/internal/util"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

const (
	ErrTypeSourceUnavailable = "SourceUnavailable"
	ErrTypeDocumentNotFound  = "DocumentNotFound"
)

type Activities struct {
	pipeline *ingest.Pipeline
}

func New(pipeline *ingest.Pipeline) *Activities {
	return &Activities{pipeline: pipeline}
}

func (a *Activities) BeginIngestionActivity(ctx context.Context, in BeginIngestionInput) (BeginIngestionOutput, error) {
	total, err := a.pipeline.Begin(ctx, in.DocumentID)
	if err != nil {
		return BeginIngestionOutput{}, classify(err)
	}
	return BeginIngestionOutput{TotalPages: total}, nil
}

func (a *Activities) ProcessPageBatchActivity(ctx context.Context, in ProcessPageBatchInput) (ProcessPageBatchOutput, error) {
	report, err := a.pipeline.ProcessBatch(ctx, in.DocumentID, in.FirstPage, in.LastPage)
	if err != nil {
		return ProcessPageBatchOutput{}, classify(err)
	}
	activity.GetLogger(ctx).Info("page batch processed",
		"document_id", in.DocumentID,
		"first", report.First,
		"last", report.Last,
		"chunks_indexed", report.ChunksIndexed,
		"failed_pages", len(report.FailedPages),
	)
	return ProcessPageBatchOutput{
		LastPage:         report.Last,
		PagesStored:      report.PagesStored,
		PagesSkipped:     report.PagesSkipped,
		FailedPages:      report.FailedPages,
		ChunksIndexed:    report.ChunksIndexed,
		FailedEmbeddings: report.FailedEmbeddings,
		FailedIndexing:   report.FailedIndexing,
	}, nil
}

func (a *Activities) CompleteIngestionActivity(ctx context.Context, in CompleteIngestionInput) error {
	return a.pipeline.Complete(ctx, in.DocumentID)
}

func (a *Activities) FailIngestionActivity(ctx context.Context, in FailIngestionInput) error {
	return a.pipeline.Fail(ctx, in.DocumentID, in.Reason)
}

// classify marks errors that no retry can fix.
func classify(err error) error {
	switch {
	case errors.Is(err, util.ErrSourceUnavailable):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeSourceUnavailable, err)
	case errors.Is(err, util.ErrDocumentNotFound):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeDocumentNotFound, err)
	}
	return err
}
