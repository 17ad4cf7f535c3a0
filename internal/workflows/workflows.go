package workflows

import (
	"errors"
	"time"

	"studyrag/internal/activities"
	"studyrag/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetIngestProgress = "GetIngestProgress"

// IngestWorkflowID is the only workflow id a document is ever ingested under.
func IngestWorkflowID(documentID string) string {
	return "ingest-" + documentID
}

func DocumentIngestWorkflow(ctx workflow.Context, input DocumentIngestInput) (string, error) {
	progress := IngestProgress{
		DocumentID:  input.DocumentID,
		Status:      models.StatusPending,
		FailedPages: []int{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestProgress, func() (IngestProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)
	batch := input.PageBatchSize
	if batch <= 0 {
		batch = 5
	}

	var begin activities.BeginIngestionOutput
	if err := workflow.ExecuteActivity(ctx, "BeginIngestionActivity", activities.BeginIngestionInput{DocumentID: input.DocumentID}).Get(ctx, &begin); err != nil {
		return failIngest(ctx, &progress, err), nil
	}
	progress.Status = models.StatusProcessing
	progress.TotalPages = begin.TotalPages

	for first := 1; first <= begin.TotalPages; first += batch {
		last := min(first+batch-1, begin.TotalPages)
		var out activities.ProcessPageBatchOutput
		err := workflow.ExecuteActivity(ctx, "ProcessPageBatchActivity", activities.ProcessPageBatchInput{
			DocumentID: input.DocumentID,
			FirstPage:  first,
			LastPage:   last,
		}).Get(ctx, &out)
		if err != nil {
			return failIngest(ctx, &progress, err), nil
		}
		progress.ProcessedPages = max(progress.ProcessedPages, out.LastPage)
		progress.FailedPages = append(progress.FailedPages, out.FailedPages...)
		progress.SkippedPages += out.PagesSkipped
		progress.IndexedChunks += out.ChunksIndexed
		progress.FailedEmbeddings += out.FailedEmbeddings
		progress.FailedIndexing += out.FailedIndexing
		if len(out.FailedPages) > 0 || out.FailedEmbeddings > 0 || out.FailedIndexing > 0 {
			logger.Warn("batch finished with partial failures", "document_id", input.DocumentID, "first", first, "last", last, "failed_pages", out.FailedPages, "failed_embeddings", out.FailedEmbeddings, "failed_indexing", out.FailedIndexing)
		}
	}

	if err := workflow.ExecuteActivity(ctx, "CompleteIngestionActivity", activities.CompleteIngestionInput{DocumentID: input.DocumentID}).Get(ctx, nil); err != nil {
		return failIngest(ctx, &progress, err), nil
	}
	progress.Status = models.StatusCompleted
	return progress.Status, nil
}

// failIngest records the failure on the document and returns the final status.
func failIngest(ctx workflow.Context, progress *IngestProgress, cause error) string {
	progress.Status = models.StatusError
	progress.FailReason = failureMessage(cause)
	workflow.GetLogger(ctx).Error("ingestion failed", "document_id", progress.DocumentID, "err", cause)
	err := workflow.ExecuteActivity(ctx, "FailIngestionActivity", activities.FailIngestionInput{
		DocumentID: progress.DocumentID,
		Reason:     progress.FailReason,
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Error("recording ingestion failure", "document_id", progress.DocumentID, "err", err)
	}
	return progress.Status
}

// failureMessage strips the activity wrapper so the stored reason reads as the root cause.
func failureMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
