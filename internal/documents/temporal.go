package documents

import (
	"context"
	"fmt"

	"studyrag/internal/workflows"

	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

// TemporalIngestor runs DocumentIngestWorkflow on the configured task queue.
type TemporalIngestor struct {
	client        tclient.Client
	taskQueue     string
	pageBatchSize int
}

func NewTemporalIngestor(c tclient.Client, taskQueue string, pageBatchSize int) *TemporalIngestor {
	return &TemporalIngestor{client: c, taskQueue: taskQueue, pageBatchSize: pageBatchSize}
}

func (t *TemporalIngestor) StartIngest(ctx context.Context, documentID string) error {
	_, err := t.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       workflows.IngestWorkflowID(documentID),
		TaskQueue:                                t.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.DocumentIngestWorkflow, workflows.DocumentIngestInput{
		DocumentID:    documentID,
		PageBatchSize: t.pageBatchSize,
	})
	if err != nil {
		return fmt.Errorf("start ingest workflow: %w", err)
	}
	return nil
}

func (t *TemporalIngestor) QueryProgress(ctx context.Context, documentID string) (workflows.IngestProgress, error) {
	var prog workflows.IngestProgress
	resp, err := t.client.QueryWorkflow(ctx, workflows.IngestWorkflowID(documentID), "", workflows.QueryGetIngestProgress)
	if err != nil {
		return prog, fmt.Errorf("query ingest progress: %w", err)
	}
	if err := resp.Get(&prog); err != nil {
		return prog, fmt.Errorf("decode ingest progress: %w", err)
	}
	return prog, nil
}

func (t *TemporalIngestor) StopIngest(ctx context.Context, documentID string) error {
	if err := t.client.TerminateWorkflow(ctx, workflows.IngestWorkflowID(documentID), "", "document deleted"); err != nil {
		return fmt.Errorf("terminate ingest workflow: %w", err)
	}
	return nil
}
