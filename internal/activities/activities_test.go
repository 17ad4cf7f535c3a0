package activities

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"studyrag/internal/extract"
	"studyrag/internal/ingest"
	"studyrag/internal/models"
	"studyrag/internal/util"
	"studyrag/internal/vector"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

type stubDocs struct {
	doc    models.Document
	failed string
}

func (s *stubDocs) Get(_ context.Context, id string) (models.Document, error) {
	if id != s.doc.DocumentID {
		return models.Document{}, util.ErrDocumentNotFound
	}
	return s.doc, nil
}
func (s *stubDocs) SetProcessing(_ context.Context, _ string, total int) error {
	s.doc.TotalPages = &total
	return nil
}
func (s *stubDocs) AdvanceProcessed(_ context.Context, _ string, pages int) error {
	s.doc.ProcessedPages = max(s.doc.ProcessedPages, pages)
	return nil
}
func (s *stubDocs) Complete(context.Context, string) error { return nil }
func (s *stubDocs) Fail(_ context.Context, _ string, msg string, _ int) error {
	s.failed = msg
	return nil
}

type stubChunks struct{}

func (stubChunks) InsertChunks(context.Context, []models.ParsedChunk) error { return nil }

type stubSource struct{ n int }

func (s stubSource) PageCount() int { return s.n }
func (s stubSource) Close() error   { return nil }
func (s stubSource) PageText(n int) (string, error) {
	return fmt.Sprintf("Page %d explains hashing with open addressing.", n), nil
}

type stubOpener struct{ err error }

func (o stubOpener) Open(context.Context, string) (extract.Source, error) {
	if o.err != nil {
		return nil, o.err
	}
	return stubSource{n: 3}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func newEnv(t *testing.T, opener extract.Opener) (*testsuite.TestActivityEnvironment, *stubDocs) {
	t.Helper()
	docs := &stubDocs{doc: models.Document{DocumentID: "doc-1", FileLocation: "u/a.pdf"}}
	p := ingest.NewPipeline(docs, stubChunks{}, opener, stubEmbedder{}, vector.NewMemoryIndex(), ingest.Options{}, nil)
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(New(p))
	return env, docs
}

func TestBeginIngestionActivityReportsPageCount(t *testing.T) {
	env, docs := newEnv(t, stubOpener{})
	val, err := env.ExecuteActivity("BeginIngestionActivity", BeginIngestionInput{DocumentID: "doc-1"})
	require.NoError(t, err)
	var out BeginIngestionOutput
	require.NoError(t, val.Get(&out))
	require.Equal(t, 3, out.TotalPages)
	require.Equal(t, 3, *docs.doc.TotalPages)
}

func TestBeginIngestionActivitySourceUnavailableIsNotRetried(t *testing.T) {
	env, _ := newEnv(t, stubOpener{err: fmt.Errorf("%w: missing object", util.ErrSourceUnavailable)})
	_, err := env.ExecuteActivity("BeginIngestionActivity", BeginIngestionInput{DocumentID: "doc-1"})
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.True(t, appErr.NonRetryable())
	require.Equal(t, ErrTypeSourceUnavailable, appErr.Type())
}

func TestProcessPageBatchActivityAdvancesProgress(t *testing.T) {
	env, docs := newEnv(t, stubOpener{})
	val, err := env.ExecuteActivity("ProcessPageBatchActivity", ProcessPageBatchInput{DocumentID: "doc-1", FirstPage: 1, LastPage: 5})
	require.NoError(t, err)
	var out ProcessPageBatchOutput
	require.NoError(t, val.Get(&out))
	require.Equal(t, 3, out.LastPage)
	require.Equal(t, 3, out.ChunksIndexed)
	require.Equal(t, 3, docs.doc.ProcessedPages)
}

func TestFailIngestionActivityRecordsReason(t *testing.T) {
	env, docs := newEnv(t, stubOpener{})
	_, err := env.ExecuteActivity("FailIngestionActivity", FailIngestionInput{DocumentID: "doc-1", Reason: "boom"})
	require.NoError(t, err)
	require.Equal(t, "boom", docs.failed)
}
