package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"studyrag/internal/extract"
	"studyrag/internal/models"
	"studyrag/internal/util"
	"studyrag/internal/vector"

	"github.com/stretchr/testify/require"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newMemDocs(docs ...models.Document) *memDocs {
	m := &memDocs{docs: map[string]*models.Document{}}
	for i := range docs {
		d := docs[i]
		m.docs[d.DocumentID] = &d
	}
	return m
}

func (m *memDocs) Get(_ context.Context, id string) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return models.Document{}, util.ErrDocumentNotFound
	}
	return *d, nil
}

func (m *memDocs) SetProcessing(_ context.Context, id string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id].ProcessingStatus = models.StatusProcessing
	m.docs[id].TotalPages = &total
	return nil
}

func (m *memDocs) AdvanceProcessed(_ context.Context, id string, pages int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id].ProcessedPages = max(m.docs[id].ProcessedPages, pages)
	return nil
}

func (m *memDocs) Complete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id].ProcessingStatus = models.StatusCompleted
	return nil
}

func (m *memDocs) Fail(_ context.Context, id, msg string, maxLen int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg = util.TruncateRunes(msg, maxLen)
	m.docs[id].ProcessingStatus = models.StatusError
	m.docs[id].ErrorMessage = &msg
	return nil
}

type memChunks struct {
	mu   sync.Mutex
	rows map[string]models.ParsedChunk
}

func (m *memChunks) InsertChunks(_ context.Context, chunks []models.ParsedChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[string]models.ParsedChunk{}
	}
	for _, c := range chunks {
		key := fmt.Sprintf("%d-%d", c.PageNumber, c.ChunkNumber)
		if _, ok := m.rows[key]; !ok {
			m.rows[key] = c
		}
	}
	return nil
}

func (m *memChunks) pages() map[int]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int]bool{}
	for _, c := range m.rows {
		out[c.PageNumber] = true
	}
	return out
}

type bookSource struct {
	pages  int
	broken map[int]bool
}

func (b *bookSource) PageCount() int { return b.pages }
func (b *bookSource) Close() error   { return nil }
func (b *bookSource) PageText(n int) (string, error) {
	if b.broken[n] {
		return "", errors.New("corrupt content stream")
	}
	return fmt.Sprintf("Chapter %d covers binary search trees and their rotations.", n), nil
}

type bookOpener struct {
	src *bookSource
	err error
}

func (o *bookOpener) Open(context.Context, string) (extract.Source, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.src, nil
}

type flakyEmbedder struct {
	failEvery int
	calls     int
}

func (e *flakyEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		e.calls++
		if e.failEvery > 0 && e.calls%e.failEvery == 0 {
			continue
		}
		out[i] = []float32{1, float32(e.calls)}
	}
	return out, nil
}

func runAll(t *testing.T, p *Pipeline, docID string, batch int) []BatchReport {
	t.Helper()
	ctx := context.Background()
	total, err := p.Begin(ctx, docID)
	require.NoError(t, err)
	var reports []BatchReport
	for first := 1; first <= total; first += batch {
		last := min(first+batch-1, total)
		r, err := p.ProcessBatch(ctx, docID, first, last)
		require.NoError(t, err)
		reports = append(reports, r)
	}
	require.NoError(t, p.Complete(ctx, docID))
	return reports
}

func TestPipelineSkipsFailingPageAndCompletes(t *testing.T) {
	docs := newMemDocs(models.Document{DocumentID: "doc-1", FileLocation: "u1/algorithms.pdf", ProcessingStatus: models.StatusPending})
	chunks := &memChunks{}
	idx := vector.NewMemoryIndex()
	opener := &bookOpener{src: &bookSource{pages: 12, broken: map[int]bool{7: true}}}
	p := NewPipeline(docs, chunks, opener, &flakyEmbedder{}, idx, Options{}, nil)

	reports := runAll(t, p, "doc-1", 5)
	require.Len(t, reports, 3)
	require.Equal(t, []int{7}, reports[1].FailedPages)

	doc, err := docs.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, doc.ProcessingStatus)
	require.Equal(t, 12, *doc.TotalPages)
	require.Equal(t, 12, doc.ProcessedPages)

	stored := chunks.pages()
	for n := 1; n <= 12; n++ {
		require.Equal(t, n != 7, stored[n], "page %d", n)
		require.Equal(t, n != 7, idx.Has("doc-1", n, 1), "page %d", n)
	}
}

func TestPipelineIndexesOnlySuccessfulEmbeddings(t *testing.T) {
	docs := newMemDocs(models.Document{DocumentID: "doc-2", FileLocation: "u1/notes.pdf"})
	idx := vector.NewMemoryIndex()
	opener := &bookOpener{src: &bookSource{pages: 10}}
	p := NewPipeline(docs, &memChunks{}, opener, &flakyEmbedder{failEvery: 5}, idx, Options{}, nil)

	reports := runAll(t, p, "doc-2", 10)
	require.Len(t, reports, 1)
	require.Equal(t, 10, reports[0].ChunksStored)
	require.Equal(t, 2, reports[0].FailedEmbeddings)
	require.Equal(t, 8, reports[0].ChunksIndexed)
	require.Equal(t, 8, idx.Count("doc-2"))

	doc, _ := docs.Get(context.Background(), "doc-2")
	require.Equal(t, models.StatusCompleted, doc.ProcessingStatus)
}

func TestProcessBatchReplayIsIdempotent(t *testing.T) {
	docs := newMemDocs(models.Document{DocumentID: "doc-3", FileLocation: "x.pdf"})
	chunks := &memChunks{}
	idx := vector.NewMemoryIndex()
	p := NewPipeline(docs, chunks, &bookOpener{src: &bookSource{pages: 4}}, &flakyEmbedder{}, idx, Options{}, nil)
	ctx := context.Background()

	_, err := p.Begin(ctx, "doc-3")
	require.NoError(t, err)
	_, err = p.ProcessBatch(ctx, "doc-3", 3, 4)
	require.NoError(t, err)
	_, err = p.ProcessBatch(ctx, "doc-3", 1, 2)
	require.NoError(t, err)
	_, err = p.ProcessBatch(ctx, "doc-3", 3, 4)
	require.NoError(t, err)

	doc, _ := docs.Get(ctx, "doc-3")
	require.Equal(t, 4, doc.ProcessedPages)
	require.Equal(t, 4, idx.Count("doc-3"))
	require.Len(t, chunks.rows, 4)
}

func TestBeginReportsUnavailableSource(t *testing.T) {
	docs := newMemDocs(models.Document{DocumentID: "doc-4", FileLocation: "gone.pdf"})
	opener := &bookOpener{err: fmt.Errorf("%w: no such object", util.ErrSourceUnavailable)}
	p := NewPipeline(docs, &memChunks{}, opener, &flakyEmbedder{}, vector.NewMemoryIndex(), Options{}, nil)

	_, err := p.Begin(context.Background(), "doc-4")
	require.ErrorIs(t, err, util.ErrSourceUnavailable)

	require.NoError(t, p.Fail(context.Background(), "doc-4", "source unavailable"))
	doc, _ := docs.Get(context.Background(), "doc-4")
	require.Equal(t, models.StatusError, doc.ProcessingStatus)
	require.Equal(t, "source unavailable", *doc.ErrorMessage)
}

// downIndex rejects upserts for the listed call numbers.
type downIndex struct {
	*vector.MemoryIndex
	failCalls map[int]bool
	calls     int
	before    func()
}

func (d *downIndex) Upsert(ctx context.Context, documentID string, points []vector.Point) error {
	d.calls++
	if d.before != nil {
		d.before()
	}
	if d.failCalls[d.calls] {
		return errors.New("qdrant: 503 unavailable")
	}
	return d.MemoryIndex.Upsert(ctx, documentID, points)
}

func TestIndexOutageForOneBatchStillCompletes(t *testing.T) {
	docs := newMemDocs(models.Document{DocumentID: "doc-5", FileLocation: "u1/graphs.pdf"})
	chunks := &memChunks{}
	idx := &downIndex{MemoryIndex: vector.NewMemoryIndex(), failCalls: map[int]bool{1: true}}
	p := NewPipeline(docs, chunks, &bookOpener{src: &bookSource{pages: 10}}, &flakyEmbedder{}, idx, Options{}, nil)

	reports := runAll(t, p, "doc-5", 5)
	require.Len(t, reports, 2)
	require.Equal(t, 5, reports[0].ChunksStored)
	require.Equal(t, 5, reports[0].FailedIndexing)
	require.Equal(t, 0, reports[0].ChunksIndexed)
	require.Equal(t, 5, reports[1].ChunksIndexed)

	doc, _ := docs.Get(context.Background(), "doc-5")
	require.Equal(t, models.StatusCompleted, doc.ProcessingStatus)
	require.Equal(t, 10, doc.ProcessedPages)
	require.Len(t, chunks.rows, 10)
	require.Equal(t, 5, idx.Count("doc-5"))
	require.False(t, idx.Has("doc-5", 1, 1))
}

func TestIndexFailureAfterCancelFailsBatch(t *testing.T) {
	docs := newMemDocs(models.Document{DocumentID: "doc-6", FileLocation: "u1/heaps.pdf"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	idx := &downIndex{MemoryIndex: vector.NewMemoryIndex(), failCalls: map[int]bool{1: true}, before: cancel}
	p := NewPipeline(docs, &memChunks{}, &bookOpener{src: &bookSource{pages: 2}}, &flakyEmbedder{}, idx, Options{}, nil)
	_, err := p.Begin(ctx, "doc-6")
	require.NoError(t, err)

	_, err = p.ProcessBatch(ctx, "doc-6", 1, 2)
	require.ErrorIs(t, err, context.Canceled)
	doc, _ := docs.Get(context.Background(), "doc-6")
	require.Equal(t, 0, doc.ProcessedPages)
}
