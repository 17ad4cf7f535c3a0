package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"studyrag/internal/models"
	"studyrag/internal/providers"
	"studyrag/internal/util"
	"studyrag/internal/vector"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ownedDocs struct{}

func (ownedDocs) GetOwned(_ context.Context, ownerID, documentID string) (models.Document, error) {
	if ownerID != "u1" || documentID != "doc-1" {
		return models.Document{}, util.ErrDocumentNotFound
	}
	return models.Document{DocumentID: documentID, OwnerID: ownerID}, nil
}

type listChunks []models.ParsedChunk

func (l listChunks) ListByDocument(context.Context, string) ([]models.ParsedChunk, error) {
	return l, nil
}

type fixedEmbedder struct{ err error }

func (f fixedEmbedder) EmbedOne(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

type mockLLM struct{ mock.Mock }

func (m *mockLLM) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(providers.GenerateResponse), providers.ProviderInfo{Name: "llm"}, args.Error(1)
}

type mockGrounded struct{ mock.Mock }

func (m *mockGrounded) GenerateGrounded(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(providers.GenerateResponse), providers.ProviderInfo{Name: "grounded"}, args.Error(1)
}

type mockSearcher struct{ mock.Mock }

func (m *mockSearcher) Search(ctx context.Context, query string, limit int) ([]providers.SearchResult, error) {
	args := m.Called(ctx, query, limit)
	return args.Get(0).([]providers.SearchResult), args.Error(1)
}

func indexedSortingNotes(t *testing.T) *vector.MemoryIndex {
	t.Helper()
	idx := vector.NewMemoryIndex()
	require.NoError(t, idx.Upsert(context.Background(), "doc-1", []vector.Point{
		vector.NewPoint("doc-1", 2, 1, "Merge sort splits the array and merges sorted halves.", []float32{1, 0}),
	}))
	return idx
}

func newTestEngine(t *testing.T, idx vector.Index, chunks listChunks, llm *mockLLM, grounded *mockGrounded, searcher *mockSearcher) *Engine {
	t.Helper()
	deps := Deps{
		Documents: ownedDocs{},
		Chunks:    chunks,
		Embedder:  fixedEmbedder{},
		Index:     idx,
		LLM:       llm,
	}
	if grounded != nil {
		deps.Grounded = grounded
	}
	if searcher != nil {
		deps.Searcher = searcher
	}
	e, err := NewEngine(deps, Options{MaxContextChars: 120}, nil)
	require.NoError(t, err)
	require.NotNil(t, e.deps.Catalog)
	return e
}

func byOperation(op string) any {
	return mock.MatchedBy(func(req providers.GenerateRequest) bool { return req.Operation == op })
}

func TestAnswerFromDocumentContext(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req providers.GenerateRequest) bool {
		return len(req.Context) == 1 && strings.HasPrefix(req.Context[0], "Page 2: Merge sort")
	})).Return(providers.GenerateResponse{Text: "Merge sort divides and merges."}, nil)

	e := newTestEngine(t, indexedSortingNotes(t), nil, llm, nil, nil)
	res, err := e.Answer(context.Background(), Request{OwnerID: "u1", DocumentID: "doc-1", Question: "How does merge sort work?"})
	require.NoError(t, err)
	require.Equal(t, "Merge sort divides and merges.", res.Answer)
	require.Equal(t, SourceDocument, res.Diagnostics.Source)
	require.Equal(t, ContextRetrieval, res.Diagnostics.ContextMode)
	require.Len(t, res.Diagnostics.Retrieved, 1)
	require.Equal(t, 2, res.Diagnostics.Retrieved[0].PageNumber)
	llm.AssertExpectations(t)
}

func TestSentinelFallsBackToGroundedAnswer(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, byOperation("answer")).Return(providers.GenerateResponse{Text: "insufficient_context"}, nil)
	grounded := &mockGrounded{}
	grounded.On("GenerateGrounded", mock.Anything, mock.MatchedBy(func(req providers.GenerateRequest) bool {
		return req.Operation == "answer_grounded" &&
			strings.Contains(req.System, "Search the web") &&
			strings.Contains(req.System, "only when the search finds nothing") &&
			!strings.Contains(req.System, "supplied context") &&
			strings.Contains(req.Prompt, "What is the capital of France?")
	})).Return(providers.GenerateResponse{Text: "Paris is the capital of France.", Sources: []string{"https://example.org/france"}}, nil)

	e := newTestEngine(t, indexedSortingNotes(t), nil, llm, grounded, nil)
	res, err := e.Answer(context.Background(), Request{OwnerID: "u1", DocumentID: "doc-1", Question: "What is the capital of France?"})
	require.NoError(t, err)
	require.Equal(t, "Paris is the capital of France.", res.Answer)
	require.Equal(t, SourceWebGrounded, res.Diagnostics.Source)
	require.Equal(t, []string{"https://example.org/france"}, res.Diagnostics.WebSources)
}

func TestGroundedSentinelBecomesLocalizedNotFound(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).Return(providers.GenerateResponse{Text: "Maaf, saya tidak tahu."}, nil)
	grounded := &mockGrounded{}
	grounded.On("GenerateGrounded", mock.Anything, mock.Anything).Return(providers.GenerateResponse{Text: "INSUFFICIENT_CONTEXT"}, nil)

	e := newTestEngine(t, indexedSortingNotes(t), nil, llm, grounded, nil)
	q := "Siapa presiden pertama Indonesia?"
	res, err := e.Answer(context.Background(), Request{OwnerID: "u1", DocumentID: "doc-1", Question: q, Locale: "id"})
	require.NoError(t, err)
	require.Equal(t, SourceNotFound, res.Diagnostics.Source)
	require.Contains(t, res.Answer, q)
	require.True(t, strings.HasPrefix(res.Answer, "Maaf"))
	require.NotContains(t, res.Answer, "INSUFFICIENT_CONTEXT")
}

func TestGroundedErrorDegradesToWebSnippets(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, byOperation("answer")).Return(providers.GenerateResponse{}, errors.New("503 unavailable"))
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req providers.GenerateRequest) bool {
		return req.Operation == "answer_web_snippets" && len(req.Context) == 1 && strings.Contains(req.Context[0], "Paris")
	})).Return(providers.GenerateResponse{Text: "The capital of France is Paris."}, nil)
	grounded := &mockGrounded{}
	grounded.On("GenerateGrounded", mock.Anything, mock.Anything).Return(providers.GenerateResponse{}, errors.New("dial tcp: timeout"))
	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, "What is the capital of France?", 5).Return([]providers.SearchResult{
		{Title: "France", Link: "https://example.org/fr", Snippet: "Paris is the capital and largest city of France."},
	}, nil)

	e := newTestEngine(t, indexedSortingNotes(t), nil, llm, grounded, searcher)
	res, err := e.Answer(context.Background(), Request{OwnerID: "u1", DocumentID: "doc-1", Question: "What is the capital of France?"})
	require.NoError(t, err)
	require.Equal(t, "The capital of France is Paris.", res.Answer)
	require.Equal(t, SourceWebSearch, res.Diagnostics.Source)
	require.Equal(t, []string{"https://example.org/fr"}, res.Diagnostics.WebSources)
	llm.AssertExpectations(t)
}

func TestEveryStageFailingReturnsApology(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).Return(providers.GenerateResponse{}, errors.New("quota exceeded"))
	grounded := &mockGrounded{}
	grounded.On("GenerateGrounded", mock.Anything, mock.Anything).Return(providers.GenerateResponse{}, errors.New("quota exceeded"))
	searcher := &mockSearcher{}
	searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]providers.SearchResult(nil), errors.New("403"))

	e := newTestEngine(t, indexedSortingNotes(t), nil, llm, grounded, searcher)
	res, err := e.Answer(context.Background(), Request{OwnerID: "u1", DocumentID: "doc-1", Question: "anything"})
	require.NoError(t, err)
	require.Equal(t, SourceApology, res.Diagnostics.Source)
	require.Equal(t, "Sorry, I can't answer right now. Please try again in a moment.", res.Answer)
}

func TestNoSearchHitsUsesTruncatedFullDocument(t *testing.T) {
	chunks := listChunks{
		{PageNumber: 1, ChunkNumber: 1, ExtractedText: strings.Repeat("a", 80)},
		{PageNumber: 2, ChunkNumber: 1, ExtractedText: strings.Repeat("b", 80)},
	}
	var seen []string
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		seen = args.Get(1).(providers.GenerateRequest).Context
	}).Return(providers.GenerateResponse{Text: "Pages one and two repeat letters."}, nil)

	e := newTestEngine(t, vector.NewMemoryIndex(), chunks, llm, nil, nil)
	res, err := e.Answer(context.Background(), Request{OwnerID: "u1", DocumentID: "doc-1", Question: "What is on the pages?"})
	require.NoError(t, err)
	require.Equal(t, ContextFullDocument, res.Diagnostics.ContextMode)
	require.True(t, res.Diagnostics.Truncated)
	require.Len(t, seen, 1)
	require.True(t, strings.HasPrefix(seen[0], "Page 1: aaa"))
	require.True(t, strings.HasSuffix(seen[0], TruncationMarker))
	require.Equal(t, 120, utf8.RuneCountInString(strings.TrimSuffix(seen[0], TruncationMarker)))
}

func TestEmbeddingFailureFallsBackToFullDocument(t *testing.T) {
	chunks := listChunks{{PageNumber: 3, ChunkNumber: 1, ExtractedText: "Quicksort picks a pivot."}}
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req providers.GenerateRequest) bool {
		return len(req.Context) == 1 && req.Context[0] == "Page 3: Quicksort picks a pivot."
	})).Return(providers.GenerateResponse{Text: "It picks a pivot."}, nil)

	e := newTestEngine(t, indexedSortingNotes(t), chunks, llm, nil, nil)
	e.deps.Embedder = fixedEmbedder{err: errors.New("embedding service down")}
	res, err := e.Answer(context.Background(), Request{OwnerID: "u1", DocumentID: "doc-1", Question: "What does quicksort pick?"})
	require.NoError(t, err)
	require.Equal(t, "It picks a pivot.", res.Answer)
	require.False(t, res.Diagnostics.Truncated)
}

func TestAnswerPreconditions(t *testing.T) {
	e := newTestEngine(t, vector.NewMemoryIndex(), nil, &mockLLM{}, nil, nil)
	_, err := e.Answer(context.Background(), Request{OwnerID: "u1", DocumentID: "doc-1", Question: "   "})
	require.ErrorIs(t, err, util.ErrEmptyQuestion)

	_, err = e.Answer(context.Background(), Request{OwnerID: "u2", DocumentID: "doc-1", Question: "hi"})
	require.ErrorIs(t, err, util.ErrDocumentNotFound)
}
