package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"studyrag/internal/models"
	"studyrag/internal/providers"
	"studyrag/internal/util"
	"studyrag/internal/vector"
)

const (
	SourceDocument    = "document"
	SourceWebGrounded = "web_grounded"
	SourceWebSearch   = "web_search"
	SourceNotFound    = "not_found"
	SourceApology     = "apology"

	ContextRetrieval    = "retrieval"
	ContextFullDocument = "full_document"

	TruncationMarker = "\n...[truncated]"
)

type DocumentReader interface {
	GetOwned(ctx context.Context, ownerID, documentID string) (models.Document, error)
}

type ChunkReader interface {
	ListByDocument(ctx context.Context, documentID string) ([]models.ParsedChunk, error)
}

type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

type Options struct {
	TopK            int
	MaxContextChars int
	Locale          string
	WebResults      int
}

// Deps wires the engine. Grounded and Searcher may be nil; the cascade skips them.
type Deps struct {
	Documents DocumentReader
	Chunks    ChunkReader
	Embedder  QueryEmbedder
	Index     vector.Index
	LLM       providers.LLMProvider
	Grounded  providers.GroundedProvider
	Searcher  providers.WebSearcher
	Catalog   *Catalog
}

type Engine struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

func NewEngine(deps Deps, opts Options, logger *slog.Logger) (*Engine, error) {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 12000
	}
	if opts.WebResults <= 0 {
		opts.WebResults = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Catalog == nil {
		c, err := DefaultCatalog()
		if err != nil {
			return nil, fmt.Errorf("load default phrases: %w", err)
		}
		deps.Catalog = c
	}
	return &Engine{deps: deps, opts: opts, logger: logger}, nil
}

type Request struct {
	OwnerID    string `json:"-"`
	DocumentID string `json:"-"`
	Question   string `json:"question"`
	TopK       int    `json:"top_k,omitempty"`
	Locale     string `json:"locale,omitempty"`
}

type RetrievedChunk struct {
	PageNumber  int     `json:"page_number"`
	ChunkNumber int     `json:"chunk_number"`
	Score       float64 `json:"score"`
	Snippet     string  `json:"snippet"`
}

type Diagnostics struct {
	Source      string           `json:"source"`
	ContextMode string           `json:"context_mode"`
	Truncated   bool             `json:"truncated,omitempty"`
	Retrieved   []RetrievedChunk `json:"retrieved"`
	Provider    string           `json:"provider,omitempty"`
	WebSources  []string         `json:"web_sources,omitempty"`
}

type Result struct {
	Answer      string      `json:"answer"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

const systemPrompt = `You are a study assistant. Answer the question using only the supplied context.
If the context does not contain the answer, reply with exactly %s and nothing else.
Answer in the same language as the question.`

const groundedPrompt = `You are a study assistant. Search the web and answer the question from what the search returns.
Reply with exactly %s and nothing else only when the search finds nothing relevant.
Answer in the same language as the question.`

// Answer returns a grounded answer for question about one of the owner's documents.
// Only precondition failures are returned as errors; provider and network failures
// degrade through the fallback cascade and end in localized text.
func (e *Engine) Answer(ctx context.Context, req Request) (Result, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Result{}, util.ErrEmptyQuestion
	}
	if _, err := e.deps.Documents.GetOwned(ctx, req.OwnerID, req.DocumentID); err != nil {
		return Result{}, err
	}
	topK := req.TopK
	if topK <= 0 {
		topK = e.opts.TopK
	}
	locale := req.Locale
	if locale == "" {
		locale = e.opts.Locale
	}
	log := e.logger.With("document_id", req.DocumentID)

	var diag Diagnostics
	segments := e.retrieve(ctx, log, req.DocumentID, question, topK, &diag)
	if len(segments) == 0 {
		diag.ContextMode = ContextFullDocument
		segments, diag.Truncated = e.fullDocument(ctx, log, req.DocumentID)
	}

	if len(segments) > 0 {
		resp, info, err := e.deps.LLM.Generate(ctx, providers.GenerateRequest{
			Operation: "answer",
			System:    fmt.Sprintf(systemPrompt, e.deps.Catalog.Sentinel),
			Prompt:    "Question: " + question,
			Context:   segments,
		})
		switch {
		case err != nil:
			log.Warn("primary generation failed", "provider", info.Name, "err", err, "error_type", providers.ClassifyError(err))
		case !e.deps.Catalog.Insufficient(resp.Text):
			diag.Source = SourceDocument
			diag.Provider = info.Name
			return Result{Answer: strings.TrimSpace(resp.Text), Diagnostics: diag}, nil
		default:
			log.Info("document context insufficient, trying web", "provider", info.Name)
		}
	}

	return e.fromWeb(ctx, log, question, locale, diag), nil
}

func (e *Engine) retrieve(ctx context.Context, log *slog.Logger, documentID, question string, topK int, diag *Diagnostics) []string {
	diag.ContextMode = ContextRetrieval
	diag.Retrieved = []RetrievedChunk{}
	vec, err := e.deps.Embedder.EmbedOne(ctx, question)
	if err != nil {
		log.Warn("question embedding failed", "err", err)
		return nil
	}
	results, err := e.deps.Index.Search(ctx, vec, documentID, topK)
	if err != nil {
		log.Warn("vector search failed", "err", err)
		return nil
	}
	segments := make([]string, 0, len(results))
	for _, r := range results {
		segments = append(segments, fmt.Sprintf("Page %d: %s", r.PageNumber, r.Text))
		diag.Retrieved = append(diag.Retrieved, RetrievedChunk{
			PageNumber:  r.PageNumber,
			ChunkNumber: r.ChunkNumber,
			Score:       r.Score,
			Snippet:     util.DisplayEvidenceSnippet(r.Text, question, 160),
		})
	}
	return segments
}

// fullDocument builds one context block from every stored chunk in page order,
// capped at MaxContextChars runes plus the truncation marker.
func (e *Engine) fullDocument(ctx context.Context, log *slog.Logger, documentID string) ([]string, bool) {
	chunks, err := e.deps.Chunks.ListByDocument(ctx, documentID)
	if err != nil {
		log.Warn("loading document chunks failed", "err", err)
		return nil, false
	}
	if len(chunks) == 0 {
		return nil, false
	}
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Page %d: %s", c.PageNumber, c.ExtractedText)
	}
	text := b.String()
	if utf8.RuneCountInString(text) <= e.opts.MaxContextChars {
		return []string{text}, false
	}
	return []string{util.TruncateRunes(text, e.opts.MaxContextChars) + TruncationMarker}, true
}

func (e *Engine) fromWeb(ctx context.Context, log *slog.Logger, question, locale string, diag Diagnostics) Result {
	if e.deps.Grounded != nil {
		resp, info, err := e.deps.Grounded.GenerateGrounded(ctx, providers.GenerateRequest{
			Operation: "answer_grounded",
			System:    fmt.Sprintf(groundedPrompt, e.deps.Catalog.Sentinel),
			Prompt:    "Question: " + question,
		})
		if err == nil {
			diag.Provider = info.Name
			if e.deps.Catalog.Insufficient(resp.Text) {
				diag.Source = SourceNotFound
				return Result{Answer: e.deps.Catalog.NotFound(locale, question), Diagnostics: diag}
			}
			diag.Source = SourceWebGrounded
			diag.WebSources = resp.Sources
			return Result{Answer: strings.TrimSpace(resp.Text), Diagnostics: diag}
		}
		log.Warn("grounded generation failed", "err", err, "error_type", providers.ClassifyError(err))
	}
	return e.fromSearch(ctx, log, question, locale, diag)
}

func (e *Engine) fromSearch(ctx context.Context, log *slog.Logger, question, locale string, diag Diagnostics) Result {
	apology := func() Result {
		diag.Source = SourceApology
		return Result{Answer: e.deps.Catalog.Apology(locale), Diagnostics: diag}
	}
	if e.deps.Searcher == nil {
		return apology()
	}
	hits, err := e.deps.Searcher.Search(ctx, question, e.opts.WebResults)
	if err != nil {
		log.Warn("web search failed", "err", err)
		return apology()
	}
	snippets := make([]string, 0, len(hits))
	links := make([]string, 0, len(hits))
	for _, h := range hits {
		if s := strings.TrimSpace(h.Snippet); s != "" {
			snippets = append(snippets, fmt.Sprintf("%s: %s", h.Title, s))
			links = append(links, h.Link)
		}
	}
	if len(snippets) == 0 {
		diag.Source = SourceNotFound
		return Result{Answer: e.deps.Catalog.NotFound(locale, question), Diagnostics: diag}
	}
	resp, info, err := e.deps.LLM.Generate(ctx, providers.GenerateRequest{
		Operation: "answer_web_snippets",
		System:    fmt.Sprintf(systemPrompt, e.deps.Catalog.Sentinel),
		Prompt:    "Question: " + question,
		Context:   snippets,
	})
	if err != nil {
		log.Warn("snippet generation failed", "err", err, "error_type", providers.ClassifyError(err))
		return apology()
	}
	diag.Provider = info.Name
	if e.deps.Catalog.Insufficient(resp.Text) {
		diag.Source = SourceNotFound
		return Result{Answer: e.deps.Catalog.NotFound(locale, question), Diagnostics: diag}
	}
	diag.Source = SourceWebSearch
	diag.WebSources = links
	return Result{Answer: strings.TrimSpace(resp.Text), Diagnostics: diag}
}
