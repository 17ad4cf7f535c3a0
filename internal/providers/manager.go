package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"studyrag/internal/config"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// Manager holds the configured providers in preference order and fails over
// between them.
type Manager struct {
	llmProviders   []NamedLLMProvider
	embedProviders []NamedEmbedProvider
	grounded       GroundedProvider
	searcher       WebSearcher
	dim            int
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{dim: cfg.EmbedDim}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support llm", ref.Raw)
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: llm})
		if g, ok := p.(GroundedProvider); ok && m.grounded == nil {
			m.grounded = g
		}
	}
	for _, ref := range ParseProviderList(cfg.EmbedProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: embed})
	}
	if cfg.SearchAPIKey != "" && cfg.SearchEngineID != "" {
		m.searcher = NewGoogleSearchClient(cfg.SearchAPIKey, cfg.SearchEngineID, cfg.ProviderTimeout)
	}
	return m, nil
}

// NewStaticManager wires already constructed providers, mainly for tests.
func NewStaticManager(dim int, llm []LLMProvider, embed []EmbeddingProvider, grounded GroundedProvider, searcher WebSearcher) *Manager {
	m := &Manager{dim: dim, grounded: grounded, searcher: searcher}
	for i, p := range llm {
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ProviderRef{Raw: fmt.Sprintf("static-%d", i), Name: "static"}, Provider: p})
	}
	for i, p := range embed {
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ProviderRef{Raw: fmt.Sprintf("static-%d", i), Name: "static"}, Provider: p})
	}
	return m
}

// Embed tries each embedding provider in preferred order.
func (m *Manager) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if req.Dimension <= 0 {
		req.Dimension = m.dim
	}
	var errs []error
	for _, i := range m.PreferredEmbedOrder() {
		vecs, info, err := m.embedProviders[i].Provider.Embed(ctx, req)
		if err == nil {
			return vecs, info, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.embedProviders[i].Ref.Raw, err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, ProviderInfo{}, fmt.Errorf("no embedding providers configured")
	}
	return nil, ProviderInfo{}, errors.Join(errs...)
}

// Generate tries each llm provider in preferred order.
func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	var errs []error
	for _, i := range m.PreferredLLMOrder() {
		resp, info, err := m.llmProviders[i].Provider.Generate(ctx, req)
		if err == nil {
			return resp, info, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.llmProviders[i].Ref.Raw, err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return GenerateResponse{}, ProviderInfo{}, fmt.Errorf("no llm providers configured")
	}
	return GenerateResponse{}, ProviderInfo{}, errors.Join(errs...)
}

func (m *Manager) GenerateGrounded(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if m.grounded == nil {
		return GenerateResponse{}, ProviderInfo{}, fmt.Errorf("no grounded provider configured")
	}
	return m.grounded.GenerateGrounded(ctx, req)
}

func (m *Manager) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if m.searcher == nil {
		return nil, fmt.Errorf("web search not configured")
	}
	return m.searcher.Search(ctx, query, limit)
}

func (m *Manager) PreferredLLMOrder() []int {
	return preferredOrder(len(m.llmProviders), func(i int) string { return strings.ToLower(m.llmProviders[i].Ref.Name) })
}

func (m *Manager) PreferredEmbedOrder() []int {
	return preferredOrder(len(m.embedProviders), func(i int) string { return strings.ToLower(m.embedProviders[i].Ref.Name) })
}

// preferredOrder keeps configured order but pushes mock providers last.
func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

// buildProvider constructs one provider. The ref model, when present,
// overrides the configured model.
func buildProvider(ref ProviderRef, cfg config.Config) (any, error) {
	pick := func(fallback string) string {
		if ref.Model != "" {
			return ref.Model
		}
		return fallback
	}
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(cfg.EmbedDim), nil
	case "gemini":
		return NewGeminiProvider(GeminiConfig{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			Model:      pick(cfg.GeminiModel),
			EmbedModel: pick(cfg.GeminiEmbedModel),
			Timeout:    cfg.ProviderTimeout,
		}), nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      pick(cfg.OpenAIModel),
			EmbedModel: pick(cfg.OpenAIEmbedModel),
			Timeout:    cfg.ProviderTimeout,
		}), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(cfg.OllamaBaseURL, pick(cfg.OllamaEmbedModel), cfg.ProviderTimeout), nil
	case "groq":
		return NewGroqProvider(cfg.GroqAPIKey, pick(cfg.GroqModel), cfg.ProviderTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
