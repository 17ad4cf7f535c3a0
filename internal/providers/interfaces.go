package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type GenerateRequest struct {
	Operation string   `json:"operation"`
	System    string   `json:"system,omitempty"`
	Prompt    string   `json:"prompt"`
	Context   []string `json:"context"`
}

type GenerateResponse struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources,omitempty"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}

// GroundedProvider answers with live web search attached as a model tool.
type GroundedProvider interface {
	GenerateGrounded(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}
