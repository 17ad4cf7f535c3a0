package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultSystemPrompt = "You are a study assistant. Keep answers concise and grounded in the provided context."

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	EmbedModel string
	Timeout    time.Duration
}

// OpenAIProvider uses the official SDK for chat completions and embeddings.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client openai.Client
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-3-small"
	}
	return &OpenAIProvider{cfg: cfg, client: newOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout)}
}

func newOpenAIClient(apiKey, baseURL string, timeout time.Duration) openai.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(1),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(opts...)
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: o.cfg.EmbedModel, Key: "openai"}
	if o.cfg.APIKey == "" {
		return nil, info, fmt.Errorf("openai api key missing")
	}
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(o.cfg.EmbedModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: req.Inputs},
	})
	if err != nil {
		return nil, info, fmt.Errorf("openai embedding request failed: %w", err)
	}
	if len(resp.Data) != len(req.Inputs) {
		return nil, info, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(req.Inputs))
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			vec[i] = float32(x)
		}
		out[d.Index] = matchDimension(vec, req.Dimension)
	}
	return out, info, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "openai", Model: o.cfg.Model, Key: "openai"}
	if o.cfg.APIKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("openai api key missing")
	}
	text, err := chatComplete(ctx, o.client, o.cfg.Model, req)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("openai generate: %w", err)
	}
	return GenerateResponse{Text: text}, info, nil
}

func chatComplete(ctx context.Context, client openai.Client, model string, req GenerateRequest) (string, error) {
	system := req.System
	if system == "" {
		system = defaultSystemPrompt
	}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt += "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
