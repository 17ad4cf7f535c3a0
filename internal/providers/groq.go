package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
)

const groqBaseURL = "https://api.groq.com/openai/v1/"

// GroqProvider supports LLM generation via Groq's OpenAI-compatible API.
type GroqProvider struct {
	apiKey string
	model  string
	client openai.Client
}

func NewGroqProvider(apiKey, model string, timeout time.Duration) *GroqProvider {
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	return &GroqProvider{
		apiKey: apiKey,
		model:  model,
		client: newOpenAIClient(apiKey, groqBaseURL, timeout),
	}
}

func (g *GroqProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "groq", Model: g.model, Key: "groq"}
	if g.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("groq api key missing")
	}
	text, err := chatComplete(ctx, g.client, g.model, req)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("groq generate: %w", err)
	}
	return GenerateResponse{Text: text}, info, nil
}
