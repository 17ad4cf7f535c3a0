package providers

import (
	"context"
	"errors"
	"testing"

	"studyrag/internal/config"

	"github.com/stretchr/testify/require"
)

type failingLLM struct{ calls int }

func (f *failingLLM) Generate(context.Context, GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	f.calls++
	return GenerateResponse{}, ProviderInfo{Name: "down"}, errors.New("503 unavailable")
}

func TestManagerGenerateFailsOver(t *testing.T) {
	down := &failingLLM{}
	m := NewStaticManager(8, []LLMProvider{down, NewMockProvider(8)}, nil, nil, nil)
	resp, info, err := m.Generate(context.Background(), GenerateRequest{Prompt: "q", Context: []string{"Page 1: heaps"}})
	require.NoError(t, err)
	require.Equal(t, 1, down.calls)
	require.Equal(t, "mock", info.Name)
	require.Contains(t, resp.Text, "heaps")
}

func TestManagerGroundedAndSearchUnconfigured(t *testing.T) {
	m := NewStaticManager(8, nil, nil, nil, nil)
	_, _, err := m.GenerateGrounded(context.Background(), GenerateRequest{Prompt: "q"})
	require.Error(t, err)
	_, err = m.Search(context.Background(), "q", 3)
	require.Error(t, err)
	_, _, err = m.Embed(context.Background(), EmbedRequest{Inputs: []string{"x"}})
	require.Error(t, err)
}

func TestNewManagerFromConfig(t *testing.T) {
	cfg := config.Config{LLMProviders: "gemini|mock", EmbedProviders: "ollama:nomic|mock", EmbedDim: 16}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	require.Len(t, m.llmProviders, 2)
	require.Len(t, m.embedProviders, 2)
	require.Equal(t, []int{0, 1}, m.PreferredEmbedOrder())
	require.NotNil(t, m.grounded)

	_, err = NewManager(config.Config{LLMProviders: "ollama", EmbedProviders: "mock"})
	require.Error(t, err)
}

func TestMockEmbeddingIsDeterministic(t *testing.T) {
	m := NewStaticManager(12, nil, []EmbeddingProvider{NewMockProvider(12)}, nil, nil)
	a, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"trie"}})
	require.NoError(t, err)
	b, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"trie"}})
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a[0], 12)
}
