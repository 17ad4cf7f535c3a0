package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newGeminiTestServer(t *testing.T, handler func(path string, body map[string]any) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		code, out := handler(r.URL.Path, body)
		w.WriteHeader(code)
		_, _ = io.WriteString(w, out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiEmbedSingle(t *testing.T) {
	srv := newGeminiTestServer(t, func(path string, _ map[string]any) (int, string) {
		require.Equal(t, "/models/embedding-001:embedContent", path)
		return 200, `{"embedding":{"values":[0.5,0.25,1]}}`
	})
	p := NewGeminiProvider(GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	vecs, info, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"graphs"}, Dimension: 4})
	require.NoError(t, err)
	require.Equal(t, "gemini", info.Name)
	require.Equal(t, [][]float32{{0.5, 0.25, 1, 0}}, vecs)
}

func TestGeminiEmbedBatch(t *testing.T) {
	srv := newGeminiTestServer(t, func(path string, body map[string]any) (int, string) {
		require.True(t, strings.HasSuffix(path, ":batchEmbedContents"))
		require.Len(t, body["requests"], 2)
		return 200, `{"embeddings":[{"values":[1,0]},{"values":[0,1]}]}`
	})
	p := NewGeminiProvider(GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	vecs, _, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestGeminiGenerateGroundedSendsSearchTool(t *testing.T) {
	srv := newGeminiTestServer(t, func(path string, body map[string]any) (int, string) {
		require.Equal(t, "/models/gemini-1.5-flash:generateContent", path)
		require.Contains(t, body, "tools")
		return 200, `{"candidates":[{"content":{"parts":[{"text":"Paris "},{"text":"is the capital."}]},
			"groundingMetadata":{"groundingChunks":[{"web":{"uri":"https://example.org/paris"}}]}}]}`
	})
	p := NewGeminiProvider(GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	resp, _, err := p.GenerateGrounded(context.Background(), GenerateRequest{Prompt: "capital of France?"})
	require.NoError(t, err)
	require.Equal(t, "Paris is the capital.", resp.Text)
	require.Equal(t, []string{"https://example.org/paris"}, resp.Sources)
}

func TestGeminiGenerateMapsRateLimit(t *testing.T) {
	srv := newGeminiTestServer(t, func(string, map[string]any) (int, string) {
		return 429, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`
	})
	p := NewGeminiProvider(GeminiConfig{APIKey: "test-key", BaseURL: srv.URL})
	_, _, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	require.Equal(t, ErrorRate, ClassifyError(err))
}

func TestGeminiMissingKey(t *testing.T) {
	p := NewGeminiProvider(GeminiConfig{})
	_, _, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.Error(t, err)
}
