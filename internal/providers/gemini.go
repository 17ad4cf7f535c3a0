package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	EmbedModel string
	Timeout    time.Duration
}

// GeminiProvider talks to the Generative Language REST API. It embeds,
// generates, and answers with the google_search tool enabled.
type GeminiProvider struct {
	cfg    GeminiConfig
	client *http.Client
}

func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "embedding-001"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &GeminiProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (g *GeminiProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: "gemini", Model: model, Key: "gemini"}
}

func (g *GeminiProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := g.info(g.cfg.EmbedModel)
	if g.cfg.APIKey == "" {
		return nil, info, fmt.Errorf("gemini api key missing")
	}
	if len(req.Inputs) == 0 {
		return nil, info, fmt.Errorf("no embedding inputs")
	}
	model := "models/" + g.cfg.EmbedModel
	if len(req.Inputs) == 1 {
		body, err := g.post(ctx, model+":embedContent", map[string]any{
			"model":   model,
			"content": textContent(req.Inputs[0]),
		})
		if err != nil {
			return nil, info, err
		}
		vec := floats(gjson.GetBytes(body, "embedding.values"))
		if len(vec) == 0 {
			return nil, info, fmt.Errorf("gemini returned empty embedding")
		}
		return [][]float32{matchDimension(vec, req.Dimension)}, info, nil
	}

	requests := make([]map[string]any, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		requests = append(requests, map[string]any{"model": model, "content": textContent(in)})
	}
	body, err := g.post(ctx, model+":batchEmbedContents", map[string]any{"requests": requests})
	if err != nil {
		return nil, info, err
	}
	embeddings := gjson.GetBytes(body, "embeddings").Array()
	if len(embeddings) != len(req.Inputs) {
		return nil, info, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(embeddings), len(req.Inputs))
	}
	out := make([][]float32, 0, len(embeddings))
	for _, e := range embeddings {
		out = append(out, matchDimension(floats(e.Get("values")), req.Dimension))
	}
	return out, info, nil
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	return g.generate(ctx, req, false)
}

func (g *GeminiProvider) GenerateGrounded(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	return g.generate(ctx, req, true)
}

func (g *GeminiProvider) generate(ctx context.Context, req GenerateRequest, grounded bool) (GenerateResponse, ProviderInfo, error) {
	info := g.info(g.cfg.Model)
	if g.cfg.APIKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("gemini api key missing")
	}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt += "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	payload := map[string]any{
		"contents": []map[string]any{{"role": "user", "parts": []map[string]string{{"text": prompt}}}},
	}
	if req.System != "" {
		payload["systemInstruction"] = textContent(req.System)
	}
	if grounded {
		payload["tools"] = []map[string]any{{"google_search": map[string]any{}}}
	}
	body, err := g.post(ctx, "models/"+g.cfg.Model+":generateContent", payload)
	if err != nil {
		return GenerateResponse{}, info, err
	}
	if reason := gjson.GetBytes(body, "promptFeedback.blockReason").String(); reason != "" {
		return GenerateResponse{}, info, fmt.Errorf("gemini blocked prompt: %s", reason)
	}
	var text strings.Builder
	for _, part := range gjson.GetBytes(body, "candidates.0.content.parts.#.text").Array() {
		text.WriteString(part.String())
	}
	if !gjson.GetBytes(body, "candidates.0").Exists() {
		return GenerateResponse{}, info, fmt.Errorf("gemini returned no candidates")
	}
	resp := GenerateResponse{Text: strings.TrimSpace(text.String())}
	for _, uri := range gjson.GetBytes(body, "candidates.0.groundingMetadata.groundingChunks.#.web.uri").Array() {
		resp.Sources = append(resp.Sources, uri.String())
	}
	return resp, info, nil
}

func (g *GeminiProvider) post(ctx context.Context, method string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode gemini request: %w", err)
	}
	endpoint := g.cfg.BaseURL + "/" + method + "?key=" + url.QueryEscape(g.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, statusError("gemini", resp.StatusCode, body)
	}
	return body, nil
}

func textContent(s string) map[string]any {
	return map[string]any{"parts": []map[string]string{{"text": s}}}
}

func floats(r gjson.Result) []float32 {
	arr := r.Array()
	out := make([]float32, 0, len(arr))
	for _, x := range arr {
		out = append(out, float32(x.Float()))
	}
	return out
}
