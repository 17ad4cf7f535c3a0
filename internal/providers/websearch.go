package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// GoogleSearchClient queries the Programmable Search JSON API.
type GoogleSearchClient struct {
	apiKey   string
	engineID string
	baseURL  string
	client   *http.Client
}

func NewGoogleSearchClient(apiKey, engineID string, timeout time.Duration) *GoogleSearchClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GoogleSearchClient{
		apiKey:   apiKey,
		engineID: engineID,
		baseURL:  "https://www.googleapis.com/customsearch/v1",
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *GoogleSearchClient) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if c.apiKey == "" || c.engineID == "" {
		return nil, fmt.Errorf("web search not configured")
	}
	if limit <= 0 || limit > 10 {
		limit = 5
	}
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.engineID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, statusError("web search", resp.StatusCode, body)
	}
	items := gjson.GetBytes(body, "items").Array()
	out := make([]SearchResult, 0, len(items))
	for _, it := range items {
		snippet := strings.TrimSpace(it.Get("snippet").String())
		if snippet == "" {
			continue
		}
		out = append(out, SearchResult{
			Title:   it.Get("title").String(),
			Link:    it.Get("link").String(),
			Snippet: snippet,
		})
	}
	return out, nil
}
