package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/resilience"
)

const DefaultBaseURL = "https://google.serper.dev"

// Client queries the Serper search API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(apiKey, baseURL string, executor *resilience.Executor) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		executor:   executor,
	}
}

type searchRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
	GL    string `json:"gl,omitempty"`
}

type searchResponse struct {
	Organic []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"organic"`
}

func (c *Client) Search(ctx context.Context, query, locale string, limit int) ([]domain.SearchHit, error) {
	if c.apiKey == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "serper search", fmt.Errorf("api key is not configured"))
	}
	if limit <= 0 {
		limit = 10
	}
	payload := searchRequest{
		Query: query,
		Num:   limit,
		GL:    strings.ToLower(strings.TrimSpace(locale)),
	}

	resp, err := resilience.Do(ctx, c.executor, "serper_search", func(ctx context.Context) (searchResponse, error) {
		return c.post(ctx, payload)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("serper search", err)
	}

	hits := make([]domain.SearchHit, 0, len(resp.Organic))
	for _, item := range resp.Organic {
		if len(hits) == limit {
			break
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		hits = append(hits, domain.SearchHit{Title: strings.TrimSpace(item.Title), Link: link})
	}
	return hits, nil
}

func (c *Client) post(ctx context.Context, payload searchRequest) (searchResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return searchResponse{}, fmt.Errorf("marshal search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return searchResponse{}, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return searchResponse{}, fmt.Errorf("serper request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return searchResponse{}, &resilience.HTTPStatusError{
			Service:    "serper",
			Operation:  "search",
			StatusCode: res.StatusCode,
			Status:     res.Status,
			Body:       string(msg),
		}
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return searchResponse{}, fmt.Errorf("decode search response: %w", err)
	}
	return out, nil
}
