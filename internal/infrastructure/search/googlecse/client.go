package googlecse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"
	maxResults     = 10
)

// Client queries the Google Custom Search JSON API.
type Client struct {
	apiKey     string
	engineID   string
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if strings.TrimSpace(baseURL) != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(apiKey, engineID string, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		engineID:   strings.TrimSpace(engineID),
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.executor == nil {
		c.executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return c
}

type searchResponse struct {
	Items []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
	} `json:"items"`
}

func (c *Client) Search(ctx context.Context, query, locale string, limit int) ([]domain.SearchHit, error) {
	if c.apiKey == "" || c.engineID == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "google cse search", fmt.Errorf("api key or engine id is not configured"))
	}
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(limit))
	params.Set("safe", "active")
	if locale = strings.TrimSpace(locale); locale != "" {
		params.Set("gl", locale)
	}
	endpoint := c.baseURL + "?" + params.Encode()

	resp, err := resilience.Do(ctx, c.executor, "google_cse_search", func(ctx context.Context) (searchResponse, error) {
		return c.get(ctx, endpoint)
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, resilience.WrapTemporaryIfNeeded("google cse search", err)
	}

	hits := make([]domain.SearchHit, 0, len(resp.Items))
	for _, item := range resp.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		hits = append(hits, domain.SearchHit{Title: strings.TrimSpace(item.Title), Link: link})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (searchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return searchResponse{}, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return searchResponse{}, fmt.Errorf("google cse request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return searchResponse{}, &resilience.HTTPStatusError{
			Service:    "google_cse",
			Operation:  "search",
			StatusCode: res.StatusCode,
			Status:     res.Status,
			Body:       string(body),
		}
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return searchResponse{}, fmt.Errorf("decode search response: %w", err)
	}
	return out, nil
}
