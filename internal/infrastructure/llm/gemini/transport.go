package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/grounded-answer/internal/core/ports"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/resilience"
)

// postJSON retries under the executor. A non-nil limiter is waited on before
// every attempt.
func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string, limiter ports.RateLimiter) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	attempt := func(ctx context.Context) error {
		return c.send(ctx, path, body, out, operation)
	}
	err = c.executor.Execute(ctx, "gemini_"+operation, resilience.Throttled(limiter, "gemini "+operation, attempt), resilience.ClassifyHTTP)
	return resilience.WrapTemporaryIfNeeded("gemini "+operation, err)
}

func (c *Client) send(ctx context.Context, path string, body []byte, out any, operation string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &resilience.HTTPStatusError{
			Service:    "gemini",
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
