package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/observability/metrics"
)

type answererFake struct {
	err   error
	query *domain.Query
}

func (f answererFake) Answer(_ context.Context, q domain.Query) (*domain.Response, error) {
	if f.query != nil {
		*f.query = q
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Response{
		Question:   q.Question,
		Answer:     "Rest and fluids.",
		Confidence: 0.8,
		Sources:    []domain.Source{{Title: "Fever", Link: "https://a.example"}},
		Metadata:   domain.ResponseMetadata{ConfidenceScore: 0.8, RelevanceCheck: true},
	}, nil
}

func chatRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestChatReturnsResponse(t *testing.T) {
	var got domain.Query
	handler := NewRouter(answererFake{query: &got}, Options{}, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, chatRequest(`{"query":"fever","location":"in","session_id":"abc"}`))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if got.Question != "fever" || got.Location != "in" || got.SessionID != "abc" {
		t.Fatalf("unexpected query passed to answerer: %+v", got)
	}

	var body struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
		Sources    []struct {
			Title string `json:"title"`
			Link  string `json:"link"`
		} `json:"sources"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Answer != "Rest and fluids." || body.Confidence != 0.8 || len(body.Sources) != 1 {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Metadata["relevanceCheck"] != true {
		t.Fatalf("expected camelCase metadata, got %v", body.Metadata)
	}
}

func TestChatLegacyPathAndSessionHeader(t *testing.T) {
	var got domain.Query
	handler := NewRouter(answererFake{query: &got}, Options{}, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"query":"fever"}`))
	req.Header.Set("X-Session-Id", "from-header")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got.SessionID != "from-header" {
		t.Fatalf("expected session id from header, got %q", got.SessionID)
	}
}

func TestChatValidatesRequest(t *testing.T) {
	handler := NewRouter(answererFake{}, Options{}, nil).Handler()
	cases := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{name: "missing query", req: chatRequest(`{"location":"us"}`), status: http.StatusBadRequest},
		{name: "blank query", req: chatRequest(`{"query":"   "}`), status: http.StatusBadRequest},
		{name: "invalid json", req: chatRequest(`{"query":`), status: http.StatusBadRequest},
		{name: "wrong method", req: httptest.NewRequest(http.MethodGet, "/v1/chat", nil), status: http.StatusMethodNotAllowed},
		{name: "oversized body", req: chatRequest(`{"query":"` + strings.Repeat("a", maxRequestBytes) + `"}`), status: http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, tc.req)
			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, res.Code)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := NewRouter(answererFake{}, Options{}, metrics.NewHTTPServerMetrics(serviceName)).Handler()

	handler.ServeHTTP(httptest.NewRecorder(), chatRequest(`{"query":"fever"}`))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "grounded_http_requests_total") {
		t.Fatalf("expected http metrics in scrape output")
	}
}
