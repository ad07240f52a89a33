package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/ratelimit"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	cfg := resilience.DefaultConfig()
	cfg.Retry = resilience.FixedPolicy(2, time.Millisecond)
	cfg.Breaker.Enabled = false
	return resilience.NewExecutor(cfg)
}

func TestGeneratorSendsPromptAndOptions(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  YES \n"}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed", testExecutor()), nil)
	out, err := gen.Generate(context.Background(), "question?", domain.GenerateOptions{Temperature: 0.1, MaxOutputTokens: 1, TopK: 40})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "YES" {
		t.Fatalf("expected trimmed response, got %q", out)
	}
	if payload["prompt"] != "question?" || payload["model"] != "gen" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	options, _ := payload["options"].(map[string]any)
	if options["num_predict"] != float64(1) || options["top_k"] != float64(40) || options["temperature"] != 0.1 {
		t.Fatalf("unexpected options: %v", options)
	}
	if _, ok := options["top_p"]; ok {
		t.Fatalf("unset top_p must be omitted: %v", options)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", testExecutor()))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

func TestEmbedRejectsVectorCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", testExecutor()))
	_, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingMalformed) {
		t.Fatalf("expected malformed embedding error, got %v", err)
	}
}

func TestGenerateRetriesTemporaryStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL, "gen", "embed", testExecutor()), nil)
	out, err := gen.Generate(context.Background(), "p", domain.GenerateOptions{})
	if err != nil || out != "ok" {
		t.Fatalf("Generate() = %q, %v", out, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestGenerateRetriesWaitForLimiterSlot(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []time.Time
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, time.Now())
		n := len(calls)
		mu.Unlock()
		if n < 3 {
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	cfg := resilience.DefaultConfig()
	cfg.Retry = resilience.FixedPolicy(3, time.Millisecond)
	cfg.Breaker.Enabled = false
	limiter := ratelimit.New(600)
	gen := NewGenerator(New(server.URL, "gen", "embed", resilience.NewExecutor(cfg)), limiter)

	out, err := gen.Generate(context.Background(), "p", domain.GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected output %q", out)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 3 {
		t.Fatalf("expected 3 upstream calls, got %d", len(calls))
	}
	for i := 1; i < len(calls); i++ {
		if gap := calls[i].Sub(calls[i-1]); gap < limiter.Interval()-5*time.Millisecond {
			t.Fatalf("upstream call %d came %v after previous, want >= %v", i+1, gap, limiter.Interval())
		}
	}
}

func TestGenerateLimiterTimeoutIsTemporaryWithoutUpstreamCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer server.Close()

	limiter := ratelimit.New(1)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	gen := NewGenerator(New(server.URL, "gen", "embed", testExecutor()), limiter)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := gen.Generate(ctx, "p", domain.GenerateOptions{})
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if got := calls.Load(); got != 0 {
		t.Fatalf("expected no upstream calls, got %d", got)
	}
}
