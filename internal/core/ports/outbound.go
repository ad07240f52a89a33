package ports

import (
	"context"
	"time"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
)

// SearchProvider returns ranked hits for a query; limit caps the result count.
type SearchProvider interface {
	Search(ctx context.Context, query, locale string, limit int) ([]domain.SearchHit, error)
}

// ContentFetcher returns the visible text behind a URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Embedder returns one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker cleans raw page text and splits it into sentence-aligned chunks.
type Chunker interface {
	Preprocess(raw string) string
	Split(text string) []string
}

// RateLimiter blocks until the caller may issue one upstream request.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error)
}

// Cache is a TTL key-value store. Expired entries are never returned.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V)
}

// PipelineObserver receives pipeline measurements.
type PipelineObserver interface {
	ObserveQuery(status string, duration time.Duration)
	ObserveDegradation(stage, reason string)
	ObserveFetch(method, result string)
	ObserveCacheLookup(cache string, hit bool)
	ObserveArticles(count int)
	ObserveConfidence(score float64)
}

type NopObserver struct{}

func (NopObserver) ObserveQuery(string, time.Duration) {}
func (NopObserver) ObserveDegradation(string, string)  {}
func (NopObserver) ObserveFetch(string, string)        {}
func (NopObserver) ObserveCacheLookup(string, bool)    {}
func (NopObserver) ObserveArticles(int)                {}
func (NopObserver) ObserveConfidence(float64)          {}
