package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
)

type generatorFake struct {
	mu      sync.Mutex
	respond func(prompt string, opts domain.GenerateOptions) (string, error)
	prompts []string
	opts    []domain.GenerateOptions
}

func (f *generatorFake) Generate(_ context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	return f.respond(prompt, opts)
}

func (f *generatorFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *generatorFake) callsWithPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.prompts {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

type embedderFake struct {
	mu      sync.Mutex
	vector  func(text string) []float32
	err     error
	batches []int
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batches = append(f.batches, len(texts))
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.vector == nil {
			out[i] = []float32{1, 0}
			continue
		}
		out[i] = f.vector(text)
	}
	return out, nil
}

func (f *embedderFake) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type searchFake struct {
	mu     sync.Mutex
	hits   []domain.SearchHit
	err    error
	calls  int
	locale string
}

func (f *searchFake) Search(_ context.Context, _ string, locale string, limit int) ([]domain.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.locale = locale
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

type fetcherFake struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls map[string]int
}

func newFetcherFake(pages map[string]string) *fetcherFake {
	return &fetcherFake{pages: pages, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fetcherFake) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	return f.pages[url], nil
}

func (f *fetcherFake) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// gatedFetcher holds every fetch until release is closed.
type gatedFetcher struct {
	page    string
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func newGatedFetcher(page string) *gatedFetcher {
	return &gatedFetcher{page: page, started: make(chan struct{}), release: make(chan struct{})}
}

func (f *gatedFetcher) Fetch(ctx context.Context, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	if f.calls == 1 {
		close(f.started)
	}
	f.mu.Unlock()

	select {
	case <-f.release:
		return f.page, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *gatedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type mapCache[V any] struct {
	mu    sync.Mutex
	items map[string]V
}

func newMapCache[V any]() *mapCache[V] {
	return &mapCache[V]{items: map[string]V{}}
}

func (c *mapCache[V]) Get(_ context.Context, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache[V]) Set(_ context.Context, key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

type observerFake struct {
	mu           sync.Mutex
	statuses     []string
	degradations []string
	fetches      []string
	lookups      []string
	articles     []int
	confidences  []float64
}

func (o *observerFake) ObserveQuery(status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func (o *observerFake) ObserveDegradation(stage, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.degradations = append(o.degradations, stage)
}

func (o *observerFake) ObserveFetch(method, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetches = append(o.fetches, method+":"+result)
}

func (o *observerFake) ObserveCacheLookup(cache string, hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := "miss"
	if hit {
		result = "hit"
	}
	o.lookups = append(o.lookups, cache+":"+result)
}

func (o *observerFake) lookupCount(entry string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, l := range o.lookups {
		if l == entry {
			n++
		}
	}
	return n
}

func (o *observerFake) ObserveArticles(count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.articles = append(o.articles, count)
}

func (o *observerFake) ObserveConfidence(score float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.confidences = append(o.confidences, score)
}

func (o *observerFake) hasFetch(entry string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, f := range o.fetches {
		if f == entry {
			return true
		}
	}
	return false
}

// sentenceChunker keeps text untouched and makes one chunk per sentence.
type sentenceChunker struct{}

func (sentenceChunker) Preprocess(raw string) string { return strings.TrimSpace(raw) }

func (sentenceChunker) Split(text string) []string {
	out := make([]string, 0, 4)
	for _, s := range strings.SplitAfter(text, ".") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func chunksOf(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		out[i] = domain.Chunk{Text: text, Length: len([]rune(text)), Index: i}
	}
	return out
}

func scoredOf(texts ...string) []domain.ScoredChunk {
	chunks := chunksOf(texts...)
	out := make([]domain.ScoredChunk, len(chunks))
	for i, c := range chunks {
		out[i] = domain.ScoredChunk{Chunk: c, Score: 1 - float64(i)*0.01}
	}
	return out
}
