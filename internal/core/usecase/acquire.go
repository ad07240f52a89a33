package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
)

const defaultMaxSearchResults = 5

type AcquireResult struct {
	Articles []domain.Article
	Outcome  domain.Outcome
}

// Acquirer turns a query into articles: cached search, then a bounded
// fan-out of cached content fetches with a render fallback.
type Acquirer struct {
	search       ports.SearchProvider
	direct       ports.ContentFetcher
	render       ports.ContentFetcher
	searchCache  ports.Cache[[]domain.SearchHit]
	contentCache ports.Cache[string]
	observer     ports.PipelineObserver
	maxResults   int

	inflight singleflight.Group
}

// NewAcquirer builds an Acquirer. render may be nil to disable the fallback.
func NewAcquirer(
	search ports.SearchProvider,
	direct ports.ContentFetcher,
	render ports.ContentFetcher,
	searchCache ports.Cache[[]domain.SearchHit],
	contentCache ports.Cache[string],
	observer ports.PipelineObserver,
	maxResults int,
) *Acquirer {
	if maxResults <= 0 || maxResults > defaultMaxSearchResults {
		maxResults = defaultMaxSearchResults
	}
	if observer == nil {
		observer = ports.NopObserver{}
	}
	return &Acquirer{
		search:       search,
		direct:       direct,
		render:       render,
		searchCache:  searchCache,
		contentCache: contentCache,
		observer:     observer,
		maxResults:   maxResults,
	}
}

func searchCacheKey(query, locale string) string {
	return "search:" + query + "|" + locale
}

func contentCacheKey(url string) string {
	return "content:" + url
}

func (a *Acquirer) Acquire(ctx context.Context, query, locale string) AcquireResult {
	started := time.Now()
	hits, outcome := a.searchHits(ctx, query, locale)
	if len(hits) == 0 {
		slog.Info("acquisition_completed", "query", query, "hits", 0, "articles", 0)
		return AcquireResult{Articles: []domain.Article{}, Outcome: outcome}
	}

	contents := make([]string, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(hits))
	for i, hit := range hits {
		g.Go(func() error {
			text, err := a.content(gctx, hit.Link)
			if err != nil {
				slog.Warn("article_fetch_failed", "url", hit.Link, "error", err)
				return nil
			}
			contents[i] = text
			return nil
		})
	}
	_ = g.Wait()

	articles := make([]domain.Article, 0, len(hits))
	for i, hit := range hits {
		if strings.TrimSpace(contents[i]) == "" {
			continue
		}
		articles = append(articles, domain.Article{Title: hit.Title, Link: hit.Link, Content: contents[i]})
	}

	if missing := len(hits) - len(articles); missing > 0 && !outcome.IsDegraded() {
		outcome = domain.Degraded(fmt.Sprintf("%d of %d articles unavailable", missing, len(hits)), nil)
	}

	slog.Info("acquisition_completed",
		"query", query,
		"hits", len(hits),
		"articles", len(articles),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return AcquireResult{Articles: articles, Outcome: outcome}
}

func (a *Acquirer) searchHits(ctx context.Context, query, locale string) ([]domain.SearchHit, domain.Outcome) {
	key := searchCacheKey(query, locale)
	if a.searchCache != nil {
		cached, ok := a.searchCache.Get(ctx, key)
		a.observer.ObserveCacheLookup("search", ok)
		if ok {
			return limitHits(cached, a.maxResults), domain.OK()
		}
	}

	if a.search == nil {
		return nil, domain.Degraded("search provider not configured", nil)
	}
	hits, err := a.search.Search(ctx, query, locale, a.maxResults)
	if err != nil {
		slog.Warn("search_failed", "query", query, "locale", locale, "error", err)
		return nil, domain.Degraded("search failed", err)
	}
	if len(hits) == 0 {
		slog.Info("search_empty", "query", query, "locale", locale)
		return nil, domain.OK()
	}

	hits = limitHits(hits, a.maxResults)
	if a.searchCache != nil {
		a.searchCache.Set(ctx, key, hits)
	}
	return hits, domain.OK()
}

func limitHits(hits []domain.SearchHit, limit int) []domain.SearchHit {
	if len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

func (a *Acquirer) content(ctx context.Context, url string) (string, error) {
	key := contentCacheKey(url)
	if a.contentCache != nil {
		cached, ok := a.contentCache.Get(ctx, key)
		a.observer.ObserveCacheLookup("content", ok)
		if ok {
			return cached, nil
		}
	}

	// The shared fetch outlives any single waiter; fetchers bound it with
	// their own timeouts.
	shared := context.WithoutCancel(ctx)
	ch := a.inflight.DoChan(key, func() (any, error) {
		return a.fetch(shared, url)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (a *Acquirer) fetch(ctx context.Context, url string) (string, error) {
	var directErr error
	if a.direct != nil {
		text, err := a.direct.Fetch(ctx, url)
		if err == nil && strings.TrimSpace(text) != "" {
			a.observer.ObserveFetch("direct", "ok")
			a.store(ctx, url, text)
			return text, nil
		}
		if err == nil {
			err = domain.WrapError(domain.ErrEmptyContent, "direct fetch", fmt.Errorf("empty body at %s", url))
		}
		directErr = err
		a.observer.ObserveFetch("direct", "error")
		slog.Info("direct_fetch_fallback", "url", url, "error", err)
	}

	if a.render == nil {
		if directErr == nil {
			directErr = fmt.Errorf("no content fetcher configured")
		}
		return "", directErr
	}

	text, err := a.render.Fetch(ctx, url)
	if err == nil && strings.TrimSpace(text) == "" {
		err = domain.WrapError(domain.ErrEmptyContent, "render fetch", fmt.Errorf("empty page at %s", url))
	}
	if err != nil {
		a.observer.ObserveFetch("render", "error")
		return "", err
	}
	a.observer.ObserveFetch("render", "ok")
	a.store(ctx, url, text)
	return text, nil
}

func (a *Acquirer) store(ctx context.Context, url, text string) {
	if a.contentCache != nil {
		a.contentCache.Set(ctx, contentCacheKey(url), text)
	}
}
