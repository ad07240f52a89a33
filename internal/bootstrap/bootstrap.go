package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/grounded-answer/internal/config"
	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
	"github.com/kirillkom/grounded-answer/internal/core/usecase"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/cache/memory"
	rediscache "github.com/kirillkom/grounded-answer/internal/infrastructure/cache/redis"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/chunking"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/fetch/direct"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/fetch/render"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/llm/openai"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/ratelimit"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/resilience"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/search/googlecse"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/search/serper"
)

const (
	redisKeyPrefix = "grounded:"
	janitorEvery   = 5 * time.Minute
)

type Options struct {
	Observer      ports.PipelineObserver
	OnLimiterWait func(time.Duration)
}

type App struct {
	Config   config.Config
	Answerer ports.QueryAnswerer

	closers []func()
}

type caches struct {
	search       ports.Cache[[]domain.SearchHit]
	content      ports.Cache[string]
	conversation ports.Cache[domain.ConversationState]
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}
	if opts.Observer == nil {
		opts.Observer = ports.NopObserver{}
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))

	limiter := ratelimit.New(cfg.GenerationRPM)
	if opts.OnLimiterWait != nil {
		limiter.OnWait(opts.OnLimiterWait)
	}
	generator, embedder, err := newModels(cfg, executor, limiter)
	if err != nil {
		return nil, err
	}

	search, err := newSearch(cfg, executor)
	if err != nil {
		return nil, err
	}

	store, err := app.newCaches(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	var renderFetcher ports.ContentFetcher
	if cfg.RenderEnabled {
		browser := render.New(render.Config{
			ExecPath:  cfg.RenderExecPath,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.RenderTimeout,
			MaxChars:  cfg.FetchMaxChars,
			Attempts:  render.DefaultAttempts,
			Backoff:   render.DefaultBackoff,
		})
		app.closers = append(app.closers, browser.Close)
		renderFetcher = browser
	}

	pre, err := chunking.NewPreprocessor(cfg.BoilerplatePatterns)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("compile boilerplate patterns: %w", err)
	}
	chunker := chunking.NewChunker(pre, chunking.NewSplitter(cfg.ChunkMaxLength, cfg.ChunkMinSize))

	prompts := usecase.Prompts{Domain: cfg.Domain}
	deps := usecase.AnswerPipelineDeps{
		Tracker: usecase.NewConversationTracker(store.conversation, cfg.HistoryWindow, cfg.TopicStopWords),
		Acquirer: usecase.NewAcquirer(
			search,
			direct.New(cfg.FetchTimeout, cfg.FetchMaxChars, cfg.UserAgent),
			renderFetcher,
			store.search,
			store.content,
			opts.Observer,
			cfg.MaxSearchResults,
		),
		Chunker: chunker,
		Ranker: usecase.NewRanker(embedder, usecase.RankerConfig{
			BatchSize:      cfg.RankBatchSize,
			SemanticWeight: cfg.SemanticWeight,
			KeywordWeight:  cfg.KeywordWeight,
		}),
		Condenser:  usecase.NewCondenser(generator, prompts, cfg.SafetySettings),
		Gate:       usecase.NewRelevanceGate(generator, prompts, cfg.SafetySettings),
		Generator:  generator,
		Confidence: usecase.NewConfidenceEstimator(embedder),
		Observer:   opts.Observer,
		Prompts:    prompts,
		Refusal:    cfg.RefusalMessage,
	}
	if cfg.DomainCheckEnabled && cfg.Domain != "" {
		deps.Classifier = usecase.NewDomainClassifier(generator, prompts)
	}

	app.Answerer = usecase.NewAnswerPipeline(deps, domain.PipelineLimits{
		FullContextArticles: cfg.FullContextArticles,
		MaxSources:          cfg.MaxSources,
		SummaryTopN:         cfg.SummaryTopN,
		MegaContextLength:   cfg.MegaContextLength,
		AnswerTemperature:   cfg.AnswerTemperature,
		AnswerMaxTokens:     cfg.AnswerMaxTokens,
		SafetySettings:      cfg.SafetySettings,
		MarkdownAnswer:      cfg.MarkdownAnswer,
	})

	slog.Info("pipeline_ready",
		"llm_provider", cfg.LLMProvider,
		"search_provider", cfg.SearchProvider,
		"cache_backend", cfg.CacheBackend,
		"render_enabled", cfg.RenderEnabled,
		"domain", cfg.Domain,
		"generation_interval_ms", limiter.Interval().Milliseconds(),
	)
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.Retry.MaxAttempts = cfg.RetryMaxAttempts
	rc.Retry.InitialBackoff = cfg.RetryInitialBackoff
	rc.Retry.MaxBackoff = 4 * cfg.RetryInitialBackoff
	rc.Breaker.Enabled = cfg.BreakerEnabled
	return rc
}

// newModels builds the provider pair. Every generation attempt, retries
// included, waits on limiter.
func newModels(cfg config.Config, executor *resilience.Executor, limiter ports.RateLimiter) (ports.TextGenerator, ports.Embedder, error) {
	switch cfg.LLMProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			slog.Warn("gemini_api_key_missing")
		}
		client := gemini.New(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.GeminiGenModel, cfg.GeminiEmbedModel, executor)
		return gemini.NewGenerator(client, limiter), gemini.NewEmbedder(client), nil
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		return ollama.NewGenerator(client, limiter), ollama.NewEmbedder(client), nil
	case "openai":
		client := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel, executor)
		return openai.NewGenerator(client, limiter), openai.NewEmbedder(client), nil
	default:
		return nil, nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

func newSearch(cfg config.Config, executor *resilience.Executor) (ports.SearchProvider, error) {
	switch cfg.SearchProvider {
	case "googlecse":
		return googlecse.New(cfg.GoogleAPIKey, cfg.GoogleCSEID, googlecse.WithExecutor(executor)), nil
	case "serper":
		return serper.New(cfg.SerperAPIKey, cfg.SerperURL, executor), nil
	default:
		return nil, fmt.Errorf("unsupported search provider %q", cfg.SearchProvider)
	}
}

func (a *App) newCaches(ctx context.Context, cfg config.Config) (caches, error) {
	switch cfg.CacheBackend {
	case "redis":
		client, err := rediscache.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return caches{}, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return caches{
			search:       rediscache.New[[]domain.SearchHit](client, redisKeyPrefix, cfg.CacheTTL),
			content:      rediscache.New[string](client, redisKeyPrefix, cfg.CacheTTL),
			conversation: rediscache.New[domain.ConversationState](client, redisKeyPrefix, cfg.CacheTTL),
		}, nil
	default:
		janitorCtx, cancel := context.WithCancel(context.Background())
		a.closers = append(a.closers, cancel)

		search := memory.New[[]domain.SearchHit](cfg.CacheTTL)
		content := memory.New[string](cfg.CacheTTL)
		conversation := memory.New[domain.ConversationState](cfg.CacheTTL)
		go search.RunJanitor(janitorCtx, janitorEvery)
		go content.RunJanitor(janitorCtx, janitorEvery)
		go conversation.RunJanitor(janitorCtx, janitorEvery)
		return caches{search: search, content: content, conversation: conversation}, nil
	}
}
