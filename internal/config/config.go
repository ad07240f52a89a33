package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	Domain             string `yaml:"domain"`
	DomainCheckEnabled bool   `yaml:"domain_check_enabled"`
	RefusalMessage     string `yaml:"refusal_message"`
	MarkdownAnswer     bool   `yaml:"markdown_answer"`

	LLMProvider   string `yaml:"llm_provider"`
	GenerationRPM int    `yaml:"generation_rpm"`

	GeminiAPIKey     string `yaml:"gemini_api_key"`
	GeminiBaseURL    string `yaml:"gemini_base_url"`
	GeminiGenModel   string `yaml:"gemini_gen_model"`
	GeminiEmbedModel string `yaml:"gemini_embed_model"`

	OllamaURL        string `yaml:"ollama_url"`
	OllamaGenModel   string `yaml:"ollama_gen_model"`
	OllamaEmbedModel string `yaml:"ollama_embed_model"`

	OpenAIAPIKey     string `yaml:"openai_api_key"`
	OpenAIBaseURL    string `yaml:"openai_base_url"`
	OpenAIChatModel  string `yaml:"openai_chat_model"`
	OpenAIEmbedModel string `yaml:"openai_embed_model"`

	SearchProvider   string `yaml:"search_provider"`
	GoogleAPIKey     string `yaml:"google_api_key"`
	GoogleCSEID      string `yaml:"google_cse_id"`
	SerperAPIKey     string `yaml:"serper_api_key"`
	SerperURL        string `yaml:"serper_url"`
	MaxSearchResults int    `yaml:"max_search_results"`

	CacheBackend  string        `yaml:"cache_backend"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`

	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	FetchMaxChars  int           `yaml:"fetch_max_chars"`
	UserAgent      string        `yaml:"user_agent"`
	RenderEnabled  bool          `yaml:"render_enabled"`
	RenderExecPath string        `yaml:"render_exec_path"`
	RenderTimeout  time.Duration `yaml:"render_timeout"`

	ChunkMaxLength      int      `yaml:"chunk_max_length"`
	ChunkMinSize        int      `yaml:"chunk_min_size"`
	BoilerplatePatterns []string `yaml:"boilerplate_patterns"`

	RankBatchSize       int                    `yaml:"rank_batch_size"`
	SemanticWeight      float64                `yaml:"semantic_weight"`
	KeywordWeight       float64                `yaml:"keyword_weight"`
	SummaryTopN         int                    `yaml:"summary_top_n"`
	MegaContextLength   int                    `yaml:"mega_context_length"`
	FullContextArticles int                    `yaml:"full_context_articles"`
	MaxSources          int                    `yaml:"max_sources"`
	AnswerTemperature   float64                `yaml:"answer_temperature"`
	AnswerMaxTokens     int                    `yaml:"answer_max_tokens"`
	SafetySettings      []domain.SafetySetting `yaml:"safety_settings"`

	HistoryWindow  int      `yaml:"history_window"`
	TopicStopWords []string `yaml:"topic_stop_words"`

	CORSOrigin     string  `yaml:"cors_origin"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	MaxInFlight    int     `yaml:"max_in_flight"`

	RetryMaxAttempts    int           `yaml:"retry_max_attempts"`
	RetryInitialBackoff time.Duration `yaml:"retry_initial_backoff"`
	BreakerEnabled      bool          `yaml:"breaker_enabled"`
}

func Defaults() Config {
	return Config{
		APIPort:  "10000",
		LogLevel: "info",

		Domain:             "medical",
		DomainCheckEnabled: true,

		LLMProvider:   "gemini",
		GenerationRPM: 15,

		GeminiBaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		GeminiGenModel:   "gemini-2.0-flash",
		GeminiEmbedModel: "text-embedding-004",

		OllamaURL:        "http://localhost:11434",
		OllamaGenModel:   "llama3.1:8b",
		OllamaEmbedModel: "nomic-embed-text",

		OpenAIChatModel:  "gpt-4o-mini",
		OpenAIEmbedModel: "text-embedding-3-small",

		SearchProvider:   "googlecse",
		SerperURL:        "https://google.serper.dev",
		MaxSearchResults: 5,

		CacheBackend: "memory",
		CacheTTL:     time.Hour,
		RedisAddr:    "localhost:6379",

		FetchTimeout:   5 * time.Second,
		FetchMaxChars:  10000,
		RenderEnabled:  true,
		RenderExecPath: "",
		RenderTimeout:  30 * time.Second,

		ChunkMaxLength: 3000,
		ChunkMinSize:   500,

		RankBatchSize:       12,
		SemanticWeight:      0.7,
		KeywordWeight:       0.3,
		SummaryTopN:         10,
		MegaContextLength:   3000,
		FullContextArticles: 3,
		MaxSources:          3,
		AnswerTemperature:   0.3,
		AnswerMaxTokens:     1024,
		SafetySettings: []domain.SafetySetting{
			{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
		},

		HistoryWindow: 5,

		CORSOrigin:     "*",
		RateLimitRPS:   5,
		RateLimitBurst: 10,
		MaxInFlight:    32,

		RetryMaxAttempts:    3,
		RetryInitialBackoff: 500 * time.Millisecond,
		BreakerEnabled:      true,
	}
}

// Load starts from Defaults, applies the YAML file named by CONFIG_FILE when
// set, then environment overrides.
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.APIPort = mustEnv("PORT", mustEnv("API_PORT", cfg.APIPort))
	cfg.LogLevel = mustEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.Domain = mustEnv("ASSISTANT_DOMAIN", cfg.Domain)
	cfg.DomainCheckEnabled = mustEnvBool("DOMAIN_CHECK_ENABLED", cfg.DomainCheckEnabled)
	cfg.RefusalMessage = mustEnv("REFUSAL_MESSAGE", cfg.RefusalMessage)
	cfg.MarkdownAnswer = mustEnvBool("MARKDOWN_ANSWER", cfg.MarkdownAnswer)

	cfg.LLMProvider = strings.ToLower(mustEnv("LLM_PROVIDER", cfg.LLMProvider))
	cfg.GenerationRPM = mustEnvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", cfg.GenerationRPM)

	cfg.GeminiAPIKey = mustEnv("GOOGLE_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiBaseURL = mustEnv("GEMINI_BASE_URL", cfg.GeminiBaseURL)
	cfg.GeminiGenModel = mustEnv("GEMINI_GEN_MODEL", cfg.GeminiGenModel)
	cfg.GeminiEmbedModel = mustEnv("GEMINI_EMBED_MODEL", cfg.GeminiEmbedModel)

	cfg.OllamaURL = mustEnv("OLLAMA_URL", cfg.OllamaURL)
	cfg.OllamaGenModel = mustEnv("OLLAMA_GEN_MODEL", cfg.OllamaGenModel)
	cfg.OllamaEmbedModel = mustEnv("OLLAMA_EMBED_MODEL", cfg.OllamaEmbedModel)

	cfg.OpenAIAPIKey = mustEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = mustEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIChatModel = mustEnv("OPENAI_CHAT_MODEL", cfg.OpenAIChatModel)
	cfg.OpenAIEmbedModel = mustEnv("OPENAI_EMBED_MODEL", cfg.OpenAIEmbedModel)

	cfg.SearchProvider = strings.ToLower(mustEnv("SEARCH_PROVIDER", cfg.SearchProvider))
	cfg.GoogleAPIKey = mustEnv("GOOGLE_CUSTOM_SEARCH_API_KEY", cfg.GoogleAPIKey)
	cfg.GoogleCSEID = mustEnv("GOOGLE_CUSTOM_SEARCH_ENGINE_ID", cfg.GoogleCSEID)
	cfg.SerperAPIKey = mustEnv("SERPER_API_KEY", cfg.SerperAPIKey)
	cfg.SerperURL = mustEnv("SERPER_URL", cfg.SerperURL)
	cfg.MaxSearchResults = mustEnvInt("MAX_SEARCH_RESULTS", cfg.MaxSearchResults)

	cfg.CacheBackend = strings.ToLower(mustEnv("CACHE_BACKEND", cfg.CacheBackend))
	cfg.CacheTTL = mustEnvDuration("CACHE_TTL", cfg.CacheTTL)
	cfg.RedisAddr = mustEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = mustEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = mustEnvInt("REDIS_DB", cfg.RedisDB)

	cfg.FetchTimeout = mustEnvDuration("FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.FetchMaxChars = mustEnvInt("FETCH_MAX_CHARS", cfg.FetchMaxChars)
	cfg.UserAgent = mustEnv("FETCH_USER_AGENT", cfg.UserAgent)
	cfg.RenderEnabled = mustEnvBool("RENDER_ENABLED", cfg.RenderEnabled)
	cfg.RenderExecPath = mustEnv("PUPPETEER_EXECUTABLE_PATH", mustEnv("RENDER_EXEC_PATH", cfg.RenderExecPath))
	cfg.RenderTimeout = mustEnvDuration("RENDER_TIMEOUT", cfg.RenderTimeout)

	cfg.ChunkMaxLength = mustEnvInt("CHUNK_MAX_LENGTH", cfg.ChunkMaxLength)
	cfg.ChunkMinSize = mustEnvInt("CHUNK_MIN_SIZE", cfg.ChunkMinSize)

	cfg.RankBatchSize = mustEnvInt("RANK_BATCH_SIZE", cfg.RankBatchSize)
	cfg.SemanticWeight = mustEnvFloat("RANK_SEMANTIC_WEIGHT", cfg.SemanticWeight)
	cfg.KeywordWeight = mustEnvFloat("RANK_KEYWORD_WEIGHT", cfg.KeywordWeight)
	cfg.SummaryTopN = mustEnvInt("SUMMARY_TOP_N", cfg.SummaryTopN)
	cfg.MegaContextLength = mustEnvInt("MEGA_CONTEXT_LENGTH", cfg.MegaContextLength)
	cfg.FullContextArticles = mustEnvInt("FULL_CONTEXT_ARTICLES", cfg.FullContextArticles)
	cfg.MaxSources = mustEnvInt("MAX_SOURCES", cfg.MaxSources)
	cfg.AnswerTemperature = mustEnvFloat("ANSWER_TEMPERATURE", cfg.AnswerTemperature)
	cfg.AnswerMaxTokens = mustEnvInt("ANSWER_MAX_TOKENS", cfg.AnswerMaxTokens)

	cfg.HistoryWindow = mustEnvInt("HISTORY_WINDOW", cfg.HistoryWindow)
	cfg.TopicStopWords = mustEnvList("TOPIC_STOP_WORDS", cfg.TopicStopWords)

	cfg.CORSOrigin = mustEnv("CORS_ORIGIN", cfg.CORSOrigin)
	cfg.RateLimitRPS = mustEnvFloat("API_RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = mustEnvInt("API_RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.MaxInFlight = mustEnvInt("API_MAX_IN_FLIGHT", cfg.MaxInFlight)

	cfg.RetryMaxAttempts = mustEnvInt("RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempts)
	cfg.RetryInitialBackoff = mustEnvDuration("RETRY_INITIAL_BACKOFF", cfg.RetryInitialBackoff)
	cfg.BreakerEnabled = mustEnvBool("CIRCUIT_BREAKER_ENABLED", cfg.BreakerEnabled)
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case "gemini", "ollama", "openai":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.SearchProvider {
	case "googlecse", "serper":
	default:
		return fmt.Errorf("unsupported SEARCH_PROVIDER %q", c.SearchProvider)
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.ChunkMinSize > c.ChunkMaxLength {
		return fmt.Errorf("CHUNK_MIN_SIZE %d exceeds CHUNK_MAX_LENGTH %d", c.ChunkMinSize, c.ChunkMaxLength)
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("90s") or bare milliseconds.
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	out := make([]string, 0, 8)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
