package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/resilience"
)

const (
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = goopenai.SmallEmbedding3
)

// Client wraps go-openai with the shared retry and breaker executor.
type Client struct {
	api            *goopenai.Client
	chatModel      string
	embeddingModel goopenai.EmbeddingModel
	executor       *resilience.Executor
}

func New(apiKey, baseURL, chatModel, embeddingModel string, executor *resilience.Executor) *Client {
	cfg := goopenai.DefaultConfig(strings.TrimSpace(apiKey))
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if strings.TrimSpace(chatModel) == "" {
		chatModel = DefaultChatModel
	}
	model := DefaultEmbeddingModel
	if strings.TrimSpace(embeddingModel) != "" {
		model = goopenai.EmbeddingModel(embeddingModel)
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		api:            goopenai.NewClientWithConfig(cfg),
		chatModel:      chatModel,
		embeddingModel: model,
		executor:       executor,
	}
}

type Generator struct {
	client  *Client
	limiter ports.RateLimiter
}

// NewGenerator builds a generator. limiter may be nil for unthrottled use.
func NewGenerator(client *Client, limiter ports.RateLimiter) *Generator {
	return &Generator{client: client, limiter: limiter}
}

// Generate sends the prompt as one user message. TopK and safety settings
// have no chat-completions equivalent and are ignored.
func (g *Generator) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: g.client.chatModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
		MaxTokens:   opts.MaxOutputTokens,
	}

	var resp goopenai.ChatCompletionResponse
	attempt := func(ctx context.Context) error {
		out, err := g.client.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		resp = out
		return nil
	}
	err := g.client.executor.Execute(ctx, "openai_generate", resilience.Throttled(g.limiter, "openai generate", attempt), classify)
	if err != nil {
		return "", wrapTemporaryIfNeeded("openai generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrGeneration, "openai generate", fmt.Errorf("no choices returned"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := goopenai.EmbeddingRequestStrings{
		Input: texts,
		Model: e.client.embeddingModel,
	}
	resp, err := resilience.Do(ctx, e.client.executor, "openai_embed", func(ctx context.Context) (goopenai.EmbeddingResponse, error) {
		return e.client.api.CreateEmbeddings(ctx, req)
	}, classify)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("openai embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.WrapError(domain.ErrEmbeddingMalformed, "openai embed",
			fmt.Errorf("got %d vectors for %d inputs", len(resp.Data), len(texts)))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, item := range data {
		out[i] = item.Embedding
	}
	return out, nil
}

// classify maps go-openai errors onto the shared HTTP classification.
func classify(err error) resilience.ErrorClassification {
	if status, ok := statusCode(err); ok {
		return resilience.ClassifyHTTP(&resilience.HTTPStatusError{Service: "openai", StatusCode: status})
	}
	return resilience.ClassifyHTTP(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if status, ok := statusCode(err); ok {
		if status == 401 || status == 403 {
			return domain.WrapError(domain.ErrUnauthorized, operation, err)
		}
		if resilience.IsRetryableHTTPStatus(status) {
			return domain.WrapError(domain.ErrTemporary, operation, err)
		}
		return err
	}
	return resilience.WrapTemporaryIfNeeded(operation, err)
}

func statusCode(err error) (int, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}
