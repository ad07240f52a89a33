package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
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

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed", nil); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, domain.WrapError(domain.ErrEmbeddingMalformed, "ollama embed",
			fmt.Errorf("got %d vectors for %d inputs", len(response.Embeddings), len(texts)))
	}
	return response.Embeddings, nil
}

type Generator struct {
	client  *Client
	limiter ports.RateLimiter
}

// NewGenerator builds a generator. limiter may be nil for unthrottled use.
func NewGenerator(client *Client, limiter ports.RateLimiter) *Generator {
	return &Generator{client: client, limiter: limiter}
}

func (g *Generator) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	reqBody := map[string]any{
		"model":   g.client.genModel,
		"prompt":  prompt,
		"stream":  false,
		"options": generationOptions(opts),
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := g.client.postJSON(ctx, "/api/generate", reqBody, &response, "generate", g.limiter); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// generationOptions maps options onto Ollama's names; safety settings have no equivalent.
func generationOptions(opts domain.GenerateOptions) map[string]any {
	out := map[string]any{
		"temperature": opts.Temperature,
	}
	if opts.TopK > 0 {
		out["top_k"] = opts.TopK
	}
	if opts.TopP > 0 {
		out["top_p"] = opts.TopP
	}
	if opts.MaxOutputTokens > 0 {
		out["num_predict"] = opts.MaxOutputTokens
	}
	return out
}
