package gemini

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

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGenModel   = "gemini-2.0-flash"
	DefaultEmbedModel = "text-embedding-004"
)

// Client talks to the Gemini REST API.
type Client struct {
	apiKey     string
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(apiKey, baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(genModel) == "" {
		genModel = DefaultGenModel
	}
	if strings.TrimSpace(embedModel) == "" {
		embedModel = DefaultEmbedModel
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   strings.TrimPrefix(genModel, "models/"),
		embedModel: strings.TrimPrefix(embedModel, "models/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content              `json:"contents"`
	GenerationConfig generationConfig       `json:"generationConfig"`
	SafetySettings   []domain.SafetySetting `json:"safetySettings,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
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
	if g.client.apiKey == "" {
		return "", domain.WrapError(domain.ErrUnauthorized, "gemini generate", fmt.Errorf("api key is not configured"))
	}

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     opts.Temperature,
			TopK:            opts.TopK,
			TopP:            opts.TopP,
			MaxOutputTokens: opts.MaxOutputTokens,
		},
		SafetySettings: opts.SafetySettings,
	}

	var resp generateResponse
	path := "/models/" + g.client.genModel + ":generateContent"
	if err := g.client.postJSON(ctx, path, req, &resp, "generate", g.limiter); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		reason := resp.PromptFeedback.BlockReason
		if reason == "" {
			reason = "no candidates"
		}
		return "", domain.WrapError(domain.ErrGeneration, "gemini generate", fmt.Errorf("empty response: %s", reason))
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), nil
}

type embedRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
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
	if e.client.apiKey == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "gemini embed", fmt.Errorf("api key is not configured"))
	}

	model := "models/" + e.client.embedModel
	req := batchEmbedRequest{Requests: make([]embedRequest, 0, len(texts))}
	for _, text := range texts {
		req.Requests = append(req.Requests, embedRequest{
			Model:   model,
			Content: content{Parts: []part{{Text: text}}},
		})
	}

	var resp batchEmbedResponse
	if err := e.client.postJSON(ctx, "/"+model+":batchEmbedContents", req, &resp, "embed", nil); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, domain.WrapError(domain.ErrEmbeddingMalformed, "gemini embed",
			fmt.Errorf("got %d vectors for %d inputs", len(resp.Embeddings), len(texts)))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
