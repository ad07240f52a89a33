package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
)

const (
	neutralConfidence = 0.5

	queryContextWeight  = 0.3
	answerContextWeight = 0.3
	queryAnswerWeight   = 0.4
)

// ConfidenceEstimator scores how well an answer is grounded in its context.
type ConfidenceEstimator struct {
	embedder ports.Embedder
}

func NewConfidenceEstimator(embedder ports.Embedder) *ConfidenceEstimator {
	return &ConfidenceEstimator{embedder: embedder}
}

// Estimate never fails. Embedding errors yield the neutral score.
func (e *ConfidenceEstimator) Estimate(ctx context.Context, query, contextText, answer string) domain.ConfidenceResult {
	contextTokens := toTokenSet(contextText)
	lexQuery := tokenOverlap(toTokenSet(query), contextTokens)
	lexAnswer := tokenOverlap(toTokenSet(answer), contextTokens)

	if strings.TrimSpace(query) == "" || strings.TrimSpace(answer) == "" {
		score := queryContextWeight*lexQuery + answerContextWeight*lexAnswer
		return domain.ConfidenceResult{Score: round2(clamp01(score)), Outcome: domain.OK()}
	}

	semantic, err := e.querySimilarity(ctx, query, answer)
	if err != nil {
		slog.Warn("confidence_neutral_fallback", "error", err)
		return domain.ConfidenceResult{
			Score:   neutralConfidence,
			Outcome: domain.Degraded("embedding unavailable, neutral confidence", err),
		}
	}

	score := queryContextWeight*lexQuery + answerContextWeight*lexAnswer + queryAnswerWeight*semantic
	return domain.ConfidenceResult{Score: round2(clamp01(score)), Outcome: domain.OK()}
}

func (e *ConfidenceEstimator) querySimilarity(ctx context.Context, query, answer string) (float64, error) {
	if e.embedder == nil {
		return 0, fmt.Errorf("embedder is not configured")
	}
	vectors, err := e.embedder.Embed(ctx, []string{query, answer})
	if err != nil {
		return 0, err
	}
	if len(vectors) != 2 {
		return 0, domain.WrapError(domain.ErrEmbeddingMalformed, "embed confidence inputs", fmt.Errorf("got %d vectors", len(vectors)))
	}
	return clamp01(cosine(vectors[0], vectors[1])), nil
}
