package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
)

const (
	defaultRankBatchSize  = 12
	defaultSemanticWeight = 0.7
	defaultKeywordWeight  = 0.3
)

type RankerConfig struct {
	BatchSize      int
	SemanticWeight float64
	KeywordWeight  float64
}

// Ranker scores chunks against a query with a weighted mix of embedding
// similarity and keyword overlap.
type Ranker struct {
	embedder ports.Embedder
	cfg      RankerConfig
}

func NewRanker(embedder ports.Embedder, cfg RankerConfig) *Ranker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultRankBatchSize
	}
	if cfg.SemanticWeight < 0 || cfg.KeywordWeight < 0 || cfg.SemanticWeight+cfg.KeywordWeight == 0 {
		cfg.SemanticWeight = defaultSemanticWeight
		cfg.KeywordWeight = defaultKeywordWeight
	}
	return &Ranker{embedder: embedder, cfg: cfg}
}

// Score returns chunks sorted by descending score; ties keep input order.
// Embedding failures fall back to keyword-only scores for every chunk.
func (r *Ranker) Score(ctx context.Context, chunks []domain.Chunk, query string) domain.RankResult {
	if len(chunks) == 0 {
		return domain.RankResult{Chunks: []domain.ScoredChunk{}, Outcome: domain.OK()}
	}

	queryTokens := toTokenSet(query)
	scored := make([]domain.ScoredChunk, len(chunks))
	for i, chunk := range chunks {
		scored[i] = domain.ScoredChunk{
			Chunk:        chunk,
			KeywordScore: tokenOverlap(queryTokens, toTokenSet(chunk.Text)),
		}
	}

	outcome := domain.OK()
	if err := r.semanticScores(ctx, scored, query); err != nil {
		slog.Warn("ranking_degraded", "chunks", len(chunks), "error", err)
		outcome = domain.Degraded("embedding unavailable, keyword scoring used", err)
		for i := range scored {
			scored[i].SemanticScore = 0
			scored[i].Score = clamp01(scored[i].KeywordScore)
		}
	} else {
		for i := range scored {
			scored[i].Score = clamp01(r.cfg.SemanticWeight*scored[i].SemanticScore + r.cfg.KeywordWeight*scored[i].KeywordScore)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return domain.RankResult{Chunks: scored, Outcome: outcome}
}

func (r *Ranker) semanticScores(ctx context.Context, scored []domain.ScoredChunk, query string) error {
	if r.embedder == nil {
		return fmt.Errorf("embedder is not configured")
	}

	queryVectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}
	if len(queryVectors) != 1 {
		return domain.WrapError(domain.ErrEmbeddingMalformed, "embed query", fmt.Errorf("got %d vectors", len(queryVectors)))
	}
	queryVector := queryVectors[0]

	for start := 0; start < len(scored); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(scored))
		batch := scored[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Chunk.Text
		}
		vectors, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return domain.WrapError(domain.ErrEmbeddingMalformed, "embed batch",
				fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(batch)))
		}

		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				batch[i].SemanticScore = clamp01(cosine(queryVector, vectors[i]))
			}()
		}
		wg.Wait()
	}
	return nil
}
