package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func feverVector(text string) []float32 {
	if strings.Contains(strings.ToLower(text), "fever") {
		return []float32{1, 0}
	}
	return []float32{0, 1}
}

func TestRankerScoresRelevantChunkFirst(t *testing.T) {
	ranker := NewRanker(&embedderFake{vector: feverVector}, RankerConfig{})
	result := ranker.Score(context.Background(), chunksOf(
		"Stock prices rose today.",
		"A fever usually passes in three days.",
		"The weather is mild.",
	), "fever")

	if result.Outcome.IsDegraded() {
		t.Fatalf("unexpected degraded outcome: %+v", result.Outcome)
	}
	if len(result.Chunks) != 3 {
		t.Fatalf("expected 3 scored chunks, got %d", len(result.Chunks))
	}
	top := result.Chunks[0]
	if top.Chunk.Index != 1 {
		t.Fatalf("expected fever chunk first, got index %d", top.Chunk.Index)
	}
	if top.Score < 0.999 || top.SemanticScore < 0.999 || top.KeywordScore != 1 {
		t.Fatalf("unexpected top scores: %+v", top)
	}
	for i := 1; i < len(result.Chunks); i++ {
		if result.Chunks[i-1].Score < result.Chunks[i].Score {
			t.Fatalf("scores not descending at %d", i)
		}
	}
}

func TestRankerWeightsSemanticAndKeyword(t *testing.T) {
	embedder := &embedderFake{vector: func(text string) []float32 {
		if text == "fever care" {
			return []float32{1, 0}
		}
		return []float32{0, 1}
	}}
	ranker := NewRanker(embedder, RankerConfig{})
	result := ranker.Score(context.Background(), chunksOf("care at home"), "fever care")

	got := result.Chunks[0]
	if got.SemanticScore != 0 {
		t.Fatalf("expected orthogonal semantic score 0, got %v", got.SemanticScore)
	}
	if got.KeywordScore != 0.5 {
		t.Fatalf("expected keyword score 0.5, got %v", got.KeywordScore)
	}
	if diff := got.Score - 0.15; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected 0.3 * 0.5 = 0.15, got %v", got.Score)
	}
}

func TestRankerEmbedsInBatchesOfTwelve(t *testing.T) {
	texts := make([]string, 25)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk number %d.", i)
	}
	embedder := &embedderFake{}
	NewRanker(embedder, RankerConfig{}).Score(context.Background(), chunksOf(texts...), "chunk")

	want := []int{1, 12, 12, 1}
	if len(embedder.batches) != len(want) {
		t.Fatalf("expected embed calls %v, got %v", want, embedder.batches)
	}
	for i := range want {
		if embedder.batches[i] != want[i] {
			t.Fatalf("expected embed calls %v, got %v", want, embedder.batches)
		}
	}
}

func TestRankerFallsBackToKeywordScores(t *testing.T) {
	ranker := NewRanker(&embedderFake{err: errors.New("quota exceeded")}, RankerConfig{})
	result := ranker.Score(context.Background(), chunksOf(
		"nothing relevant here",
		"fever and chills",
	), "fever chills")

	if !result.Outcome.IsDegraded() {
		t.Fatalf("expected degraded outcome")
	}
	if result.Chunks[0].Chunk.Index != 1 {
		t.Fatalf("expected keyword match first, got index %d", result.Chunks[0].Chunk.Index)
	}
	for _, c := range result.Chunks {
		if c.SemanticScore != 0 || c.Score != c.KeywordScore {
			t.Fatalf("expected keyword-only score, got %+v", c)
		}
	}
}

func TestRankerKeepsInputOrderOnTies(t *testing.T) {
	ranker := NewRanker(&embedderFake{}, RankerConfig{})
	result := ranker.Score(context.Background(), chunksOf("alpha", "beta", "gamma"), "delta")
	for i, c := range result.Chunks {
		if c.Chunk.Index != i {
			t.Fatalf("expected stable order, got index %d at %d", c.Chunk.Index, i)
		}
		if c.Score < 0 || c.Score > 1 {
			t.Fatalf("score out of range: %v", c.Score)
		}
	}
}

func TestRankerEmptyInput(t *testing.T) {
	embedder := &embedderFake{}
	result := NewRanker(embedder, RankerConfig{}).Score(context.Background(), nil, "fever")
	if len(result.Chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(result.Chunks))
	}
	if embedder.calls() != 0 {
		t.Fatalf("expected no embed calls, got %d", embedder.calls())
	}
}
