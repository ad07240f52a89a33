package usecase

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
)

const (
	defaultSummaryTopN       = 10
	defaultMegaContextLength = 3000
	fallbackSentences        = 3
)

// Condenser summarizes the best chunks and packs the summaries into a
// bounded mega-context.
type Condenser struct {
	generator ports.TextGenerator
	prompts   Prompts
	safety    []domain.SafetySetting
}

func NewCondenser(generator ports.TextGenerator, prompts Prompts, safety []domain.SafetySetting) *Condenser {
	return &Condenser{generator: generator, prompts: prompts, safety: safety}
}

// Condense summarizes the top topN chunks in order. Summaries are joined
// until the next one would push the text past maxLength runes, so an
// oversized first summary leaves the text empty.
func (c *Condenser) Condense(ctx context.Context, scored []domain.ScoredChunk, topN, maxLength int) domain.MegaContext {
	if topN <= 0 {
		topN = defaultSummaryTopN
	}
	if maxLength <= 0 {
		maxLength = defaultMegaContextLength
	}
	mega := domain.MegaContext{Capacity: maxLength}
	if len(scored) == 0 {
		return mega
	}

	top := scored[:min(topN, len(scored))]
	summaries := make([]domain.Summary, 0, len(top))
	for i := range top {
		summary := c.summarize(ctx, top[i].Chunk)
		if strings.TrimSpace(summary.Text) == "" {
			continue
		}
		summaries = append(summaries, summary)
	}
	mega.Summaries = summaries

	var b strings.Builder
	length := 0
	for _, summary := range summaries {
		n := utf8.RuneCountInString(summary.Text)
		sep := 0
		if length > 0 {
			sep = 1
		}
		if length+sep+n > maxLength {
			break
		}
		if sep > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(summary.Text)
		length += sep + n
		mega.SummariesUsed++
	}
	mega.Text = b.String()

	slog.Info("mega_context_built",
		"summaries", len(summaries),
		"summaries_used", mega.SummariesUsed,
		"length", length,
		"capacity", maxLength,
	)
	return mega
}

func (c *Condenser) summarize(ctx context.Context, chunk domain.Chunk) domain.Summary {
	source := chunk
	if c.generator == nil {
		return domain.Summary{
			Text:        firstSentences(chunk.Text, fallbackSentences),
			SourceChunk: &source,
			Outcome:     domain.Degraded("generator not configured", nil),
		}
	}

	text, err := c.generator.Generate(ctx, c.prompts.Summary(chunk.Text), domain.GenerateOptions{
		Temperature:     0.3,
		TopK:            1,
		TopP:            1,
		MaxOutputTokens: 256,
		SafetySettings:  c.safety,
	})
	if err != nil {
		slog.Warn("summary_fallback", "chunk_index", chunk.Index, "error", err)
		return domain.Summary{
			Text:        firstSentences(chunk.Text, fallbackSentences),
			SourceChunk: &source,
			Outcome:     domain.Degraded("summary generation failed, chunk truncated", err),
		}
	}
	return domain.Summary{
		Text:        strings.TrimSpace(text),
		SourceChunk: &source,
		Outcome:     domain.OK(),
	}
}

// firstSentences keeps the first n ". "-separated sentences of text.
func firstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	parts := strings.SplitN(text, ". ", n+1)
	if len(parts) > n {
		parts = parts[:n]
	}
	out := strings.TrimRight(strings.Join(parts, ". "), ".")
	return out + "."
}
