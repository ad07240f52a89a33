package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
)

// RelevanceGate asks the generator whether a mega-context can answer a query.
type RelevanceGate struct {
	generator ports.TextGenerator
	prompts   Prompts
	safety    []domain.SafetySetting
}

func NewRelevanceGate(generator ports.TextGenerator, prompts Prompts, safety []domain.SafetySetting) *RelevanceGate {
	return &RelevanceGate{generator: generator, prompts: prompts, safety: safety}
}

// IsRelevant is false unless the generator answers YES.
func (g *RelevanceGate) IsRelevant(ctx context.Context, query, megaContext string) domain.GateResult {
	if strings.TrimSpace(query) == "" || strings.TrimSpace(megaContext) == "" {
		return domain.GateResult{Relevant: false, Outcome: domain.Degraded("empty query or context", nil)}
	}
	if g.generator == nil {
		return domain.GateResult{Relevant: false, Outcome: domain.Degraded("generator not configured", nil)}
	}

	raw, err := g.generator.Generate(ctx, g.prompts.Relevance(query, megaContext), domain.GenerateOptions{
		Temperature:     0.1,
		TopK:            1,
		TopP:            1,
		MaxOutputTokens: 1,
		SafetySettings:  g.safety,
	})
	if err != nil {
		slog.Warn("relevance_check_failed", "error", err)
		return domain.GateResult{Relevant: false, Outcome: domain.Degraded("relevance check failed", err)}
	}

	switch verdict := firstWordUpper(raw); verdict {
	case "YES":
		return domain.GateResult{Relevant: true, Outcome: domain.OK()}
	case "NO":
		return domain.GateResult{Relevant: false, Outcome: domain.OK()}
	default:
		slog.Warn("relevance_check_malformed", "response", raw)
		return domain.GateResult{
			Relevant: false,
			Outcome:  domain.Degraded("malformed relevance response", fmt.Errorf("unexpected verdict %q", raw)),
		}
	}
}

// firstWordUpper returns the first word of s, upper-cased, without punctuation.
func firstWordUpper(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	word := strings.TrimFunc(fields[0], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.ToUpper(word)
}
