package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
)

// DomainClassifier decides whether a query belongs to the assistant's domain.
// It fails open: errors and unclear verdicts count as in-domain.
type DomainClassifier struct {
	generator ports.TextGenerator
	prompts   Prompts
}

func NewDomainClassifier(generator ports.TextGenerator, prompts Prompts) *DomainClassifier {
	return &DomainClassifier{generator: generator, prompts: prompts}
}

func (c *DomainClassifier) InDomain(ctx context.Context, query string) (bool, domain.Outcome) {
	raw, err := c.generator.Generate(ctx, c.prompts.DomainCheck(query), domain.GenerateOptions{
		Temperature:     0.1,
		MaxOutputTokens: 3,
	})
	if err != nil {
		slog.Warn("domain_check_failed", "error", err)
		return true, domain.Degraded("domain check failed, treated as in-domain", err)
	}

	switch verdict := strings.ToLower(firstWordUpper(raw)); verdict {
	case "yes":
		return true, domain.OK()
	case "no":
		return false, domain.OK()
	default:
		return true, domain.Degraded("unclear domain verdict, treated as in-domain", fmt.Errorf("unexpected verdict %q", raw))
	}
}
