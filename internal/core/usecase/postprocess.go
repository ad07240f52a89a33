package usecase

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
)

const (
	NoAnswerMessage      = "No specific answer found in the articles. Please try rephrasing your question."
	fallbackConfidence   = 0.5
	maxFallbackSentences = 5
	minAnswerLength      = 5
)

var sentenceBreak = regexp.MustCompile(`[.!?]+`)

// finalizeAnswer replaces empty or "no answer" replies with article sentences
// sharing a word with the query, then with a fixed message.
func finalizeAnswer(answer string, confidence float64, articles []domain.Article, query string) (string, float64, bool) {
	answer = strings.TrimSpace(answer)
	replaced := false

	if answer == "" || strings.Contains(strings.ToLower(answer), "no answer") {
		if sentences := relevantSentences(articles, query, maxFallbackSentences); len(sentences) > 0 {
			answer = strings.Join(sentences, ". ") + "."
			confidence = fallbackConfidence
			replaced = true
		}
	}
	if len([]rune(answer)) < minAnswerLength {
		return NoAnswerMessage, 0, true
	}
	return answer, confidence, replaced
}

func relevantSentences(articles []domain.Article, query string, limit int) []string {
	queryTokens := toTokenSet(query)
	if len(queryTokens) == 0 {
		return nil
	}

	out := make([]string, 0, limit)
	for _, article := range articles {
		for _, sentence := range sentenceBreak.Split(article.Content, -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			if tokenOverlap(queryTokens, toTokenSet(sentence)) > 0 {
				out = append(out, sentence)
				if len(out) >= limit {
					return out
				}
			}
		}
	}
	return out
}

func formatMarkdown(query, answer string, confidence float64) string {
	return fmt.Sprintf("**Question:** %s\n\n**Answer:**  \n%s\n\n**Confidence Score:** %d%%",
		query, answer, int(math.Round(confidence*100)))
}

func sourcesOf(articles []domain.Article, limit int) []domain.Source {
	n := min(limit, len(articles))
	out := make([]domain.Source, 0, n)
	for _, a := range articles[:n] {
		out = append(out, domain.Source{Title: a.Title, Link: a.Link})
	}
	return out
}
