package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
)

const (
	defaultFullContextArticles = 3
	defaultMaxSources          = 3
	defaultAnswerTemperature   = 0.3
	defaultAnswerMaxTokens     = 1024
)

// AnswerPipelineDeps wires the pipeline stages. Classifier and Tracker are
// optional; a nil Classifier skips the domain check.
type AnswerPipelineDeps struct {
	Classifier *DomainClassifier
	Tracker    *ConversationTracker
	Acquirer   *Acquirer
	Chunker    ports.Chunker
	Ranker     *Ranker
	Condenser  *Condenser
	Gate       *RelevanceGate
	Generator  ports.TextGenerator
	Confidence *ConfidenceEstimator
	Observer   ports.PipelineObserver
	Prompts    Prompts
	Refusal    string
}

// AnswerPipeline answers a question from freshly retrieved web content.
type AnswerPipeline struct {
	deps   AnswerPipelineDeps
	limits domain.PipelineLimits
	now    func() time.Time
}

func NewAnswerPipeline(deps AnswerPipelineDeps, limits domain.PipelineLimits) *AnswerPipeline {
	if deps.Observer == nil {
		deps.Observer = ports.NopObserver{}
	}
	if strings.TrimSpace(deps.Refusal) == "" {
		deps.Refusal = DefaultRefusal(deps.Prompts.Domain)
	}
	if limits.FullContextArticles <= 0 {
		limits.FullContextArticles = defaultFullContextArticles
	}
	if limits.MaxSources <= 0 {
		limits.MaxSources = defaultMaxSources
	}
	if limits.SummaryTopN <= 0 {
		limits.SummaryTopN = defaultSummaryTopN
	}
	if limits.MegaContextLength <= 0 {
		limits.MegaContextLength = defaultMegaContextLength
	}
	if limits.AnswerTemperature <= 0 {
		limits.AnswerTemperature = defaultAnswerTemperature
	}
	if limits.AnswerMaxTokens <= 0 {
		limits.AnswerMaxTokens = defaultAnswerMaxTokens
	}
	return &AnswerPipeline{deps: deps, limits: limits, now: time.Now}
}

// DefaultRefusal is the reply to out-of-domain questions.
func DefaultRefusal(domainLabel string) string {
	d := strings.TrimSpace(domainLabel)
	if d == "" {
		return "I'm sorry, but your query is outside what I can answer. Please ask a different question."
	}
	return fmt.Sprintf("I'm sorry, but I'm a %s assistant. Your query doesn't appear to be %s in nature. Please ask a %s question.", d, d, d)
}

type degradations struct {
	observer ports.PipelineObserver
	items    []domain.Degradation
}

func (d *degradations) record(stage string, outcome domain.Outcome) {
	if !outcome.IsDegraded() {
		return
	}
	d.items = append(d.items, domain.Degradation{Stage: stage, Reason: outcome.Reason})
	d.observer.ObserveDegradation(stage, outcome.Reason)
}

func (p *AnswerPipeline) Answer(ctx context.Context, query domain.Query) (*domain.Response, error) {
	started := p.now()
	question := strings.TrimSpace(query.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer query", fmt.Errorf("question is required"))
	}
	locale := strings.TrimSpace(query.Location)
	degraded := &degradations{observer: p.deps.Observer}

	if p.deps.Classifier != nil {
		inDomain, outcome := p.deps.Classifier.InDomain(ctx, question)
		degraded.record("domain_check", outcome)
		if !inDomain {
			p.finish("out_of_domain", started)
			return &domain.Response{
				Question:   question,
				Answer:     p.deps.Refusal,
				Confidence: 1,
				Sources:    []domain.Source{},
				Metadata: domain.ResponseMetadata{
					ConfidenceScore:  1,
					ProcessingTimeMS: p.elapsed(started),
					Degradations:     degraded.items,
				},
			}, nil
		}
	}

	searchQuery := question
	if p.deps.Tracker != nil {
		searchQuery = p.deps.Tracker.Enrich(ctx, query.SessionID, question)
	}

	acquired := p.deps.Acquirer.Acquire(ctx, searchQuery, locale)
	degraded.record("acquisition", acquired.Outcome)
	articles := acquired.Articles
	p.deps.Observer.ObserveArticles(len(articles))
	if len(articles) == 0 {
		p.finish("no_content", started)
		return nil, domain.WrapError(domain.ErrNoRelevantContent, "answer query", fmt.Errorf("no articles for %q", searchQuery))
	}

	fullContext := joinContents(articles, p.limits.FullContextArticles)
	chunks := p.chunk(articles)

	ranked := p.deps.Ranker.Score(ctx, chunks, searchQuery)
	degraded.record("ranking", ranked.Outcome)

	mega := p.deps.Condenser.Condense(ctx, ranked.Chunks, p.limits.SummaryTopN, p.limits.MegaContextLength)
	for _, summary := range mega.Summaries {
		degraded.record("condensing", summary.Outcome)
	}

	gate := p.deps.Gate.IsRelevant(ctx, question, mega.Text)
	degraded.record("relevance_gate", gate.Outcome)

	contextText := fullContext
	if gate.Relevant {
		contextText = mega.Text
	}

	answer, err := p.deps.Generator.Generate(ctx, p.deps.Prompts.Answer(question, contextText), domain.GenerateOptions{
		Temperature:     p.limits.AnswerTemperature,
		TopK:            1,
		TopP:            1,
		MaxOutputTokens: p.limits.AnswerMaxTokens,
		SafetySettings:  p.limits.SafetySettings,
	})
	if err != nil {
		p.finish("failed", started)
		return nil, domain.WrapError(domain.ErrGeneration, "generate answer", err)
	}

	confidence := p.deps.Confidence.Estimate(ctx, question, contextText, answer)
	degraded.record("confidence", confidence.Outcome)

	finalAnswer, finalConfidence, replaced := finalizeAnswer(answer, confidence.Score, articles, question)
	if replaced {
		degraded.record("postprocess", domain.Degraded("model answer replaced by fallback", nil))
	}
	if p.limits.MarkdownAnswer {
		finalAnswer = formatMarkdown(question, finalAnswer, finalConfidence)
	}

	meta := domain.ResponseMetadata{
		UsedFullContext:  !gate.Relevant,
		ContextLength:    utf8.RuneCountInString(contextText),
		ConfidenceScore:  finalConfidence,
		RelevanceCheck:   gate.Relevant,
		ProcessingTimeMS: p.elapsed(started),
		Degradations:     degraded.items,
	}
	if searchQuery != question {
		meta.EnrichedQuery = searchQuery
	}

	status := "ok"
	if len(degraded.items) > 0 {
		status = "degraded"
	}
	p.deps.Observer.ObserveConfidence(finalConfidence)
	p.finish(status, started)
	slog.Info("query_answered",
		"articles", len(articles),
		"chunks", len(chunks),
		"used_full_context", meta.UsedFullContext,
		"confidence", finalConfidence,
		"degradations", len(degraded.items),
		"duration_ms", meta.ProcessingTimeMS,
	)

	return &domain.Response{
		Question:   question,
		Answer:     finalAnswer,
		Confidence: finalConfidence,
		Sources:    sourcesOf(articles, p.limits.MaxSources),
		Metadata:   meta,
	}, nil
}

// chunk cleans and splits every article, numbering chunks globally.
func (p *AnswerPipeline) chunk(articles []domain.Article) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(articles)*4)
	for i, article := range articles {
		clean := p.deps.Chunker.Preprocess(article.Content)
		for _, text := range p.deps.Chunker.Split(clean) {
			chunks = append(chunks, domain.Chunk{
				Text:         text,
				Length:       utf8.RuneCountInString(text),
				Index:        len(chunks),
				ArticleIndex: i,
			})
		}
	}
	return chunks
}

func (p *AnswerPipeline) finish(status string, started time.Time) {
	p.deps.Observer.ObserveQuery(status, p.now().Sub(started))
}

func (p *AnswerPipeline) elapsed(started time.Time) int64 {
	return p.now().Sub(started).Milliseconds()
}

func joinContents(articles []domain.Article, limit int) string {
	n := min(limit, len(articles))
	parts := make([]string, 0, n)
	for _, a := range articles[:n] {
		parts = append(parts, a.Content)
	}
	return strings.Join(parts, " ")
}
