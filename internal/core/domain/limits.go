package domain

// PipelineLimits bounds the work done for one query.
type PipelineLimits struct {
	FullContextArticles int
	MaxSources          int
	SummaryTopN         int
	MegaContextLength   int
	AnswerTemperature   float64
	AnswerMaxTokens     int
	SafetySettings      []SafetySetting
	MarkdownAnswer      bool
}
