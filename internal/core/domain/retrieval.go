package domain

// Chunk is a sentence-aligned slice of one article's cleaned text.
type Chunk struct {
	Text         string `json:"text"`
	Length       int    `json:"length"`
	Index        int    `json:"index"`
	ArticleIndex int    `json:"article_index"`
}

type ScoredChunk struct {
	Chunk         Chunk   `json:"chunk"`
	Score         float64 `json:"score"`
	SemanticScore float64 `json:"semantic_score"`
	KeywordScore  float64 `json:"keyword_score"`
}

type RankResult struct {
	Chunks  []ScoredChunk `json:"chunks"`
	Outcome Outcome       `json:"outcome"`
}

type Summary struct {
	Text        string  `json:"text"`
	SourceChunk *Chunk  `json:"source_chunk,omitempty"`
	Outcome     Outcome `json:"outcome"`
}

// MegaContext is the bounded concatenation of top-chunk summaries.
type MegaContext struct {
	Text          string    `json:"text"`
	SummariesUsed int       `json:"summaries_used"`
	Capacity      int       `json:"capacity"`
	Summaries     []Summary `json:"-"`
}

type GateResult struct {
	Relevant bool    `json:"relevant"`
	Outcome  Outcome `json:"outcome"`
}

type ConfidenceResult struct {
	Score   float64 `json:"score"`
	Outcome Outcome `json:"outcome"`
}
