package domain

import "time"

type Query struct {
	Question  string `json:"question"`
	Location  string `json:"location"`
	SessionID string `json:"session_id,omitempty"`
}

type ResponseMetadata struct {
	UsedFullContext  bool          `json:"usedFullContext"`
	ContextLength    int           `json:"contextLength"`
	ConfidenceScore  float64       `json:"confidenceScore"`
	RelevanceCheck   bool          `json:"relevanceCheck"`
	EnrichedQuery    string        `json:"enrichedQuery,omitempty"`
	ProcessingTimeMS int64         `json:"processingTimeMs"`
	Degradations     []Degradation `json:"degradations,omitempty"`
}

type Response struct {
	Question   string           `json:"question"`
	Answer     string           `json:"answer"`
	Confidence float64          `json:"confidence"`
	Sources    []Source         `json:"sources"`
	Metadata   ResponseMetadata `json:"metadata"`
}

// GenerateOptions carries sampling parameters for one generation call.
type GenerateOptions struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
	SafetySettings  []SafetySetting
}

type SafetySetting struct {
	Category  string `json:"category" yaml:"category"`
	Threshold string `json:"threshold" yaml:"threshold"`
}

type HistoryEntry struct {
	Query     string    `json:"query"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationState is the topic continuity tracked for one session.
type ConversationState struct {
	CurrentTopic    string         `json:"current_topic"`
	LastQuery       string         `json:"last_query"`
	TopicKeywords   []string       `json:"topic_keywords"`
	TopicConfidence float64        `json:"topic_confidence"`
	RecentHistory   []HistoryEntry `json:"recent_history"`
}
