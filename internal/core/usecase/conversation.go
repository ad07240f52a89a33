package usecase

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/core/ports"
)

const (
	DefaultSessionID      = "default"
	defaultHistoryWindow  = 5
	topicThreshold        = 0.3
	newTopicConfidence    = 0.8
	minTopicKeywordRunes  = 3
	conversationKeyPrefix = "conversation:"
)

var defaultTopicStopWords = []string{
	"what", "are", "the", "symptoms", "of", "treatment", "for", "how", "to",
	"diagnose", "cure", "prevent", "manage", "handle", "deal", "with", "latest",
	"research", "researches", "medications", "drugs", "therapy", "therapies",
}

// ConversationTracker keeps a per-session topic and widens follow-up
// queries with it.
type ConversationTracker struct {
	store     ports.Cache[domain.ConversationState]
	stopWords map[string]struct{}
	window    int
	now       func() time.Time

	mu sync.Mutex
}

// NewConversationTracker uses the built-in stop words when stopWords is empty.
func NewConversationTracker(store ports.Cache[domain.ConversationState], window int, stopWords []string) *ConversationTracker {
	if window <= 0 {
		window = defaultHistoryWindow
	}
	if len(stopWords) == 0 {
		stopWords = defaultTopicStopWords
	}
	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &ConversationTracker{
		store:     store,
		stopWords: set,
		window:    window,
		now:       time.Now,
	}
}

// Enrich updates the session's topic from query and returns the query to
// search with. An empty session id maps to the shared default session.
func (t *ConversationTracker) Enrich(ctx context.Context, sessionID, query string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	key := conversationKeyPrefix + sessionID

	t.mu.Lock()
	defer t.mu.Unlock()

	state, _ := t.store.Get(ctx, key)
	state = t.update(state, query)
	t.store.Set(ctx, key, state)

	topic := state.CurrentTopic
	if topic == "" || state.TopicConfidence <= topicThreshold {
		return query
	}
	queryTokens := toTokenSet(query)
	for _, word := range strings.Fields(strings.ToLower(topic)) {
		if _, ok := queryTokens[word]; ok {
			return query
		}
	}
	return query + " about " + topic
}

func (t *ConversationTracker) update(state domain.ConversationState, query string) domain.ConversationState {
	queryWords := wordSet(query)
	retained := false

	if state.CurrentTopic != "" {
		topicWords := wordSet(state.CurrentTopic)
		overlap := 0
		for w := range queryWords {
			if _, ok := topicWords[w]; ok {
				overlap++
			}
		}
		ratio := 0.0
		if denom := max(len(queryWords), len(topicWords)); denom > 0 {
			ratio = float64(overlap) / float64(denom)
		}

		keywordHits := 0
		for w := range queryWords {
			if containsString(state.TopicKeywords, w) {
				keywordHits++
			}
		}
		if ratio > topicThreshold || keywordHits > 0 {
			share := 0.0
			if len(queryWords) > 0 {
				share = float64(keywordHits) / float64(len(queryWords))
			}
			state.TopicConfidence = max(ratio, share)
			retained = true
		}
	}

	if !retained {
		state.CurrentTopic = t.mainTopic(query)
		state.LastQuery = query
		state.TopicConfidence = newTopicConfidence
		state.TopicKeywords = t.keywords(query)
	}

	state.RecentHistory = append(state.RecentHistory, domain.HistoryEntry{
		Query:     query,
		Topic:     state.CurrentTopic,
		Timestamp: t.now().UTC(),
	})
	if extra := len(state.RecentHistory) - t.window; extra > 0 {
		state.RecentHistory = append([]domain.HistoryEntry(nil), state.RecentHistory[extra:]...)
	}
	return state
}

// mainTopic returns the most frequent non-stop word of three or more
// letters; the earliest such word wins ties.
func (t *ConversationTracker) mainTopic(query string) string {
	counts := make(map[string]int)
	order := make([]string, 0, 8)
	for _, w := range splitAlphaNumLower(query) {
		if !t.significant(w) {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	best, bestCount := "", 0
	for _, w := range order {
		if counts[w] > bestCount {
			best, bestCount = w, counts[w]
		}
	}
	return best
}

func (t *ConversationTracker) keywords(query string) []string {
	out := make([]string, 0, 8)
	for _, w := range orderedWords(query) {
		if t.significant(w) && !containsString(out, w) {
			out = append(out, w)
		}
	}
	return out
}

func (t *ConversationTracker) significant(word string) bool {
	if utf8.RuneCountInString(word) < minTopicKeywordRunes {
		return false
	}
	_, stop := t.stopWords[word]
	return !stop
}

// orderedWords splits on whitespace, lower-cases, and trims surrounding punctuation.
func orderedWords(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func wordSet(s string) map[string]struct{} {
	words := orderedWords(s)
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
