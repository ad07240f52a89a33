package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxLength    = 3000
	DefaultMinChunkSize = 500
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Splitter packs whole sentences into chunks of bounded length.
type Splitter struct {
	MaxLength    int
	MinChunkSize int
}

func NewSplitter(maxLength, minChunkSize int) *Splitter {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if minChunkSize < 0 {
		minChunkSize = 0
	}
	if minChunkSize > maxLength {
		minChunkSize = maxLength
	}
	return &Splitter{
		MaxLength:    maxLength,
		MinChunkSize: minChunkSize,
	}
}

type span struct {
	start int
	end   int
}

// Split returns chunks that are trimmed, non-overlapping spans of text.
// A chunk only exceeds MaxLength when a single sentence does, when an
// undersized chunk is merged forward, or when the undersized tail is
// appended to the previous chunk. Lengths are counted in runes.
func (s *Splitter) Split(text string) []string {
	sentences := sentenceSpans(text)
	if len(sentences) == 0 {
		return nil
	}

	measure := func(sp span) int {
		return utf8.RuneCountInString(strings.TrimSpace(text[sp.start:sp.end]))
	}

	var chunks []span
	current := span{start: -1}
	for _, sentence := range sentences {
		if current.start < 0 {
			current = sentence
			continue
		}
		extended := span{start: current.start, end: sentence.end}
		if measure(extended) <= s.MaxLength {
			current = extended
			continue
		}
		if measure(current) >= s.MinChunkSize {
			chunks = append(chunks, current)
			current = sentence
			continue
		}
		current = extended
	}

	switch {
	case measure(current) >= s.MinChunkSize:
		chunks = append(chunks, current)
	case len(chunks) > 0:
		chunks[len(chunks)-1].end = current.end
	default:
		chunks = append(chunks, current)
	}

	out := make([]string, 0, len(chunks))
	for _, sp := range chunks {
		if chunk := strings.TrimSpace(text[sp.start:sp.end]); chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

func sentenceSpans(text string) []span {
	matches := sentencePattern.FindAllStringIndex(text, -1)
	spans := make([]span, 0, len(matches)+1)
	last := 0
	for _, m := range matches {
		if strings.TrimSpace(text[m[0]:m[1]]) == "" {
			continue
		}
		spans = append(spans, span{start: m[0], end: m[1]})
		last = m[1]
	}
	if strings.TrimSpace(text[last:]) != "" {
		spans = append(spans, span{start: last, end: len(text)})
	}
	return spans
}

// Chunker combines preprocessing and splitting.
type Chunker struct {
	*Preprocessor
	*Splitter
}

func NewChunker(pre *Preprocessor, splitter *Splitter) *Chunker {
	return &Chunker{Preprocessor: pre, Splitter: splitter}
}
