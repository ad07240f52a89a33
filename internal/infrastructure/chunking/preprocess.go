package chunking

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	entityPattern     = regexp.MustCompile(`&[^;\s]+;`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Z}]+`)
	disallowedPattern = regexp.MustCompile(`[^\p{L}\p{N}\p{Z}_\s.,!?\-()/]`)

	boilerplatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)Navigation.*?(Menu|Search)`),
		regexp.MustCompile(`(?i)\b(Privacy Policy|Terms & Conditions|Legal|Contact Us|About Us|Advertisements)\b`),
		regexp.MustCompile(`(?i)(\bCopyright\b|\bAll Rights Reserved\b|©)`),
		regexp.MustCompile(`(?i)\b(Home|Back|Next|Previous|Close|Menu|Search|Login|Sign Up)\b`),
		regexp.MustCompile(`\[[^\]]*\]`),
		regexp.MustCompile(`\([^)]*\)`),
	}

	markupWordPattern = regexp.MustCompile(`(?i)\b(DOCTYPE|html|head|body|meta|link|script|style|div|span|class|id|src|href|alt|title)\b`)
)

// Preprocessor strips markup and boilerplate from fetched page text.
type Preprocessor struct {
	policy *bluemonday.Policy
	extra  []*regexp.Regexp
}

// NewPreprocessor compiles extra boilerplate patterns on top of the built-in set.
func NewPreprocessor(extraPatterns []string) (*Preprocessor, error) {
	extra := make([]*regexp.Regexp, 0, len(extraPatterns))
	for _, raw := range extraPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, err
		}
		extra = append(extra, re)
	}
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &Preprocessor{
		policy: policy,
		extra:  extra,
	}, nil
}

func (p *Preprocessor) Preprocess(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	// Sanitize escapes the text it keeps; undo that before dropping entities.
	text := html.UnescapeString(p.policy.Sanitize(raw))
	text = entityPattern.ReplaceAllString(text, " ")
	text = collapse(text)

	for _, re := range boilerplatePatterns {
		text = re.ReplaceAllString(text, "")
	}
	for _, re := range p.extra {
		text = re.ReplaceAllString(text, "")
	}
	text = collapse(text)

	text = disallowedPattern.ReplaceAllString(text, "")
	text = markupWordPattern.ReplaceAllString(text, "")
	return collapse(text)
}

func collapse(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}
