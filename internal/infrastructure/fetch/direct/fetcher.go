package direct

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/resilience"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultMaxChars = 10000
	maxBodyBytes    = 10 << 20
)

// Fetcher downloads a page over plain HTTP and extracts its readable text.
type Fetcher struct {
	httpClient *http.Client
	maxChars   int
	userAgent  string
}

func New(timeout time.Duration, maxChars int, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxChars:   maxChars,
		userAgent:  strings.TrimSpace(userAgent),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || pageURL.Host == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "direct fetch", fmt.Errorf("invalid url %q", rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create fetch request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,text/plain;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("direct fetch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &resilience.HTTPStatusError{
			Service:    "direct_fetch",
			Operation:  "get",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read fetch body: %w", err)
	}

	var text string
	switch contentKind(resp.Header.Get("Content-Type"), pageURL, body) {
	case kindPDF:
		text, err = pdfText(body)
		if err != nil {
			return "", err
		}
	case kindPlain:
		text = string(body)
	default:
		text = htmlText(body, pageURL)
	}

	text = collapseSpaces(text)
	if text == "" {
		return "", domain.WrapError(domain.ErrEmptyContent, "direct fetch", fmt.Errorf("no text at %s", pageURL))
	}
	return truncate(text, f.maxChars), nil
}

type kind int

const (
	kindHTML kind = iota
	kindPDF
	kindPlain
)

func contentKind(contentType string, pageURL *url.URL, body []byte) kind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/pdf"),
		bytes.HasPrefix(body, []byte("%PDF-")),
		strings.HasSuffix(strings.ToLower(pageURL.Path), ".pdf"):
		return kindPDF
	case strings.HasPrefix(ct, "text/plain"):
		return kindPlain
	default:
		return kindHTML
	}
}

func htmlText(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text
		}
	}
	text, err := visibleText(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return text
}

func pdfText(body []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func collapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func truncate(text string, maxChars int) string {
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars])
}
