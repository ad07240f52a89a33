package render

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
)

func TestBlockedResource(t *testing.T) {
	blocked := []network.ResourceType{
		network.ResourceTypeImage,
		network.ResourceTypeStylesheet,
		network.ResourceTypeFont,
		network.ResourceTypeMedia,
	}
	for _, rt := range blocked {
		if !blockedResource(rt) {
			t.Fatalf("expected %s to be blocked", rt)
		}
	}
	for _, rt := range []network.ResourceType{network.ResourceTypeDocument, network.ResourceTypeScript, network.ResourceTypeXHR} {
		if blockedResource(rt) {
			t.Fatalf("expected %s to pass through", rt)
		}
	}
}

func TestTruncateKeepsWholeRunes(t *testing.T) {
	if got := truncate("ééééé", 3); got != "ééé" {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate() = %q", got)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	f := New(Config{})
	if f.cfg.Timeout != DefaultTimeout || f.cfg.MaxChars != DefaultMaxChars || f.cfg.Attempts != DefaultAttempts {
		t.Fatalf("unexpected defaults: %+v", f.cfg)
	}
	policy := f.executor.Policy()
	if policy.MaxAttempts != DefaultAttempts || policy.InitialBackoff != policy.MaxBackoff {
		t.Fatalf("expected fixed retry policy, got %+v", policy)
	}
}

func TestFetchRejectsEmptyURL(t *testing.T) {
	_, err := New(Config{}).Fetch(context.Background(), "  ")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func findChrome() string {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func TestFetchRendersMainContent(t *testing.T) {
	chrome := findChrome()
	if chrome == "" {
		t.Skip("chrome not installed")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
<nav>Menu links</nav>
<div class="cookie-banner">Accept cookies</div>
<main><p id="x"></p></main>
<script>document.getElementById('x').textContent = 'Rendered by script.';</script>
</body></html>`))
	}))
	defer server.Close()

	f := New(Config{ExecPath: chrome, Timeout: 20 * time.Second, Attempts: 1})
	defer f.Close()

	text, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(text, "Rendered by script.") {
		t.Fatalf("expected rendered text, got %q", text)
	}
	if strings.Contains(text, "Menu links") || strings.Contains(text, "Accept cookies") {
		t.Fatalf("non-content text leaked: %q", text)
	}
}
