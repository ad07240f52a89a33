package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
	"github.com/kirillkom/grounded-answer/internal/infrastructure/resilience"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxChars = 10000
	DefaultAttempts = 3
	DefaultBackoff  = 2 * time.Second
)

// extractScript removes non-content elements and returns the visible main text.
const extractScript = `(() => {
  const junk = 'script, style, noscript, nav, header, footer, aside, iframe, form, ' +
    '[class*="advert"], [id*="advert"], .ads, .ad, [class*="cookie"], [id*="cookie"], ' +
    '[class*="consent"], [id*="consent"], [role="banner"], [role="navigation"]';
  document.querySelectorAll(junk).forEach(el => el.remove());
  const main = document.querySelector('main, article, .content, #content') || document.body;
  return main ? (main.innerText || '') : '';
})()`

type Config struct {
	ExecPath  string
	UserAgent string
	Timeout   time.Duration
	MaxChars  int
	Attempts  int
	Backoff   time.Duration
	Headful   bool
}

func DefaultConfig() Config {
	return Config{
		Timeout:  DefaultTimeout,
		MaxChars: DefaultMaxChars,
		Attempts: DefaultAttempts,
		Backoff:  DefaultBackoff,
	}
}

// Fetcher renders pages in a shared headless Chrome, one tab per fetch.
// The browser starts on first use.
type Fetcher struct {
	cfg      Config
	executor *resilience.Executor

	mu            sync.Mutex
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

func New(cfg Config) *Fetcher {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = def.Backoff
	}

	execCfg := resilience.DefaultConfig()
	execCfg.Retry = resilience.FixedPolicy(cfg.Attempts, cfg.Backoff)
	execCfg.Breaker.Enabled = false

	return &Fetcher{
		cfg:      cfg,
		executor: resilience.NewExecutor(execCfg),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "render fetch", fmt.Errorf("url is required"))
	}

	text, err := resilience.Do(ctx, f.executor, "render_fetch", func(ctx context.Context) (string, error) {
		return f.render(ctx, url)
	}, resilience.RetryAll)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (f *Fetcher) render(ctx context.Context, url string) (string, error) {
	browserCtx, err := f.browser()
	if err != nil {
		return "", err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.cfg.Timeout)
	defer cancelTimeout()

	chromedp.ListenTarget(tabCtx, func(ev any) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(tabCtx)
			execCtx := cdp.WithExecutor(tabCtx, c.Target)
			if blockedResource(paused.ResourceType) {
				_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
				return
			}
			_ = fetch.ContinueRequest(paused.RequestID).Do(execCtx)
		}()
	})

	var text string
	err = chromedp.Run(tabCtx,
		fetch.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(extractScript, &text),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("render %s: %w", url, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.WrapError(domain.ErrEmptyContent, "render fetch", fmt.Errorf("no text at %s", url))
	}
	slog.Debug("render_fetch_completed", "url", url, "chars", utf8.RuneCountInString(text))
	return truncate(text, f.cfg.MaxChars), nil
}

func (f *Fetcher) browser() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browserCtx != nil {
		return f.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !f.cfg.Headful),
	)
	if f.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.cfg.UserAgent))
	}
	if f.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	f.browserCtx = browserCtx
	f.cancelAlloc = cancelAlloc
	f.cancelBrowser = cancelBrowser
	return browserCtx, nil
}

// Close shuts the browser down. The next Fetch starts a new one.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelBrowser != nil {
		f.cancelBrowser()
	}
	if f.cancelAlloc != nil {
		f.cancelAlloc()
	}
	f.browserCtx = nil
	f.cancelBrowser = nil
	f.cancelAlloc = nil
}

func blockedResource(t network.ResourceType) bool {
	switch t {
	case network.ResourceTypeImage, network.ResourceTypeStylesheet, network.ResourceTypeFont, network.ResourceTypeMedia:
		return true
	default:
		return false
	}
}

func truncate(text string, maxChars int) string {
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	return string([]rune(text)[:maxChars])
}
