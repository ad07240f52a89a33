package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Limiter releases at most one call per minimum interval.
// Callers arriving early wait in reservation order; none are dropped.
// Providers wait on it once per upstream attempt, retries included.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
	onWait   func(time.Duration)
}

func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 15
	}
	interval := time.Minute / time.Duration(requestsPerMinute)
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// OnWait registers a hook receiving how long each call was held.
func (l *Limiter) OnWait(fn func(time.Duration)) {
	l.onWait = fn
}

func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the next slot. A slot that would land past the context
// deadline fails at once with context.DeadlineExceeded.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	waited := time.Since(start)
	if l.onWait != nil {
		l.onWait(waited)
	}
	if waited > time.Millisecond {
		slog.Debug("generation_rate_limited", "wait_ms", float64(waited.Microseconds())/1000.0)
	}
	return nil
}
