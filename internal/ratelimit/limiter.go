// Package ratelimit paces outbound calls to external services.
//
// A single Limiter is shared by every worker and the daily orchestrator so the
// configured spacing holds process-wide, not per goroutine.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket gating external calls.
type Limiter struct {
	bucket   *rate.Limiter
	interval time.Duration
}

// New returns a limiter admitting one call per interval with the given burst.
// A non-positive interval disables pacing.
func New(interval time.Duration, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{bucket: rate.NewLimiter(limit, burst), interval: interval}
}

// Unlimited returns a limiter that never waits.
func Unlimited() *Limiter {
	return New(0, 1)
}

// Wait blocks until a call is permitted or ctx is done. A nil limiter never waits.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.bucket == nil {
		return nil
	}
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Interval reports the configured spacing between calls.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}
