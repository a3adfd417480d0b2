package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/govchat-nl/policyscan/internal/metrics"
)

// RateLimiter throttles outbound requests with a token bucket whose
// capacity equals the configured requests-per-second. Tokens refill
// continuously, so the long-run average rate is bounded without the bursty
// stalls of per-second ticks. Each plugin instance owns its own limiter;
// concurrent instances never contend.
type RateLimiter struct {
	mu  sync.Mutex
	lim *rate.Limiter
	rps int
}

// NewRateLimiter builds a full bucket for rps requests per second.
// The caller is expected to have validated rps via ValidateRateLimit.
func NewRateLimiter(rps int) *RateLimiter {
	return &RateLimiter{
		lim: rate.NewLimiter(rate.Limit(rps), rps),
		rps: rps,
	}
}

// Acquire blocks until n tokens are available or ctx is done.
func (l *RateLimiter) Acquire(ctx context.Context, n int) error {
	l.mu.Lock()
	lim := l.lim
	l.mu.Unlock()

	start := time.Now()
	if err := lim.WaitN(ctx, n); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		metrics.ObserveRateLimitDelay(delay)
	}
	return nil
}

// Reset restores the bucket to full capacity.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	l.lim = rate.NewLimiter(rate.Limit(l.rps), l.rps)
	l.mu.Unlock()
}

// Tokens reports the tokens currently available.
func (l *RateLimiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lim.Tokens()
}
