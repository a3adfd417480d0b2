package scraper

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// Backoff defaults shared by retry middleware across plugins.
const (
	DefaultBackoffBase   = time.Second
	DefaultBackoffMax    = 60 * time.Second
	DefaultBackoffFactor = 2.0
)

// ExponentialBackoff computes jittered retry delays. Jitter inflates each
// delay by up to 25% so many plugin instances retrying against the same
// source do not synchronize.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter bool
}

// NewExponentialBackoff returns a backoff with the shared defaults and
// jitter enabled.
func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Base:   DefaultBackoffBase,
		Max:    DefaultBackoffMax,
		Factor: DefaultBackoffFactor,
		Jitter: true,
	}
}

// Delay returns the wait before retry number attempt (zero-indexed):
// min(base × factor^attempt, max), plus up to 25% jitter when enabled.
func (b *ExponentialBackoff) Delay(attempt int) time.Duration {
	delay := float64(b.Base) * math.Pow(b.Factor, float64(attempt))
	if delay > float64(b.Max) || math.IsInf(delay, 1) {
		delay = float64(b.Max)
	}
	d := time.Duration(delay)
	if b.Jitter {
		d += randomJitter(d / 4)
	}
	return d
}

// Wait suspends for Delay(attempt), returning early if ctx is done.
func (b *ExponentialBackoff) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
