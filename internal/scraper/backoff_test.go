package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	b := &ExponentialBackoff{Base: time.Second, Max: 60 * time.Second, Factor: 2.0}

	testCases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second},
		{100, 60 * time.Second},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, b.Delay(tc.attempt), "attempt %d", tc.attempt)
	}
}

func TestBackoffJitterBound(t *testing.T) {
	t.Parallel()

	b := NewExponentialBackoff()
	for i := 0; i < 50; i++ {
		d := b.Delay(2)
		assert.GreaterOrEqual(t, d, 4*time.Second)
		assert.Less(t, d, 5*time.Second)
	}
}

func TestBackoffWaitCanceled(t *testing.T) {
	t.Parallel()

	b := &ExponentialBackoff{Base: 10 * time.Second, Max: 60 * time.Second, Factor: 2.0}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Wait(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffWait(t *testing.T) {
	t.Parallel()

	b := &ExponentialBackoff{Base: 10 * time.Millisecond, Max: time.Second, Factor: 2.0}
	start := time.Now()
	require.NoError(t, b.Wait(context.Background(), 0))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}
