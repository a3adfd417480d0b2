package scraper

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsRunningMean(t *testing.T) {
	t.Parallel()

	var s Stats
	s.RecordRequest(true, 100*time.Millisecond)
	s.RecordRequest(true, 300*time.Millisecond)
	s.RecordRequest(false, 200*time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.TotalRequests)
	assert.Equal(t, 2, snap.SuccessfulRequests)
	assert.Equal(t, 1, snap.FailedRequests)
	assert.Equal(t, 200*time.Millisecond, snap.AvgResponseTime)
	assert.InDelta(t, 66.7, snap.SuccessRate, 0.1)
}

func TestStatsZeroRequests(t *testing.T) {
	t.Parallel()

	var s Stats
	snap := s.Snapshot()
	assert.Zero(t, snap.TotalRequests)
	assert.Zero(t, snap.SuccessRate)
}

func TestStatsCounters(t *testing.T) {
	t.Parallel()

	var s Stats
	s.RecordRetry()
	s.RecordRetry()
	s.RecordRateLimited()
	s.RecordDocumentDiscovered()
	s.SetDocumentsDiscovered(42)

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.RetryAttempts)
	assert.Equal(t, 1, snap.RateLimitedRequests)
	assert.Equal(t, 42, snap.DocumentsDiscovered)
}

func TestStatsReset(t *testing.T) {
	t.Parallel()

	var s Stats
	s.RecordRequest(true, time.Second)
	s.RecordRetry()
	s.Reset()

	assert.Equal(t, StatsSnapshot{}, s.Snapshot())

	// The mutex must survive Reset.
	s.RecordRequest(false, time.Second)
	assert.Equal(t, 1, s.Snapshot().TotalRequests)
}

func TestStatsConcurrentAccess(t *testing.T) {
	t.Parallel()

	var s Stats
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordRequest(true, time.Millisecond)
			s.RecordRetry()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, 50, snap.TotalRequests)
	assert.Equal(t, 50, snap.RetryAttempts)
}
