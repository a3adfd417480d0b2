package scraper

import (
	"sync"
	"time"
)

// Stats tracks running request counters for one plugin instance.
// It is mutated in place for the lifetime of the instance and reset
// explicitly; all methods are safe for concurrent use.
type Stats struct {
	mu                  sync.Mutex
	totalRequests       int
	successfulRequests  int
	failedRequests      int
	rateLimitedRequests int
	retryAttempts       int
	avgResponseTime     time.Duration
	documentsDiscovered int
}

// StatsSnapshot is a point-in-time copy of a plugin's counters.
type StatsSnapshot struct {
	TotalRequests       int           `json:"total_requests"`
	SuccessfulRequests  int           `json:"successful_requests"`
	FailedRequests      int           `json:"failed_requests"`
	RateLimitedRequests int           `json:"rate_limited_requests"`
	RetryAttempts       int           `json:"retry_attempts"`
	AvgResponseTime     time.Duration `json:"avg_response_time"`
	DocumentsDiscovered int           `json:"documents_discovered"`
	SuccessRate         float64       `json:"success_rate"`
}

// RecordRequest counts one request and folds its response time into the
// cumulative running mean.
func (s *Stats) RecordRequest(success bool, responseTime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	if success {
		s.successfulRequests++
	} else {
		s.failedRequests++
	}
	total := s.avgResponseTime*time.Duration(s.totalRequests-1) + responseTime
	s.avgResponseTime = total / time.Duration(s.totalRequests)
}

// RecordRetry counts one retry attempt.
func (s *Stats) RecordRetry() {
	s.mu.Lock()
	s.retryAttempts++
	s.mu.Unlock()
}

// RecordRateLimited counts one request that hit rate limiting or bot blocking.
func (s *Stats) RecordRateLimited() {
	s.mu.Lock()
	s.rateLimitedRequests++
	s.mu.Unlock()
}

// RecordDocumentDiscovered counts one parsed document.
func (s *Stats) RecordDocumentDiscovered() {
	s.mu.Lock()
	s.documentsDiscovered++
	s.mu.Unlock()
}

// SetDocumentsDiscovered overwrites the discovered-document counter with the
// final tally of a discovery run.
func (s *Stats) SetDocumentsDiscovered(n int) {
	s.mu.Lock()
	s.documentsDiscovered = n
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters plus the derived success rate
// (percentage; zero when no requests were made).
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		TotalRequests:       s.totalRequests,
		SuccessfulRequests:  s.successfulRequests,
		FailedRequests:      s.failedRequests,
		RateLimitedRequests: s.rateLimitedRequests,
		RetryAttempts:       s.retryAttempts,
		AvgResponseTime:     s.avgResponseTime,
		DocumentsDiscovered: s.documentsDiscovered,
	}
	if s.totalRequests > 0 {
		snap.SuccessRate = float64(s.successfulRequests) / float64(s.totalRequests) * 100
	}
	return snap
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	s.totalRequests = 0
	s.successfulRequests = 0
	s.failedRequests = 0
	s.rateLimitedRequests = 0
	s.retryAttempts = 0
	s.avgResponseTime = 0
	s.documentsDiscovered = 0
	s.mu.Unlock()
}
