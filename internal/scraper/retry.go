package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/govchat-nl/policyscan/internal/metrics"
)

// DefaultRetryStatuses are the HTTP statuses worth retrying: throttling and
// transient server-side failures.
var DefaultRetryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// RetryMiddleware wraps a single HTTP request with up to maxRetries
// additional attempts. Transport failures and responses in the retry-status
// set are retried after a backoff wait; when attempts are exhausted the last
// failure propagates to the caller.
type RetryMiddleware struct {
	client     *http.Client
	maxRetries int
	retryOn    map[int]struct{}
	backoff    *ExponentialBackoff
	logger     *zap.Logger
}

// NewRetryMiddleware builds retry middleware around client. A nil backoff
// gets the shared defaults.
func NewRetryMiddleware(client *http.Client, maxRetries int, backoff *ExponentialBackoff, logger *zap.Logger) *RetryMiddleware {
	if backoff == nil {
		backoff = NewExponentialBackoff()
	}
	m := &RetryMiddleware{
		client:     client,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
	m.SetRetryStatuses(DefaultRetryStatuses...)
	return m
}

// SetRetryStatuses replaces the retry-worthy status set.
func (m *RetryMiddleware) SetRetryStatuses(codes ...int) {
	m.retryOn = make(map[int]struct{}, len(codes))
	for _, c := range codes {
		m.retryOn[c] = struct{}{}
	}
}

// Do issues req, retrying per policy. onRetry, if non-nil, is invoked once
// per retry with the zero-indexed attempt number that failed; call sites use
// it to update their statistics. A response outside the retry set is
// returned as-is, whatever its status; the final attempt's response is also
// returned un-retried so the caller sees the real failure.
func (m *RetryMiddleware) Do(ctx context.Context, req *http.Request, onRetry func(attempt int)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		resp, err := m.client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			if attempt >= m.maxRetries {
				break
			}
			m.logger.Warn("request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", m.maxRetries),
				zap.Error(err))
			metrics.IncRetry(0)
			if onRetry != nil {
				onRetry(attempt)
			}
			if werr := m.backoff.Wait(ctx, attempt); werr != nil {
				return nil, werr
			}
			continue
		}

		if _, retry := m.retryOn[resp.StatusCode]; retry && attempt < m.maxRetries {
			m.logger.Warn("retryable status, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", m.maxRetries))
			drain(resp)
			metrics.IncRetry(resp.StatusCode)
			if onRetry != nil {
				onRetry(attempt)
			}
			if werr := m.backoff.Wait(ctx, attempt); werr != nil {
				return nil, werr
			}
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", m.maxRetries, lastErr)
}

// drain consumes and closes a response body so the transport can reuse the
// connection.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
