package scraper

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/govchat-nl/policyscan/internal/metrics"
)

// defaultUserAgents is a pool of realistic desktop browser identities.
var defaultUserAgents = []string{
	// Chrome on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	// Firefox on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	// Edge on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	// Chrome on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	// Firefox on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	// Safari on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// UserAgentRotator hands out User-Agent strings from a pool, either in
// rotation or at random.
type UserAgentRotator struct {
	mu     sync.Mutex
	agents []string
	next   int
}

// NewUserAgentRotator builds a rotator over the given agents, or the
// default desktop pool when none are given.
func NewUserAgentRotator(agents ...string) *UserAgentRotator {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &UserAgentRotator{agents: agents}
}

// Next returns the next agent in rotation.
func (r *UserAgentRotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent := r.agents[r.next]
	r.next = (r.next + 1) % len(r.agents)
	return agent
}

// Random returns a uniformly chosen agent.
func (r *UserAgentRotator) Random() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(r.agents))))
	if err != nil {
		return r.agents[0]
	}
	return r.agents[n.Int64()]
}

// BotDetectionHandler recognizes blocking responses and escalates
// countermeasures per attempt. Its counters are independent of the
// discovery loop: every handled block is recorded for the lifetime of the
// plugin instance.
type BotDetectionHandler struct {
	rotator *UserAgentRotator
	logger  *zap.Logger

	mu         sync.Mutex
	blockCount int
	lastBlock  time.Time
}

// NewBotDetectionHandler builds a handler. A nil rotator gets the default
// User-Agent pool.
func NewBotDetectionHandler(rotator *UserAgentRotator, logger *zap.Logger) *BotDetectionHandler {
	if rotator == nil {
		rotator = NewUserAgentRotator()
	}
	return &BotDetectionHandler{rotator: rotator, logger: logger}
}

// IsBlocked reports whether resp indicates bot blocking: HTTP 403, HTTP 429,
// or a CAPTCHA redirect (response path containing "captcha").
func (h *BotDetectionHandler) IsBlocked(resp *http.Response) bool {
	if resp == nil {
		return false
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if resp.Request != nil && resp.Request.URL != nil {
		return strings.Contains(strings.ToLower(resp.Request.URL.Path), "captcha")
	}
	return false
}

// HandleBlock applies countermeasures for a blocked response and returns
// replacement headers for the retry. Escalation by attempt: 0 rotates the
// User-Agent, 1 additionally injects a full browser header set, ≥2 sleeps
// 2^attempt × 30 seconds before returning. The penalty sleep is deliberately
// harsher than, and separate from, retry backoff.
func (h *BotDetectionHandler) HandleBlock(ctx context.Context, resp *http.Response, attempt int) (http.Header, error) {
	h.mu.Lock()
	h.blockCount++
	h.lastBlock = time.Now()
	h.mu.Unlock()
	metrics.IncBotBlocks()

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	h.logger.Warn("bot detection triggered, applying countermeasures",
		zap.Int("status", status),
		zap.Int("attempt", attempt))

	headers := make(http.Header)
	switch {
	case attempt == 0:
		headers.Set("User-Agent", h.rotator.Next())
	case attempt == 1:
		headers.Set("User-Agent", h.rotator.Random())
		for k, v := range realisticBrowserHeaders {
			headers.Set(k, v)
		}
	default:
		penalty := time.Duration(1<<uint(attempt)) * 30 * time.Second
		h.logger.Warn("blocked, waiting before retry", zap.Duration("penalty", penalty))
		timer := time.NewTimer(penalty)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return headers, nil
}

var realisticBrowserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "nl-NL,nl;q=0.9,en-US;q=0.8,en;q=0.7",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// BlockCount reports how many blocks this handler has seen.
func (h *BotDetectionHandler) BlockCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.blockCount
}

// LastBlock returns the time of the most recent block, if any.
func (h *BotDetectionHandler) LastBlock() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastBlock, !h.lastBlock.IsZero()
}
