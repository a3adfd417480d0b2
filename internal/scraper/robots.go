package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxRobotsBody = 1 << 20

// robotsRules holds the directives parsed from one origin's robots.txt.
type robotsRules struct {
	crawlDelay time.Duration
	hasDelay   bool
	disallowed []string
}

// RobotsTxtParser fetches and caches robots.txt directives per origin.
// It implements the flat directive grammar municipal portals actually use:
// case-insensitive `crawl-delay:` and `disallow:` lines, `#` comments, blank
// lines ignored. A missing or non-200 robots.txt means "no directives" and
// is never an error. Each plugin instance owns its own parser and cache.
type RobotsTxtParser struct {
	client *http.Client
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]*robotsRules
	rules *robotsRules
}

// NewRobotsTxtParser builds a parser. A nil client gets a short-timeout
// default dedicated to robots fetches.
func NewRobotsTxtParser(client *http.Client, logger *zap.Logger) *RobotsTxtParser {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsTxtParser{
		client: client,
		logger: logger,
		cache:  make(map[string]*robotsRules),
	}
}

// Fetch retrieves and parses {baseURL}/robots.txt, once per origin. Repeat
// calls for a cached origin are free. Fetch failures downgrade to "no
// directives"; only context cancellation is returned as an error.
func (p *RobotsTxtParser) Fetch(ctx context.Context, baseURL string) error {
	origin := strings.TrimRight(baseURL, "/")

	p.mu.Lock()
	if rules, ok := p.cache[origin]; ok {
		p.rules = rules
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	rules := p.fetchRules(ctx, origin)
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.cache[origin] = rules
	p.rules = rules
	p.mu.Unlock()
	return nil
}

func (p *RobotsTxtParser) fetchRules(ctx context.Context, origin string) *robotsRules {
	robotsURL := origin + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		p.logger.Debug("invalid robots.txt URL", zap.String("url", robotsURL), zap.Error(err))
		return &robotsRules{}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("robots.txt fetch failed", zap.String("url", robotsURL), zap.Error(err))
		return &robotsRules{}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		p.logger.Debug("no robots.txt", zap.String("url", robotsURL), zap.Int("status", resp.StatusCode))
		return &robotsRules{}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		p.logger.Debug("robots.txt read failed", zap.String("url", robotsURL), zap.Error(err))
		return &robotsRules{}
	}
	rules := parseRobots(string(body))
	p.logger.Info("parsed robots.txt",
		zap.String("origin", origin),
		zap.Bool("has_crawl_delay", rules.hasDelay),
		zap.Int("disallowed_paths", len(rules.disallowed)))
	return rules
}

func parseRobots(text string) *robotsRules {
	rules := &robotsRules{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "crawl-delay:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "crawl-delay:"))
			if secs, err := strconv.ParseFloat(value, 64); err == nil {
				rules.crawlDelay = time.Duration(secs * float64(time.Second))
				rules.hasDelay = true
			}
		case strings.HasPrefix(line, "disallow:"):
			path := strings.TrimSpace(strings.TrimPrefix(line, "disallow:"))
			if path != "" {
				rules.disallowed = append(rules.disallowed, path)
			}
		}
	}
	return rules
}

// IsAllowed reports whether path is permitted: true unless path starts with
// any disallowed prefix.
func (p *RobotsTxtParser) IsAllowed(path string) bool {
	p.mu.Lock()
	rules := p.rules
	p.mu.Unlock()
	if rules == nil {
		return true
	}
	lower := strings.ToLower(path)
	for _, prefix := range rules.disallowed {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

// CrawlDelay returns the parsed crawl delay and whether one was present.
// Callers fall back to their configured delay when absent.
func (p *RobotsTxtParser) CrawlDelay() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rules == nil || !p.rules.hasDelay {
		return 0, false
	}
	return p.rules.crawlDelay, true
}

// String describes the active rules, for logs.
func (p *RobotsTxtParser) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rules == nil {
		return "robots: not fetched"
	}
	return fmt.Sprintf("robots: crawl_delay=%s disallowed=%d", p.rules.crawlDelay, len(p.rules.disallowed))
}
