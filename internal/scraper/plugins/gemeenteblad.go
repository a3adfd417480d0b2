// Package plugins holds the concrete source scrapers. Each file implements
// one source site on top of the scraper framework and registers itself
// through Register.
package plugins

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/govchat-nl/policyscan/internal/metrics"
	"github.com/govchat-nl/policyscan/internal/scraper"
)

// GemeentebladName is the registry name of the Gemeentebladen.nl scraper.
const GemeentebladName = "gemeenteblad"

// requiredSelectors must be present in the configuration before the plugin
// will run. Optional selectors: municipality, description.
var requiredSelectors = []string{"item", "title", "url", "date"}

// Gemeenteblad scrapes Gemeentebladen.nl, a Dutch government publication
// portal for municipal announcements.
type Gemeenteblad struct {
	cfg    scraper.Config
	logger *zap.Logger

	client     *http.Client
	limiter    *scraper.RateLimiter
	retry      *scraper.RetryMiddleware
	botHandler *scraper.BotDetectionHandler
	robots     *scraper.RobotsTxtParser
	stats      *scraper.Stats

	// extraHeaders carry bot-detection countermeasures across requests.
	extraHeaders http.Header

	robotsFetched bool
}

// NewGemeenteblad builds the plugin from a shared configuration. The
// configuration is normalized and fully validated here.
func NewGemeenteblad(cfg scraper.Config, logger *zap.Logger) (scraper.Plugin, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var missing []string
	for _, sel := range requiredSelectors {
		if _, ok := cfg.Selectors[sel]; !ok {
			missing = append(missing, sel)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required selectors: [%s], required: [%s]",
			strings.Join(missing, ", "), strings.Join(requiredSelectors, ", "))
	}

	client := &http.Client{Timeout: cfg.Timeout}
	p := &Gemeenteblad{
		cfg:          cfg,
		logger:       logger.With(zap.String("plugin", GemeentebladName)),
		client:       client,
		limiter:      scraper.NewRateLimiter(cfg.RateLimit),
		retry:        scraper.NewRetryMiddleware(client, cfg.MaxRetries, nil, logger),
		botHandler:   scraper.NewBotDetectionHandler(nil, logger),
		robots:       scraper.NewRobotsTxtParser(client, logger),
		stats:        &scraper.Stats{},
		extraHeaders: make(http.Header),
	}
	return p, nil
}

// Name implements scraper.Plugin.
func (p *Gemeenteblad) Name() string { return GemeentebladName }

// ValidateConfig implements scraper.Plugin. Construction already validated
// the configuration, so this re-checks the same rules for callers that
// mutate nothing but want the confirmation.
func (p *Gemeenteblad) ValidateConfig() error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}
	for _, sel := range requiredSelectors {
		if _, ok := p.cfg.Selectors[sel]; !ok {
			return fmt.Errorf("missing required selector %q", sel)
		}
	}
	return nil
}

// Stats implements scraper.Plugin.
func (p *Gemeenteblad) Stats() scraper.StatsSnapshot { return p.stats.Snapshot() }

// ResetStats implements scraper.Plugin.
func (p *Gemeenteblad) ResetStats() { p.stats.Reset() }

// DiscoverDocuments pages through the search results until max_pages, the
// consecutive-empty-page limit, or a fetch failure. Documents gathered
// before a failure are returned alongside the error.
func (p *Gemeenteblad) DiscoverDocuments(ctx context.Context, opts scraper.DiscoverOptions) ([]scraper.DocumentMetadata, error) {
	if !p.robotsFetched {
		if err := p.robots.Fetch(ctx, p.cfg.BaseURL); err != nil {
			return nil, err
		}
		p.robotsFetched = true
	}

	var documents []scraper.DocumentMetadata
	page := 1
	consecutiveEmpty := 0

	p.logger.Info("starting document discovery",
		zap.Timep("start_date", opts.StartDate),
		zap.Timep("end_date", opts.EndDate),
		zap.Int("max_pages", opts.MaxPages))

	for {
		if opts.MaxPages > 0 && page > opts.MaxPages {
			p.logger.Info("reached max pages limit", zap.Int("max_pages", opts.MaxPages))
			break
		}
		if consecutiveEmpty >= p.cfg.EmptyPageLimit {
			p.logger.Info("reached end of results",
				zap.Int("consecutive_empty_pages", consecutiveEmpty))
			break
		}

		if err := p.limiter.Acquire(ctx, 1); err != nil {
			return documents, err
		}

		url := p.buildSearchURL(page, opts)
		p.logger.Debug("fetching page", zap.Int("page", page), zap.String("url", url))

		start := time.Now()
		html, err := p.fetchPage(ctx, url)
		if err != nil {
			p.logger.Error("error fetching page", zap.Int("page", page), zap.Error(err))
			p.stats.RecordRequest(false, 0)
			metrics.ObserveScrapeRequest(GemeentebladName, "error")
			return documents, fmt.Errorf("fetch page %d: %w", page, err)
		}
		p.stats.RecordRequest(true, time.Since(start))
		metrics.ObserveScrapeRequest(GemeentebladName, "success")

		pageDocs, err := p.parseSearchResults(html)
		if err != nil {
			return documents, fmt.Errorf("parse page %d: %w", page, err)
		}

		if len(pageDocs) == 0 {
			consecutiveEmpty++
			p.logger.Debug("page returned no documents", zap.Int("page", page))
		} else {
			consecutiveEmpty = 0
			documents = append(documents, pageDocs...)
			p.logger.Info("page parsed",
				zap.Int("page", page),
				zap.Int("found", len(pageDocs)),
				zap.Int("total", len(documents)))
		}

		if err := p.crawlPause(ctx); err != nil {
			return documents, err
		}
		page++
	}

	p.logger.Info("discovery complete", zap.Int("documents", len(documents)))
	p.stats.SetDocumentsDiscovered(len(documents))
	metrics.AddDocumentsDiscovered(GemeentebladName, len(documents))

	return documents, nil
}

// DownloadDocument fetches the raw bytes of one discovered document.
func (p *Gemeenteblad) DownloadDocument(ctx context.Context, meta scraper.DocumentMetadata) ([]byte, error) {
	p.logger.Info("downloading document", zap.String("title", meta.Title))

	if err := p.limiter.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	p.applyHeaders(req)

	start := time.Now()
	resp, err := p.retry.Do(ctx, req, func(int) { p.stats.RecordRetry() })
	if err != nil {
		p.stats.RecordRequest(false, 0)
		metrics.ObserveScrapeRequest(GemeentebladName, "error")
		return nil, fmt.Errorf("download %s: %w", meta.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.stats.RecordRequest(false, 0)
		metrics.ObserveScrapeRequest(GemeentebladName, "error")
		return nil, fmt.Errorf("download %s: HTTP %d", meta.URL, resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		p.stats.RecordRequest(false, 0)
		return nil, fmt.Errorf("read download body: %w", err)
	}

	elapsed := time.Since(start)
	p.stats.RecordRequest(true, elapsed)
	metrics.ObserveScrapeRequest(GemeentebladName, "success")
	p.logger.Info("download complete",
		zap.Int("bytes", len(content)),
		zap.Duration("elapsed", elapsed))

	return content, nil
}

// fetchPage gets one HTML page through the retry middleware, applying
// bot-detection countermeasures and a single refetch when blocked.
func (p *Gemeenteblad) fetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	p.applyHeaders(req)

	resp, err := p.retry.Do(ctx, req, func(int) { p.stats.RecordRetry() })
	if err != nil {
		return "", err
	}

	if p.botHandler.IsBlocked(resp) {
		p.stats.RecordRateLimited()
		drainBody(resp)

		updated, err := p.botHandler.HandleBlock(ctx, resp, 0)
		if err != nil {
			return "", err
		}
		for k, vs := range updated {
			for _, v := range vs {
				p.extraHeaders.Set(k, v)
			}
		}

		retryReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		p.applyHeaders(retryReq)
		resp, err = p.retry.Do(ctx, retryReq, func(int) { p.stats.RecordRetry() })
		if err != nil {
			return "", err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// applyHeaders sets the configured User-Agent, configured extra headers,
// and any countermeasure headers accumulated from bot blocks.
func (p *Gemeenteblad) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,*/*")
	req.Header.Set("Accept-Language", "nl-NL,nl;q=0.9,en;q=0.8")
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, vs := range p.extraHeaders {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
}

// buildSearchURL is deterministic for a given input: fixed parameter order,
// custom parameters appended in sorted key order.
func (p *Gemeenteblad) buildSearchURL(page int, opts scraper.DiscoverOptions) string {
	base := p.cfg.BaseURL + "/search"

	var params []string
	if page > 1 {
		params = append(params, "page="+strconv.Itoa(page))
	}
	if opts.StartDate != nil {
		params = append(params, "from_date="+opts.StartDate.Format("2006-01-02"))
	}
	if opts.EndDate != nil {
		params = append(params, "to_date="+opts.EndDate.Format("2006-01-02"))
	}
	if v := opts.Params["municipality"]; v != "" {
		params = append(params, "municipality="+v)
	}
	if v := opts.Params["query"]; v != "" {
		params = append(params, "q="+v)
	}

	keys := make([]string, 0, len(p.cfg.CustomParams))
	for k := range p.cfg.CustomParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params = append(params, k+"="+p.cfg.CustomParams[k])
	}

	if len(params) == 0 {
		return base
	}
	return base + "?" + strings.Join(params, "&")
}

// parseSearchResults extracts document metadata from a search results page.
// Malformed items are skipped with a log line, never aborting the page.
func (p *Gemeenteblad) parseSearchResults(html string) ([]scraper.DocumentMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	items := doc.Find(p.cfg.Selectors["item"])
	p.logger.Debug("matched items",
		zap.Int("count", items.Length()),
		zap.String("selector", p.cfg.Selectors["item"]))

	var documents []scraper.DocumentMetadata
	items.Each(func(i int, item *goquery.Selection) {
		meta, err := p.parseDocumentItem(item)
		if err != nil {
			p.logger.Warn("failed to parse document item", zap.Int("index", i), zap.Error(err))
			return
		}
		documents = append(documents, *meta)
		p.stats.RecordDocumentDiscovered()
	})

	return documents, nil
}

func (p *Gemeenteblad) parseDocumentItem(item *goquery.Selection) (*scraper.DocumentMetadata, error) {
	title := strings.TrimSpace(item.Find(p.cfg.Selectors["title"]).First().Text())
	if title == "" {
		return nil, fmt.Errorf("title element empty or not found")
	}

	href, ok := item.Find(p.cfg.Selectors["url"]).First().Attr("href")
	if !ok || href == "" {
		return nil, fmt.Errorf("url element has no href")
	}
	url := scraper.NormalizeURL(href, p.cfg.BaseURL)

	meta := &scraper.DocumentMetadata{
		Title:        title,
		URL:          url,
		ExternalID:   scraper.ExternalID(url),
		DocumentType: scraper.TypeFromURL(url),
		Metadata: map[string]any{
			"source":     GemeentebladName,
			"scraped_at": time.Now().Format(time.RFC3339),
		},
	}

	if text := strings.TrimSpace(item.Find(p.cfg.Selectors["date"]).First().Text()); text != "" {
		if parsed, err := scraper.ParseDate(text); err != nil {
			p.logger.Debug("failed to parse date", zap.String("date", text), zap.Error(err))
		} else {
			meta.PublicationDate = &parsed
		}
	}

	if sel, ok := p.cfg.Selectors["municipality"]; ok {
		raw := strings.TrimSpace(item.Find(sel).First().Text())
		municipality, err := scraper.NormalizeMunicipality(raw)
		if err != nil {
			return nil, err
		}
		meta.Municipality = municipality
	}

	if sel, ok := p.cfg.Selectors["description"]; ok {
		meta.Description = strings.TrimSpace(item.Find(sel).First().Text())
	}

	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return meta, nil
}

// crawlPause sleeps the robots.txt crawl delay or the configured delay,
// whichever is longer.
func (p *Gemeenteblad) crawlPause(ctx context.Context) error {
	pause := p.cfg.CrawlDelay
	if delay, ok := p.robots.CrawlDelay(); ok && delay > pause {
		pause = delay
	}
	if pause <= 0 {
		return nil
	}
	timer := time.NewTimer(pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
