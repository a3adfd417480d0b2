package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DiscoverOptions bound one discovery run.
type DiscoverOptions struct {
	// StartDate and EndDate filter documents by publication date when set.
	StartDate *time.Time
	EndDate   *time.Time

	// MaxPages caps the number of result pages fetched; 0 means unbounded
	// (discovery then relies on the empty-page heuristic to terminate).
	MaxPages int

	// Params carries source-specific parameters such as municipality or a
	// free-text query.
	Params map[string]string
}

// Plugin is the contract every source-specific scraper implements. One
// plugin instance serves one source site and owns its own middleware stack.
type Plugin interface {
	// Name returns the registry name of the plugin.
	Name() string

	// ValidateConfig fails when required selectors are missing or shared
	// parameters are out of range. Constructors call it so invalid
	// configuration never reaches discovery.
	ValidateConfig() error

	// DiscoverDocuments pages through the source's search results and
	// returns the documents found. On an unrecoverable fetch error it
	// returns the documents gathered so far together with the error.
	DiscoverDocuments(ctx context.Context, opts DiscoverOptions) ([]DocumentMetadata, error)

	// DownloadDocument fetches the raw bytes of one discovered document.
	DownloadDocument(ctx context.Context, meta DocumentMetadata) ([]byte, error)

	// Stats returns a snapshot of the instance's running counters.
	Stats() StatsSnapshot

	// ResetStats zeroes the instance's counters.
	ResetStats()
}

// Runner wraps a plugin's discovery with timing and failure isolation.
// Discovery failures downgrade to a ScrapeResult with Success=false and the
// error recorded; Scrape never returns an error to the caller.
type Runner struct {
	plugin Plugin
	logger *zap.Logger
}

// NewRunner wraps plugin.
func NewRunner(plugin Plugin, logger *zap.Logger) *Runner {
	return &Runner{plugin: plugin, logger: logger}
}

// Scrape runs discovery and packages the outcome. Documents gathered before
// a failure are kept in the result.
func (r *Runner) Scrape(ctx context.Context, opts DiscoverOptions) ScrapeResult {
	start := time.Now()

	r.logger.Info("starting scrape",
		zap.String("plugin", r.plugin.Name()),
		zap.Timep("start_date", opts.StartDate),
		zap.Timep("end_date", opts.EndDate),
		zap.Int("max_pages", opts.MaxPages))

	documents, err := r.plugin.DiscoverDocuments(ctx, opts)

	var errs []string
	if err != nil {
		r.logger.Error("scraping failed",
			zap.String("plugin", r.plugin.Name()),
			zap.Error(err))
		errs = append(errs, "scraping failed: "+err.Error())
	} else {
		r.logger.Info("scrape complete",
			zap.String("plugin", r.plugin.Name()),
			zap.Int("documents", len(documents)))
	}

	return ScrapeResult{
		Documents:    documents,
		TotalFound:   len(documents),
		PagesScraped: r.plugin.Stats().TotalRequests,
		Duration:     time.Since(start),
		Errors:       errs,
		Success:      len(errs) == 0,
	}
}

// TestConnection probes the source with a one-page discovery and reports
// whether it succeeded.
func (r *Runner) TestConnection(ctx context.Context) bool {
	_, err := r.plugin.DiscoverDocuments(ctx, DiscoverOptions{MaxPages: 1})
	if err != nil {
		r.logger.Error("connection test failed",
			zap.String("plugin", r.plugin.Name()),
			zap.Error(err))
		return false
	}
	r.logger.Info("connection test successful", zap.String("plugin", r.plugin.Name()))
	return true
}
