package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/govchat-nl/policyscan/internal/scraper"
	"github.com/govchat-nl/policyscan/internal/store"
)

type scrapeOptions struct {
	plugin       string
	startDate    string
	endDate      string
	maxPages     int
	municipality string
	query        string
	download     bool
	testConn     bool
}

// newScrapeCmd creates the 'scrape' subcommand: discover documents on a
// source site and optionally download and persist them.
func newScrapeCmd() *cobra.Command {
	var opts scrapeOptions

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Discover policy documents on a source site",
		Long: `Runs one discovery pass with the named plugin: pages through the
source's search results, parses document metadata, and prints the result.
With --download the documents are also fetched and recorded in the
database, skipping documents whose content is already known.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.plugin, "plugin", "", "plugin name (required)")
	cmd.Flags().StringVar(&opts.startDate, "start-date", "", "publication date lower bound (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.endDate, "end-date", "", "publication date upper bound (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "maximum result pages to fetch (0 = unbounded)")
	cmd.Flags().StringVar(&opts.municipality, "municipality", "", "filter by municipality")
	cmd.Flags().StringVar(&opts.query, "query", "", "free-text search query")
	cmd.Flags().BoolVar(&opts.download, "download", false, "download discovered documents and record them")
	cmd.Flags().BoolVar(&opts.testConn, "test", false, "probe the source with a one-page discovery and exit")
	_ = cmd.MarkFlagRequired("plugin")

	return cmd
}

func runScrape(cmd *cobra.Command, opts scrapeOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	appCfg := appInstance.Config()
	cfg, ok := appCfg.Scraper(opts.plugin)
	if !ok {
		return fmt.Errorf("no configuration block for plugin %q", opts.plugin)
	}
	plugin, err := appInstance.Registry().Get(opts.plugin, cfg, logger.Named(opts.plugin))
	if err != nil {
		return err
	}
	runner := scraper.NewRunner(plugin, logger)

	if opts.testConn {
		if !runner.TestConnection(cmd.Context()) {
			return fmt.Errorf("connection test failed")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "connection ok")
		return nil
	}

	discover := scraper.DiscoverOptions{
		MaxPages: opts.maxPages,
		Params:   map[string]string{},
	}
	if opts.municipality != "" {
		discover.Params["municipality"] = opts.municipality
	}
	if opts.query != "" {
		discover.Params["query"] = opts.query
	}
	if discover.StartDate, err = parseDateFlag(opts.startDate); err != nil {
		return err
	}
	if discover.EndDate, err = parseDateFlag(opts.endDate); err != nil {
		return err
	}

	result := runner.Scrape(cmd.Context(), discover)

	if opts.download {
		if appInstance.Store() == nil {
			return fmt.Errorf("--download requires a configured database")
		}
		downloadDocuments(cmd.Context(), appInstance, plugin, result.Documents)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("scrape finished with errors")
	}
	return nil
}

// downloadDocuments fetches each discovered document, deduplicates on
// content hash, stores the file and records the document as pending.
func downloadDocuments(ctx context.Context, appInstance App, plugin scraper.Plugin, docs []scraper.DocumentMetadata) {
	logger := appInstance.Logger()
	st := appInstance.Store()
	files := appInstance.Files()

	for _, meta := range docs {
		content, err := plugin.DownloadDocument(ctx, meta)
		if err != nil {
			logger.Error("download failed", zap.String("url", meta.URL), zap.Error(err))
			continue
		}
		hash := scraper.ContentHash(content)

		if _, err := st.FindByContentHash(ctx, hash); err == nil {
			logger.Info("skipping known content", zap.String("url", meta.URL))
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			logger.Error("content hash lookup failed", zap.Error(err))
			continue
		}

		filename := scraper.SanitizeFilename(
			fmt.Sprintf("%s.%s", meta.ExternalID, meta.DocumentType))
		path, err := files.Save(plugin.Name(), filename, content)
		if err != nil {
			logger.Error("write document file failed", zap.String("url", meta.URL), zap.Error(err))
			continue
		}

		size := int64(len(content))
		metadata := map[string]any{"file_path": path}
		for k, v := range meta.Metadata {
			metadata[k] = v
		}
		doc := &store.Document{
			SourceID:        plugin.Name(),
			ExternalID:      meta.ExternalID,
			Title:           meta.Title,
			Description:     meta.Description,
			ContentHash:     hash,
			DocumentURL:     meta.URL,
			DocumentType:    meta.DocumentType,
			Municipality:    meta.Municipality,
			PublicationDate: meta.PublicationDate,
			EffectiveDate:   meta.EffectiveDate,
			FileSize:        &size,
			Metadata:        metadata,
		}
		id, err := st.CreateDocument(ctx, doc)
		if err != nil {
			if errors.Is(err, store.ErrDuplicateContent) {
				logger.Info("duplicate content, skipping", zap.String("url", meta.URL))
			} else {
				logger.Error("create document failed", zap.String("url", meta.URL), zap.Error(err))
			}
			continue
		}
		logger.Info("document recorded",
			zap.String("id", id.String()),
			zap.String("title", meta.Title))
	}
}

func parseDateFlag(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", v)
	}
	return &t, nil
}
