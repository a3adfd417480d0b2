// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/govchat-nl/policyscan/internal/config"
	"github.com/govchat-nl/policyscan/internal/filestore"
	"github.com/govchat-nl/policyscan/internal/indexer"
	"github.com/govchat-nl/policyscan/internal/logging"
	"github.com/govchat-nl/policyscan/internal/metrics"
	"github.com/govchat-nl/policyscan/internal/processor"
	"github.com/govchat-nl/policyscan/internal/scraper"
	"github.com/govchat-nl/policyscan/internal/scraper/plugins"
	"github.com/govchat-nl/policyscan/internal/search"
	"github.com/govchat-nl/policyscan/internal/storage/postgres"
	"github.com/govchat-nl/policyscan/internal/store"
)

// App holds the shared, long-lived services for the application. It is
// initialized once at startup and passed to the components that need it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     store.Store
	files     *filestore.Store
	index     search.Index
	processor *processor.Processor
	indexer   *indexer.Service
	registry  *scraper.Registry
}

// NewApp builds every service from configuration. It fails fast when a
// critical dependency cannot be initialized; the search and database
// backends are probed on first use, not here.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	logger.Info("initializing application services")

	var st store.Store
	if cfg.DB.DSN != "" {
		st, err = postgres.NewDocumentStore(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init document store: %w", err)
		}
	}

	index, err := search.NewMeili(cfg.Search, logger.Named("search"))
	if err != nil {
		return nil, fmt.Errorf("init search index: %w", err)
	}

	proc := processor.New(cfg.Processor, logger.Named("processor"))

	var files *filestore.Store
	var svc *indexer.Service
	if st != nil {
		files, err = filestore.New(filestore.Config{BaseDir: cfg.Indexer.StoragePath})
		if err != nil {
			return nil, fmt.Errorf("init file store: %w", err)
		}
		svc = indexer.New(cfg.Indexer, st, index, proc, files, logger.Named("indexer"))
	}

	registry := scraper.NewRegistry(logger.Named("registry"))
	plugins.Register(registry)

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		files:     files,
		index:     index,
		processor: proc,
		indexer:   svc,
		registry:  registry,
	}, nil
}

// Close shuts down the held services.
func (a *App) Close() {
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the document store, or nil when no database is configured.
func (a *App) Store() store.Store { return a.store }

// Files returns the document file store, or nil when no database is
// configured.
func (a *App) Files() *filestore.Store { return a.files }

// Index returns the search index client.
func (a *App) Index() search.Index { return a.index }

// Processor returns the document processor.
func (a *App) Processor() *processor.Processor { return a.processor }

// Indexer returns the indexing service, or nil when no database is
// configured.
func (a *App) Indexer() *indexer.Service { return a.indexer }

// Registry returns the scraper plugin registry.
func (a *App) Registry() *scraper.Registry { return a.registry }
