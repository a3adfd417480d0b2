// Package cmd defines and implements the CLI commands for the policyscan
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/govchat-nl/policyscan/internal/app"
	"github.com/govchat-nl/policyscan/internal/config"
	"github.com/govchat-nl/policyscan/internal/filestore"
	"github.com/govchat-nl/policyscan/internal/indexer"
	"github.com/govchat-nl/policyscan/internal/processor"
	"github.com/govchat-nl/policyscan/internal/scraper"
	"github.com/govchat-nl/policyscan/internal/search"
	"github.com/govchat-nl/policyscan/internal/store"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface commands use. An interface so tests
// can inject a mock application.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Store() store.Store
	Files() *filestore.Store
	Index() search.Index
	Processor() *processor.Processor
	Indexer() *indexer.Service
	Registry() *scraper.Registry
}

// newApp is the application factory, a variable so tests can replace it.
var newApp = func(ctx context.Context) (App, error) {
	return app.NewApp(ctx, cfgFile)
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return appInstance, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policyscan",
		Short: "Ingestion pipeline for Dutch municipal policy documents.",
		Long: `policyscan discovers policy documents on municipal publication
portals, extracts their text, and indexes them for full-text search.`,

		// Runs after flags are parsed, before the subcommand's RunE: build
		// the application and stash it in the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newPluginsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
