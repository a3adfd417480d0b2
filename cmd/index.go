package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/govchat-nl/policyscan/internal/indexer"
	"github.com/govchat-nl/policyscan/internal/store"
)

// newIndexCmd creates the 'index' subcommand and its children.
func newIndexCmd() *cobra.Command {
	var (
		sourceID     string
		status       string
		force        bool
		maxDocuments int
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Process and index pending documents",
		Long: `Fetches candidate documents from the database, extracts their
text, and submits them to the search index in batches. By default only
pending documents are considered; --force reprocesses everything.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			svc := appInstance.Indexer()
			if svc == nil {
				return fmt.Errorf("indexing requires a configured database")
			}

			stats, err := svc.Run(cmd.Context(), indexer.Options{
				SourceID:     sourceID,
				Status:       store.Status(status),
				ForceReindex: force,
				MaxDocuments: maxDocuments,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(stats); err != nil {
				return fmt.Errorf("encode stats: %w", err)
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d documents failed", stats.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceID, "source", "", "restrict to one source")
	cmd.Flags().StringVar(&status, "status", "", "candidate status (default pending)")
	cmd.Flags().BoolVar(&force, "force", false, "reindex documents that are already indexed")
	cmd.Flags().IntVar(&maxDocuments, "max-documents", 0, "cap the number of documents")

	cmd.AddCommand(newIndexInitCmd())
	cmd.AddCommand(newIndexReindexCmd())
	cmd.AddCommand(newIndexDeleteCmd())

	return cmd
}

// newIndexInitCmd creates 'index init': create and configure the search
// index.
func newIndexInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create and configure the search index",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Index().EnsureIndex(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "search index configured")
			return nil
		},
	}
}

// newIndexReindexCmd creates 'index reindex <id>': reprocess one document.
func newIndexReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <document-id>",
		Short: "Reprocess and reindex one document",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			svc := appInstance.Indexer()
			if svc == nil {
				return fmt.Errorf("indexing requires a configured database")
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid document id %q: %w", args[0], err)
			}
			if !svc.ReindexDocument(cmd.Context(), id) {
				return fmt.Errorf("reindex failed for %s", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %s reindexed\n", id)
			return nil
		},
	}
}

// newIndexDeleteCmd creates 'index delete <id>...': remove documents from
// the search index and reset them to pending.
func newIndexDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>...",
		Short: "Remove documents from the search index",
		Args:  cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			svc := appInstance.Indexer()
			if svc == nil {
				return fmt.Errorf("indexing requires a configured database")
			}
			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid document id %q: %w", arg, err)
				}
				ids = append(ids, id)
			}
			if err := svc.DeleteFromIndex(cmd.Context(), ids); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d documents removed from index\n", len(ids))
			return nil
		},
	}
}
