package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newPluginsCmd creates the 'plugins' subcommand: list the registered
// scraper plugins.
func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List registered scraper plugins",

		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			for _, info := range appInstance.Registry().Info() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", info.Name, info.Description)
			}
			return nil
		},
	}
}
