package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newMigrateCmd archives legacy conversations into the pinned workspace
// summary.
func newMigrateCmd() *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Archive legacy conversations into a pinned summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := globalCfg
			if workspaceID == "" {
				workspaceID = cfg.Workspace.ID
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := buildMigrator(cfg, store).Run(cmd.Context(), workspaceID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d, skipped %d\n", result.Migrated, result.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Workspace to migrate (defaults to config)")
	return cmd
}
