package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexcodex/adpilot/agents"
	"github.com/lexcodex/adpilot/tools"
)

// newBriefCmd prints the proactive daily performance brief.
func newBriefCmd() *cobra.Command {
	var workspaceID string
	cmd := &cobra.Command{
		Use:   "brief",
		Short: "Print the daily performance brief for the workspace",
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

			brief, err := agents.GenerateDailyBrief(cmd.Context(), store, tools.NewMockPerformanceSource(), workspaceID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), brief.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Workspace to summarize (defaults to config)")
	return cmd
}
