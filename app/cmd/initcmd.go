package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexcodex/adpilot/framework"
)

// newInitCmd seeds the store with a starter workspace so the chat client has
// something to talk about before real settings exist.
func newInitCmd() *cobra.Command {
	var name string
	var budget float64
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the workspace and write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := globalCfg
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			ws := &framework.WorkspaceSettings{
				ID:                 cfg.Workspace.ID,
				Name:               name,
				DefaultDailyBudget: budget,
				Currency:           "USD",
				DefaultObjective:   "conversions",
			}
			if err := store.SaveWorkspace(ctx, ws); err != nil {
				return err
			}
			if err := SaveConfig(cfgFile, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workspace %s ready, config written to %s\n", ws.ID, cfgFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "My Business", "Workspace name")
	cmd.Flags().Float64Var(&budget, "budget", 50, "Default daily budget")
	return cmd
}
