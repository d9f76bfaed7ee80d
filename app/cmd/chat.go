package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexcodex/adpilot/app/warroom/tui"
	"github.com/lexcodex/adpilot/framework"
)

// newChatCmd opens the terminal chat client bound to one scope: the account
// overview by default, or a page war room via --page.
func newChatCmd() *cobra.Command {
	var pageID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the terminal chat client",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := globalCfg
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			engine, err := buildEngine(cfg, store)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			scope := framework.ScopeAccountWide
			title := "Account overview"
			if pageID != "" {
				page, err := store.Page(ctx, pageID)
				if err != nil {
					return fmt.Errorf("page %s: %w", pageID, err)
				}
				if !page.Included {
					return fmt.Errorf("page %s is not included in the workspace", pageID)
				}
				scope = framework.ScopePage
				title = page.Name
			}
			conv, err := store.GetOrCreateConversation(ctx, cfg.Workspace.ID, pageID, scope, title)
			if err != nil {
				return err
			}
			return tui.Run(ctx, engine, conv)
		},
	}
	cmd.Flags().StringVar(&pageID, "page", "", "Open the war room for this page")
	return cmd
}
