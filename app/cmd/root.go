// Package cmd wires the adpilot command tree: the HTTP server, the terminal
// chat client, the daily brief, the legacy migration batch, and config
// inspection.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string

	globalCfg *Config
)

// Execute is the entry point for the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd wires the cobra tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "adpilot",
		Short:         "Conversational ad campaign copilot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile == "" {
				cfgFile = DefaultConfigPath()
			}
			cfg, err := LoadConfig(cfgFile)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			globalCfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to adpilot config file")

	root.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newBriefCmd(),
		newMigrateCmd(),
		newInitCmd(),
		newConfigCmd(),
	)
	return root
}
