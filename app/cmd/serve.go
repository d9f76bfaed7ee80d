package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexcodex/adpilot/server"
)

// newServeCmd runs the HTTP API until interrupted.
func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := globalCfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			engine, err := buildEngine(cfg, store)
			if err != nil {
				return err
			}
			migrator := buildMigrator(cfg, store)

			logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
			api := server.NewAPI(engine, migrator, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := api.ServeContext(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
