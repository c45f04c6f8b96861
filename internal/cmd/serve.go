package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"storefront-engine/internal/config"
	"storefront-engine/internal/server"
	"storefront-engine/internal/utils"
)

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		applyOverrides(cfg)
		if port != "" {
			cfg.Port = port
		}
		utils.SetupLogging(cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := server.New(ctx, cfg)
		if err != nil {
			return err
		}

		slog.Info("Starting storefront API", "port", cfg.Port, "catalog", cfg.CatalogSource)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
}
