// Package cmd implements the storefront command line.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"storefront-engine/internal/config"
	"storefront-engine/internal/server"
	"storefront-engine/internal/utils"
)

var (
	catalogSource string
	storageDir    string
	logLevel      string
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront catalog and cart engine",
	Long: `storefront serves the catalog query engine and the persisted cart over HTTP,
or runs single operations against the same catalog feed and cart storage.

Configuration is read from .env and the environment; the flags below
override the matching variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogSource, "catalog", "", "catalog feed URL or file (overrides CATALOG_SOURCE)")
	rootCmd.PersistentFlags().StringVar(&storageDir, "storage-dir", "", "storage directory (overrides STORAGE_DIR)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliConfig loads configuration for one-shot commands. Logs go to stderr so
// stdout carries only command output.
func cliConfig() *config.Config {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	applyOverrides(cfg)
	slog.SetDefault(utils.NewLogger(os.Stderr, cfg.LogLevel))
	return cfg
}

func applyOverrides(cfg *config.Config) {
	if catalogSource != "" {
		cfg.CatalogSource = catalogSource
	}
	if storageDir != "" {
		cfg.StorageDir = storageDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

// withEngines opens the engines for the duration of fn
func withEngines(ctx context.Context, fn func(*server.Engines) error) error {
	engines, err := server.OpenEngines(ctx, cliConfig(), nil)
	if err != nil {
		return err
	}
	defer engines.Close()
	return fn(engines)
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
