// Package cli implements the mamanxue command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/conorfennell/mamanxue/internal/config"
	"github.com/conorfennell/mamanxue/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:           "mamanxue",
	Short:         "Spaced-repetition review engine for language decks",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(sourceCmd)
	rootCmd.AddCommand(statsCmd)
}

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *storage.DB
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("Database opened", "path", cfg.Database.Path)
	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
