package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"n1core/domain/core"
	"n1core/internal"
	"n1core/internal/config"
	"n1core/internal/container"
)

var (
	logLevel string
	logger   *internal.Logger
)

var rootCmd = &cobra.Command{
	Use:   "n1core",
	Short: "Per-athlete adaptive intelligence core",
	Long: `n1core turns one athlete's daily signals into findings, a readiness score
and at most two daily insights. Every command reads its settings from the
environment (and .env when present).

COMMANDS:

  run         Run the daily pipeline for every active athlete
  calibrate   Re-fit readiness thresholds from logged outcomes
  migrate     Create or update the database schema
  serve       Start the read API
  export      Write one athlete's findings, readiness and insights to a workbook
  simulate    Run the pipeline over a synthetic or file-backed athlete in memory

ENVIRONMENT:

  STORE             postgres (default) or memory
  DATABASE_URL      postgres connection string
  REDIS_ADDR        athlete lock backend; empty means in-process locking
  KAFKA_BROKERS     comma separated; empty disables insight publishing
  NARRATOR_URL      optional narration endpoint
  FLAGS_FILE        YAML rule and feature flags, re-read on every run
  POLARITY_FILE     YAML metric polarity registry
  LOG_LEVEL         error, warn, info, debug or trace`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "" {
			logger = internal.NewLogger(internal.ParseLogLevel(logLevel))
		} else {
			logger = internal.NewDefaultLogger()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// openContainer loads configuration and wires every configured backend
func openContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return container.New(ctx, cfg, logger)
}

// parseDateFlag parses a YYYY-MM-DD flag value; empty means today (UTC)
func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return core.DateOf(time.Now()), nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date: %w", err)
	}
	return d, nil
}
