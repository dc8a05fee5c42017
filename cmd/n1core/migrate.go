package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"n1core/adapters/postgres"
	"n1core/internal/config"
	"n1core/internal/migration"
)

var migrateDev bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Create every table and index the core owns. Statements are idempotent, so
migrate is safe to run on every deploy. --dev also creates the sample and
plan-link tables that ingestion owns in production.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Database.Store != "postgres" {
			return fmt.Errorf("migrate needs STORE=postgres, got %q", cfg.Database.Store)
		}

		db, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
		if err != nil {
			return err
		}
		defer db.Close()

		runner := migration.NewRunner(migrateDev)
		if err := runner.Run(ctx, db); err != nil {
			return err
		}
		logger.Info("schema %s applied", runner.Version())
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDev, "dev", false, "also create ingestion-owned tables")
	rootCmd.AddCommand(migrateCmd)
}
