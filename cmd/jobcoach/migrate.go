package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"jobcoach-web/internal/shared/config"
	"jobcoach-web/internal/shared/storage/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply session-store migrations to DATABASE_URL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd, db.RunMigrations)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the migration status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDatabase(cmd, db.MigrationStatus)
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func withDatabase(cmd *cobra.Command, run func(ctx context.Context, database *sql.DB) error) error {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	ctx := cmd.Context()
	conn, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer conn.Close()
	return run(ctx, conn)
}
