package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pisoheroes/internal/remote"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations to the remote store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			switch cfg.DataBackend {
			case "postgres":
				err = remote.MigratePostgres(cfg.DatabaseURL)
			case "sqlite":
				err = remote.MigrateSQLite(cfg.SQLiteDBPath)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Backend %q has no schema, nothing to migrate\n", cfg.DataBackend)
				return nil
			}
			if err != nil {
				return fmt.Errorf("migrate %s: %w", cfg.DataBackend, err)
			}
			logger.Info("Migrations applied", "backend", cfg.DataBackend)
			fmt.Fprintln(cmd.OutOrStdout(), "✅ Migrations applied")
			return nil
		},
	}
}
