package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/pocotu/oficri-areas/modules/areas/infrastructure/persistence"
	"github.com/pocotu/oficri-areas/pkg/configuration"
)

type gooseCommand func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the areas schema migrations",
	}
	cmd.AddCommand(
		newMigrateSubCmd("up", "Apply all pending migrations", goose.UpContext),
		newMigrateSubCmd("down", "Roll back the latest migration", goose.DownContext),
		newMigrateSubCmd("status", "Print migration status", goose.StatusContext),
	)
	return cmd
}

func newMigrateSubCmd(use, short string, run gooseCommand) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conf, err := configuration.Load(".env", ".env.local")
			if err != nil {
				return withCode(exitUsage, err)
			}
			defer conf.Unload()

			pool, err := connectDB(ctx, conf)
			if err != nil {
				return withCode(exitDB, err)
			}
			defer pool.Close()

			db := stdlib.OpenDBFromPool(pool)
			defer db.Close()

			goose.SetBaseFS(persistence.Migrations)
			if err := goose.SetDialect("postgres"); err != nil {
				return withCode(exitUsage, err)
			}
			if err := run(ctx, db, persistence.MigrationsDir); err != nil {
				return withCode(exitDB, fmt.Errorf("migrate %s: %w", use, err))
			}
			return nil
		},
	}
}
