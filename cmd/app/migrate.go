// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/go-auth-api/internal/config"
	"codeberg.org/oliverandrich/go-auth-api/internal/database"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

var errMongoMigrations = errors.New("migrations only apply to SQLite; MongoDB indexes are created on startup")

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the SQLite schema",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Action: withDB(database.RunMigrations),
			},
			{
				Name:   "down",
				Usage:  "Roll back the last migration",
				Action: withDB(database.MigrateDown),
			},
			{
				Name:   "reset",
				Usage:  "Roll back all migrations",
				Action: withDB(database.MigrateReset),
			},
			{
				Name:  "status",
				Usage: "Print the current schema version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					db, err := connect(ctx, cmd)
					if err != nil {
						return err
					}
					defer func() { _ = db.Close() }()

					version, err := database.MigrationVersion(db.DB)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.Root().Writer, "schema version: %d\n", version)
					return err
				},
			},
		},
	}
}

func connect(ctx context.Context, cmd *cli.Command) (*sqlx.DB, error) {
	cfg := config.NewFromCLI(cmd)
	if cfg.Database.IsMongo() {
		return nil, errMongoMigrations
	}
	return database.Connect(ctx, cfg.Database.DSN)
}

// withDB runs a migration step against the configured database.
func withDB(step func(*sql.DB) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		db, err := connect(ctx, cmd)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if err := step(db.DB); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		version, err := database.MigrationVersion(db.DB)
		if err != nil {
			return err
		}
		slog.Info("migration_complete", "command", cmd.Name, "version", version)
		return nil
	}
}
