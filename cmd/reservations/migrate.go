package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/room-reservations/internal/config"
	"github.com/example/room-reservations/internal/logging"
	"github.com/example/room-reservations/internal/persistence/sqlite"
)

func newMigrateCmd() *cobra.Command {
	var (
		dsn    string
		status bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel := slog.LevelInfo
			if dsn == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				dsn = cfg.SQLiteDSN
				logLevel = cfg.LogLevel
			}
			logger := logging.New(cmd.ErrOrStderr(), logLevel)

			if status {
				return printMigrationStatus(cmd.Context(), cmd.OutOrStdout(), dsn, logger)
			}
			return runMigrations(cmd.Context(), cmd.OutOrStdout(), dsn, logger)
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "SQLite database path (defaults to RESERVATIONS_SQLITE_DSN)")
	cmd.Flags().BoolVar(&status, "status", false, "report applied and pending migrations without applying them")
	return cmd
}

func runMigrations(ctx context.Context, out io.Writer, dsn string, logger *slog.Logger) error {
	storage, err := sqlite.Open(ctx, sqlite.DefaultConfig(dsn), logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer storage.Close()

	applied, err := storage.Migrate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "applied %d migration(s)\n", applied)
	return nil
}

func printMigrationStatus(ctx context.Context, out io.Writer, dsn string, logger *slog.Logger) error {
	storage, err := sqlite.Open(ctx, sqlite.DefaultConfig(dsn), logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer storage.Close()

	status, err := storage.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	current := status.CurrentVersion
	if current == "" {
		current = "none"
	}
	fmt.Fprintf(out, "current version: %s\n", current)
	fmt.Fprintf(out, "applied: %d\n", len(status.Applied))
	for _, pending := range status.Pending {
		fmt.Fprintf(out, "pending: %s %s\n", pending.Version, pending.Description)
	}
	return nil
}
