package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager applies pending migrations in version order.
type Manager struct {
	scanner  *Scanner
	executor *SQLiteExecutor
	logger   *slog.Logger
}

// NewManager wires a scanner and executor together.
func NewManager(scanner *Scanner, executor *SQLiteExecutor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scanner: scanner, executor: executor, logger: logger.With("component", "migration")}
}

// Run applies every pending migration and returns how many were applied.
func (m *Manager) Run(ctx context.Context) (int, error) {
	started := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date", "current_version", status.CurrentVersion)
		return 0, nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)

	for i, migration := range status.Pending {
		if err := m.executor.Apply(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"file", migration.FilePath,
				"error", err,
			)
			return i, NewMigrationError(migration.Version, migration.FilePath, "apply migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"checksum", migration.Checksum,
		)
	}

	m.logger.InfoContext(ctx, "migrations complete",
		"applied", len(status.Pending),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return len(status.Pending), nil
}

// Status compares the migration files against schema_migrations. It fails
// when an applied file has since been edited.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := m.scanner.Scan()
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}

	checksums := make(map[int]string, len(applied))
	status := Status{Applied: applied}
	for _, record := range applied {
		checksums[versionNumber(record.Version)] = record.Checksum
		status.CurrentVersion = record.Version
	}

	for _, migration := range available {
		checksum, done := checksums[versionNumber(migration.Version)]
		if !done {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if checksum != "" && checksum != migration.Checksum {
			return Status{}, NewMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}
