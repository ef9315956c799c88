package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/room-reservations/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the connection pool with the repositories built on it.
type Storage struct {
	pool   *ConnectionPool
	logger *slog.Logger

	Rooms        *RoomRepository
	Reservations *ReservationRepository
}

// Open connects to the database described by config. Call Migrate before
// using the repositories against a fresh database.
func Open(ctx context.Context, config Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:         pool,
		logger:       logger,
		Rooms:        NewRoomRepository(pool),
		Reservations: NewReservationRepository(pool),
	}, nil
}

// Pool exposes the underlying connection pool.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Migrate applies the embedded schema migrations and returns how many ran.
func (s *Storage) Migrate(ctx context.Context) (int, error) {
	manager := s.migrationManager()
	applied, err := manager.Run(ctx)
	if err != nil {
		return applied, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return applied, nil
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	return s.migrationManager().Status(ctx)
}

func (s *Storage) migrationManager() *migration.Manager {
	return migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		s.logger,
	)
}
