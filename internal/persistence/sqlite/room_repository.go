package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/room-reservations/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite.
type RoomRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewRoomRepository creates a new SQLite room repository.
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{pool: pool, mapper: NewErrorMapper()}
}

const roomColumns = `id, name, location, capacity, description, created_at, updated_at`

// CreateRoom inserts room and returns it with the assigned ID.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) (persistence.Room, error) {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = room.CreatedAt
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO rooms (name, location, capacity, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		room.Name,
		room.Location,
		room.Capacity,
		room.Description,
		formatTimestamp(room.CreatedAt),
		formatTimestamp(room.UpdatedAt),
	)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.Room{}, fmt.Errorf("failed to read room id: %w", err)
	}
	room.ID = id
	return room, nil
}

// UpdateRoom overwrites the mutable columns of an existing room.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = time.Now().UTC()
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE rooms
		SET name = ?, location = ?, capacity = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		room.Name,
		room.Location,
		room.Capacity,
		room.Description,
		formatTimestamp(room.UpdatedAt),
		room.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id int64) (persistence.Room, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}
	return room, nil
}

// ListRooms returns all rooms ordered by ID.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	rooms := []persistence.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rooms, nil
}

// DeleteRoom removes a room. Rooms still referenced by reservations are
// rejected with persistence.ErrForeignKeyViolation.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id int64) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var referenced int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE room_id = ?`, id).Scan(&referenced); err != nil {
			return r.mapper.MapError(err)
		}
		if referenced > 0 {
			return persistence.ErrForeignKeyViolation
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireAffected(result)
	})
}

// CountReservationsForRoom returns how many reservations reference roomID.
func (r *RoomRepository) CountReservationsForRoom(ctx context.Context, roomID int64) (int, error) {
	var count int
	err := r.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE room_id = ?`, roomID).Scan(&count)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var (
		room               persistence.Room
		createdAt, updated string
	)
	if err := row.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &room.Description, &createdAt, &updated); err != nil {
		return persistence.Room{}, err
	}

	var err error
	if room.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if room.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return room, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}
