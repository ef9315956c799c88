package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/room-reservations/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository using
// SQLite. Overlap rejection is enforced by the reservations_no_overlap
// trigger so the check and the insert are one atomic statement.
type ReservationRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewReservationRepository creates a new SQLite reservation repository.
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{pool: pool, mapper: NewErrorMapper()}
}

const reservationColumns = `id, email, date, start_time, end_time, reason, room_id, approved, token, created_at, approved_at`

// CreateReservation inserts reservation and returns it with its ID set.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation) (persistence.Reservation, error) {
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = time.Now().UTC()
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO reservations (email, date, start_time, end_time, reason, room_id, approved, token, created_at, approved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reservation.Email,
		reservation.Date,
		reservation.StartTime,
		reservation.EndTime,
		reservation.Reason,
		reservation.RoomID,
		reservation.Approved,
		reservation.Token,
		formatTimestamp(reservation.CreatedAt),
		nullableTimestamp(reservation.ApprovedAt),
	)
	if err != nil {
		return persistence.Reservation{}, r.mapper.MapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to read reservation id: %w", err)
	}
	reservation.ID = id
	return reservation, nil
}

// GetReservation retrieves a reservation by ID.
func (r *ReservationRepository) GetReservation(ctx context.Context, id int64) (persistence.Reservation, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	reservation, err := scanReservation(row)
	if err != nil {
		return persistence.Reservation{}, r.mapper.MapError(err)
	}
	return reservation, nil
}

// FindReservationByToken retrieves the reservation carrying token.
func (r *ReservationRepository) FindReservationByToken(ctx context.Context, token string) (persistence.Reservation, error) {
	if token == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE token = ?`, token)
	reservation, err := scanReservation(row)
	if err != nil {
		return persistence.Reservation{}, r.mapper.MapError(err)
	}
	return reservation, nil
}

// ListReservationsForSlot returns every reservation of roomID on date.
func (r *ReservationRepository) ListReservationsForSlot(ctx context.Context, roomID int64, date string) ([]persistence.Reservation, error) {
	return r.list(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE room_id = ? AND date = ?
		ORDER BY start_time ASC, end_time ASC, id ASC`, roomID, date)
}

// ListReservationsFrom returns reservations dated on or after date.
func (r *ReservationRepository) ListReservationsFrom(ctx context.Context, date string) ([]persistence.Reservation, error) {
	return r.list(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE date >= ?
		ORDER BY date ASC, start_time ASC, id ASC`, date)
}

// SaveReservation persists the approval state of an existing reservation.
// Booking fields are immutable once created.
func (r *ReservationRepository) SaveReservation(ctx context.Context, reservation persistence.Reservation) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE reservations
		SET approved = ?, approved_at = ?
		WHERE id = ?`,
		reservation.Approved,
		nullableTimestamp(reservation.ApprovedAt),
		reservation.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (r *ReservationRepository) list(ctx context.Context, query string, args ...any) ([]persistence.Reservation, error) {
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	reservations := []persistence.Reservation{}
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return reservations, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		reservation persistence.Reservation
		createdAt   string
		approvedAt  sql.NullString
	)
	err := row.Scan(
		&reservation.ID,
		&reservation.Email,
		&reservation.Date,
		&reservation.StartTime,
		&reservation.EndTime,
		&reservation.Reason,
		&reservation.RoomID,
		&reservation.Approved,
		&reservation.Token,
		&createdAt,
		&approvedAt,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}

	if reservation.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if approvedAt.Valid {
		parsed, err := parseTimestamp(approvedAt.String)
		if err != nil {
			return persistence.Reservation{}, fmt.Errorf("failed to parse approved_at: %w", err)
		}
		reservation.ApprovedAt = &parsed
	}
	return reservation, nil
}

func nullableTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTimestamp(*t)
}
