package persistence

import "context"

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id int64) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id int64) error
	CountReservationsForRoom(ctx context.Context, roomID int64) (int, error)
}

// ReservationRepository stores reservations and answers slot queries.
type ReservationRepository interface {
	// CreateReservation inserts reservation and returns it with its ID set.
	// Implementations reject overlapping rows for the same room and date with
	// ErrOverlap.
	CreateReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	GetReservation(ctx context.Context, id int64) (Reservation, error)
	FindReservationByToken(ctx context.Context, token string) (Reservation, error)
	// ListReservationsForSlot returns every reservation, approved or not, for
	// roomID on date ordered by start time.
	ListReservationsForSlot(ctx context.Context, roomID int64, date string) ([]Reservation, error)
	// ListReservationsFrom returns reservations dated on or after date ordered
	// by date then start time.
	ListReservationsFrom(ctx context.Context, date string) ([]Reservation, error)
	SaveReservation(ctx context.Context, reservation Reservation) error
}
