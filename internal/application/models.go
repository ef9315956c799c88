package application

import (
	"time"

	"github.com/example/room-reservations/internal/scheduler"
)

// Room represents a bookable room in the catalog.
type Room struct {
	ID          int64
	Name        string
	Location    string
	Capacity    int
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoomInput captures caller provided room fields for creation.
type RoomInput struct {
	Name        string
	Location    string
	Capacity    int
	Description string
}

// RoomPatch carries a partial room update. Nil fields keep their current value.
type RoomPatch struct {
	Name        *string
	Location    *string
	Capacity    *int
	Description *string
}

// Reservation is a request to hold a room for a time range on one day.
//
// Date is midnight of the reserved day in the canonical zone. Start and End
// fall on that day. A reservation is pending until Approved is set, and both
// states occupy the slot.
type Reservation struct {
	ID         int64
	Email      string
	RoomID     int64
	Date       time.Time
	Start      time.Time
	End        time.Time
	Reason     string
	Approved   bool
	Token      string
	CreatedAt  time.Time
	ApprovedAt *time.Time
}

// Interval returns the half-open span the reservation occupies.
func (r Reservation) Interval() scheduler.Interval {
	return scheduler.Interval{Start: r.Start, End: r.End}
}

// ReservationRequest captures the fields a requester submits.
type ReservationRequest struct {
	Email  string
	RoomID int64
	Date   time.Time
	Start  time.Time
	End    time.Time
	Reason string
}

// ReservationView merges a reservation with the room it references. Holding a
// view does not imply approval; check Reservation.Approved.
type ReservationView struct {
	Reservation Reservation
	Room        Room
}

// Collision is the outcome of checking a candidate slot.
type Collision struct {
	Conflict bool
	With     *scheduler.Interval
}

// LoginResult is returned by a successful admin login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
}
