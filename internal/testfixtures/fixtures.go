package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/persistence"
)

var (
	roomCounter        uint64
	reservationCounter uint64
)

var referenceTime = time.Date(2030, time.January, 7, 12, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic room record.
type RoomFixture struct {
	Name        string
	Location    string
	Capacity    int
	Description string
	CreatedAt   time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	fixture := RoomFixture{
		Name:      fmt.Sprintf("Room %03d", idx),
		Location:  "Main Building",
		Capacity:  int(4 + idx%4),
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomName overrides the generated room name.
func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) {
		f.Name = name
	}
}

// WithRoomLocation overrides the generated location.
func WithRoomLocation(location string) RoomOption {
	return func(f *RoomFixture) {
		f.Location = location
	}
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
	}
}

// WithRoomDescription sets the free-text description.
func WithRoomDescription(description string) RoomOption {
	return func(f *RoomFixture) {
		f.Description = description
	}
}

// Input returns the fixture as service input.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		Name:        f.Name,
		Location:    f.Location,
		Capacity:    f.Capacity,
		Description: f.Description,
	}
}

// Persistence returns the fixture as a storage row without an ID.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		Name:        f.Name,
		Location:    f.Location,
		Capacity:    f.Capacity,
		Description: f.Description,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.CreatedAt,
	}
}

// -------------------------- Reservation fixtures --------------------------

// ReservationFixture describes a reservation request relative to
// ReferenceTime: DaysAhead days later, from Start to End wall-clock times.
type ReservationFixture struct {
	Email     string
	RoomID    int64
	DaysAhead int
	Start     string
	End       string
	Reason    string
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a one hour reservation of roomID a week after
// ReferenceTime.
func NewReservationFixture(roomID int64, opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	fixture := ReservationFixture{
		Email:     fmt.Sprintf("requester-%03d@example.com", idx),
		RoomID:    roomID,
		DaysAhead: 7,
		Start:     "09:00",
		End:       "10:00",
		Reason:    "team sync",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationSlot overrides the wall-clock range.
func WithReservationSlot(start, end string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Start = start
		f.End = end
	}
}

// WithReservationDaysAhead moves the reservation relative to ReferenceTime.
func WithReservationDaysAhead(days int) ReservationOption {
	return func(f *ReservationFixture) {
		f.DaysAhead = days
	}
}

// WithReservationEmail overrides the requester.
func WithReservationEmail(email string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Email = email
	}
}

// Day returns the reserved day in cal's zone.
func (f ReservationFixture) Day(cal application.Calendar) time.Time {
	return cal.Day(referenceTime).AddDate(0, 0, f.DaysAhead)
}

// Wire returns the date in the DD-MM-YYYY wire format.
func (f ReservationFixture) Wire(cal application.Calendar) string {
	return f.Day(cal).Format(application.DateLayout)
}

// Request returns the fixture as a service request. It panics on malformed
// clock values, which only a broken test can produce.
func (f ReservationFixture) Request(cal application.Calendar) application.ReservationRequest {
	day := f.Day(cal)
	start, err := cal.ParseClock(day, f.Start)
	if err != nil {
		panic(err)
	}
	end, err := cal.ParseClock(day, f.End)
	if err != nil {
		panic(err)
	}
	return application.ReservationRequest{
		Email:  f.Email,
		RoomID: f.RoomID,
		Date:   day,
		Start:  start,
		End:    end,
		Reason: f.Reason,
	}
}
