package persistence

import "time"

// Room represents a bookable room catalog entry.
type Room struct {
	ID          int64
	Name        string
	Location    string
	Capacity    int
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reservation represents a reservation row.
//
// Date is stored as YYYY-MM-DD and StartTime/EndTime as zero-padded HH:MM in
// the canonical timezone, so lexical order equals chronological order.
type Reservation struct {
	ID         int64
	Email      string
	Date       string
	StartTime  string
	EndTime    string
	Reason     string
	RoomID     int64
	Approved   bool
	Token      string
	CreatedAt  time.Time
	ApprovedAt *time.Time
}
