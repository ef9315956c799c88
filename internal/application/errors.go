package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when a request lacks a valid authorization token.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a requested slot overlaps a held reservation.
	ErrConflict = errors.New("application: slot already reserved")
	// ErrRoomInUse is returned when deleting a room that reservations still reference.
	ErrRoomInUse = errors.New("application: room has reservations")
	// ErrInvalidCredentials is returned when admin login fails.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
)

// ConflictError describes the slot that blocked a reservation. It matches
// ErrConflict with errors.Is.
type ConflictError struct {
	RoomID    int64
	Date      time.Time
	Requested scheduler.Interval
	// Existing is the zero Interval when the clash was detected by storage
	// rather than by the in-process check.
	Existing scheduler.Interval
}

func (e *ConflictError) Error() string {
	if e.Existing.Start.IsZero() {
		return fmt.Sprintf("room %d is already reserved between %s and %s",
			e.RoomID, e.Requested.Start.Format(ClockLayout), e.Requested.End.Format(ClockLayout))
	}
	return fmt.Sprintf("room %d is already reserved from %s to %s",
		e.RoomID, e.Existing.Start.Format(ClockLayout), e.Existing.End.Format(ClockLayout))
}

// Unwrap lets errors.Is match ErrConflict.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// NewValidationError returns a ValidationError holding a single field message.
func NewValidationError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Add records a field level validation error. The first message for a field wins.
func (v *ValidationError) Add(field, message string) {
	v.add(field, message)
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// errOrNil returns v as an error only when it holds field errors, so callers
// never hand out a typed nil.
func (v *ValidationError) errOrNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}
