package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique column would hold the same value twice.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation covers CHECK and NOT NULL failures.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a row references a missing or
	// still-referenced parent.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrOverlap is returned when a reservation would overlap an existing one
	// for the same room and date.
	ErrOverlap = errors.New("persistence: reservation overlaps an existing reservation")
)
