package migration

import (
	"errors"
	"fmt"
)

var (
	ErrMigrationFailed      = errors.New("migration execution failed")
	ErrInvalidMigrationFile = errors.New("invalid migration file format")
	ErrInvalidVersion       = errors.New("invalid migration version")
	ErrDuplicateVersion     = errors.New("duplicate migration version")
	// ErrChecksumMismatch means an applied migration file was edited afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// MigrationError records which migration file and step failed.
type MigrationError struct {
	Version   string
	FilePath  string
	Operation string
	Err       error
}

func (e *MigrationError) Error() string {
	subject := "migration"
	if e.Version != "" {
		subject += " " + e.Version
	}
	if e.FilePath != "" {
		subject += " (" + e.FilePath + ")"
	}
	return fmt.Sprintf("%s: %s: %v", subject, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// NewMigrationError builds a MigrationError.
func NewMigrationError(version, filePath, operation string, err error) *MigrationError {
	return &MigrationError{Version: version, FilePath: filePath, Operation: operation, Err: err}
}
