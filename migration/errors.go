package migration

import (
	"errors"
	"fmt"
)

// ErrInvalidTarget is returned for negative target versions.
var ErrInvalidTarget = errors.New("target version must not be negative")

// LoadError is returned when migrations can't be loaded from a source, or a
// loaded migration is invalid.
type LoadError struct {
	Source  string
	Version int64
	Msg     string
	Err     error
}

// Error returns a string representation of the error.
func (e *LoadError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg != "" {
			msg = fmt.Sprintf("%s: %s", msg, e.Err)
		} else {
			msg = e.Err.Error()
		}
	}
	if e.Version != 0 {
		return fmt.Sprintf("failed loading migration %d from %s: %s", e.Version, e.Source, msg)
	}
	return fmt.Sprintf("failed loading migrations from %s: %s", e.Source, msg)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// DuplicateVersionError is returned when two migrations share a version.
type DuplicateVersionError struct {
	Version int64
	// First and Second are the names of the conflicting migrations.
	First, Second string
}

// Error returns a string representation of the error.
func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("duplicate migration version %d: '%s' and '%s'", e.Version, e.First, e.Second)
}

// MissingMigrationError is returned when an applied version must be reverted,
// but no migration with that version is loaded.
type MissingMigrationError struct {
	Version int64
}

// Error returns a string representation of the error.
func (e *MissingMigrationError) Error() string {
	return fmt.Sprintf("applied migration %d not found", e.Version)
}

// MigrationFailedError is returned when a migration step fails. The step's
// changes were rolled back and the remaining steps weren't attempted.
type MigrationFailedError struct {
	Version   int64
	Name      string
	Direction Direction
	Err       error
}

// Error returns a string representation of the error.
func (e *MigrationFailedError) Error() string {
	return fmt.Sprintf("failed running migration %d-%s %s: %s", e.Version, e.Name, e.Direction, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *MigrationFailedError) Unwrap() error {
	return e.Err
}
