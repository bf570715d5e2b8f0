package database

import "errors"

// Sentinel errors shared by all store implementations. Callers match them
// with errors.Is after unwrapping.
var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a storage uniqueness constraint rejects a
	// write (e.g. duplicate student code or teacher username).
	ErrConflict = errors.New("conflict")

	// ErrSessionClosed is returned when an operation targets a session whose
	// ended_at is already set.
	ErrSessionClosed = errors.New("session closed")

	// ErrDimensionMismatch is returned when a stored or submitted embedding
	// does not have the configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
