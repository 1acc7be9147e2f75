package repository

import "errors"

var (
	// ErrNotFound is returned when the requested entity has no trust record.
	ErrNotFound = errors.New("trust record not found")
	// ErrVersionConflict is returned when a commit carries a stale record
	// version.
	ErrVersionConflict = errors.New("trust record version conflict")
	// ErrUnavailable is returned on storage backend failure.
	ErrUnavailable = errors.New("store unavailable")
)
