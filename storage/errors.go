package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when no record exists for a registration.
	ErrNotFound = errors.New("package record not found")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the record's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)
