package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate reports a unique constraint violation (identifier or user email).
	ErrDuplicate = errors.New("duplicate document")
	// ErrInvalidID reports an empty or malformed identifier.
	ErrInvalidID = errors.New("invalid document id")
	// ErrStoreUnavailable wraps connectivity and driver failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)
