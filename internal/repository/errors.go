package repository

import "errors"

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry means an insert or update violated a unique constraint.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

// Per-resource aliases so callers can be explicit without new sentinel values.
var (
	ErrUserNotFound     = ErrNotFound
	ErrDocumentNotFound = ErrNotFound
	ErrGrantNotFound    = ErrNotFound
)
