package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStoreUnavailable is returned when the underlying database cannot be
	// reached. Fatal for the attempted call; callers must surface it rather
	// than fall back silently.
	ErrStoreUnavailable = errors.New("store unavailable")
)
