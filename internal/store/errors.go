package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateHash is returned when a credential insert violates the
	// unique constraint on the hashed secret column.
	ErrDuplicateHash = errors.New("duplicate hashed secret")
)
