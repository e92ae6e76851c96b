package store

import "errors"

var (
	// ErrNotFound covers both "no such record" and "record owned by
	// someone else". Collapsing the two stops a caller from probing for
	// the existence of other users' resources.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when the unique email index rejects
	// an insert.
	ErrDuplicateEmail = errors.New("email already exists")
)
