package repositories

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when an insert violates the email
	// uniqueness constraint
	ErrDuplicateEmail = errors.New("email already exists")
)
