package domain

import "errors"

var (
	// ErrInvalidArgument marks caller bugs such as an unsupported grade.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a referenced card no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrStorage wraps any failure of the persisted store.
	ErrStorage = errors.New("storage failure")
)
