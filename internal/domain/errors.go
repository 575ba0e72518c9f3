package domain

import "errors"

var (
	// ErrNotFound is returned when a profile, account or activity cannot be located.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAmount rejects log entries whose amount is not strictly positive.
	ErrInvalidAmount = errors.New("amount must be greater than 0")
	// ErrValidation wraps request validation failures.
	ErrValidation = errors.New("validation failed")
	// ErrConflict signals a uniqueness violation (email or username taken).
	ErrConflict = errors.New("already exists")
	// ErrInvalidCredentials is returned when sign-in fails.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrForbidden is returned when a session acts on another user's data.
	ErrForbidden = errors.New("forbidden")
)
