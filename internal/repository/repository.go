package repository

import "errors"

// Sentinel errors returned across the store boundary. Handlers map these to
// HTTP statuses; everything else is treated as an internal failure.
var (
	ErrNotFound          = errors.New("not found")
	ErrSourceInactive    = errors.New("source not active")
	ErrInvalidTransition = errors.New("invalid status transition")
)
