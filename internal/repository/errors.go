package repository

import "errors"

// Common repository errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrCreateFailed = errors.New("failed to create record")
	ErrUpdateFailed = errors.New("failed to update record")
	ErrDeleteFailed = errors.New("failed to delete record")
	ErrDuplicateKey = errors.New("duplicate key violation")

	// ErrStatusConflict is returned when the order status in the database
	// no longer matches the status the caller validated against.
	ErrStatusConflict = errors.New("order status changed concurrently")
)
