package repository

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist in the database.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when the store rejects a record as an already-seen submission.
	ErrDuplicate = errors.New("duplicate submission")

	// ErrInvalidID is returned when an identifier does not have the store's ID shape.
	ErrInvalidID = errors.New("invalid id")
)
