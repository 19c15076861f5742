package roomdb

import "errors"

// Sentinel errors for the room repository layer.
var (
	// ErrNotFound indicates the requested room or player does not exist.
	ErrNotFound = errors.New("room record not found")

	// ErrNoRowsAffected indicates an UPDATE matched zero rows, usually a lost
	// compare-and-set.
	ErrNoRowsAffected = errors.New("no rows affected")

	// ErrDuplicateCode indicates the room code is already taken.
	ErrDuplicateCode = errors.New("room code already exists")
)
