package rounddb

import "errors"

// Sentinel errors for the round repository layer.
var (
	ErrNotFound = errors.New("round record not found")

	// ErrNoRowsAffected indicates a compare-and-set UPDATE lost.
	ErrNoRowsAffected = errors.New("no rows affected")

	// ErrDuplicateRound indicates the room already has a round with that number.
	ErrDuplicateRound = errors.New("round number already exists for room")

	// ErrDuplicateGuess indicates the player already guessed on the round.
	ErrDuplicateGuess = errors.New("guess already recorded")
)
