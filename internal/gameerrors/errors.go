// Package gameerrors defines the error kinds every module wraps its
// sentinel errors in. Transport layers switch on these kinds only.
package gameerrors

import "errors"

var (
	// ErrUnauthorized covers missing, invalid, expired or mismatched tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound covers absent rooms, rounds, tracks and songs.
	ErrNotFound = errors.New("not found")
	// ErrConflict covers duplicate names, repeated actions and wrong phases.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientContent covers too few songs or players.
	ErrInsufficientContent = errors.New("insufficient content")
	// ErrDependencyFailure covers unreachable or misbehaving collaborators.
	ErrDependencyFailure = errors.New("dependency failure")
	// ErrInvalidInput covers malformed requests.
	ErrInvalidInput = errors.New("invalid input")
)

var kinds = []error{
	ErrUnauthorized,
	ErrNotFound,
	ErrConflict,
	ErrInsufficientContent,
	ErrDependencyFailure,
	ErrInvalidInput,
}

// KindOf returns the kind err wraps, or nil when it wraps none.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// IsDomain reports whether err is a client-facing domain failure rather than
// an infrastructure error.
func IsDomain(err error) bool {
	k := KindOf(err)
	return k != nil && k != ErrDependencyFailure
}
