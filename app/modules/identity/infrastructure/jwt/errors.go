package identityjwt

import "errors"

var (
	// ErrInvalidToken is returned when the grant is malformed or invalid.
	ErrInvalidToken = errors.New("invalid grant")

	// ErrExpiredToken is returned when the grant has expired.
	ErrExpiredToken = errors.New("grant has expired")

	// ErrInvalidSignature is returned when the grant signature is invalid.
	ErrInvalidSignature = errors.New("invalid grant signature")
)
