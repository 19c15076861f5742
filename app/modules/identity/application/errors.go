package identityservice

import (
	"fmt"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gameerrors"
)

var (
	ErrMissingToken  = fmt.Errorf("%w: missing player token", gameerrors.ErrUnauthorized)
	ErrUnknownToken  = fmt.Errorf("%w: unknown or expired player token", gameerrors.ErrUnauthorized)
	ErrRoomMismatch  = fmt.Errorf("%w: token is not valid for this round", gameerrors.ErrUnauthorized)
	ErrInvalidGrant  = fmt.Errorf("%w: invalid or expired audio grant", gameerrors.ErrUnauthorized)
	ErrInvalidPlayer = fmt.Errorf("%w: player id and room code are required", gameerrors.ErrInvalidInput)
)
