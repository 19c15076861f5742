package roomservice

import (
	"fmt"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gameerrors"
)

const (
	minNameLength = 3
	maxNameLength = 64
)

var (
	ErrNameTooShort            = fmt.Errorf("%w: display name must be at least %d characters", gameerrors.ErrInvalidInput, minNameLength)
	ErrNameTooLong             = fmt.Errorf("%w: display name must be at most %d characters", gameerrors.ErrInvalidInput, maxNameLength)
	ErrInvalidRoomCode         = fmt.Errorf("%w: room code must be 6 letters or digits", gameerrors.ErrInvalidInput)
	ErrRoomNotFound            = fmt.Errorf("%w: room", gameerrors.ErrNotFound)
	ErrPlayerNotInRoom         = fmt.Errorf("%w: player is not in this room", gameerrors.ErrNotFound)
	ErrRoomNotJoinable         = fmt.Errorf("%w: game already started", gameerrors.ErrConflict)
	ErrDuplicateName           = fmt.Errorf("%w: display name already taken in this room", gameerrors.ErrConflict)
	ErrRoomAlreadyEnded        = fmt.Errorf("%w: room already ended", gameerrors.ErrConflict)
	ErrNotHost                 = fmt.Errorf("%w: only the host can do that", gameerrors.ErrUnauthorized)
	ErrCodeAllocationExhausted = fmt.Errorf("%w: could not allocate a unique room code", gameerrors.ErrInsufficientContent)
)
