package roundservice

import (
	"fmt"

	scoringservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/application"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gameerrors"
)

var (
	ErrRoomNotFound        = fmt.Errorf("%w: room", gameerrors.ErrNotFound)
	ErrRoundNotFound       = fmt.Errorf("%w: round", gameerrors.ErrNotFound)
	ErrNoRound             = fmt.Errorf("%w: room has no round yet", gameerrors.ErrNotFound)
	ErrAudioNotReady       = fmt.Errorf("%w: audio is not ready", gameerrors.ErrNotFound)
	ErrNotHost             = fmt.Errorf("%w: only the host can start the game", gameerrors.ErrUnauthorized)
	ErrNotInRound          = fmt.Errorf("%w: player is not part of this round", gameerrors.ErrUnauthorized)
	ErrAudioForbidden      = fmt.Errorf("%w: audio grant does not cover this track", gameerrors.ErrUnauthorized)
	ErrGameAlreadyStarted  = fmt.Errorf("%w: game already started", gameerrors.ErrConflict)
	ErrOriginalNotExpected = fmt.Errorf("%w: original already uploaded", gameerrors.ErrConflict)
	ErrReverseNotExpected  = fmt.Errorf("%w: reverse recording is not expected", gameerrors.ErrConflict)
	ErrNotGuessing         = fmt.Errorf("%w: round is not accepting guesses", gameerrors.ErrConflict)
	ErrAlreadySubmitted    = fmt.Errorf("%w: guesses already submitted", gameerrors.ErrConflict)
	ErrNotReadyForScoring  = fmt.Errorf("%w: round is not waiting for scores", gameerrors.ErrConflict)
	ErrAlreadyScored       = scoringservice.ErrAlreadyScored
	ErrNotEnoughPlayers    = fmt.Errorf("%w: at least two players are needed", gameerrors.ErrInsufficientContent)
	ErrNotEnoughSongs      = fmt.Errorf("%w: not enough songs for every player", gameerrors.ErrInsufficientContent)
	ErrInvalidAudio        = fmt.Errorf("%w: upload must be audio", gameerrors.ErrInvalidInput)
	ErrAudioTooLarge       = fmt.Errorf("%w: audio upload too large", gameerrors.ErrInvalidInput)
	ErrNoGuesses           = fmt.Errorf("%w: at least one guess on another player's clue is required", gameerrors.ErrInvalidInput)
	ErrUnknownClue         = fmt.Errorf("%w: unknown clue index", gameerrors.ErrInvalidInput)
	ErrTranscodeFailed     = fmt.Errorf("%w: audio reversal failed", gameerrors.ErrDependencyFailure)
	ErrStorageFailed       = fmt.Errorf("%w: audio storage failed", gameerrors.ErrDependencyFailure)
)
