package scoringservice

import (
	"fmt"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gameerrors"
)

var (
	ErrAlreadyScored     = fmt.Errorf("%w: round already scored", gameerrors.ErrConflict)
	ErrNotScored         = fmt.Errorf("%w: round has not been scored", gameerrors.ErrNotFound)
	ErrOracleUnavailable = fmt.Errorf("%w: score oracle unavailable", gameerrors.ErrDependencyFailure)
	ErrOracleMalformed   = fmt.Errorf("%w: score oracle returned malformed output", gameerrors.ErrDependencyFailure)
)
