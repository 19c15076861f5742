package rounddb

import (
	"context"
	"time"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository defines the contract for round persistence. Every method takes
// an optional db handle so callers can run it inside their transaction.
type Repository interface {
	// RandomSongs returns up to n distinct songs in random order.
	RandomSongs(ctx context.Context, db bun.IDB, n int) ([]Song, error)
	GetSong(ctx context.Context, db bun.IDB, id uuid.UUID) (*Song, error)
	GetSongs(ctx context.Context, db bun.IDB, ids []uuid.UUID) ([]Song, error)

	// InsertRound yields ErrDuplicateRound when the room already has the
	// round number.
	InsertRound(ctx context.Context, db bun.IDB, round *Round) error
	GetRound(ctx context.Context, db bun.IDB, id uuid.UUID) (*Round, error)

	// GetRoundForUpdate locks the round row until the transaction ends. Every
	// phase change goes through it.
	GetRoundForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*Round, error)

	// LatestRound returns the highest numbered round of a room.
	LatestRound(ctx context.Context, db bun.IDB, roomCode string) (*Round, error)

	// UpdatePhase moves the round from one phase to the next. Entering
	// guessing stamps guessing_started_at and entering round_ended stamps
	// ended_at. A round no longer in from yields ErrNoRowsAffected.
	UpdatePhase(ctx context.Context, db bun.IDB, id uuid.UUID, from, to gametypes.Phase, at time.Time) error

	InsertTracks(ctx context.Context, db bun.IDB, tracks []Track) error

	// ListTracks returns the round's tracks in performer join order.
	ListTracks(ctx context.Context, db bun.IDB, roundID uuid.UUID) ([]Track, error)
	GetTrack(ctx context.Context, db bun.IDB, roundID, playerID uuid.UUID) (*Track, error)

	// GetTrackBySinger returns the track singerID was assigned to reverse.
	GetTrackBySinger(ctx context.Context, db bun.IDB, roundID, singerID uuid.UUID) (*Track, error)

	// UpdateTrackStatus moves one track forward and records keys. A track no
	// longer in from yields ErrNoRowsAffected.
	UpdateTrackStatus(ctx context.Context, db bun.IDB, roundID, playerID uuid.UUID, from, to gametypes.TrackStatus, keys TrackKeys) error

	// CountTracksBelow counts tracks whose status ranks before status.
	CountTracksBelow(ctx context.Context, db bun.IDB, roundID uuid.UUID, status gametypes.TrackStatus) (int, error)

	// AssignReverseSingers records each performer's reverse singer and moves
	// the track to reversed_recording. Tracks that already have a singer are
	// left alone. It returns how many tracks it updated.
	AssignReverseSingers(ctx context.Context, db bun.IDB, roundID uuid.UUID, singers map[uuid.UUID]uuid.UUID) (int, error)

	// InsertGuesses yields ErrDuplicateGuess when any row exists already.
	InsertGuesses(ctx context.Context, db bun.IDB, guesses []Guess) error
	HasGuessed(ctx context.Context, db bun.IDB, roundID, playerID uuid.UUID) (bool, error)

	// CountSubmitters counts distinct players with guesses on the round.
	CountSubmitters(ctx context.Context, db bun.IDB, roundID uuid.UUID) (int, error)
	ListGuesses(ctx context.Context, db bun.IDB, roundID uuid.UUID) ([]Guess, error)
}
