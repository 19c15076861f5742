package scoringdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository stores round scores.
type Repository interface {
	HasScores(ctx context.Context, db bun.IDB, roundID uuid.UUID) (bool, error)

	// InsertScores writes every score of a round. A round that already has
	// scores yields ErrScoresExist and writes nothing.
	InsertScores(ctx context.Context, db bun.IDB, scores []RoundScore) error

	// ListScores returns a round's scores by clue, then player.
	ListScores(ctx context.Context, db bun.IDB, roundID uuid.UUID) ([]RoundScore, error)
}
