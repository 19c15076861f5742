package scoringdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new scoring repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) HasScores(ctx context.Context, db bun.IDB, roundID uuid.UUID) (bool, error) {
	exists, err := r.resolveDB(db).NewSelect().
		Model((*RoundScore)(nil)).
		Where("rs.round_id = ?", roundID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check round scores: %w", err)
	}
	return exists, nil
}

func (r *Impl) InsertScores(ctx context.Context, db bun.IDB, scores []RoundScore) error {
	if len(scores) == 0 {
		return nil
	}
	if _, err := r.resolveDB(db).NewInsert().Model(&scores).Exec(ctx); err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation {
			return ErrScoresExist
		}
		return fmt.Errorf("failed to insert round scores: %w", err)
	}
	return nil
}

func (r *Impl) ListScores(ctx context.Context, db bun.IDB, roundID uuid.UUID) ([]RoundScore, error) {
	var scores []RoundScore
	err := r.resolveDB(db).NewSelect().
		Model(&scores).
		Where("rs.round_id = ?", roundID).
		Order("rs.clue_index ASC", "rs.player_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list round scores: %w", err)
	}
	return scores, nil
}
