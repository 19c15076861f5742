package scoringmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating round_scores table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS round_scores (
					round_id UUID NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
					player_id UUID NOT NULL REFERENCES players(id),
					clue_index INTEGER NOT NULL CHECK (clue_index >= 0),
					ai_score DOUBLE PRECISION NOT NULL CHECK (ai_score BETWEEN 0 AND 10),
					base_points INTEGER NOT NULL,
					speed_bonus INTEGER NOT NULL,
					artist_bonus INTEGER NOT NULL,
					total_points INTEGER NOT NULL,
					used_fallback BOOLEAN NOT NULL DEFAULT FALSE,
					reasoning TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (round_id, player_id, clue_index)
				);
			`); err != nil {
				return fmt.Errorf("failed to create round_scores table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping round_scores table...")

		_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS round_scores;`)
		if err != nil {
			return fmt.Errorf("failed to drop round_scores table: %w", err)
		}
		return nil
	})
}
