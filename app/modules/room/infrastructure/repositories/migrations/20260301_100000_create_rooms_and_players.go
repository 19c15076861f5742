package roommigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating rooms and players tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS rooms (
					code CHAR(6) PRIMARY KEY,
					host_player_id UUID,
					status VARCHAR(16) NOT NULL DEFAULT 'waiting'
						CHECK (status IN ('waiting', 'playing', 'ended')),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					ended_at TIMESTAMPTZ,
					version BIGINT NOT NULL DEFAULT 1
				);
			`); err != nil {
				return fmt.Errorf("failed to create rooms table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS players (
					id UUID PRIMARY KEY,
					room_code CHAR(6) NOT NULL REFERENCES rooms(code) ON DELETE CASCADE,
					display_name VARCHAR(64) NOT NULL,
					joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					left_at TIMESTAMPTZ
				);
				CREATE INDEX IF NOT EXISTS idx_players_room_present
					ON players(room_code, joined_at) WHERE left_at IS NULL;
			`); err != nil {
				return fmt.Errorf("failed to create players table: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping rooms and players tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS players; DROP TABLE IF EXISTS rooms;`); err != nil {
				return fmt.Errorf("failed to drop room tables: %w", err)
			}
			return nil
		})
	})
}
