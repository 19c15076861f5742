package roundmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating songs, rounds, round_tracks and round_guesses tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			statements := []struct {
				name string
				sql  string
			}{
				{"songs", `
					CREATE TABLE IF NOT EXISTS songs (
						id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
						title VARCHAR(255) NOT NULL,
						artist VARCHAR(255) NOT NULL,
						lyrics TEXT NOT NULL,
						duration_seconds INTEGER NOT NULL CHECK (duration_seconds > 0),
						audio_key VARCHAR(512) NOT NULL,
						audio_type VARCHAR(64) NOT NULL DEFAULT 'audio/midi'
					);`},
				{"rounds", `
					CREATE TABLE IF NOT EXISTS rounds (
						id UUID PRIMARY KEY,
						room_code CHAR(6) NOT NULL REFERENCES rooms(code) ON DELETE CASCADE,
						round_number INTEGER NOT NULL CHECK (round_number > 0),
						phase VARCHAR(32) NOT NULL CHECK (phase IN (
							'originals_recording', 'originals_reversed_ready', 'reversed_recording',
							'final_audio_ready', 'guessing', 'scores_fetching', 'round_ended')),
						started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
						guessing_started_at TIMESTAMPTZ,
						ended_at TIMESTAMPTZ,
						UNIQUE (room_code, round_number)
					);`},
				{"round_tracks", `
					CREATE TABLE IF NOT EXISTS round_tracks (
						round_id UUID NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
						player_id UUID NOT NULL REFERENCES players(id),
						song_id UUID NOT NULL REFERENCES songs(id),
						original_audio_key TEXT,
						reversed_audio_key TEXT,
						reverse_recording_key TEXT,
						final_audio_key TEXT,
						reverse_singer_player_id UUID REFERENCES players(id),
						status VARCHAR(32) NOT NULL CHECK (status IN (
							'originals_recording', 'originals_reversed_ready',
							'reversed_recording', 'final_audio_ready')),
						updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
						PRIMARY KEY (round_id, player_id),
						CHECK (reverse_singer_player_id IS NULL OR reverse_singer_player_id <> player_id)
					);
					CREATE UNIQUE INDEX IF NOT EXISTS idx_round_tracks_singer
						ON round_tracks(round_id, reverse_singer_player_id)
						WHERE reverse_singer_player_id IS NOT NULL;`},
				{"round_guesses", `
					CREATE TABLE IF NOT EXISTS round_guesses (
						round_id UUID NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
						player_id UUID NOT NULL REFERENCES players(id),
						clue_index INTEGER NOT NULL CHECK (clue_index >= 0),
						title_guess VARCHAR(255) NOT NULL DEFAULT '',
						artist_guess VARCHAR(255) NOT NULL DEFAULT '',
						submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
						PRIMARY KEY (round_id, player_id, clue_index)
					);`},
			}

			for _, s := range statements {
				if _, err := tx.ExecContext(ctx, s.sql); err != nil {
					return fmt.Errorf("failed to create %s table: %w", s.name, err)
				}
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping round tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				DROP TABLE IF EXISTS round_guesses;
				DROP TABLE IF EXISTS round_tracks;
				DROP TABLE IF EXISTS rounds;
				DROP TABLE IF EXISTS songs;
			`); err != nil {
				return fmt.Errorf("failed to drop round tables: %w", err)
			}
			return nil
		})
	})
}
