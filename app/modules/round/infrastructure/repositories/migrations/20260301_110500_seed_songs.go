package roundmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type seedSong struct {
	Title    string
	Lyrics   string
	Duration int
	AudioKey string
}

var seedSongs = []seedSong{
	{"Echoes of Time", "Echoes in time we sing", 120, "basic/echoes.mid"},
	{"Skyline Drift", "Drifting over skyline blue", 95, "basic/skyline.mid"},
	{"Neon Pulse", "Neon lights and heartbeat fuse", 105, "basic/neon.mid"},
	{"Silent River", "River flows in silent groove", 88, "basic/river.mid"},
	{"Glass Horizon", "Horizon made of fragile glass", 102, "basic/horizon.mid"},
	{"Midnight Circuit", "Circuit sparks at midnight hour", 111, "basic/midnight.mid"},
	{"Rust & Rain", "Rust and rain collide in sound", 97, "basic/rust.mid"},
	{"Paper Satellites", "Paper satellites drift slow", 100, "basic/paper.mid"},
	{"Low Tide Radio", "Radio hum at low tide", 93, "basic/tide.mid"},
	{"Binary Lullaby", "Binary sings you to sleep", 108, "basic/lullaby.mid"},
}

const seedArtist = "MVP Artist"

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Seeding songs...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			var count int
			if err := tx.NewRaw("SELECT COUNT(*) FROM songs").Scan(ctx, &count); err != nil {
				return fmt.Errorf("failed to count songs: %w", err)
			}
			if count > 0 {
				fmt.Println("Songs already present, skipping seed")
				return nil
			}

			for _, s := range seedSongs {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO songs (title, artist, lyrics, duration_seconds, audio_key) VALUES (?, ?, ?, ?, ?)`,
					s.Title, seedArtist, s.Lyrics, s.Duration, s.AudioKey,
				); err != nil {
					return fmt.Errorf("failed to seed %q: %w", s.Title, err)
				}
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Removing seeded songs...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM songs WHERE artist = ?`, seedArtist); err != nil {
				return fmt.Errorf("failed to remove seeded songs: %w", err)
			}
			return nil
		})
	})
}
