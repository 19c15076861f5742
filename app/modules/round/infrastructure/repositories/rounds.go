package rounddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new round repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}

// --- Songs ---

func (r *Impl) RandomSongs(ctx context.Context, db bun.IDB, n int) ([]Song, error) {
	db = r.resolveDB(db)
	var songs []Song
	err := db.NewSelect().
		Model(&songs).
		OrderExpr("random()").
		Limit(n).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to pick songs: %w", err)
	}
	return songs, nil
}

func (r *Impl) GetSong(ctx context.Context, db bun.IDB, id uuid.UUID) (*Song, error) {
	db = r.resolveDB(db)
	song := new(Song)
	if err := db.NewSelect().Model(song).Where("s.id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get song: %w", err)
	}
	return song, nil
}

func (r *Impl) GetSongs(ctx context.Context, db bun.IDB, ids []uuid.UUID) ([]Song, error) {
	db = r.resolveDB(db)
	var songs []Song
	if len(ids) == 0 {
		return songs, nil
	}
	if err := db.NewSelect().Model(&songs).Where("s.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to get songs: %w", err)
	}
	return songs, nil
}

// --- Rounds ---

func (r *Impl) InsertRound(ctx context.Context, db bun.IDB, round *Round) error {
	db = r.resolveDB(db)
	if _, err := db.NewInsert().Model(round).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRound
		}
		return fmt.Errorf("failed to insert round: %w", err)
	}
	return nil
}

func (r *Impl) GetRound(ctx context.Context, db bun.IDB, id uuid.UUID) (*Round, error) {
	return r.getRound(ctx, r.resolveDB(db), id, false)
}

func (r *Impl) GetRoundForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*Round, error) {
	return r.getRound(ctx, r.resolveDB(db), id, true)
}

func (r *Impl) getRound(ctx context.Context, db bun.IDB, id uuid.UUID, lock bool) (*Round, error) {
	round := new(Round)
	q := db.NewSelect().Model(round).Where("rd.id = ?", id)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return round, nil
}

func (r *Impl) LatestRound(ctx context.Context, db bun.IDB, roomCode string) (*Round, error) {
	db = r.resolveDB(db)
	round := new(Round)
	err := db.NewSelect().
		Model(round).
		Where("rd.room_code = ?", roomCode).
		Order("rd.round_number DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest round: %w", err)
	}
	return round, nil
}

func (r *Impl) UpdatePhase(ctx context.Context, db bun.IDB, id uuid.UUID, from, to gametypes.Phase, at time.Time) error {
	db = r.resolveDB(db)
	q := db.NewUpdate().
		Model((*Round)(nil)).
		Set("phase = ?", to).
		Where("id = ?", id).
		Where("phase = ?", from)
	switch to {
	case gametypes.PhaseGuessing:
		q = q.Set("guessing_started_at = ?", at)
	case gametypes.PhaseRoundEnded:
		q = q.Set("ended_at = ?", at)
	}
	result, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update round phase: %w", err)
	}
	return requireRows(result)
}

// --- Tracks ---

func (r *Impl) InsertTracks(ctx context.Context, db bun.IDB, tracks []Track) error {
	db = r.resolveDB(db)
	if len(tracks) == 0 {
		return nil
	}
	if _, err := db.NewInsert().Model(&tracks).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert tracks: %w", err)
	}
	return nil
}

func (r *Impl) ListTracks(ctx context.Context, db bun.IDB, roundID uuid.UUID) ([]Track, error) {
	db = r.resolveDB(db)
	var tracks []Track
	err := db.NewSelect().
		Model(&tracks).
		ColumnExpr("t.*").
		ColumnExpr("p.display_name AS performer_name").
		ColumnExpr("sp.display_name AS singer_name").
		Join("JOIN players AS p ON p.id = t.player_id").
		Join("LEFT JOIN players AS sp ON sp.id = t.reverse_singer_player_id").
		Where("t.round_id = ?", roundID).
		Order("p.joined_at ASC", "p.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	return tracks, nil
}

func (r *Impl) GetTrack(ctx context.Context, db bun.IDB, roundID, playerID uuid.UUID) (*Track, error) {
	return r.getTrack(ctx, r.resolveDB(db), roundID, "t.player_id = ?", playerID)
}

func (r *Impl) GetTrackBySinger(ctx context.Context, db bun.IDB, roundID, singerID uuid.UUID) (*Track, error) {
	return r.getTrack(ctx, r.resolveDB(db), roundID, "t.reverse_singer_player_id = ?", singerID)
}

func (r *Impl) getTrack(ctx context.Context, db bun.IDB, roundID uuid.UUID, where string, id uuid.UUID) (*Track, error) {
	track := new(Track)
	err := db.NewSelect().
		Model(track).
		Where("t.round_id = ?", roundID).
		Where(where, id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	return track, nil
}

func (r *Impl) UpdateTrackStatus(ctx context.Context, db bun.IDB, roundID, playerID uuid.UUID, from, to gametypes.TrackStatus, keys TrackKeys) error {
	db = r.resolveDB(db)
	q := db.NewUpdate().
		Model((*Track)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now().UTC()).
		Where("round_id = ?", roundID).
		Where("player_id = ?", playerID).
		Where("status = ?", from)

	for column, key := range map[string]string{
		"original_audio_key":    keys.Original,
		"reversed_audio_key":    keys.Reversed,
		"reverse_recording_key": keys.ReverseRecording,
		"final_audio_key":       keys.Final,
	} {
		if key != "" {
			q = q.Set("? = ?", bun.Ident(column), key)
		}
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update track status: %w", err)
	}
	return requireRows(result)
}

func (r *Impl) CountTracksBelow(ctx context.Context, db bun.IDB, roundID uuid.UUID, status gametypes.TrackStatus) (int, error) {
	db = r.resolveDB(db)
	below := statusesBelow(status)
	if len(below) == 0 {
		return 0, nil
	}
	n, err := db.NewSelect().
		Model((*Track)(nil)).
		Where("round_id = ?", roundID).
		Where("status IN (?)", bun.In(below)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}

func statusesBelow(status gametypes.TrackStatus) []gametypes.TrackStatus {
	var below []gametypes.TrackStatus
	for _, s := range []gametypes.TrackStatus{
		gametypes.TrackOriginalsRecording,
		gametypes.TrackOriginalsReversedReady,
		gametypes.TrackReversedRecording,
		gametypes.TrackFinalAudioReady,
	} {
		if s.Rank() < status.Rank() {
			below = append(below, s)
		}
	}
	return below
}

func (r *Impl) AssignReverseSingers(ctx context.Context, db bun.IDB, roundID uuid.UUID, singers map[uuid.UUID]uuid.UUID) (int, error) {
	db = r.resolveDB(db)
	updated := 0
	now := time.Now().UTC()
	for performer, singer := range singers {
		result, err := db.NewUpdate().
			Model((*Track)(nil)).
			Set("reverse_singer_player_id = ?", singer).
			Set("status = ?", gametypes.TrackReversedRecording).
			Set("updated_at = ?", now).
			Where("round_id = ?", roundID).
			Where("player_id = ?", performer).
			Where("reverse_singer_player_id IS NULL").
			Exec(ctx)
		if err != nil {
			return updated, fmt.Errorf("failed to assign reverse singer: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return updated, fmt.Errorf("failed to get rows affected: %w", err)
		}
		updated += int(rows)
	}
	return updated, nil
}

// --- Guesses ---

func (r *Impl) InsertGuesses(ctx context.Context, db bun.IDB, guesses []Guess) error {
	db = r.resolveDB(db)
	if len(guesses) == 0 {
		return nil
	}
	if _, err := db.NewInsert().Model(&guesses).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateGuess
		}
		return fmt.Errorf("failed to insert guesses: %w", err)
	}
	return nil
}

func (r *Impl) HasGuessed(ctx context.Context, db bun.IDB, roundID, playerID uuid.UUID) (bool, error) {
	db = r.resolveDB(db)
	exists, err := db.NewSelect().
		Model((*Guess)(nil)).
		Where("round_id = ?", roundID).
		Where("player_id = ?", playerID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check guesses: %w", err)
	}
	return exists, nil
}

func (r *Impl) CountSubmitters(ctx context.Context, db bun.IDB, roundID uuid.UUID) (int, error) {
	db = r.resolveDB(db)
	var n int
	err := db.NewSelect().
		Model((*Guess)(nil)).
		ColumnExpr("COUNT(DISTINCT player_id)").
		Where("round_id = ?", roundID).
		Scan(ctx, &n)
	if err != nil {
		return 0, fmt.Errorf("failed to count submitters: %w", err)
	}
	return n, nil
}

func (r *Impl) ListGuesses(ctx context.Context, db bun.IDB, roundID uuid.UUID) ([]Guess, error) {
	db = r.resolveDB(db)
	var guesses []Guess
	err := db.NewSelect().
		Model(&guesses).
		Where("g.round_id = ?", roundID).
		Order("g.submitted_at ASC", "g.player_id ASC", "g.clue_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list guesses: %w", err)
	}
	return guesses, nil
}

func requireRows(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
