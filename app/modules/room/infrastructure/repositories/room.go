package roomdb

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

// NewRepository creates a new room repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
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

func (r *Impl) InsertRoom(ctx context.Context, db bun.IDB, room *Room) error {
	db = r.resolveDB(db)
	if _, err := db.NewInsert().Model(room).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

func (r *Impl) InsertPlayer(ctx context.Context, db bun.IDB, player *Player) error {
	db = r.resolveDB(db)
	if _, err := db.NewInsert().Model(player).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert player: %w", err)
	}
	return nil
}

func (r *Impl) GetRoom(ctx context.Context, db bun.IDB, code string) (*Room, error) {
	return r.getRoom(ctx, r.resolveDB(db), code, false)
}

func (r *Impl) GetRoomForUpdate(ctx context.Context, db bun.IDB, code string) (*Room, error) {
	return r.getRoom(ctx, r.resolveDB(db), code, true)
}

func (r *Impl) getRoom(ctx context.Context, db bun.IDB, code string, lock bool) (*Room, error) {
	room := new(Room)
	q := db.NewSelect().Model(room).Where("r.code = ?", code)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func (r *Impl) ListPresentPlayers(ctx context.Context, db bun.IDB, code string) ([]Player, error) {
	db = r.resolveDB(db)
	var players []Player
	err := db.NewSelect().
		Model(&players).
		Where("p.room_code = ?", code).
		Where("p.left_at IS NULL").
		Order("p.joined_at ASC", "p.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return players, nil
}

func (r *Impl) MarkPlayerLeft(ctx context.Context, db bun.IDB, code string, playerID uuid.UUID, at time.Time) error {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*Player)(nil)).
		Set("left_at = ?", at).
		Where("id = ?", playerID).
		Where("room_code = ?", code).
		Where("left_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark player left: %w", err)
	}
	return requireRows(result)
}

func (r *Impl) ClearHost(ctx context.Context, db bun.IDB, code string, playerID uuid.UUID) (bool, error) {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*Room)(nil)).
		Set("host_player_id = NULL").
		Where("code = ?", code).
		Where("host_player_id = ?", playerID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to clear host: %w", err)
	}
	if err := requireRows(result); err != nil {
		if errors.Is(err, ErrNoRowsAffected) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Impl) UpdateStatus(ctx context.Context, db bun.IDB, code string, from, to gametypes.RoomStatus, endedAt *time.Time) error {
	db = r.resolveDB(db)
	q := db.NewUpdate().
		Model((*Room)(nil)).
		Set("status = ?", to).
		Where("code = ?", code).
		Where("status = ?", from)
	if endedAt != nil {
		q = q.Set("ended_at = ?", *endedAt)
	}
	result, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update room status: %w", err)
	}
	return requireRows(result)
}

func (r *Impl) BumpVersion(ctx context.Context, db bun.IDB, code string) (int64, error) {
	db = r.resolveDB(db)
	var version int64
	err := db.NewUpdate().
		Model((*Room)(nil)).
		Set("version = version + 1").
		Where("code = ?", code).
		Returning("version").
		Scan(ctx, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to bump room version: %w", err)
	}
	return version, nil
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
