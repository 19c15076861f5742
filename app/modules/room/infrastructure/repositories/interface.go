package roomdb

import (
	"context"
	"time"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository defines the contract for room persistence. Every method takes
// an optional db handle so callers can run it inside their transaction.
type Repository interface {
	// InsertRoom inserts a room. A taken code yields ErrDuplicateCode.
	InsertRoom(ctx context.Context, db bun.IDB, room *Room) error

	InsertPlayer(ctx context.Context, db bun.IDB, player *Player) error

	GetRoom(ctx context.Context, db bun.IDB, code string) (*Room, error)

	// GetRoomForUpdate reads the room and locks its row until the
	// transaction ends. Concurrent joins and status changes queue here.
	GetRoomForUpdate(ctx context.Context, db bun.IDB, code string) (*Room, error)

	// ListPresentPlayers returns players who have not left, in join order.
	ListPresentPlayers(ctx context.Context, db bun.IDB, code string) ([]Player, error)

	// MarkPlayerLeft soft-deletes a present player.
	MarkPlayerLeft(ctx context.Context, db bun.IDB, code string, playerID uuid.UUID, at time.Time) error

	// ClearHost nulls the host slot if playerID holds it and reports whether it did.
	ClearHost(ctx context.Context, db bun.IDB, code string, playerID uuid.UUID) (bool, error)

	// UpdateStatus moves a room from one status to another. A room that is
	// no longer in from yields ErrNoRowsAffected.
	UpdateStatus(ctx context.Context, db bun.IDB, code string, from, to gametypes.RoomStatus, endedAt *time.Time) error

	// BumpVersion increments the room version and returns the new value.
	// Every transaction that changes the room or its roster calls it once,
	// under the room lock.
	BumpVersion(ctx context.Context, db bun.IDB, code string) (int64, error)
}
