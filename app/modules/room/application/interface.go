package roomservice

import (
	"context"
	"time"

	"github.com/Black-And-White-Club/reverse-chorus/internal/events"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
)

// Service defines the room state store.
type Service interface {
	CreateRoom(ctx context.Context, hostName string) (*CreateRoomResult, error)
	JoinRoom(ctx context.Context, code, name string) (*JoinRoomResult, error)

	// GetRoom serves from cache and rehydrates from durable rows on a miss.
	GetRoom(ctx context.Context, code string) (*gametypes.Room, error)

	RemovePlayer(ctx context.Context, code string, playerID uuid.UUID) (*gametypes.Room, error)

	// Refresh rebuilds the cached view from durable rows.
	Refresh(ctx context.Context, code string) (*gametypes.Room, error)

	EndGame(ctx context.Context, code string, requesterID uuid.UUID) (*EndGameResult, error)
	ExpireRoom(ctx context.Context, code string) (bool, error)
	JoinQRCode(ctx context.Context, code string) ([]byte, error)
}

// CreateRoomResult is returned to the host.
type CreateRoomResult struct {
	Room   *gametypes.Room  `json:"room"`
	Player gametypes.Player `json:"player"`
	Token  string           `json:"token"`
}

// JoinRoomResult is returned to a joining player.
type JoinRoomResult struct {
	Room   *gametypes.Room  `json:"room"`
	Player gametypes.Player `json:"player"`
	Token  string           `json:"token"`
}

// EndGameResult reports the ended room and how many tokens were revoked.
type EndGameResult struct {
	Room        *gametypes.Room `json:"room"`
	Invalidated int             `json:"invalidated"`
}

// RoomCache holds derived room views.
type RoomCache interface {
	Get(ctx context.Context, code string) (*gametypes.Room, error)
	Put(ctx context.Context, room *gametypes.Room) error
	Delete(ctx context.Context, code string) error
}

// TokenIssuer is the slice of the identity service rooms use.
type TokenIssuer interface {
	Issue(ctx context.Context, playerID uuid.UUID, roomCode string) (string, error)
	RevokeAll(ctx context.Context, roomCode string) (int, error)
}

// Notifier pushes room events to connected players.
type Notifier interface {
	Notify(ctx context.Context, roomCode string, kind events.Kind, payload any) error
}

// ExpiryScheduler schedules the abandoned-room job.
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, code string, at time.Time) error
}
