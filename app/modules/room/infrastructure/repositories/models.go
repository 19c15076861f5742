package roomdb

import (
	"time"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Room is the durable room row.
type Room struct {
	bun.BaseModel `bun:"table:rooms,alias:r"`
	Code          string               `bun:"code,pk" json:"code"`
	HostPlayerID  *uuid.UUID           `bun:"host_player_id,type:uuid" json:"host_player_id"`
	Status        gametypes.RoomStatus `bun:"status,notnull" json:"status"`
	CreatedAt     time.Time            `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	EndedAt       *time.Time           `bun:"ended_at" json:"ended_at,omitempty"`
	Version       int64                `bun:"version,notnull,default:1" json:"version"`
}

// Player is the durable player row. LeftAt marks a soft leave.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	RoomCode      string     `bun:"room_code,notnull" json:"room_code"`
	DisplayName   string     `bun:"display_name,notnull" json:"display_name"`
	JoinedAt      time.Time  `bun:"joined_at,notnull,default:current_timestamp" json:"joined_at"`
	LeftAt        *time.Time `bun:"left_at" json:"left_at,omitempty"`
}

// ToShared converts the row into the shared player view.
func (p *Player) ToShared() gametypes.Player {
	return gametypes.Player{
		ID:          p.ID,
		RoomCode:    p.RoomCode,
		DisplayName: p.DisplayName,
		JoinedAt:    p.JoinedAt,
	}
}

// View assembles the shared room view from a room row and its present
// players in join order.
func View(room *Room, players []Player) *gametypes.Room {
	view := &gametypes.Room{
		Code:         room.Code,
		HostPlayerID: room.HostPlayerID,
		Status:       room.Status,
		Players:      make([]gametypes.Player, 0, len(players)),
		CreatedAt:    room.CreatedAt,
		EndedAt:      room.EndedAt,
		Version:      room.Version,
	}
	for i := range players {
		view.Players = append(view.Players, players[i].ToShared())
	}
	return view
}
