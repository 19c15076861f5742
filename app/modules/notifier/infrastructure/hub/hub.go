// Package notifierhub tracks websocket clients per room and fans frames out
// to them.
package notifierhub

import (
	"log/slog"

	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

type members = xsync.MapOf[*Client, struct{}]

// Hub maps room codes to the clients that joined them.
type Hub struct {
	rooms  *xsync.MapOf[string, *members]
	logger *slog.Logger
}

// New creates an empty Hub.
func New(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  xsync.NewMapOf[string, *members](),
		logger: logger,
	}
}

// Join binds c to a room, leaving any room it was in before.
func (h *Hub) Join(c *Client, roomCode string, playerID uuid.UUID) {
	if previous, _, ok := c.Identity(); ok && previous != roomCode {
		h.Leave(c)
	}
	c.bind(roomCode, playerID)

	h.rooms.Compute(roomCode, func(group *members, loaded bool) (*members, bool) {
		if !loaded {
			group = xsync.NewMapOf[*Client, struct{}]()
		}
		group.Store(c, struct{}{})
		return group, false
	})
}

// Leave removes c from its room. Empty rooms are dropped.
func (h *Hub) Leave(c *Client) {
	roomCode, _, ok := c.Identity()
	if !ok {
		return
	}
	h.rooms.Compute(roomCode, func(group *members, loaded bool) (*members, bool) {
		if !loaded {
			return group, true
		}
		group.Delete(c)
		return group, group.Size() == 0
	})
}

// Broadcast queues frame for every client in the room and returns how many
// accepted it. A client whose buffer is full is disconnected.
func (h *Hub) Broadcast(roomCode string, frame []byte) int {
	group, ok := h.rooms.Load(roomCode)
	if !ok {
		return 0
	}

	delivered := 0
	group.Range(func(c *Client, _ struct{}) bool {
		if c.enqueue(frame) {
			delivered++
			return true
		}
		_, playerID, _ := c.Identity()
		h.logger.Warn("Dropping slow websocket client",
			attr.RoomCode(roomCode),
			attr.PlayerID(playerID),
		)
		group.Delete(c)
		c.Close()
		return true
	})
	return delivered
}

// RoomSize reports how many clients are connected to a room.
func (h *Hub) RoomSize(roomCode string) int {
	group, ok := h.rooms.Load(roomCode)
	if !ok {
		return 0
	}
	return group.Size()
}
