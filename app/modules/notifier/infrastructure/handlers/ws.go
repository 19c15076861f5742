// Package notifierhandlers serves the real-time websocket endpoint.
package notifierhandlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	identityhandlers "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/infrastructure/handlers"
	notifierhub "github.com/Black-And-White-Club/reverse-chorus/app/modules/notifier/infrastructure/hub"
	"github.com/Black-And-White-Club/reverse-chorus/internal/events"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"
)

// Frames only ever sent to a single socket.
const (
	KindJoined events.Kind = "joined"
	KindError  events.Kind = "error"
)

const inboundJoinRoom = "join_room"

// RoomReader loads the current roster.
type RoomReader interface {
	GetRoom(ctx context.Context, code string) (*gametypes.Room, error)
}

// RoundReader loads the live round of a room.
type RoundReader interface {
	GetRoundState(ctx context.Context, code string) (*gametypes.RoundState, error)
}

// Notifier publishes room events.
type Notifier interface {
	Notify(ctx context.Context, roomCode string, kind events.Kind, payload any) error
}

// WSHandler upgrades GET /ws and speaks the room protocol.
type WSHandler struct {
	hub      *notifierhub.Hub
	resolver identityhandlers.Resolver
	rooms    RoomReader
	rounds   RoundReader
	notifier Notifier
	upgrader websocket.Upgrader
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewWSHandler creates the handler. An empty allowedOrigins accepts any
// origin.
func NewWSHandler(
	hub *notifierhub.Hub,
	resolver identityhandlers.Resolver,
	rooms RoomReader,
	rounds RoundReader,
	notifier Notifier,
	allowedOrigins []string,
	logger *slog.Logger,
	tracer trace.Tracer,
) *WSHandler {
	return &WSHandler{
		hub:      hub,
		resolver: resolver,
		rooms:    rooms,
		rounds:   rounds,
		notifier: notifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
		tracer: tracer,
		now:    time.Now,
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinRequest struct {
	RoomCode string    `json:"roomCode"`
	PlayerID uuid.UUID `json:"playerId"`
	Token    string    `json:"token"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeHTTP blocks for the lifetime of the connection.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Websocket upgrade failed", attr.Error(err))
		return
	}

	client := notifierhub.NewClient(h.hub, conn, h.logger)
	client.Run(context.WithoutCancel(r.Context()), h.handleMessage, h.handleClose)
}

func (h *WSHandler) handleMessage(ctx context.Context, c *notifierhub.Client, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(c, "malformed message")
		return
	}

	switch msg.Type {
	case inboundJoinRoom:
		h.join(ctx, c, msg.Payload)
	case string(events.HostAudioSync), string(events.HostSongChanged):
		h.relay(ctx, c, events.Kind(msg.Type), msg.Payload)
	default:
		h.sendError(c, "unknown message type")
	}
}

func (h *WSHandler) join(ctx context.Context, c *notifierhub.Client, raw json.RawMessage) {
	ctx, span := h.tracer.Start(ctx, "WSHandler.join")
	defer span.End()

	var req joinRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.sendError(c, "malformed join request")
		return
	}
	code, ok := gametypes.NormalizeRoomCode(req.RoomCode)
	if !ok {
		h.sendError(c, "invalid room code")
		return
	}

	id, err := h.resolver.Resolve(ctx, req.Token)
	if err != nil || id.PlayerID != req.PlayerID || id.RoomCode != code {
		h.logger.InfoContext(ctx, "Websocket join rejected", attr.RoomCode(code), attr.PlayerID(req.PlayerID))
		h.sendError(c, "unauthorized")
		return
	}

	room, err := h.rooms.GetRoom(ctx, code)
	if err != nil {
		h.sendError(c, "room not found")
		return
	}
	player, ok := room.Player(id.PlayerID)
	if !ok {
		h.sendError(c, "not a member of this room")
		return
	}

	h.hub.Join(c, code, player.ID)
	h.send(c, code, KindJoined, events.RoomPayload{Room: *room})

	h.notify(ctx, code, events.PlayerJoined, events.PlayerPayload{PlayerID: player.ID, DisplayName: player.DisplayName})
	h.notify(ctx, code, events.RoomUpdated, events.RoomPayload{Room: *room})

	if state, err := h.rounds.GetRoundState(ctx, code); err == nil {
		h.send(c, code, events.GameStarted, events.PhasePayload{
			RoundID:     state.RoundID,
			RoundNumber: state.RoundNumber,
			Phase:       state.Phase,
		})
	}

	h.logger.InfoContext(ctx, "Websocket joined room", attr.RoomCode(code), attr.PlayerID(player.ID))
}

func (h *WSHandler) relay(ctx context.Context, c *notifierhub.Client, kind events.Kind, payload json.RawMessage) {
	code, playerID, ok := c.Identity()
	if !ok {
		h.sendError(c, "join a room first")
		return
	}

	room, err := h.rooms.GetRoom(ctx, code)
	if err != nil {
		h.sendError(c, "room not found")
		return
	}
	if !room.IsHost(playerID) {
		h.sendError(c, "only the host can do that")
		return
	}

	var body any
	if len(payload) > 0 {
		body = payload
	}
	h.notify(ctx, code, kind, body)
}

func (h *WSHandler) handleClose(c *notifierhub.Client) {
	code, playerID, ok := c.Identity()
	if !ok {
		return
	}
	h.notify(context.Background(), code, events.PlayerLeft, events.PlayerPayload{PlayerID: playerID})
}

func (h *WSHandler) notify(ctx context.Context, code string, kind events.Kind, payload any) {
	if err := h.notifier.Notify(ctx, code, kind, payload); err != nil {
		h.logger.WarnContext(ctx, "Failed to publish room event",
			attr.RoomCode(code),
			attr.String("event_kind", string(kind)),
			attr.Error(err),
		)
	}
}

func (h *WSHandler) send(c *notifierhub.Client, code string, kind events.Kind, payload any) {
	frame, err := json.Marshal(events.Envelope{Kind: kind, RoomCode: code, Payload: payload, EmittedAt: h.now().UTC()})
	if err != nil {
		h.logger.Error("Failed to marshal websocket frame", attr.Error(err))
		return
	}
	c.Send(frame)
}

func (h *WSHandler) sendError(c *notifierhub.Client, message string) {
	code, _, _ := c.Identity()
	h.send(c, code, KindError, errorPayload{Message: message})
}
