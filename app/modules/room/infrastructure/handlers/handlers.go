package roomhandlers

import (
	"log/slog"
	"net/http"

	roomservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/application"
	identityhandlers "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/infrastructure/handlers"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/Black-And-White-Club/reverse-chorus/internal/httpx"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
)

// RoomHandlers serves the room HTTP API.
type RoomHandlers struct {
	service roomservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewRoomHandlers creates a new RoomHandlers instance.
func NewRoomHandlers(service roomservice.Service, logger *slog.Logger, tracer trace.Tracer) *RoomHandlers {
	return &RoomHandlers{service: service, logger: logger, tracer: tracer}
}

// Mount registers the routes on r. Mutations other than create and join
// pass through requirePlayer; create and join are throttled by limit.
func (h *RoomHandlers) Mount(r chi.Router, requirePlayer, limit func(http.Handler) http.Handler) {
	r.With(limit).Post("/", h.HandleCreate)
	r.Get("/{code}", h.HandleGet)
	r.Get("/{code}/qr.png", h.HandleQRCode)
	r.With(limit).Post("/{code}/join", h.HandleJoin)
	r.Group(func(r chi.Router) {
		r.Use(requirePlayer)
		r.Post("/{code}/leave", h.HandleLeave)
		r.Post("/{code}/end", h.HandleEnd)
	})
}

type nameRequest struct {
	Name string `json:"name"`
}

func (h *RoomHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RoomHandlers.HandleCreate")
	defer span.End()

	var req nameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}

	res, err := h.service.CreateRoom(ctx, req.Name)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(ctx, "Room created", attr.RoomCode(res.Room.Code), attr.PlayerID(res.Player.ID))
	httpx.WriteJSON(w, http.StatusCreated, res)
}

func (h *RoomHandlers) HandleJoin(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RoomHandlers.HandleJoin")
	defer span.End()

	var req nameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}

	res, err := h.service.JoinRoom(ctx, chi.URLParam(r, "code"), req.Name)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *RoomHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	room, err := h.service.GetRoom(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, room)
}

func (h *RoomHandlers) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	png, err := h.service.JoinQRCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *RoomHandlers) HandleLeave(w http.ResponseWriter, r *http.Request) {
	code, ok := h.memberCode(w, r)
	if !ok {
		return
	}
	id, _ := identityhandlers.PlayerFromContext(r.Context())

	room, err := h.service.RemovePlayer(r.Context(), code, id.PlayerID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, room)
}

func (h *RoomHandlers) HandleEnd(w http.ResponseWriter, r *http.Request) {
	code, ok := h.memberCode(w, r)
	if !ok {
		return
	}
	id, _ := identityhandlers.PlayerFromContext(r.Context())

	res, err := h.service.EndGame(r.Context(), code, id.PlayerID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// memberCode returns the path room code when the caller's token is bound to
// it, and writes a 401 otherwise.
func (h *RoomHandlers) memberCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := identityhandlers.PlayerFromContext(r.Context())
	code, valid := gametypes.NormalizeRoomCode(chi.URLParam(r, "code"))
	if !ok || !valid || id.RoomCode != code {
		httpx.WriteError(w, http.StatusUnauthorized, "token is not valid for this room")
		return "", false
	}
	return code, true
}
