package roundhandlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	identityhandlers "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/infrastructure/handlers"
	roundservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/application"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/Black-And-White-Club/reverse-chorus/internal/httpx"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
)

// multipartOverhead is allowed on top of the audio limit for form framing.
const multipartOverhead = 64 << 10

// RoundHandlers serves the round HTTP API.
type RoundHandlers struct {
	service        roundservice.Service
	maxUploadBytes int64
	logger         *slog.Logger
	tracer         trace.Tracer
}

// NewRoundHandlers creates a new RoundHandlers instance.
func NewRoundHandlers(service roundservice.Service, maxUploadBytes int64, logger *slog.Logger, tracer trace.Tracer) *RoundHandlers {
	return &RoundHandlers{service: service, maxUploadBytes: maxUploadBytes, logger: logger, tracer: tracer}
}

// MountRoomRoutes registers the room-scoped round routes on the /rooms
// subrouter.
func (h *RoundHandlers) MountRoomRoutes(r chi.Router, requirePlayer func(http.Handler) http.Handler) {
	r.With(requirePlayer).Post("/{code}/start", h.HandleStart)
	r.With(requirePlayer).Get("/{code}/round", h.HandleGetRound)
}

// Mount registers the per-round routes on a /rounds/{id} subrouter. Every
// route requires a token bound to the round's room; uploads are throttled
// by limit.
func (h *RoundHandlers) Mount(r chi.Router, requireRoundPlayer, limit func(http.Handler) http.Handler) {
	r.Use(requireRoundPlayer)
	r.Get("/song", h.HandleSong)
	r.With(limit).Post("/originals", h.HandleUploadOriginal)
	r.With(limit).Post("/reverses", h.HandleUploadReverse)
	r.Get("/clues", h.HandleClues)
	r.Post("/guesses", h.HandleGuesses)
	r.Post("/score", h.HandleScore)
	r.Get("/results", h.HandleResults)
	r.Get("/results.xlsx", h.HandleResultsWorkbook)
	r.Get("/leaderboard.png", h.HandleLeaderboardChart)
}

// MountAudio registers the grant-authenticated audio route on r.
func (h *RoundHandlers) MountAudio(r chi.Router) {
	r.Get("/audio/{grant}", h.HandleAudio)
}

func (h *RoundHandlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RoundHandlers.HandleStart")
	defer span.End()

	code, ok := h.memberCode(w, r)
	if !ok {
		return
	}
	id, _ := identityhandlers.PlayerFromContext(ctx)

	state, err := h.service.StartGame(ctx, code, id.PlayerID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(ctx, "Game started", attr.RoomCode(code), attr.RoundID(state.RoundID))
	httpx.WriteJSON(w, http.StatusCreated, state)
}

func (h *RoundHandlers) HandleGetRound(w http.ResponseWriter, r *http.Request) {
	code, ok := h.memberCode(w, r)
	if !ok {
		return
	}
	state, err := h.service.GetRoundState(r.Context(), code)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, state)
}

func (h *RoundHandlers) HandleSong(w http.ResponseWriter, r *http.Request) {
	id, _ := identityhandlers.RoundPlayerFromContext(r.Context())
	song, err := h.service.GetAssignedSong(r.Context(), id.RoundID, id.PlayerID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, song)
}

func (h *RoundHandlers) HandleUploadOriginal(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RoundHandlers.HandleUploadOriginal")
	defer span.End()

	audio, err := h.readAudio(w, r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	id, _ := identityhandlers.RoundPlayerFromContext(ctx)

	res, err := h.service.UploadOriginal(ctx, id.RoundID, id.PlayerID, audio)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, res)
}

func (h *RoundHandlers) HandleUploadReverse(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RoundHandlers.HandleUploadReverse")
	defer span.End()

	audio, err := h.readAudio(w, r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	id, _ := identityhandlers.RoundPlayerFromContext(ctx)

	res, err := h.service.UploadReverse(ctx, id.RoundID, id.PlayerID, audio)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, res)
}

func (h *RoundHandlers) HandleClues(w http.ResponseWriter, r *http.Request) {
	id, _ := identityhandlers.RoundPlayerFromContext(r.Context())
	clues, err := h.service.GetClues(r.Context(), id.RoundID, id.PlayerID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"clues": clues})
}

type guessRequest struct {
	Guesses []roundservice.GuessInput `json:"guesses"`
}

func (h *RoundHandlers) HandleGuesses(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RoundHandlers.HandleGuesses")
	defer span.End()

	var req guessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	id, _ := identityhandlers.RoundPlayerFromContext(ctx)

	res, err := h.service.SubmitGuesses(ctx, id.RoundID, id.PlayerID, req.Guesses)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *RoundHandlers) HandleScore(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RoundHandlers.HandleScore")
	defer span.End()

	id, _ := identityhandlers.RoundPlayerFromContext(ctx)
	res, err := h.service.TriggerScoring(ctx, id.RoundID, id.PlayerID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *RoundHandlers) HandleResults(w http.ResponseWriter, r *http.Request) {
	id, _ := identityhandlers.RoundPlayerFromContext(r.Context())
	res, err := h.service.GetResults(r.Context(), id.RoundID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *RoundHandlers) HandleResultsWorkbook(w http.ResponseWriter, r *http.Request) {
	id, _ := identityhandlers.RoundPlayerFromContext(r.Context())
	data, err := h.service.ResultsWorkbook(r.Context(), id.RoundID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="round-%s.xlsx"`, id.RoundID))
	writeBytes(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *RoundHandlers) HandleLeaderboardChart(w http.ResponseWriter, r *http.Request) {
	id, _ := identityhandlers.RoundPlayerFromContext(r.Context())
	data, err := h.service.LeaderboardChart(r.Context(), id.RoundID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	writeBytes(w, "image/png", data)
}

// HandleAudio streams the artifact a grant unlocks. The grant itself is the
// credential so audio elements can load it without headers.
func (h *RoundHandlers) HandleAudio(w http.ResponseWriter, r *http.Request) {
	stream, err := h.service.OpenAudio(r.Context(), chi.URLParam(r, "grant"))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	writeBytes(w, stream.ContentType, stream.Data)
}

// readAudio pulls the "audio" part out of a multipart upload.
func (h *RoundHandlers) readAudio(w http.ResponseWriter, r *http.Request) (roundservice.Audio, error) {
	limit := h.maxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return roundservice.Audio{}, roundservice.ErrAudioTooLarge
		}
		return roundservice.Audio{}, fmt.Errorf("%w: %v", roundservice.ErrInvalidAudio, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return roundservice.Audio{}, fmt.Errorf("%w: %v", roundservice.ErrInvalidAudio, err)
	}
	if int64(len(data)) > limit {
		return roundservice.Audio{}, roundservice.ErrAudioTooLarge
	}
	return roundservice.Audio{ContentType: header.Header.Get("Content-Type"), Data: data}, nil
}

// memberCode returns the path room code when the caller's token is bound to
// it, and writes a 401 otherwise.
func (h *RoundHandlers) memberCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := identityhandlers.PlayerFromContext(r.Context())
	code, valid := gametypes.NormalizeRoomCode(chi.URLParam(r, "code"))
	if !ok || !valid || id.RoomCode != code {
		httpx.WriteError(w, http.StatusUnauthorized, "token is not valid for this room")
		return "", false
	}
	return code, true
}

func writeBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
