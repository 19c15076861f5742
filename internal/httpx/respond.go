package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gameerrors"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
)

// PlayerTokenHeader carries the player token when Authorization is not used.
const PlayerTokenHeader = "X-Player-Token"

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": msg} with status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// StatusFor maps an error to its HTTP status by kind.
func StatusFor(err error) int {
	switch gameerrors.KindOf(err) {
	case gameerrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case gameerrors.ErrNotFound:
		return http.StatusNotFound
	case gameerrors.ErrConflict:
		return http.StatusConflict
	case gameerrors.ErrInsufficientContent:
		return http.StatusUnprocessableEntity
	case gameerrors.ErrInvalidInput:
		return http.StatusBadRequest
	case gameerrors.ErrDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondError logs err and writes the client-facing failure. Server side
// failures carry only their kind; the wrapped detail goes to the log.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", attr.ExtractCorrelationID(r.Context()), attr.String("path", r.URL.Path), attr.Error(err))
		WriteError(w, status, serverMessage(err))
		return
	}
	logger.WarnContext(r.Context(), "Request rejected", attr.ExtractCorrelationID(r.Context()), attr.String("path", r.URL.Path), attr.Error(err))
	WriteError(w, status, err.Error())
}

func serverMessage(err error) string {
	if kind := gameerrors.KindOf(err); kind != nil {
		return kind.Error()
	}
	return "internal error"
}

// DecodeJSON decodes the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(gameerrors.ErrInvalidInput, err)
	}
	return nil
}

// BearerToken extracts the player token from Authorization or X-Player-Token.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(PlayerTokenHeader))
}
