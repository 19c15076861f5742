package identityhandlers

import (
	"context"
	"log/slog"
	"net/http"

	identitydomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/domain"
	"github.com/Black-And-White-Club/reverse-chorus/internal/httpx"
	"github.com/google/uuid"
)

// Resolver resolves player tokens.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*identitydomain.Identity, error)
}

type contextKey struct{}

// WithPlayer stores id in ctx.
func WithPlayer(ctx context.Context, id *identitydomain.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// PlayerFromContext returns the identity RequirePlayer stored.
func PlayerFromContext(ctx context.Context) (*identitydomain.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*identitydomain.Identity)
	return id, ok && id != nil
}

// RequirePlayer rejects requests without a valid player token.
func RequirePlayer(resolver Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r.Context(), httpx.BearerToken(r))
			if err != nil {
				httpx.RespondError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPlayer(r.Context(), id)))
		})
	}
}

// RoundValidator checks player tokens against a round's room.
type RoundValidator interface {
	ValidateForRound(ctx context.Context, token string, roundID uuid.UUID) (*identitydomain.RoundIdentity, error)
}

type roundContextKey struct{}

// WithRoundPlayer stores id in ctx.
func WithRoundPlayer(ctx context.Context, id *identitydomain.RoundIdentity) context.Context {
	return context.WithValue(ctx, roundContextKey{}, id)
}

// RoundPlayerFromContext returns the identity RequireRoundPlayer stored.
func RoundPlayerFromContext(ctx context.Context) (*identitydomain.RoundIdentity, bool) {
	id, ok := ctx.Value(roundContextKey{}).(*identitydomain.RoundIdentity)
	return id, ok && id != nil
}

// RequireRoundPlayer rejects requests whose token is not bound to the room
// owning the round roundID extracts from the request.
func RequireRoundPlayer(validator RoundValidator, roundID func(*http.Request) string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(roundID(r))
			if err != nil {
				httpx.WriteError(w, http.StatusNotFound, "round not found")
				return
			}
			rid, err := validator.ValidateForRound(r.Context(), httpx.BearerToken(r), id)
			if err != nil {
				httpx.RespondError(w, r, logger, err)
				return
			}
			ctx := WithPlayer(r.Context(), &rid.Identity)
			next.ServeHTTP(w, r.WithContext(WithRoundPlayer(ctx, rid)))
		})
	}
}
