package identityservice

import (
	"context"
	"time"

	identitydomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/domain"
	"github.com/google/uuid"
)

// Service issues and checks player tokens and audio grants.
type Service interface {
	// Issue mints a token bound to playerID and roomCode.
	Issue(ctx context.Context, playerID uuid.UUID, roomCode string) (string, error)

	// Resolve returns the identity a token is bound to.
	Resolve(ctx context.Context, token string) (*identitydomain.Identity, error)

	// ValidateForRound resolves token and checks it belongs to the round's room.
	ValidateForRound(ctx context.Context, token string, roundID uuid.UUID) (*identitydomain.RoundIdentity, error)

	// Revoke drops every token held by playerID and returns how many existed.
	Revoke(ctx context.Context, playerID uuid.UUID) (int, error)

	// RevokeAll drops every token bound to roomCode and returns how many existed.
	RevokeAll(ctx context.Context, roomCode string) (int, error)

	IssueAudioGrant(ctx context.Context, grant identitydomain.AudioGrant) (string, error)
	ValidateAudioGrant(ctx context.Context, token string) (*identitydomain.AudioGrant, error)
}

// TokenStore persists the token lookups.
type TokenStore interface {
	Save(ctx context.Context, token string, id identitydomain.Identity) error
	Lookup(ctx context.Context, token string) (*identitydomain.Identity, error)
	Delete(ctx context.Context, roomCode string, playerID uuid.UUID) (bool, error)
	PlayersInRoom(ctx context.Context, roomCode string) ([]uuid.UUID, error)
	RoomsForPlayer(ctx context.Context, playerID uuid.UUID) ([]string, error)
}

// RoundLookup resolves a round to its owning room. Implementations return an
// error wrapping gameerrors.ErrNotFound for unknown rounds.
type RoundLookup interface {
	RoomCodeForRound(ctx context.Context, roundID uuid.UUID) (string, error)
}

// GrantSigner signs and verifies audio grants.
type GrantSigner interface {
	Sign(grant identitydomain.AudioGrant, ttl time.Duration) (string, error)
	Verify(tokenString string) (*identitydomain.AudioGrant, error)
}
