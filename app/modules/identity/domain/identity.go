package identitydomain

import (
	"time"

	"github.com/google/uuid"
)

// Identity is what a player token resolves to.
type Identity struct {
	PlayerID uuid.UUID `json:"playerId"`
	RoomCode string    `json:"roomCode"`
}

// RoundIdentity is an identity checked against a round's room.
type RoundIdentity struct {
	Identity
	RoundID uuid.UUID `json:"roundId"`
}

// GrantKind names which audio artifact a grant unlocks.
type GrantKind string

const (
	GrantSong             GrantKind = "song"
	GrantReversedOriginal GrantKind = "reversed-original"
	GrantFinal            GrantKind = "final"
)

// Valid reports whether k is a known grant kind.
func (k GrantKind) Valid() bool {
	switch k {
	case GrantSong, GrantReversedOriginal, GrantFinal:
		return true
	}
	return false
}

// AudioGrant lets a player fetch one artifact without sending a header.
// OwnerID is the player whose track holds the artifact; for GrantSong it is
// the song id instead.
type AudioGrant struct {
	RoundID   uuid.UUID
	PlayerID  uuid.UUID
	Kind      GrantKind
	OwnerID   uuid.UUID
	ExpiresAt time.Time
}
