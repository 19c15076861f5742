package identityservice

import (
	"context"
	"time"

	identitydomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/domain"
	"github.com/google/uuid"
)

// ------------------------
// Fake Round Lookup
// ------------------------

type FakeRoundLookup struct {
	trace []string

	RoomCodeForRoundFunc func(ctx context.Context, roundID uuid.UUID) (string, error)
}

func (f *FakeRoundLookup) Trace() []string { return f.trace }

func (f *FakeRoundLookup) RoomCodeForRound(ctx context.Context, roundID uuid.UUID) (string, error) {
	f.trace = append(f.trace, "RoomCodeForRound")
	if f.RoomCodeForRoundFunc != nil {
		return f.RoomCodeForRoundFunc(ctx, roundID)
	}
	return "ABC123", nil
}

// ------------------------
// Fake Token Store
// ------------------------

type FakeTokenStore struct {
	trace []string

	SaveFunc           func(ctx context.Context, token string, id identitydomain.Identity) error
	LookupFunc         func(ctx context.Context, token string) (*identitydomain.Identity, error)
	DeleteFunc         func(ctx context.Context, roomCode string, playerID uuid.UUID) (bool, error)
	PlayersInRoomFunc  func(ctx context.Context, roomCode string) ([]uuid.UUID, error)
	RoomsForPlayerFunc func(ctx context.Context, playerID uuid.UUID) ([]string, error)
}

func (f *FakeTokenStore) Trace() []string { return f.trace }

func (f *FakeTokenStore) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeTokenStore) Save(ctx context.Context, token string, id identitydomain.Identity) error {
	f.record("Save")
	if f.SaveFunc != nil {
		return f.SaveFunc(ctx, token, id)
	}
	return nil
}

func (f *FakeTokenStore) Lookup(ctx context.Context, token string) (*identitydomain.Identity, error) {
	f.record("Lookup")
	if f.LookupFunc != nil {
		return f.LookupFunc(ctx, token)
	}
	return &identitydomain.Identity{PlayerID: uuid.New(), RoomCode: "ABC123"}, nil
}

func (f *FakeTokenStore) Delete(ctx context.Context, roomCode string, playerID uuid.UUID) (bool, error) {
	f.record("Delete")
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, roomCode, playerID)
	}
	return true, nil
}

func (f *FakeTokenStore) PlayersInRoom(ctx context.Context, roomCode string) ([]uuid.UUID, error) {
	f.record("PlayersInRoom")
	if f.PlayersInRoomFunc != nil {
		return f.PlayersInRoomFunc(ctx, roomCode)
	}
	return nil, nil
}

func (f *FakeTokenStore) RoomsForPlayer(ctx context.Context, playerID uuid.UUID) ([]string, error) {
	f.record("RoomsForPlayer")
	if f.RoomsForPlayerFunc != nil {
		return f.RoomsForPlayerFunc(ctx, playerID)
	}
	return nil, nil
}

// ------------------------
// Fake Grant Signer
// ------------------------

type FakeGrantSigner struct {
	grants map[string]identitydomain.AudioGrant
}

func NewFakeGrantSigner() *FakeGrantSigner {
	return &FakeGrantSigner{grants: make(map[string]identitydomain.AudioGrant)}
}

func (f *FakeGrantSigner) Sign(grant identitydomain.AudioGrant, ttl time.Duration) (string, error) {
	token := "grant-" + uuid.NewString()
	grant.ExpiresAt = time.Now().Add(ttl)
	f.grants[token] = grant
	return token, nil
}

func (f *FakeGrantSigner) Verify(tokenString string) (*identitydomain.AudioGrant, error) {
	grant, ok := f.grants[tokenString]
	if !ok || time.Now().After(grant.ExpiresAt) {
		return nil, context.DeadlineExceeded
	}
	return &grant, nil
}
