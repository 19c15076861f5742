package identityservice

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	identitydomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/domain"
	identitystore "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/infrastructure/tokenstore"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gameerrors"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/metrics"
	"github.com/Black-And-White-Club/reverse-chorus/internal/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestService(store TokenStore, rounds RoundLookup) *IdentityService {
	return NewIdentityService(
		store,
		rounds,
		NewFakeGrantSigner(),
		time.Hour,
		testutils.DiscardLogger(),
		metrics.NewNoop(),
		noop.NewTracerProvider().Tracer("test"),
	)
}

func newKVService(rounds RoundLookup) *IdentityService {
	return newTestService(identitystore.NewKVStore(testutils.NewFakeKeyValue()), rounds)
}

func TestIssueAndResolve(t *testing.T) {
	ctx := context.Background()
	svc := newKVService(&FakeRoundLookup{})
	playerID := uuid.New()

	token, err := svc.Issue(ctx, playerID, "ABC123")
	require.NoError(t, err)
	assert.Len(t, token, 32)
	_, err = hex.DecodeString(token)
	assert.NoError(t, err)

	id, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, playerID, id.PlayerID)
	assert.Equal(t, "ABC123", id.RoomCode)

	again, err := svc.Issue(ctx, playerID, "ABC123")
	require.NoError(t, err)
	assert.NotEqual(t, token, again)
	_, err = svc.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestIssue(t *testing.T) {
	tests := []struct {
		name        string
		playerID    uuid.UUID
		roomCode    string
		setupStore  func(f *FakeTokenStore)
		expectedErr error
	}{
		{
			name:     "success",
			playerID: uuid.New(),
			roomCode: "ABC123",
		},
		{
			name:        "missing player",
			playerID:    uuid.Nil,
			roomCode:    "ABC123",
			expectedErr: ErrInvalidPlayer,
		},
		{
			name:     "store failure is a dependency failure",
			playerID: uuid.New(),
			roomCode: "ABC123",
			setupStore: func(f *FakeTokenStore) {
				f.SaveFunc = func(ctx context.Context, token string, id identitydomain.Identity) error {
					return testutils.ErrBackend
				}
			},
			expectedErr: gameerrors.ErrDependencyFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &FakeTokenStore{}
			if tt.setupStore != nil {
				tt.setupStore(store)
			}
			svc := newTestService(store, &FakeRoundLookup{})

			token, err := svc.Issue(context.Background(), tt.playerID, tt.roomCode)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, token, 32)
			assert.Equal(t, []string{"Save"}, store.Trace())
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		token       string
		setupStore  func(f *FakeTokenStore)
		expectedErr error
	}{
		{
			name:        "empty token",
			token:       "",
			expectedErr: ErrMissingToken,
		},
		{
			name:  "unknown token",
			token: "deadbeef",
			setupStore: func(f *FakeTokenStore) {
				f.LookupFunc = func(ctx context.Context, token string) (*identitydomain.Identity, error) {
					return nil, identitystore.ErrTokenNotFound
				}
			},
			expectedErr: gameerrors.ErrUnauthorized,
		},
		{
			name:  "store down",
			token: "deadbeef",
			setupStore: func(f *FakeTokenStore) {
				f.LookupFunc = func(ctx context.Context, token string) (*identitydomain.Identity, error) {
					return nil, testutils.ErrBackend
				}
			},
			expectedErr: gameerrors.ErrDependencyFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &FakeTokenStore{}
			if tt.setupStore != nil {
				tt.setupStore(store)
			}
			_, err := newTestService(store, &FakeRoundLookup{}).Resolve(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestValidateForRound(t *testing.T) {
	ctx := context.Background()
	roundID := uuid.New()
	playerID := uuid.New()

	tests := []struct {
		name        string
		setupRounds func(f *FakeRoundLookup)
		useBadToken bool
		expectedErr error
	}{
		{
			name: "token bound to the round's room",
		},
		{
			name: "token from another room",
			setupRounds: func(f *FakeRoundLookup) {
				f.RoomCodeForRoundFunc = func(ctx context.Context, id uuid.UUID) (string, error) {
					return "ZZZ999", nil
				}
			},
			expectedErr: ErrRoomMismatch,
		},
		{
			name: "unknown round reads as unauthorized",
			setupRounds: func(f *FakeRoundLookup) {
				f.RoomCodeForRoundFunc = func(ctx context.Context, id uuid.UUID) (string, error) {
					return "", fmt.Errorf("%w: round", gameerrors.ErrNotFound)
				}
			},
			expectedErr: gameerrors.ErrUnauthorized,
		},
		{
			name:        "unknown token",
			useBadToken: true,
			expectedErr: ErrUnknownToken,
		},
		{
			name: "lookup failure surfaces",
			setupRounds: func(f *FakeRoundLookup) {
				f.RoomCodeForRoundFunc = func(ctx context.Context, id uuid.UUID) (string, error) {
					return "", errors.New("db down")
				}
			},
			expectedErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rounds := &FakeRoundLookup{}
			if tt.setupRounds != nil {
				tt.setupRounds(rounds)
			}
			svc := newKVService(rounds)
			token, err := svc.Issue(ctx, playerID, "ABC123")
			require.NoError(t, err)
			if tt.useBadToken {
				token = "0123456789abcdef0123456789abcdef"
			}

			got, err := svc.ValidateForRound(ctx, token, roundID)
			if tt.expectedErr != nil {
				require.Error(t, err)
				if gameerrors.KindOf(tt.expectedErr) != nil {
					assert.ErrorIs(t, err, tt.expectedErr)
				} else {
					assert.ErrorContains(t, err, tt.expectedErr.Error())
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, playerID, got.PlayerID)
			assert.Equal(t, roundID, got.RoundID)
			assert.Equal(t, "ABC123", got.RoomCode)
		})
	}
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	svc := newKVService(&FakeRoundLookup{})
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()

	t1, err := svc.Issue(ctx, p1, "ABC123")
	require.NoError(t, err)
	t2, err := svc.Issue(ctx, p2, "ABC123")
	require.NoError(t, err)
	t3, err := svc.Issue(ctx, p3, "XYZ789")
	require.NoError(t, err)

	n, err := svc.Revoke(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = svc.Resolve(ctx, t1)
	assert.ErrorIs(t, err, gameerrors.ErrUnauthorized)

	n, err = svc.RevokeAll(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = svc.Resolve(ctx, t2)
	assert.ErrorIs(t, err, gameerrors.ErrUnauthorized)

	_, err = svc.Resolve(ctx, t3)
	assert.NoError(t, err, "other rooms keep their tokens")

	n, err = svc.RevokeAll(ctx, "ABC123")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRevokeAllIsBestEffort(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	store := &FakeTokenStore{
		PlayersInRoomFunc: func(ctx context.Context, roomCode string) ([]uuid.UUID, error) {
			return []uuid.UUID{p1, p2}, nil
		},
		DeleteFunc: func(ctx context.Context, roomCode string, playerID uuid.UUID) (bool, error) {
			if playerID == p1 {
				return false, testutils.ErrBackend
			}
			return true, nil
		},
	}

	n, err := newTestService(store, &FakeRoundLookup{}).RevokeAll(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"PlayersInRoom", "Delete", "Delete"}, store.Trace())
}

func TestAudioGrants(t *testing.T) {
	ctx := context.Background()
	svc := newKVService(&FakeRoundLookup{})

	grant := identitydomain.AudioGrant{
		RoundID:  uuid.New(),
		PlayerID: uuid.New(),
		Kind:     identitydomain.GrantReversedOriginal,
		OwnerID:  uuid.New(),
	}
	token, err := svc.IssueAudioGrant(ctx, grant)
	require.NoError(t, err)

	got, err := svc.ValidateAudioGrant(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, grant.OwnerID, got.OwnerID)
	assert.Equal(t, grant.Kind, got.Kind)

	_, err = svc.ValidateAudioGrant(ctx, "forged")
	assert.ErrorIs(t, err, ErrInvalidGrant)

	_, err = svc.IssueAudioGrant(ctx, identitydomain.AudioGrant{Kind: "stems"})
	assert.ErrorIs(t, err, gameerrors.ErrInvalidInput)
}
