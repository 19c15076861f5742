// Package identitystore keeps player tokens in a JetStream key-value bucket.
//
// Two keys exist per live token:
//
//	token.<token>                  -> {playerId, roomCode}
//	player.<roomCode>.<playerId>   -> {token}
//
// The bucket TTL is the token lifetime; both keys are rewritten on issue.
package identitystore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	identitydomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/domain"
	"github.com/Black-And-White-Club/reverse-chorus/internal/kvcache"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrTokenNotFound is returned for unknown or expired tokens.
var ErrTokenNotFound = errors.New("token not found")

const (
	tokenPrefix  = "token."
	playerPrefix = "player."
)

type playerRecord struct {
	Token string `json:"token"`
}

// KVStore implements the identity service's token store.
type KVStore struct {
	kv      jetstream.KeyValue
	tokens  *kvcache.Store[identitydomain.Identity]
	players *kvcache.Store[playerRecord]
}

// NewKVStore wraps kv.
func NewKVStore(kv jetstream.KeyValue) *KVStore {
	return &KVStore{
		kv:      kv,
		tokens:  kvcache.New[identitydomain.Identity](kv),
		players: kvcache.New[playerRecord](kv),
	}
}

func tokenKey(token string) string { return tokenPrefix + token }

func playerKey(roomCode string, playerID uuid.UUID) string {
	return playerPrefix + roomCode + "." + playerID.String()
}

// Save binds token to id and drops the player's previous token, if any.
func (s *KVStore) Save(ctx context.Context, token string, id identitydomain.Identity) error {
	prev, err := s.players.Get(ctx, playerKey(id.RoomCode, id.PlayerID))
	switch {
	case err == nil && prev.Token != token:
		if err := s.tokens.Delete(ctx, tokenKey(prev.Token)); err != nil {
			return err
		}
	case err != nil && !errors.Is(err, kvcache.ErrMiss):
		return err
	}

	if err := s.tokens.Put(ctx, tokenKey(token), &id); err != nil {
		return err
	}
	return s.players.Put(ctx, playerKey(id.RoomCode, id.PlayerID), &playerRecord{Token: token})
}

// Lookup returns the identity bound to token.
func (s *KVStore) Lookup(ctx context.Context, token string) (*identitydomain.Identity, error) {
	id, err := s.tokens.Get(ctx, tokenKey(token))
	if errors.Is(err, kvcache.ErrMiss) {
		return nil, ErrTokenNotFound
	}
	return id, err
}

// Delete removes the token of playerID in roomCode. It reports whether a
// token was present.
func (s *KVStore) Delete(ctx context.Context, roomCode string, playerID uuid.UUID) (bool, error) {
	key := playerKey(roomCode, playerID)
	rec, err := s.players.Get(ctx, key)
	if errors.Is(err, kvcache.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.tokens.Delete(ctx, tokenKey(rec.Token)); err != nil {
		return false, err
	}
	if err := s.players.Delete(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// PlayersInRoom lists players holding a token for roomCode.
func (s *KVStore) PlayersInRoom(ctx context.Context, roomCode string) ([]uuid.UUID, error) {
	prefix := playerPrefix + roomCode + "."
	keys, err := s.keys(ctx, prefix+"*")
	if err != nil {
		return nil, err
	}
	var out []uuid.UUID
	for _, k := range keys {
		if id, err := uuid.Parse(strings.TrimPrefix(k, prefix)); err == nil {
			out = append(out, id)
		}
	}
	return out, nil
}

// RoomsForPlayer lists the rooms playerID holds a token for.
func (s *KVStore) RoomsForPlayer(ctx context.Context, playerID uuid.UUID) ([]string, error) {
	suffix := "." + playerID.String()
	keys, err := s.keys(ctx, playerPrefix+"*"+suffix)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, k := range keys {
		out = append(out, strings.TrimSuffix(strings.TrimPrefix(k, playerPrefix), suffix))
	}
	return out, nil
}

// keys lists the keys matching filter. The server applies the filter, so
// the cost follows the matches rather than the bucket size.
func (s *KVStore) keys(ctx context.Context, filter string) ([]string, error) {
	lister, err := s.kv.ListKeysFiltered(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list token keys %s: %w", filter, err)
	}
	defer lister.Stop()

	var keys []string
	for k := range lister.Keys() {
		keys = append(keys, k)
	}
	// The lister closes its channel early when ctx ends.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to list token keys %s: %w", filter, err)
	}
	return keys, nil
}
