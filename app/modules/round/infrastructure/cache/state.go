// Package roundcache keeps each room's current round state in a JetStream
// key-value bucket keyed by room code. Entries are rebuilt from durable rows
// on a miss.
package roundcache

import (
	"context"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/Black-And-White-Club/reverse-chorus/internal/kvcache"
	"github.com/nats-io/nats.go/jetstream"
)

// Bucket is the key-value bucket name.
const Bucket = "round_state"

// KV is the JetStream-backed round state cache.
type KV struct {
	store *kvcache.Store[gametypes.RoundState]
}

func NewKV(kv jetstream.KeyValue) *KV {
	return &KV{store: kvcache.New[gametypes.RoundState](kv)}
}

// Get returns kvcache.ErrMiss when the room has no cached round.
func (c *KV) Get(ctx context.Context, roomCode string) (*gametypes.RoundState, error) {
	return c.store.Get(ctx, roomCode)
}

// Put replaces the entry unless it already holds a later round or phase,
// so a slow writer cannot roll the view back.
func (c *KV) Put(ctx context.Context, state *gametypes.RoundState) error {
	_, err := c.store.PutIf(ctx, state.RoomCode, state, func(current *gametypes.RoundState) bool {
		return newer(current, state)
	})
	return err
}

func (c *KV) Delete(ctx context.Context, roomCode string) error {
	return c.store.Delete(ctx, roomCode)
}

func newer(current, next *gametypes.RoundState) bool {
	if current.RoundNumber != next.RoundNumber {
		return current.RoundNumber > next.RoundNumber
	}
	return next.Phase.Precedes(current.Phase)
}
