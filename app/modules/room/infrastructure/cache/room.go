// Package roomcache keeps room views in a JetStream key-value bucket keyed
// by room code. Entries are derived from durable rows and may be dropped at
// any time.
package roomcache

import (
	"context"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/Black-And-White-Club/reverse-chorus/internal/kvcache"
	"github.com/nats-io/nats.go/jetstream"
)

// Bucket is the key-value bucket name.
const Bucket = "rooms"

// KV is the JetStream-backed room cache.
type KV struct {
	store *kvcache.Store[gametypes.Room]
}

// NewKV wraps kv.
func NewKV(kv jetstream.KeyValue) *KV {
	return &KV{store: kvcache.New[gametypes.Room](kv)}
}

// Get returns kvcache.ErrMiss when code is not cached.
func (c *KV) Get(ctx context.Context, code string) (*gametypes.Room, error) {
	return c.store.Get(ctx, code)
}

// Put replaces the entry unless it holds a later room version. Views are
// written after their transaction commits, so an older one can arrive last.
func (c *KV) Put(ctx context.Context, room *gametypes.Room) error {
	_, err := c.store.PutIf(ctx, room.Code, room, func(current *gametypes.Room) bool {
		return current.Version > room.Version
	})
	return err
}

func (c *KV) Delete(ctx context.Context, code string) error {
	return c.store.Delete(ctx, code)
}
