package identitystore

import (
	"context"
	"testing"

	identitydomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/domain"
	"github.com/Black-And-White-Club/reverse-chorus/internal/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore(t *testing.T) {
	ctx := context.Background()
	p1, p2 := uuid.New(), uuid.New()

	t.Run("save then lookup", func(t *testing.T) {
		kv := testutils.NewFakeKeyValue()
		store := NewKVStore(kv)
		id := identitydomain.Identity{PlayerID: p1, RoomCode: "ABC123"}

		require.NoError(t, store.Save(ctx, "tok1", id))
		got, err := store.Lookup(ctx, "tok1")
		require.NoError(t, err)
		assert.Equal(t, id, *got)
		assert.True(t, kv.Has("player.ABC123."+p1.String()))
	})

	t.Run("unknown token", func(t *testing.T) {
		store := NewKVStore(testutils.NewFakeKeyValue())
		_, err := store.Lookup(ctx, "nope")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("reissue drops previous token", func(t *testing.T) {
		store := NewKVStore(testutils.NewFakeKeyValue())
		id := identitydomain.Identity{PlayerID: p1, RoomCode: "ABC123"}
		require.NoError(t, store.Save(ctx, "old", id))
		require.NoError(t, store.Save(ctx, "new", id))

		_, err := store.Lookup(ctx, "old")
		assert.ErrorIs(t, err, ErrTokenNotFound)
		_, err = store.Lookup(ctx, "new")
		assert.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		store := NewKVStore(testutils.NewFakeKeyValue())
		require.NoError(t, store.Save(ctx, "tok1", identitydomain.Identity{PlayerID: p1, RoomCode: "ABC123"}))

		deleted, err := store.Delete(ctx, "ABC123", p1)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = store.Delete(ctx, "ABC123", p1)
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = store.Lookup(ctx, "tok1")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("lists by room and by player", func(t *testing.T) {
		kv := testutils.NewFakeKeyValue()
		store := NewKVStore(kv)

		players, err := store.PlayersInRoom(ctx, "ABC123")
		require.NoError(t, err)
		assert.Empty(t, players)

		require.NoError(t, store.Save(ctx, "t1", identitydomain.Identity{PlayerID: p1, RoomCode: "ABC123"}))
		require.NoError(t, store.Save(ctx, "t2", identitydomain.Identity{PlayerID: p2, RoomCode: "ABC123"}))
		require.NoError(t, store.Save(ctx, "t3", identitydomain.Identity{PlayerID: p1, RoomCode: "XYZ789"}))

		players, err = store.PlayersInRoom(ctx, "ABC123")
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{p1, p2}, players)

		rooms, err := store.RoomsForPlayer(ctx, p1)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"ABC123", "XYZ789"}, rooms)

		rooms, err = store.RoomsForPlayer(ctx, p2)
		require.NoError(t, err)
		assert.Equal(t, []string{"ABC123"}, rooms)

		assert.NotContains(t, kv.Trace(), "Keys", "listing must not walk the whole bucket")
		assert.Contains(t, kv.Trace(), "ListKeysFiltered")
	})

	t.Run("listing failure", func(t *testing.T) {
		kv := testutils.NewFakeKeyValue()
		kv.GetErr = testutils.ErrBackend
		store := NewKVStore(kv)

		_, err := store.PlayersInRoom(ctx, "ABC123")
		assert.ErrorIs(t, err, testutils.ErrBackend)
		_, err = store.RoomsForPlayer(ctx, p1)
		assert.ErrorIs(t, err, testutils.ErrBackend)
	})

	t.Run("cancelled listing is an error", func(t *testing.T) {
		store := NewKVStore(testutils.NewFakeKeyValue())
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := store.PlayersInRoom(cancelled, "ABC123")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("backend failure", func(t *testing.T) {
		kv := testutils.NewFakeKeyValue()
		kv.GetErr = testutils.ErrBackend
		store := NewKVStore(kv)
		_, err := store.Lookup(ctx, "tok1")
		assert.ErrorIs(t, err, testutils.ErrBackend)
	})
}
