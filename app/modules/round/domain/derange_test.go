package rounddomain

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gameerrors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func sorted(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	slices.Sort(out)
	return out
}

func TestDerangeHasNoFixedPoints(t *testing.T) {
	for n := 2; n <= 50; n++ {
		ids := newIDs(n)
		for seed := uint64(0); seed < 200; seed++ {
			perm, err := Derange(ids, rand.New(rand.NewPCG(seed, uint64(n))))
			require.NoError(t, err)
			require.Zero(t, FixedPoints(ids, perm), "n=%d seed=%d", n, seed)
			require.Equal(t, sorted(ids), sorted(perm), "n=%d seed=%d", n, seed)
		}
	}
}

func TestDerangeRepairsWhenShufflesKeepFailing(t *testing.T) {
	noop := func(n int, swap func(i, j int)) {}

	for n := 2; n <= 9; n++ {
		ids := newIDs(n)
		perm, err := derange(ids, noop)
		require.NoError(t, err)
		assert.Zero(t, FixedPoints(ids, perm), "n=%d", n)
		assert.Equal(t, sorted(ids), sorted(perm))
	}
}

func TestDerangeCountsAttempts(t *testing.T) {
	calls := 0
	ids := newIDs(4)
	_, err := derange(ids, func(n int, swap func(i, j int)) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, MaxShuffleAttempts, calls)
}

func TestDerangeRejectsSmallRosters(t *testing.T) {
	for _, n := range []int{0, 1} {
		_, err := Derange(newIDs(n), rand.New(rand.NewPCG(1, 2)))
		assert.True(t, errors.Is(err, ErrDerangementImpossible))
		assert.True(t, errors.Is(err, gameerrors.ErrInsufficientContent))
	}
}

func TestDerangeDoesNotMutateInput(t *testing.T) {
	ids := newIDs(5)
	before := slices.Clone(ids)
	_, err := Derange(ids, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	assert.Equal(t, before, ids)
}

func TestReverseMap(t *testing.T) {
	ids := newIDs(3)
	singers := []uuid.UUID{ids[1], ids[2], ids[0]}
	m := ReverseMap(ids, singers)
	assert.Equal(t, ids[1], m[ids[0]])
	assert.Equal(t, ids[0], m[ids[2]])
}
