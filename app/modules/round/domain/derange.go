// Package rounddomain holds the pure parts of the round lifecycle.
package rounddomain

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gameerrors"
	"github.com/google/uuid"
)

// MaxShuffleAttempts bounds the random tries before the repair pass.
const MaxShuffleAttempts = 10

// ErrDerangementImpossible is returned for fewer than two players.
var ErrDerangementImpossible = fmt.Errorf("%w: at least two players are needed to swap songs", gameerrors.ErrInsufficientContent)

type shuffleFunc func(n int, swap func(i, j int))

// Derange returns a permutation of ids with no element left at its own
// index. ids must be distinct.
func Derange(ids []uuid.UUID, rng *rand.Rand) ([]uuid.UUID, error) {
	return derange(ids, rng.Shuffle)
}

func derange(ids []uuid.UUID, shuffle shuffleFunc) ([]uuid.UUID, error) {
	n := len(ids)
	if n < 2 {
		return nil, ErrDerangementImpossible
	}

	out := slices.Clone(ids)
	for range MaxShuffleAttempts {
		shuffle(n, func(i, j int) { out[i], out[j] = out[j], out[i] })
		if FixedPoints(ids, out) == 0 {
			return out, nil
		}
	}

	// Swapping a fixed point with its right neighbour frees both slots, so a
	// single pass is enough.
	for i := range out {
		if out[i] == ids[i] {
			j := (i + 1) % n
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

// FixedPoints counts the indexes where perm matches ids.
func FixedPoints(ids, perm []uuid.UUID) int {
	count := 0
	for i := range ids {
		if ids[i] == perm[i] {
			count++
		}
	}
	return count
}

// ReverseMap pairs each performer with the player who sings their reversed
// original.
func ReverseMap(performers, singers []uuid.UUID) map[uuid.UUID]uuid.UUID {
	m := make(map[uuid.UUID]uuid.UUID, len(performers))
	for i, p := range performers {
		m[p] = singers[i]
	}
	return m
}
