package scoringdomain

import (
	"sort"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
)

// BuildLeaderboard sums clue points and singer bonuses per player. players
// must be in join order; equal totals keep that order. Players absent from
// the roster but holding points are appended after it.
func BuildLeaderboard(players []gametypes.Player, clueTotals, singerBonuses map[uuid.UUID]int) []gametypes.LeaderboardEntry {
	entries := make([]gametypes.LeaderboardEntry, 0, len(players))
	seen := make(map[uuid.UUID]bool, len(players))

	add := func(id uuid.UUID, name string) {
		if seen[id] {
			return
		}
		seen[id] = true
		entries = append(entries, gametypes.LeaderboardEntry{
			PlayerID:    id,
			DisplayName: name,
			TotalScore:  clueTotals[id] + singerBonuses[id],
			SingerBonus: singerBonuses[id],
		})
	}

	for _, p := range players {
		add(p.ID, p.DisplayName)
	}
	for _, extra := range [][]uuid.UUID{sortedKeys(clueTotals), sortedKeys(singerBonuses)} {
		for _, id := range extra {
			add(id, "")
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalScore > entries[j].TotalScore
	})
	return entries
}

func sortedKeys(m map[uuid.UUID]int) []uuid.UUID {
	keys := make([]uuid.UUID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
