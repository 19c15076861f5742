package scoringdomain

import (
	"math"
	"time"
)

const (
	fastBonus       = 25
	quickBonus      = 15
	artistBonus     = 30
	singerBonusRate = 0.3
)

var (
	fastWindow  = 30 * time.Second
	quickWindow = 45 * time.Second
)

// DefaultElapsed stands in for an unknown answer time. It earns no speed
// bonus.
const DefaultElapsed = 45 * time.Second

// Points is the breakdown for one clue guess.
type Points struct {
	Base   int `json:"basePoints"`
	Speed  int `json:"speedBonus"`
	Artist int `json:"artistBonus"`
	Total  int `json:"totalPoints"`
}

// ComputePoints turns a grade into points.
func ComputePoints(aiScore float64, artistMatched bool, elapsed time.Duration) Points {
	p := Points{Base: int(math.Round(aiScore * 10))}
	switch {
	case elapsed < fastWindow:
		p.Speed = fastBonus
	case elapsed < quickWindow:
		p.Speed = quickBonus
	}
	if artistMatched {
		p.Artist = artistBonus
	}
	p.Total = p.Base + p.Speed + p.Artist
	return p
}

// Elapsed is the time from guessing start to submission, or DefaultElapsed
// when the start is unknown.
func Elapsed(guessingStartedAt *time.Time, submittedAt time.Time) time.Duration {
	if guessingStartedAt == nil || submittedAt.IsZero() {
		return DefaultElapsed
	}
	d := submittedAt.Sub(*guessingStartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// SingerBonus is what a clue's reverse singer earns from the guessers'
// points on that clue.
func SingerBonus(clueTotal int) int {
	return int(math.Round(singerBonusRate * float64(clueTotal)))
}
