package scoringdomain

import (
	"fmt"
	"math"
)

// ArtistMatchThreshold is the artist similarity that earns artist credit.
const ArtistMatchThreshold = 0.8

// MaxScore bounds every assessment.
const MaxScore = 10.0

var titleBands = []struct {
	min   float64
	score float64
}{
	{0.95, 10},
	{0.85, 8.5},
	{0.75, 7},
	{0.6, 5},
	{0.4, 3},
}

// Assessment is a 0-10 grade of one guess.
type Assessment struct {
	Score     float64
	Reasoning string
}

// FallbackScore grades a guess without the oracle. It is a pure function of
// the normalized strings.
func FallbackScore(origTitle, origArtist, guessTitle, guessArtist string) Assessment {
	titleSim := Similarity(origTitle, guessTitle)

	score := 0.0
	for _, band := range titleBands {
		if titleSim >= band.min {
			score = band.score
			break
		}
	}
	if ArtistMatches(origArtist, guessArtist) {
		score = math.Min(MaxScore, score+1)
	}

	return Assessment{
		Score:     score,
		Reasoning: fmt.Sprintf("Fallback scoring: title %d%% match", int(math.Round(titleSim*100))),
	}
}

// ArtistMatches reports whether a guessed artist is close enough.
func ArtistMatches(origArtist, guessArtist string) bool {
	return Similarity(origArtist, guessArtist) >= ArtistMatchThreshold
}

// ValidScore reports whether an externally produced score is usable.
func ValidScore(score float64) bool {
	return !math.IsNaN(score) && score >= 0 && score <= MaxScore
}
