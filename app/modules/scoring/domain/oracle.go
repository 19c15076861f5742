package scoringdomain

import "github.com/google/uuid"

// Pair is one guess put to the score oracle.
type Pair struct {
	PlayerID       uuid.UUID `json:"playerId"`
	ClueIndex      int       `json:"clueIndex"`
	OriginalTitle  string    `json:"originalTitle"`
	OriginalArtist string    `json:"originalArtist"`
	GuessTitle     string    `json:"guessTitle"`
	GuessArtist    string    `json:"guessArtist"`
}

// Verdict is the oracle's grade for one pair.
type Verdict struct {
	PlayerID  uuid.UUID
	ClueIndex int
	Score     float64
	Reasoning string
}

// PairKey identifies a pair within a round.
type PairKey struct {
	PlayerID  uuid.UUID
	ClueIndex int
}
