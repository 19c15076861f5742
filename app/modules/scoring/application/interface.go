package scoringservice

import (
	"context"
	"time"

	scoringdomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/domain"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Service grades a round's guesses and reports its results.
type Service interface {
	// Evaluate grades every submitted guess. Oracle trouble never fails it;
	// affected guesses are graded by the fallback instead.
	Evaluate(ctx context.Context, in RoundInput) (*Outcome, error)

	HasScores(ctx context.Context, db bun.IDB, roundID uuid.UUID) (bool, error)

	// SaveScores persists an outcome, normally inside the caller's
	// transaction.
	SaveScores(ctx context.Context, db bun.IDB, outcome *Outcome) error

	// Results rebuilds the per-clue view and leaderboard from stored scores.
	// Submissions in the input are ignored.
	Results(ctx context.Context, in RoundInput) (*RoundResults, error)

	ResultsWorkbook(ctx context.Context, results *RoundResults) ([]byte, error)
	LeaderboardChart(ctx context.Context, entries []gametypes.LeaderboardEntry) ([]byte, error)
}

// Oracle grades guesses in one batch per round.
type Oracle interface {
	Assess(ctx context.Context, pairs []scoringdomain.Pair) ([]scoringdomain.Verdict, error)
}

// Clue is one track with final audio, the thing players guess.
type Clue struct {
	Index       int
	PerformerID uuid.UUID
	SingerID    uuid.UUID
	SingerName  string
	Title       string
	Artist      string
}

// Guess is one answer within a submission.
type Guess struct {
	ClueIndex int    `json:"clueIndex"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
}

// Submission is a player's guess-set.
type Submission struct {
	PlayerID    uuid.UUID
	SubmittedAt time.Time
	Guesses     []Guess
}

// RoundInput is everything scoring needs to know about a round. Players are
// in join order.
type RoundInput struct {
	RoundID           uuid.UUID
	GuessingStartedAt *time.Time
	Players           []gametypes.Player
	Clues             []Clue
	Submissions       []Submission
}

// ScoreRecord is the grade and points of one clue guess.
type ScoreRecord struct {
	PlayerID  uuid.UUID `json:"playerId"`
	ClueIndex int       `json:"clueIndex"`
	AIScore   float64   `json:"aiScore"`
	scoringdomain.Points
	UsedFallback bool   `json:"usedFallback"`
	Reasoning    string `json:"reasoning"`
}

// Outcome is a graded round ready to be stored.
type Outcome struct {
	RoundID       uuid.UUID                    `json:"roundId"`
	Records       []ScoreRecord                `json:"records"`
	SingerBonuses map[uuid.UUID]int            `json:"singerBonuses"`
	Leaderboard   []gametypes.LeaderboardEntry `json:"leaderboard"`
	FallbackCount int                          `json:"fallbackCount"`
}

// ClueResult is the revealed answer of a clue and how players did on it.
type ClueResult struct {
	ClueIndex   int           `json:"clueIndex"`
	Title       string        `json:"title"`
	Artist      string        `json:"artist"`
	PerformerID uuid.UUID     `json:"originalPlayerId"`
	SingerID    uuid.UUID     `json:"singerPlayerId"`
	SingerName  string        `json:"singerName"`
	SingerBonus int           `json:"singerBonus"`
	Scores      []ScoreRecord `json:"scores"`
}

// RoundResults is the scored round.
type RoundResults struct {
	RoundID     uuid.UUID                    `json:"roundId"`
	Clues       []ClueResult                 `json:"clues"`
	Leaderboard []gametypes.LeaderboardEntry `json:"leaderboard"`
}
