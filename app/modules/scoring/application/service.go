package scoringservice

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	scoringdomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/domain"
	scoringdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/infrastructure/repositories"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/metrics"
	"github.com/Black-And-White-Club/reverse-chorus/internal/operation"
	"github.com/Black-And-White-Club/reverse-chorus/internal/results"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
)

// ScoringService implements Service.
type ScoringService struct {
	repo      scoringdb.Repository
	oracle    Oracle
	telemetry operation.Telemetry
}

// NewScoringService creates a new ScoringService. A nil oracle grades every
// guess with the fallback.
func NewScoringService(
	repo scoringdb.Repository,
	oracle Oracle,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
) *ScoringService {
	return &ScoringService{
		repo:      repo,
		oracle:    oracle,
		telemetry: operation.NewTelemetry("ScoringService", logger, m, tracer),
	}
}

// pendingGuess is a guess matched to its clue.
type pendingGuess struct {
	pair        scoringdomain.Pair
	submittedAt time.Time
}

func (s *ScoringService) Evaluate(ctx context.Context, in RoundInput) (*Outcome, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "Evaluate", in.RoundID.String(),
		func(ctx context.Context) (results.OperationResult[*Outcome, error], error) {
			pending := collectGuesses(in)
			verdicts := s.assess(ctx, in.RoundID, pending)

			outcome := &Outcome{
				RoundID:       in.RoundID,
				Records:       make([]ScoreRecord, 0, len(pending)),
				SingerBonuses: make(map[uuid.UUID]int),
			}
			clueTotals := make(map[int]int)
			playerTotals := make(map[uuid.UUID]int)

			for _, g := range pending {
				record := grade(g, verdicts, in)
				if record.UsedFallback {
					outcome.FallbackCount++
				}
				outcome.Records = append(outcome.Records, record)
				clueTotals[record.ClueIndex] += record.Total
				playerTotals[record.PlayerID] += record.Total
			}

			for _, clue := range in.Clues {
				if bonus := scoringdomain.SingerBonus(clueTotals[clue.Index]); bonus > 0 {
					outcome.SingerBonuses[clue.SingerID] += bonus
				}
			}
			outcome.Leaderboard = scoringdomain.BuildLeaderboard(in.Players, playerTotals, outcome.SingerBonuses)

			s.telemetry.Metrics.RecordOutcome(ctx, "score_assessment", outcomeLabel(outcome))
			s.telemetry.Logger.InfoContext(ctx, "Round graded",
				attr.RoundID(in.RoundID),
				attr.Int("guesses", len(outcome.Records)),
				attr.Int("fallback", outcome.FallbackCount),
			)
			return operation.Success(outcome)
		}))
}

func outcomeLabel(o *Outcome) string {
	switch {
	case len(o.Records) == 0:
		return "empty"
	case o.FallbackCount == len(o.Records):
		return "fallback"
	case o.FallbackCount > 0:
		return "mixed"
	default:
		return "oracle"
	}
}

// collectGuesses pairs each submitted guess with its clue. Guesses on
// unknown clues, or on a clue the guesser sang, are skipped.
func collectGuesses(in RoundInput) []pendingGuess {
	clues := make(map[int]Clue, len(in.Clues))
	for _, c := range in.Clues {
		clues[c.Index] = c
	}

	var pending []pendingGuess
	for _, sub := range in.Submissions {
		seen := make(map[int]bool, len(sub.Guesses))
		for _, g := range sub.Guesses {
			clue, ok := clues[g.ClueIndex]
			if !ok || seen[g.ClueIndex] || clue.SingerID == sub.PlayerID {
				continue
			}
			seen[g.ClueIndex] = true
			pending = append(pending, pendingGuess{
				pair: scoringdomain.Pair{
					PlayerID:       sub.PlayerID,
					ClueIndex:      clue.Index,
					OriginalTitle:  clue.Title,
					OriginalArtist: clue.Artist,
					GuessTitle:     g.Title,
					GuessArtist:    g.Artist,
				},
				submittedAt: sub.SubmittedAt,
			})
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].pair.ClueIndex != pending[j].pair.ClueIndex {
			return pending[i].pair.ClueIndex < pending[j].pair.ClueIndex
		}
		return pending[i].pair.PlayerID.String() < pending[j].pair.PlayerID.String()
	})
	return pending
}

// assess asks the oracle once for the whole round. Any oracle error leaves
// the map empty so every guess falls back.
func (s *ScoringService) assess(ctx context.Context, roundID uuid.UUID, pending []pendingGuess) map[scoringdomain.PairKey]scoringdomain.Verdict {
	verdicts := make(map[scoringdomain.PairKey]scoringdomain.Verdict)
	if s.oracle == nil || len(pending) == 0 {
		return verdicts
	}

	pairs := make([]scoringdomain.Pair, len(pending))
	for i, g := range pending {
		pairs[i] = g.pair
	}

	got, err := s.oracle.Assess(ctx, pairs)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrOracleUnavailable) {
			level = slog.LevelInfo
		}
		s.telemetry.Logger.Log(ctx, level, "Score oracle failed, using fallback for the round",
			attr.RoundID(roundID), attr.Error(err))
		return verdicts
	}

	for _, v := range got {
		verdicts[scoringdomain.PairKey{PlayerID: v.PlayerID, ClueIndex: v.ClueIndex}] = v
	}
	return verdicts
}

func grade(g pendingGuess, verdicts map[scoringdomain.PairKey]scoringdomain.Verdict, in RoundInput) ScoreRecord {
	p := g.pair
	record := ScoreRecord{PlayerID: p.PlayerID, ClueIndex: p.ClueIndex}

	v, ok := verdicts[scoringdomain.PairKey{PlayerID: p.PlayerID, ClueIndex: p.ClueIndex}]
	if ok && scoringdomain.ValidScore(v.Score) {
		record.AIScore = v.Score
		record.Reasoning = v.Reasoning
	} else {
		fb := scoringdomain.FallbackScore(p.OriginalTitle, p.OriginalArtist, p.GuessTitle, p.GuessArtist)
		record.AIScore = fb.Score
		record.Reasoning = fb.Reasoning
		record.UsedFallback = true
	}

	elapsed := scoringdomain.Elapsed(in.GuessingStartedAt, g.submittedAt)
	artist := scoringdomain.ArtistMatches(p.OriginalArtist, p.GuessArtist)
	record.Points = scoringdomain.ComputePoints(record.AIScore, artist, elapsed)
	return record
}

func (s *ScoringService) HasScores(ctx context.Context, db bun.IDB, roundID uuid.UUID) (bool, error) {
	return s.repo.HasScores(ctx, db, roundID)
}

func (s *ScoringService) SaveScores(ctx context.Context, db bun.IDB, outcome *Outcome) error {
	rows := make([]scoringdb.RoundScore, len(outcome.Records))
	for i, r := range outcome.Records {
		rows[i] = scoringdb.RoundScore{
			RoundID:      outcome.RoundID,
			PlayerID:     r.PlayerID,
			ClueIndex:    r.ClueIndex,
			AIScore:      r.AIScore,
			BasePoints:   r.Base,
			SpeedBonus:   r.Speed,
			ArtistBonus:  r.Artist,
			TotalPoints:  r.Total,
			UsedFallback: r.UsedFallback,
			Reasoning:    r.Reasoning,
		}
	}
	err := s.repo.InsertScores(ctx, db, rows)
	if errors.Is(err, scoringdb.ErrScoresExist) {
		return ErrAlreadyScored
	}
	return err
}

func (s *ScoringService) Results(ctx context.Context, in RoundInput) (*RoundResults, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "Results", in.RoundID.String(),
		func(ctx context.Context) (results.OperationResult[*RoundResults, error], error) {
			rows, err := s.repo.ListScores(ctx, nil, in.RoundID)
			if err != nil {
				return operation.Fail[*RoundResults](err)
			}
			if len(rows) == 0 {
				return operation.Failure[*RoundResults](ErrNotScored)
			}
			return operation.Success(summarize(in, rows))
		}))
}

func summarize(in RoundInput, rows []scoringdb.RoundScore) *RoundResults {
	byClue := make(map[int][]ScoreRecord)
	playerTotals := make(map[uuid.UUID]int)
	for _, row := range rows {
		byClue[row.ClueIndex] = append(byClue[row.ClueIndex], ScoreRecord{
			PlayerID:  row.PlayerID,
			ClueIndex: row.ClueIndex,
			AIScore:   row.AIScore,
			Points: scoringdomain.Points{
				Base:   row.BasePoints,
				Speed:  row.SpeedBonus,
				Artist: row.ArtistBonus,
				Total:  row.TotalPoints,
			},
			UsedFallback: row.UsedFallback,
			Reasoning:    row.Reasoning,
		})
		playerTotals[row.PlayerID] += row.TotalPoints
	}

	res := &RoundResults{RoundID: in.RoundID, Clues: make([]ClueResult, 0, len(in.Clues))}
	singerBonuses := make(map[uuid.UUID]int)
	for _, clue := range in.Clues {
		scores := byClue[clue.Index]
		total := 0
		for _, sc := range scores {
			total += sc.Total
		}
		bonus := scoringdomain.SingerBonus(total)
		if bonus > 0 {
			singerBonuses[clue.SingerID] += bonus
		}
		if scores == nil {
			scores = []ScoreRecord{}
		}
		res.Clues = append(res.Clues, ClueResult{
			ClueIndex:   clue.Index,
			Title:       clue.Title,
			Artist:      clue.Artist,
			PerformerID: clue.PerformerID,
			SingerID:    clue.SingerID,
			SingerName:  clue.SingerName,
			SingerBonus: bonus,
			Scores:      scores,
		})
	}
	res.Leaderboard = scoringdomain.BuildLeaderboard(in.Players, playerTotals, singerBonuses)
	return res
}
