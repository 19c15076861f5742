package scoringservice

import (
	"context"
	"sync"

	scoringdomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/domain"
	scoringdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/infrastructure/repositories"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Scoring Repository
// ------------------------

type FakeScoreRepo struct {
	mu     sync.Mutex
	trace  []string
	scores map[uuid.UUID][]scoringdb.RoundScore

	ListScoresFunc func(ctx context.Context, db bun.IDB, roundID uuid.UUID) ([]scoringdb.RoundScore, error)
}

var _ scoringdb.Repository = (*FakeScoreRepo)(nil)

func NewFakeScoreRepo() *FakeScoreRepo {
	return &FakeScoreRepo{scores: make(map[uuid.UUID][]scoringdb.RoundScore)}
}

func (f *FakeScoreRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

func (f *FakeScoreRepo) HasScores(ctx context.Context, db bun.IDB, roundID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "HasScores")
	return len(f.scores[roundID]) > 0, nil
}

func (f *FakeScoreRepo) InsertScores(ctx context.Context, db bun.IDB, scores []scoringdb.RoundScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "InsertScores")
	if len(scores) == 0 {
		return nil
	}
	roundID := scores[0].RoundID
	if len(f.scores[roundID]) > 0 {
		return scoringdb.ErrScoresExist
	}
	f.scores[roundID] = append([]scoringdb.RoundScore(nil), scores...)
	return nil
}

func (f *FakeScoreRepo) ListScores(ctx context.Context, db bun.IDB, roundID uuid.UUID) ([]scoringdb.RoundScore, error) {
	if f.ListScoresFunc != nil {
		return f.ListScoresFunc(ctx, db, roundID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "ListScores")
	return f.scores[roundID], nil
}

// ------------------------
// Fake Oracle
// ------------------------

type FakeOracle struct {
	calls    int
	received []scoringdomain.Pair

	AssessFunc func(ctx context.Context, pairs []scoringdomain.Pair) ([]scoringdomain.Verdict, error)
}

func (f *FakeOracle) Assess(ctx context.Context, pairs []scoringdomain.Pair) ([]scoringdomain.Verdict, error) {
	f.calls++
	f.received = pairs
	if f.AssessFunc != nil {
		return f.AssessFunc(ctx, pairs)
	}
	out := make([]scoringdomain.Verdict, len(pairs))
	for i, p := range pairs {
		out[i] = scoringdomain.Verdict{PlayerID: p.PlayerID, ClueIndex: p.ClueIndex, Score: 9, Reasoning: "close enough"}
	}
	return out, nil
}
