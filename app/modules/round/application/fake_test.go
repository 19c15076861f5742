package roundservice

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	identitydomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/domain"
	roomdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/repositories"
	rounddb "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/infrastructure/repositories"
	scoringdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/infrastructure/repositories"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gameerrors"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/Black-And-White-Club/reverse-chorus/internal/kvcache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Round Repository
// ------------------------

// FakeRoundRepo keeps rounds in memory. Tracks keep insertion order, which
// the tests treat as join order. Names fills PerformerName and SingerName.
type FakeRoundRepo struct {
	mu      sync.Mutex
	trace   []string
	songs   []rounddb.Song
	rounds  map[uuid.UUID]rounddb.Round
	tracks  map[uuid.UUID][]rounddb.Track
	guesses []rounddb.Guess
	Names   map[uuid.UUID]string

	ListTracksFunc func(ctx context.Context, db bun.IDB, roundID uuid.UUID) ([]rounddb.Track, error)
}

var _ rounddb.Repository = (*FakeRoundRepo)(nil)

func NewFakeRoundRepo(songs ...rounddb.Song) *FakeRoundRepo {
	return &FakeRoundRepo{
		songs:  songs,
		rounds: make(map[uuid.UUID]rounddb.Round),
		tracks: make(map[uuid.UUID][]rounddb.Track),
		Names:  make(map[uuid.UUID]string),
	}
}

func (f *FakeRoundRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

// Count returns how many times step was called.
func (f *FakeRoundRepo) Count(step string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.trace {
		if s == step {
			n++
		}
	}
	return n
}

func (f *FakeRoundRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeRoundRepo) Round(id uuid.UUID) rounddb.Round {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rounds[id]
}

func (f *FakeRoundRepo) Track(roundID, playerID uuid.UUID) rounddb.Track {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tracks[roundID] {
		if t.PlayerID == playerID {
			return t
		}
	}
	return rounddb.Track{}
}

func (f *FakeRoundRepo) Guesses() []rounddb.Guess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rounddb.Guess(nil), f.guesses...)
}

func (f *FakeRoundRepo) RandomSongs(ctx context.Context, db bun.IDB, n int) ([]rounddb.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RandomSongs")
	if n > len(f.songs) {
		n = len(f.songs)
	}
	return append([]rounddb.Song(nil), f.songs[:n]...), nil
}

func (f *FakeRoundRepo) GetSong(ctx context.Context, db bun.IDB, id uuid.UUID) (*rounddb.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetSong")
	for _, s := range f.songs {
		if s.ID == id {
			song := s
			return &song, nil
		}
	}
	return nil, rounddb.ErrNotFound
}

func (f *FakeRoundRepo) GetSongs(ctx context.Context, db bun.IDB, ids []uuid.UUID) ([]rounddb.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetSongs")
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []rounddb.Song
	for _, s := range f.songs {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *FakeRoundRepo) InsertRound(ctx context.Context, db bun.IDB, round *rounddb.Round) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertRound")
	for _, r := range f.rounds {
		if r.RoomCode == round.RoomCode && r.RoundNumber == round.RoundNumber {
			return rounddb.ErrDuplicateRound
		}
	}
	f.rounds[round.ID] = *round
	return nil
}

func (f *FakeRoundRepo) GetRound(ctx context.Context, db bun.IDB, id uuid.UUID) (*rounddb.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetRound")
	return f.round(id)
}

func (f *FakeRoundRepo) GetRoundForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*rounddb.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetRoundForUpdate")
	return f.round(id)
}

func (f *FakeRoundRepo) round(id uuid.UUID) (*rounddb.Round, error) {
	r, ok := f.rounds[id]
	if !ok {
		return nil, rounddb.ErrNotFound
	}
	return &r, nil
}

func (f *FakeRoundRepo) LatestRound(ctx context.Context, db bun.IDB, roomCode string) (*rounddb.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LatestRound")
	var latest *rounddb.Round
	for _, r := range f.rounds {
		if r.RoomCode != roomCode {
			continue
		}
		if latest == nil || r.RoundNumber > latest.RoundNumber {
			r := r
			latest = &r
		}
	}
	if latest == nil {
		return nil, rounddb.ErrNotFound
	}
	return latest, nil
}

func (f *FakeRoundRepo) UpdatePhase(ctx context.Context, db bun.IDB, id uuid.UUID, from, to gametypes.Phase, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdatePhase")
	r, ok := f.rounds[id]
	if !ok || r.Phase != from {
		return rounddb.ErrNoRowsAffected
	}
	r.Phase = to
	switch to {
	case gametypes.PhaseGuessing:
		r.GuessingStartedAt = &at
	case gametypes.PhaseRoundEnded:
		r.EndedAt = &at
	}
	f.rounds[id] = r
	return nil
}

func (f *FakeRoundRepo) InsertTracks(ctx context.Context, db bun.IDB, tracks []rounddb.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertTracks")
	for _, t := range tracks {
		f.tracks[t.RoundID] = append(f.tracks[t.RoundID], t)
	}
	return nil
}

func (f *FakeRoundRepo) ListTracks(ctx context.Context, db bun.IDB, roundID uuid.UUID) ([]rounddb.Track, error) {
	if f.ListTracksFunc != nil {
		return f.ListTracksFunc(ctx, db, roundID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTracks")
	out := make([]rounddb.Track, 0, len(f.tracks[roundID]))
	for _, t := range f.tracks[roundID] {
		out = append(out, f.named(t))
	}
	return out, nil
}

func (f *FakeRoundRepo) named(t rounddb.Track) rounddb.Track {
	t.PerformerName = f.Names[t.PlayerID]
	if t.ReverseSingerPlayerID != nil {
		t.SingerName = f.Names[*t.ReverseSingerPlayerID]
	}
	return t
}

func (f *FakeRoundRepo) GetTrack(ctx context.Context, db bun.IDB, roundID, playerID uuid.UUID) (*rounddb.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetTrack")
	for _, t := range f.tracks[roundID] {
		if t.PlayerID == playerID {
			t := f.named(t)
			return &t, nil
		}
	}
	return nil, rounddb.ErrNotFound
}

func (f *FakeRoundRepo) GetTrackBySinger(ctx context.Context, db bun.IDB, roundID, singerID uuid.UUID) (*rounddb.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetTrackBySinger")
	for _, t := range f.tracks[roundID] {
		if t.ReverseSingerPlayerID != nil && *t.ReverseSingerPlayerID == singerID {
			t := f.named(t)
			return &t, nil
		}
	}
	return nil, rounddb.ErrNotFound
}

func (f *FakeRoundRepo) UpdateTrackStatus(ctx context.Context, db bun.IDB, roundID, playerID uuid.UUID, from, to gametypes.TrackStatus, keys rounddb.TrackKeys) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateTrackStatus")
	tracks := f.tracks[roundID]
	for i := range tracks {
		t := &tracks[i]
		if t.PlayerID != playerID {
			continue
		}
		if t.Status != from {
			return rounddb.ErrNoRowsAffected
		}
		t.Status = to
		if keys.Original != "" {
			t.OriginalAudioKey = keys.Original
		}
		if keys.Reversed != "" {
			t.ReversedAudioKey = keys.Reversed
		}
		if keys.ReverseRecording != "" {
			t.ReverseRecordingKey = keys.ReverseRecording
		}
		if keys.Final != "" {
			t.FinalAudioKey = keys.Final
		}
		return nil
	}
	return rounddb.ErrNoRowsAffected
}

func (f *FakeRoundRepo) CountTracksBelow(ctx context.Context, db bun.IDB, roundID uuid.UUID, status gametypes.TrackStatus) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountTracksBelow")
	n := 0
	for _, t := range f.tracks[roundID] {
		if t.Status.Rank() < status.Rank() {
			n++
		}
	}
	return n, nil
}

func (f *FakeRoundRepo) AssignReverseSingers(ctx context.Context, db bun.IDB, roundID uuid.UUID, singers map[uuid.UUID]uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AssignReverseSingers")
	n := 0
	tracks := f.tracks[roundID]
	for i := range tracks {
		t := &tracks[i]
		singer, ok := singers[t.PlayerID]
		if !ok || t.ReverseSingerPlayerID != nil {
			continue
		}
		t.ReverseSingerPlayerID = &singer
		t.Status = gametypes.TrackReversedRecording
		n++
	}
	return n, nil
}

func (f *FakeRoundRepo) InsertGuesses(ctx context.Context, db bun.IDB, guesses []rounddb.Guess) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertGuesses")
	for _, g := range guesses {
		for _, existing := range f.guesses {
			if existing.RoundID == g.RoundID && existing.PlayerID == g.PlayerID && existing.ClueIndex == g.ClueIndex {
				return rounddb.ErrDuplicateGuess
			}
		}
	}
	f.guesses = append(f.guesses, guesses...)
	return nil
}

func (f *FakeRoundRepo) HasGuessed(ctx context.Context, db bun.IDB, roundID, playerID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("HasGuessed")
	for _, g := range f.guesses {
		if g.RoundID == roundID && g.PlayerID == playerID {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeRoundRepo) CountSubmitters(ctx context.Context, db bun.IDB, roundID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountSubmitters")
	seen := make(map[uuid.UUID]bool)
	for _, g := range f.guesses {
		if g.RoundID == roundID {
			seen[g.PlayerID] = true
		}
	}
	return len(seen), nil
}

func (f *FakeRoundRepo) ListGuesses(ctx context.Context, db bun.IDB, roundID uuid.UUID) ([]rounddb.Guess, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListGuesses")
	var out []rounddb.Guess
	for _, g := range f.guesses {
		if g.RoundID == roundID {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// ------------------------
// Fake Room Store
// ------------------------

type FakeRoomStore struct {
	mu      sync.Mutex
	rooms   map[string]roomdb.Room
	players map[string][]roomdb.Player
}

func NewFakeRoomStore() *FakeRoomStore {
	return &FakeRoomStore{
		rooms:   make(map[string]roomdb.Room),
		players: make(map[string][]roomdb.Player),
	}
}

func (f *FakeRoomStore) Seed(room roomdb.Room, players ...roomdb.Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[room.Code] = room
	f.players[room.Code] = players
}

func (f *FakeRoomStore) Status(code string) gametypes.RoomStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms[code].Status
}

func (f *FakeRoomStore) GetRoomForUpdate(ctx context.Context, db bun.IDB, code string) (*roomdb.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[code]
	if !ok {
		return nil, roomdb.ErrNotFound
	}
	return &r, nil
}

func (f *FakeRoomStore) ListPresentPlayers(ctx context.Context, db bun.IDB, code string) ([]roomdb.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]roomdb.Player(nil), f.players[code]...), nil
}

func (f *FakeRoomStore) UpdateStatus(ctx context.Context, db bun.IDB, code string, from, to gametypes.RoomStatus, endedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[code]
	if !ok || r.Status != from {
		return roomdb.ErrNoRowsAffected
	}
	r.Status = to
	f.rooms[code] = r
	return nil
}

func (f *FakeRoomStore) BumpVersion(ctx context.Context, db bun.IDB, code string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[code]
	if !ok {
		return 0, roomdb.ErrNotFound
	}
	r.Version++
	f.rooms[code] = r
	return r.Version, nil
}

// ------------------------
// Fake Room Refresher
// ------------------------

type FakeRoomRefresher struct {
	mu    sync.Mutex
	codes []string

	RefreshErr error
}

func (f *FakeRoomRefresher) Refresh(ctx context.Context, code string) (*gametypes.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	return &gametypes.Room{Code: code, Status: gametypes.RoomStatusPlaying}, nil
}

func (f *FakeRoomRefresher) Codes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.codes...)
}

// ------------------------
// Fake State Cache
// ------------------------

type FakeStateCache struct {
	mu      sync.Mutex
	entries map[string]gametypes.RoundState
	gets    int

	PutErr error
}

func NewFakeStateCache() *FakeStateCache {
	return &FakeStateCache{entries: make(map[string]gametypes.RoundState)}
}

func (f *FakeStateCache) Get(ctx context.Context, roomCode string) (*gametypes.RoundState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	s, ok := f.entries[roomCode]
	if !ok {
		return nil, kvcache.ErrMiss
	}
	return &s, nil
}

func (f *FakeStateCache) Put(ctx context.Context, state *gametypes.RoundState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PutErr != nil {
		return f.PutErr
	}
	f.entries[state.RoomCode] = *state
	return nil
}

func (f *FakeStateCache) Delete(ctx context.Context, roomCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, roomCode)
	return nil
}

func (f *FakeStateCache) Entry(roomCode string) (gametypes.RoundState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.entries[roomCode]
	return s, ok
}

// ------------------------
// Fake Grants
// ------------------------

// FakeGrants issues readable tokens of the form kind|round|player|owner.
type FakeGrants struct{}

func (FakeGrants) IssueAudioGrant(ctx context.Context, g identitydomain.AudioGrant) (string, error) {
	if !g.Kind.Valid() {
		return "", fmt.Errorf("%w: unknown grant kind", gameerrors.ErrInvalidInput)
	}
	return strings.Join([]string{string(g.Kind), g.RoundID.String(), g.PlayerID.String(), g.OwnerID.String()}, "|"), nil
}

func (FakeGrants) ValidateAudioGrant(ctx context.Context, token string) (*identitydomain.AudioGrant, error) {
	bad := fmt.Errorf("%w: bad grant", gameerrors.ErrUnauthorized)
	parts := strings.Split(token, "|")
	if len(parts) != 4 {
		return nil, bad
	}
	ids := make([]uuid.UUID, 3)
	for i, p := range parts[1:] {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, bad
		}
		ids[i] = id
	}
	return &identitydomain.AudioGrant{
		Kind:      identitydomain.GrantKind(parts[0]),
		RoundID:   ids[0],
		PlayerID:  ids[1],
		OwnerID:   ids[2],
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

// ------------------------
// Fake Reverser
// ------------------------

type FakeReverser struct {
	mu    sync.Mutex
	calls int

	Err error
	// BeforeReverse runs ahead of each call, outside the lock.
	BeforeReverse func()
}

func (f *FakeReverser) Reverse(ctx context.Context, input []byte) ([]byte, error) {
	if f.BeforeReverse != nil {
		f.BeforeReverse()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]byte, len(input))
	for i, b := range input {
		out[len(input)-1-i] = b
	}
	return out, nil
}

// ------------------------
// Fake Score Store
// ------------------------

type FakeScoreStore struct {
	mu     sync.Mutex
	scores map[uuid.UUID][]scoringdb.RoundScore
	writes int
}

var _ scoringdb.Repository = (*FakeScoreStore)(nil)

func NewFakeScoreStore() *FakeScoreStore {
	return &FakeScoreStore{scores: make(map[uuid.UUID][]scoringdb.RoundScore)}
}

func (f *FakeScoreStore) HasScores(ctx context.Context, db bun.IDB, roundID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scores[roundID]) > 0, nil
}

func (f *FakeScoreStore) InsertScores(ctx context.Context, db bun.IDB, scores []scoringdb.RoundScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(scores) == 0 {
		return nil
	}
	if len(f.scores[scores[0].RoundID]) > 0 {
		return scoringdb.ErrScoresExist
	}
	f.writes++
	f.scores[scores[0].RoundID] = append([]scoringdb.RoundScore(nil), scores...)
	return nil
}

func (f *FakeScoreStore) ListScores(ctx context.Context, db bun.IDB, roundID uuid.UUID) ([]scoringdb.RoundScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scores[roundID], nil
}

func (f *FakeScoreStore) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}
