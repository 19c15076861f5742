package roomservice

import (
	"context"
	"sort"
	"sync"
	"time"

	roomdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/repositories"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Room Repository
// ------------------------

// FakeRoomRepo keeps rows in memory. Func fields override single methods.
type FakeRoomRepo struct {
	mu      sync.Mutex
	trace   []string
	rooms   map[string]roomdb.Room
	players []roomdb.Player

	InsertRoomFunc func(ctx context.Context, db bun.IDB, room *roomdb.Room) error
	GetRoomFunc    func(ctx context.Context, db bun.IDB, code string) (*roomdb.Room, error)
}

func NewFakeRoomRepo() *FakeRoomRepo {
	return &FakeRoomRepo{rooms: make(map[string]roomdb.Room)}
}

func (f *FakeRoomRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

func (f *FakeRoomRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeRoomRepo) Room(code string) (roomdb.Room, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[code]
	return r, ok
}

func (f *FakeRoomRepo) InsertRoom(ctx context.Context, db bun.IDB, room *roomdb.Room) error {
	f.mu.Lock()
	f.record("InsertRoom")
	fn := f.InsertRoomFunc
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, db, room); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room.Code]; ok {
		return roomdb.ErrDuplicateCode
	}
	f.rooms[room.Code] = *room
	return nil
}

func (f *FakeRoomRepo) InsertPlayer(ctx context.Context, db bun.IDB, player *roomdb.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertPlayer")
	f.players = append(f.players, *player)
	return nil
}

func (f *FakeRoomRepo) GetRoom(ctx context.Context, db bun.IDB, code string) (*roomdb.Room, error) {
	f.mu.Lock()
	f.record("GetRoom")
	fn := f.GetRoomFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, db, code)
	}
	return f.get(code)
}

func (f *FakeRoomRepo) GetRoomForUpdate(ctx context.Context, db bun.IDB, code string) (*roomdb.Room, error) {
	f.mu.Lock()
	f.record("GetRoomForUpdate")
	f.mu.Unlock()
	return f.get(code)
}

func (f *FakeRoomRepo) get(code string) (*roomdb.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[code]
	if !ok {
		return nil, roomdb.ErrNotFound
	}
	return &r, nil
}

func (f *FakeRoomRepo) ListPresentPlayers(ctx context.Context, db bun.IDB, code string) ([]roomdb.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListPresentPlayers")
	var out []roomdb.Player
	for _, p := range f.players {
		if p.RoomCode == code && p.LeftAt == nil {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (f *FakeRoomRepo) MarkPlayerLeft(ctx context.Context, db bun.IDB, code string, playerID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MarkPlayerLeft")
	for i := range f.players {
		p := &f.players[i]
		if p.ID == playerID && p.RoomCode == code && p.LeftAt == nil {
			p.LeftAt = &at
			return nil
		}
	}
	return roomdb.ErrNoRowsAffected
}

func (f *FakeRoomRepo) ClearHost(ctx context.Context, db bun.IDB, code string, playerID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ClearHost")
	r, ok := f.rooms[code]
	if !ok || r.HostPlayerID == nil || *r.HostPlayerID != playerID {
		return false, nil
	}
	r.HostPlayerID = nil
	f.rooms[code] = r
	return true, nil
}

func (f *FakeRoomRepo) BumpVersion(ctx context.Context, db bun.IDB, code string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("BumpVersion")
	r, ok := f.rooms[code]
	if !ok {
		return 0, roomdb.ErrNotFound
	}
	r.Version++
	f.rooms[code] = r
	return r.Version, nil
}

func (f *FakeRoomRepo) UpdateStatus(ctx context.Context, db bun.IDB, code string, from, to gametypes.RoomStatus, endedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateStatus")
	r, ok := f.rooms[code]
	if !ok || r.Status != from {
		return roomdb.ErrNoRowsAffected
	}
	r.Status = to
	if endedAt != nil {
		r.EndedAt = endedAt
	}
	f.rooms[code] = r
	return nil
}

// ------------------------
// Fake Token Issuer
// ------------------------

type FakeTokenIssuer struct {
	mu     sync.Mutex
	issued map[uuid.UUID]string

	IssueFunc     func(ctx context.Context, playerID uuid.UUID, roomCode string) (string, error)
	RevokeAllFunc func(ctx context.Context, roomCode string) (int, error)
}

func (f *FakeTokenIssuer) Issue(ctx context.Context, playerID uuid.UUID, roomCode string) (string, error) {
	if f.IssueFunc != nil {
		return f.IssueFunc(ctx, playerID, roomCode)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.issued == nil {
		f.issued = make(map[uuid.UUID]string)
	}
	token := "token-" + playerID.String()
	f.issued[playerID] = token
	return token, nil
}

func (f *FakeTokenIssuer) RevokeAll(ctx context.Context, roomCode string) (int, error) {
	if f.RevokeAllFunc != nil {
		return f.RevokeAllFunc(ctx, roomCode)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.issued)
	f.issued = nil
	return n, nil
}

// ------------------------
// Fake Expiry Scheduler
// ------------------------

type FakeExpiryScheduler struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
	err       error
}

func (f *FakeExpiryScheduler) ScheduleExpiry(ctx context.Context, code string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.scheduled == nil {
		f.scheduled = make(map[string]time.Time)
	}
	f.scheduled[code] = at
	return nil
}

// ------------------------
// Sequenced code generator
// ------------------------

func sequenceCodes(codes ...string) CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}
