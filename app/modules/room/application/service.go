package roomservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	roomdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/repositories"
	"github.com/Black-And-White-Club/reverse-chorus/internal/events"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/Black-And-White-Club/reverse-chorus/internal/kvcache"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/metrics"
	"github.com/Black-And-White-Club/reverse-chorus/internal/operation"
	"github.com/Black-And-White-Club/reverse-chorus/internal/results"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	maxCodeAttempts = 5
	qrCodeSize      = 256
)

// Config holds the room lifecycle settings.
type Config struct {
	TokenTTL      time.Duration
	PublicBaseURL string
}

// RoomService implements Service. Durable rows are the source of truth; the
// cache only ever receives views built from rows that were just read or
// committed.
type RoomService struct {
	repo       roomdb.Repository
	cache      RoomCache
	tokens     TokenIssuer
	notifier   Notifier
	expiry     ExpiryScheduler
	db         *bun.DB
	cfg        Config
	codes      CodeGenerator
	newBackOff func() backoff.BackOff
	now        func() time.Time
	rehydrate  singleflight.Group
	telemetry  operation.Telemetry
}

// NewRoomService creates a new RoomService.
func NewRoomService(
	repo roomdb.Repository,
	cache RoomCache,
	tokens TokenIssuer,
	notifier Notifier,
	db *bun.DB,
	cfg Config,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
) *RoomService {
	return &RoomService{
		repo:       repo,
		cache:      cache,
		tokens:     tokens,
		notifier:   notifier,
		db:         db,
		cfg:        cfg,
		codes:      RandomCode,
		newBackOff: defaultBackOff,
		now:        time.Now,
		telemetry:  operation.NewTelemetry("RoomService", logger, m, tracer),
	}
}

// SetExpiryScheduler wires the expiry queue, which itself calls back into
// the service.
func (s *RoomService) SetExpiryScheduler(expiry ExpiryScheduler) {
	s.expiry = expiry
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	return b
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n < minNameLength {
		return "", ErrNameTooShort
	}
	if n > maxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

func (s *RoomService) CreateRoom(ctx context.Context, hostName string) (*CreateRoomResult, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "CreateRoom", hostName,
		func(ctx context.Context) (results.OperationResult[*CreateRoomResult, error], error) {
			name, err := validateName(hostName)
			if err != nil {
				return operation.Failure[*CreateRoomResult](err)
			}

			room, host, err := s.allocateRoom(ctx, name)
			if errors.Is(err, roomdb.ErrDuplicateCode) {
				return operation.Failure[*CreateRoomResult](ErrCodeAllocationExhausted)
			}
			if err != nil {
				return operation.Fail[*CreateRoomResult](err)
			}

			view := roomdb.View(room, []roomdb.Player{*host})
			s.writeCache(ctx, view)

			token, err := s.tokens.Issue(ctx, host.ID, room.Code)
			if err != nil {
				return operation.Fail[*CreateRoomResult](err)
			}

			if s.expiry != nil {
				if err := s.expiry.ScheduleExpiry(ctx, room.Code, room.CreatedAt.Add(s.cfg.TokenTTL)); err != nil {
					s.telemetry.Logger.WarnContext(ctx, "Failed to schedule room expiry",
						attr.RoomCode(room.Code), attr.Error(err))
				}
			}

			return operation.Success(&CreateRoomResult{Room: view, Player: host.ToShared(), Token: token})
		}))
}

// allocateRoom inserts a room under a fresh code, retrying on collisions.
// Each attempt runs in its own transaction because a unique violation
// aborts the enclosing Postgres transaction.
func (s *RoomService) allocateRoom(ctx context.Context, hostName string) (*roomdb.Room, *roomdb.Player, error) {
	var (
		room    *roomdb.Room
		host    *roomdb.Player
		attempt int
	)

	insert := func() error {
		attempt++
		code, err := s.codes()
		if err != nil {
			return backoff.Permanent(err)
		}

		now := s.now().UTC()
		hostID := uuid.New()
		r := &roomdb.Room{Code: code, HostPlayerID: &hostID, Status: gametypes.RoomStatusWaiting, CreatedAt: now, Version: 1}
		p := &roomdb.Player{ID: hostID, RoomCode: code, DisplayName: hostName, JoinedAt: now}

		err = operation.InTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) error {
			if err := s.repo.InsertRoom(ctx, tx, r); err != nil {
				return err
			}
			return s.repo.InsertPlayer(ctx, tx, p)
		})
		if errors.Is(err, roomdb.ErrDuplicateCode) {
			s.telemetry.Logger.WarnContext(ctx, "Room code collision",
				attr.RoomCode(code), attr.Int("attempt", attempt))
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}

		room, host = r, p
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), maxCodeAttempts-1), ctx)
	if err := backoff.Retry(insert, b); err != nil {
		return nil, nil, err
	}
	return room, host, nil
}

func (s *RoomService) JoinRoom(ctx context.Context, rawCode, rawName string) (*JoinRoomResult, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "JoinRoom", rawCode,
		func(ctx context.Context) (results.OperationResult[*JoinRoomResult, error], error) {
			code, ok := gametypes.NormalizeRoomCode(rawCode)
			if !ok {
				return operation.Failure[*JoinRoomResult](ErrInvalidRoomCode)
			}
			name, err := validateName(rawName)
			if err != nil {
				return operation.Failure[*JoinRoomResult](err)
			}

			result, err := operation.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) (results.OperationResult[*JoinRoomResult, error], error) {
				room, err := s.repo.GetRoomForUpdate(ctx, tx, code)
				if errors.Is(err, roomdb.ErrNotFound) {
					return operation.Failure[*JoinRoomResult](ErrRoomNotFound)
				}
				if err != nil {
					return operation.Fail[*JoinRoomResult](err)
				}
				if room.Status != gametypes.RoomStatusWaiting {
					return operation.Failure[*JoinRoomResult](ErrRoomNotJoinable)
				}

				players, err := s.repo.ListPresentPlayers(ctx, tx, code)
				if err != nil {
					return operation.Fail[*JoinRoomResult](err)
				}
				for _, p := range players {
					if strings.EqualFold(p.DisplayName, name) {
						return operation.Failure[*JoinRoomResult](ErrDuplicateName)
					}
				}

				player := &roomdb.Player{ID: uuid.New(), RoomCode: code, DisplayName: name, JoinedAt: s.now().UTC()}
				if err := s.repo.InsertPlayer(ctx, tx, player); err != nil {
					return operation.Fail[*JoinRoomResult](err)
				}
				players = append(players, *player)
				if room.Version, err = s.repo.BumpVersion(ctx, tx, code); err != nil {
					return operation.Fail[*JoinRoomResult](err)
				}

				return operation.Success(&JoinRoomResult{Room: roomdb.View(room, players), Player: player.ToShared()})
			})
			if err != nil || result.IsFailure() {
				return result, err
			}

			joined := *result.Success
			s.writeCache(ctx, joined.Room)

			joined.Token, err = s.tokens.Issue(ctx, joined.Player.ID, code)
			if err != nil {
				return operation.Fail[*JoinRoomResult](err)
			}

			s.notify(ctx, code, events.PlayerJoined, events.PlayerPayload{
				PlayerID:    joined.Player.ID,
				DisplayName: joined.Player.DisplayName,
			})
			s.notify(ctx, code, events.RoomUpdated, events.RoomPayload{Room: *joined.Room})

			return operation.Success(joined)
		}))
}

func (s *RoomService) GetRoom(ctx context.Context, rawCode string) (*gametypes.Room, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "GetRoom", rawCode,
		func(ctx context.Context) (results.OperationResult[*gametypes.Room, error], error) {
			code, ok := gametypes.NormalizeRoomCode(rawCode)
			if !ok {
				return operation.Failure[*gametypes.Room](ErrRoomNotFound)
			}

			room, err := s.cache.Get(ctx, code)
			if err == nil {
				return operation.Success(room)
			}
			if !errors.Is(err, kvcache.ErrMiss) {
				s.telemetry.Logger.WarnContext(ctx, "Room cache read failed, using durable store",
					attr.RoomCode(code), attr.Error(err))
			}

			v, err, shared := s.rehydrate.Do(code, func() (any, error) {
				return s.loadAndCache(ctx, nil, code)
			})
			if errors.Is(err, ErrRoomNotFound) {
				return operation.Failure[*gametypes.Room](ErrRoomNotFound)
			}
			if err != nil {
				return operation.Fail[*gametypes.Room](err)
			}
			s.telemetry.Logger.DebugContext(ctx, "Room rehydrated from durable store",
				attr.RoomCode(code), attr.Bool("shared", shared))

			return operation.Success(v.(*gametypes.Room))
		}))
}

func (s *RoomService) Refresh(ctx context.Context, code string) (*gametypes.Room, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "Refresh", code,
		func(ctx context.Context) (results.OperationResult[*gametypes.Room, error], error) {
			room, err := s.loadAndCache(ctx, nil, code)
			if errors.Is(err, ErrRoomNotFound) {
				return operation.Failure[*gametypes.Room](err)
			}
			if err != nil {
				return operation.Fail[*gametypes.Room](err)
			}
			return operation.Success(room)
		}))
}

func (s *RoomService) RemovePlayer(ctx context.Context, code string, playerID uuid.UUID) (*gametypes.Room, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "RemovePlayer", code,
		func(ctx context.Context) (results.OperationResult[*gametypes.Room, error], error) {
			var leaver gametypes.Player

			result, err := operation.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) (results.OperationResult[*gametypes.Room, error], error) {
				room, err := s.repo.GetRoomForUpdate(ctx, tx, code)
				if errors.Is(err, roomdb.ErrNotFound) {
					return operation.Failure[*gametypes.Room](ErrRoomNotFound)
				}
				if err != nil {
					return operation.Fail[*gametypes.Room](err)
				}

				before, err := s.repo.ListPresentPlayers(ctx, tx, code)
				if err != nil {
					return operation.Fail[*gametypes.Room](err)
				}
				if p, ok := roomdb.View(room, before).Player(playerID); ok {
					leaver = p
				}

				err = s.repo.MarkPlayerLeft(ctx, tx, code, playerID, s.now().UTC())
				if errors.Is(err, roomdb.ErrNoRowsAffected) {
					return operation.Failure[*gametypes.Room](ErrPlayerNotInRoom)
				}
				if err != nil {
					return operation.Fail[*gametypes.Room](err)
				}

				cleared, err := s.repo.ClearHost(ctx, tx, code, playerID)
				if err != nil {
					return operation.Fail[*gametypes.Room](err)
				}
				if cleared {
					room.HostPlayerID = nil
					s.telemetry.Logger.InfoContext(ctx, "Host left, room is now host-less", attr.RoomCode(code))
				}
				if room.Version, err = s.repo.BumpVersion(ctx, tx, code); err != nil {
					return operation.Fail[*gametypes.Room](err)
				}

				players, err := s.repo.ListPresentPlayers(ctx, tx, code)
				if err != nil {
					return operation.Fail[*gametypes.Room](err)
				}
				return operation.Success(roomdb.View(room, players))
			})
			if err != nil || result.IsFailure() {
				return result, err
			}

			room := *result.Success
			s.writeCache(ctx, room)
			s.notify(ctx, code, events.PlayerLeft, events.PlayerPayload{PlayerID: playerID, DisplayName: leaver.DisplayName})
			s.notify(ctx, code, events.RoomUpdated, events.RoomPayload{Room: *room})

			return operation.Success(room)
		}))
}

func (s *RoomService) EndGame(ctx context.Context, code string, requesterID uuid.UUID) (*EndGameResult, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "EndGame", code,
		func(ctx context.Context) (results.OperationResult[*EndGameResult, error], error) {
			result, err := operation.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) (results.OperationResult[*gametypes.Room, error], error) {
				room, err := s.repo.GetRoomForUpdate(ctx, tx, code)
				if errors.Is(err, roomdb.ErrNotFound) {
					return operation.Failure[*gametypes.Room](ErrRoomNotFound)
				}
				if err != nil {
					return operation.Fail[*gametypes.Room](err)
				}
				if room.HostPlayerID == nil || *room.HostPlayerID != requesterID {
					return operation.Failure[*gametypes.Room](ErrNotHost)
				}
				return s.endLocked(ctx, tx, room)
			})
			if err != nil {
				return operation.Fail[*EndGameResult](err)
			}
			if result.IsFailure() {
				return operation.Failure[*EndGameResult](*result.Failure)
			}

			room := *result.Success
			invalidated := s.afterEnd(ctx, room)
			return operation.Success(&EndGameResult{Room: room, Invalidated: invalidated})
		}))
}

// ExpireRoom ends a room that is still open. It reports whether it ended
// anything; missing or already ended rooms are left alone.
func (s *RoomService) ExpireRoom(ctx context.Context, code string) (bool, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "ExpireRoom", code,
		func(ctx context.Context) (results.OperationResult[bool, error], error) {
			result, err := operation.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) (results.OperationResult[*gametypes.Room, error], error) {
				room, err := s.repo.GetRoomForUpdate(ctx, tx, code)
				if errors.Is(err, roomdb.ErrNotFound) {
					return operation.Success[*gametypes.Room](nil)
				}
				if err != nil {
					return operation.Fail[*gametypes.Room](err)
				}
				if room.Status == gametypes.RoomStatusEnded {
					return operation.Success[*gametypes.Room](nil)
				}
				return s.endLocked(ctx, tx, room)
			})
			if err != nil {
				return operation.Fail[bool](err)
			}
			if result.IsFailure() {
				return operation.Success(false)
			}
			room := *result.Success
			if room == nil {
				return operation.Success(false)
			}
			s.afterEnd(ctx, room)
			return operation.Success(true)
		}))
}

// endLocked moves a locked room to ended.
func (s *RoomService) endLocked(ctx context.Context, tx bun.IDB, room *roomdb.Room) (results.OperationResult[*gametypes.Room, error], error) {
	if !room.Status.CanTransitionTo(gametypes.RoomStatusEnded) {
		return operation.Failure[*gametypes.Room](ErrRoomAlreadyEnded)
	}
	now := s.now().UTC()
	err := s.repo.UpdateStatus(ctx, tx, room.Code, room.Status, gametypes.RoomStatusEnded, &now)
	if errors.Is(err, roomdb.ErrNoRowsAffected) {
		return operation.Failure[*gametypes.Room](ErrRoomAlreadyEnded)
	}
	if err != nil {
		return operation.Fail[*gametypes.Room](err)
	}
	room.Status = gametypes.RoomStatusEnded
	room.EndedAt = &now
	if room.Version, err = s.repo.BumpVersion(ctx, tx, room.Code); err != nil {
		return operation.Fail[*gametypes.Room](err)
	}

	players, err := s.repo.ListPresentPlayers(ctx, tx, room.Code)
	if err != nil {
		return operation.Fail[*gametypes.Room](err)
	}
	return operation.Success(roomdb.View(room, players))
}

// afterEnd runs the post-commit side effects of ending a room and returns
// how many tokens it revoked.
func (s *RoomService) afterEnd(ctx context.Context, room *gametypes.Room) int {
	invalidated, err := s.tokens.RevokeAll(ctx, room.Code)
	if err != nil {
		s.telemetry.Logger.WarnContext(ctx, "Failed to revoke room tokens",
			attr.RoomCode(room.Code), attr.Error(err))
	}
	s.writeCache(ctx, room)
	s.notify(ctx, room.Code, events.GameEnded, events.RoomPayload{Room: *room, Invalidated: invalidated})
	s.notify(ctx, room.Code, events.RoomUpdated, events.RoomPayload{Room: *room})
	return invalidated
}

func (s *RoomService) JoinQRCode(ctx context.Context, code string) ([]byte, error) {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	link := strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/join/" + room.Code
	png, err := qrcode.Encode(link, qrcode.Medium, qrCodeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render join code: %w", err)
	}
	return png, nil
}

// loadAndCache rebuilds the view of code from durable rows and caches it.
func (s *RoomService) loadAndCache(ctx context.Context, db bun.IDB, code string) (*gametypes.Room, error) {
	room, err := s.repo.GetRoom(ctx, db, code)
	if errors.Is(err, roomdb.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	players, err := s.repo.ListPresentPlayers(ctx, db, code)
	if err != nil {
		return nil, err
	}
	view := roomdb.View(room, players)
	s.writeCache(ctx, view)
	return view, nil
}

// writeCache stores view. When the write fails the stale entry is dropped
// so the next read rehydrates.
func (s *RoomService) writeCache(ctx context.Context, view *gametypes.Room) {
	err := s.cache.Put(ctx, view)
	if err == nil {
		return
	}
	s.telemetry.Logger.WarnContext(ctx, "Failed to update room cache",
		attr.RoomCode(view.Code), attr.Error(err))
	if err := s.cache.Delete(ctx, view.Code); err != nil {
		s.telemetry.Logger.ErrorContext(ctx, "Failed to drop stale room cache entry",
			attr.RoomCode(view.Code), attr.Error(err))
	}
}

func (s *RoomService) notify(ctx context.Context, code string, kind events.Kind, payload any) {
	if err := s.notifier.Notify(ctx, code, kind, payload); err != nil {
		s.telemetry.Logger.WarnContext(ctx, "Failed to publish room event",
			attr.RoomCode(code), attr.String("event_kind", string(kind)), attr.Error(err))
	}
}
