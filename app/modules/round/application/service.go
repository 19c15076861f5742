package roundservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	roomdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/repositories"
	rounddomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/domain"
	rounddb "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/infrastructure/repositories"
	scoringservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/application"
	"github.com/Black-And-White-Club/reverse-chorus/internal/events"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gameerrors"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/Black-And-White-Club/reverse-chorus/internal/objectstore"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/metrics"
	"github.com/Black-And-White-Club/reverse-chorus/internal/operation"
	"github.com/Black-And-White-Club/reverse-chorus/internal/results"
	"github.com/Black-And-White-Club/reverse-chorus/internal/transcoder"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	maxGuessLength   = 255
	recordingContent = "audio/webm"
)

// Config holds the round settings.
type Config struct {
	MaxUploadBytes int64
	// AudioPath prefixes every granted audio URL.
	AudioPath string
}

// RoundService implements Service. Every transition commits durable rows
// first, then updates the round cache, then emits events.
type RoundService struct {
	repo      rounddb.Repository
	rooms     RoomStore
	roomViews RoomRefresher
	cache     StateCache
	scorer    scoringservice.Service
	grants    GrantIssuer
	notifier  Notifier
	audio     objectstore.Store
	songs     objectstore.Store
	reverser  transcoder.Reverser
	db        *bun.DB
	cfg       Config
	now       func() time.Time
	newRand   func() *rand.Rand
	rebuild   singleflight.Group
	telemetry operation.Telemetry
}

// NewRoundService creates a new RoundService.
func NewRoundService(
	repo rounddb.Repository,
	rooms RoomStore,
	roomViews RoomRefresher,
	cache StateCache,
	scorer scoringservice.Service,
	grants GrantIssuer,
	notifier Notifier,
	audio objectstore.Store,
	songs objectstore.Store,
	reverser transcoder.Reverser,
	db *bun.DB,
	cfg Config,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
) *RoundService {
	return &RoundService{
		repo:      repo,
		rooms:     rooms,
		roomViews: roomViews,
		cache:     cache,
		scorer:    scorer,
		grants:    grants,
		notifier:  notifier,
		audio:     audio,
		songs:     songs,
		reverser:  reverser,
		db:        db,
		cfg:       cfg,
		now:       time.Now,
		newRand:   func() *rand.Rand { return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) },
		telemetry: operation.NewTelemetry("RoundService", logger, m, tracer),
	}
}

// failOrError routes err to the failure side when it is a domain error.
func failOrError[S any](err error) (results.OperationResult[S, error], error) {
	if gameerrors.IsDomain(err) {
		return operation.Failure[S](err)
	}
	return operation.Fail[S](err)
}

// objectKey names one upload's artifact. Every upload gets its own id, so a
// request that loses the track status race never touches the keys the
// winner recorded.
func objectKey(kind string, roundID, playerID, uploadID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s/%s.webm", kind, roundID, playerID, uploadID)
}

func (s *RoundService) validateAudio(a Audio) error {
	if len(a.Data) == 0 || !strings.HasPrefix(strings.ToLower(a.ContentType), "audio/") {
		return ErrInvalidAudio
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(a.Data)) > s.cfg.MaxUploadBytes {
		return ErrAudioTooLarge
	}
	return nil
}

// -----------------------------------------------------------------------------
// StartGame
// -----------------------------------------------------------------------------

func (s *RoundService) StartGame(ctx context.Context, rawCode string, requesterID uuid.UUID) (*gametypes.RoundState, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "StartGame", rawCode,
		func(ctx context.Context) (results.OperationResult[*gametypes.RoundState, error], error) {
			code, ok := gametypes.NormalizeRoomCode(rawCode)
			if !ok {
				return operation.Failure[*gametypes.RoundState](ErrRoomNotFound)
			}

			result, err := operation.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) (results.OperationResult[*gametypes.RoundState, error], error) {
				room, err := s.rooms.GetRoomForUpdate(ctx, tx, code)
				if errors.Is(err, roomdb.ErrNotFound) {
					return operation.Failure[*gametypes.RoundState](ErrRoomNotFound)
				}
				if err != nil {
					return operation.Fail[*gametypes.RoundState](err)
				}
				if room.HostPlayerID == nil || *room.HostPlayerID != requesterID {
					return operation.Failure[*gametypes.RoundState](ErrNotHost)
				}
				if room.Status != gametypes.RoomStatusWaiting {
					return operation.Failure[*gametypes.RoundState](ErrGameAlreadyStarted)
				}

				players, err := s.rooms.ListPresentPlayers(ctx, tx, code)
				if err != nil {
					return operation.Fail[*gametypes.RoundState](err)
				}
				if len(players) < 2 {
					return operation.Failure[*gametypes.RoundState](ErrNotEnoughPlayers)
				}

				songs, err := s.repo.RandomSongs(ctx, tx, len(players))
				if err != nil {
					return operation.Fail[*gametypes.RoundState](err)
				}
				if len(songs) < len(players) {
					return operation.Failure[*gametypes.RoundState](ErrNotEnoughSongs)
				}

				err = s.rooms.UpdateStatus(ctx, tx, code, gametypes.RoomStatusWaiting, gametypes.RoomStatusPlaying, nil)
				if errors.Is(err, roomdb.ErrNoRowsAffected) {
					return operation.Failure[*gametypes.RoundState](ErrGameAlreadyStarted)
				}
				if err != nil {
					return operation.Fail[*gametypes.RoundState](err)
				}
				if _, err := s.rooms.BumpVersion(ctx, tx, code); err != nil {
					return operation.Fail[*gametypes.RoundState](err)
				}

				now := s.now().UTC()
				round := &rounddb.Round{
					ID:          uuid.New(),
					RoomCode:    code,
					RoundNumber: 1,
					Phase:       gametypes.PhaseOriginalsRecording,
					StartedAt:   now,
				}
				err = s.repo.InsertRound(ctx, tx, round)
				if errors.Is(err, rounddb.ErrDuplicateRound) {
					return operation.Failure[*gametypes.RoundState](ErrGameAlreadyStarted)
				}
				if err != nil {
					return operation.Fail[*gametypes.RoundState](err)
				}

				tracks := make([]rounddb.Track, len(players))
				for i, p := range players {
					tracks[i] = rounddb.Track{
						RoundID:   round.ID,
						PlayerID:  p.ID,
						SongID:    songs[i].ID,
						Status:    gametypes.TrackOriginalsRecording,
						UpdatedAt: now,
					}
				}
				if err := s.repo.InsertTracks(ctx, tx, tracks); err != nil {
					return operation.Fail[*gametypes.RoundState](err)
				}

				return operation.Success(rounddb.State(round, tracks))
			})
			if err != nil || result.IsFailure() {
				return result, err
			}

			state := *result.Success
			if _, err := s.roomViews.Refresh(ctx, code); err != nil {
				s.telemetry.Logger.WarnContext(ctx, "Failed to refresh room view after start",
					attr.RoomCode(code), attr.Error(err))
			}
			s.writeCache(ctx, state)

			phase := events.PhasePayload{RoundID: state.RoundID, RoundNumber: state.RoundNumber, Phase: state.Phase}
			s.notify(ctx, code, events.GameStarted, phase)
			s.notify(ctx, code, events.RoundPhaseChanged, phase)

			return operation.Success(state)
		}))
}

// -----------------------------------------------------------------------------
// Uploads
// -----------------------------------------------------------------------------

// uploadProgress is what an upload transaction hands to the post-commit
// side effects.
type uploadProgress struct {
	round        *rounddb.Round
	tracks       []rounddb.Track
	uploaded     int
	phaseChanged bool
	reverseMap   map[uuid.UUID]uuid.UUID
}

func (p *uploadProgress) result() *UploadResult {
	return &UploadResult{
		RoundID:       p.round.ID,
		Phase:         p.round.Phase,
		UploadedCount: p.uploaded,
		TotalPlayers:  len(p.tracks),
	}
}

func (s *RoundService) UploadOriginal(ctx context.Context, roundID, playerID uuid.UUID, audio Audio) (*UploadResult, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "UploadOriginal", roundID.String(),
		func(ctx context.Context) (results.OperationResult[*UploadResult, error], error) {
			if err := s.validateAudio(audio); err != nil {
				return operation.Failure[*UploadResult](err)
			}

			track, err := s.memberTrack(ctx, roundID, playerID)
			if err != nil {
				return failOrError[*UploadResult](err)
			}
			if track.Status != gametypes.TrackOriginalsRecording {
				return operation.Failure[*UploadResult](ErrOriginalNotExpected)
			}

			uploadID := uuid.New()
			keys := rounddb.TrackKeys{
				Original: objectKey("original", roundID, playerID, uploadID),
				Reversed: objectKey("reversed-original", roundID, playerID, uploadID),
			}
			if err := s.storeWithReverse(ctx, audio.Data, keys.Original, keys.Reversed); err != nil {
				s.discardObjects(ctx, keys.Original, keys.Reversed)
				return operation.Fail[*UploadResult](err)
			}

			result, err := operation.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) (results.OperationResult[*uploadProgress, error], error) {
				round, err := s.lockRound(ctx, tx, roundID)
				if err != nil {
					return failOrError[*uploadProgress](err)
				}

				err = s.repo.UpdateTrackStatus(ctx, tx, roundID, playerID,
					gametypes.TrackOriginalsRecording, gametypes.TrackOriginalsReversedReady, keys)
				if errors.Is(err, rounddb.ErrNoRowsAffected) {
					return operation.Failure[*uploadProgress](ErrOriginalNotExpected)
				}
				if err != nil {
					return operation.Fail[*uploadProgress](err)
				}

				below, err := s.repo.CountTracksBelow(ctx, tx, roundID, gametypes.TrackOriginalsReversedReady)
				if err != nil {
					return operation.Fail[*uploadProgress](err)
				}
				tracks, err := s.repo.ListTracks(ctx, tx, roundID)
				if err != nil {
					return operation.Fail[*uploadProgress](err)
				}

				progress := &uploadProgress{round: round, tracks: tracks, uploaded: len(tracks) - below}
				if below == 0 && round.Phase == gametypes.PhaseOriginalsRecording {
					if err := s.assignReverseSingers(ctx, tx, progress); err != nil {
						return operation.Fail[*uploadProgress](err)
					}
				}
				return operation.Success(progress)
			})
			if err != nil {
				return operation.Fail[*UploadResult](err)
			}
			if result.IsFailure() {
				s.discardObjects(ctx, keys.Original, keys.Reversed)
				return operation.Failure[*UploadResult](*result.Failure)
			}

			progress := *result.Success
			code := progress.round.RoomCode
			s.writeCache(ctx, rounddb.State(progress.round, progress.tracks))
			s.notify(ctx, code, events.OriginalUploaded, events.UploadProgressPayload{
				RoundID:       roundID,
				PlayerID:      playerID,
				UploadedCount: progress.uploaded,
				TotalPlayers:  len(progress.tracks),
			})
			if progress.phaseChanged {
				reverseMap := make(map[string]uuid.UUID, len(progress.reverseMap))
				for performer, singer := range progress.reverseMap {
					reverseMap[performer.String()] = singer
				}
				s.notify(ctx, code, events.ReversedRecordingStarted, events.ReverseAssignmentPayload{
					RoundID:    roundID,
					ReverseMap: reverseMap,
				})
				s.notifyPhase(ctx, progress.round)
			}

			return operation.Success(progress.result())
		}))
}

// assignReverseSingers deranges the performers and moves the round to
// reversed_recording. The caller holds the round lock and has checked the
// round is still in originals_recording.
func (s *RoundService) assignReverseSingers(ctx context.Context, tx bun.IDB, p *uploadProgress) error {
	performers := make([]uuid.UUID, len(p.tracks))
	for i, t := range p.tracks {
		performers[i] = t.PlayerID
	}
	singers, err := rounddomain.Derange(performers, s.newRand())
	if err != nil {
		return err
	}
	mapping := rounddomain.ReverseMap(performers, singers)

	if _, err := s.repo.AssignReverseSingers(ctx, tx, p.round.ID, mapping); err != nil {
		return err
	}
	err = s.repo.UpdatePhase(ctx, tx, p.round.ID, gametypes.PhaseOriginalsRecording, gametypes.PhaseReversedRecording, s.now().UTC())
	if errors.Is(err, rounddb.ErrNoRowsAffected) {
		return nil
	}
	if err != nil {
		return err
	}

	tracks, err := s.repo.ListTracks(ctx, tx, p.round.ID)
	if err != nil {
		return err
	}
	p.round.Phase = gametypes.PhaseReversedRecording
	p.tracks = tracks
	p.phaseChanged = true
	p.reverseMap = mapping

	s.telemetry.Logger.InfoContext(ctx, "Reverse singers assigned",
		attr.RoundID(p.round.ID), attr.Int("players", len(performers)))
	return nil
}

func (s *RoundService) UploadReverse(ctx context.Context, roundID, playerID uuid.UUID, audio Audio) (*UploadResult, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "UploadReverse", roundID.String(),
		func(ctx context.Context) (results.OperationResult[*UploadResult, error], error) {
			if err := s.validateAudio(audio); err != nil {
				return operation.Failure[*UploadResult](err)
			}
			if _, err := s.memberTrack(ctx, roundID, playerID); err != nil {
				return failOrError[*UploadResult](err)
			}

			target, err := s.repo.GetTrackBySinger(ctx, nil, roundID, playerID)
			if errors.Is(err, rounddb.ErrNotFound) {
				return operation.Failure[*UploadResult](ErrReverseNotExpected)
			}
			if err != nil {
				return operation.Fail[*UploadResult](err)
			}
			if target.Status != gametypes.TrackReversedRecording {
				return operation.Failure[*UploadResult](ErrReverseNotExpected)
			}

			uploadID := uuid.New()
			keys := rounddb.TrackKeys{
				ReverseRecording: objectKey("reverse-recording", roundID, target.PlayerID, uploadID),
				Final:            objectKey("final-audio", roundID, target.PlayerID, uploadID),
			}
			if err := s.storeWithReverse(ctx, audio.Data, keys.ReverseRecording, keys.Final); err != nil {
				s.discardObjects(ctx, keys.ReverseRecording, keys.Final)
				return operation.Fail[*UploadResult](err)
			}

			var guessingAt time.Time
			result, err := operation.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) (results.OperationResult[*uploadProgress, error], error) {
				round, err := s.lockRound(ctx, tx, roundID)
				if err != nil {
					return failOrError[*uploadProgress](err)
				}

				err = s.repo.UpdateTrackStatus(ctx, tx, roundID, target.PlayerID,
					gametypes.TrackReversedRecording, gametypes.TrackFinalAudioReady, keys)
				if errors.Is(err, rounddb.ErrNoRowsAffected) {
					return operation.Failure[*uploadProgress](ErrReverseNotExpected)
				}
				if err != nil {
					return operation.Fail[*uploadProgress](err)
				}

				below, err := s.repo.CountTracksBelow(ctx, tx, roundID, gametypes.TrackFinalAudioReady)
				if err != nil {
					return operation.Fail[*uploadProgress](err)
				}

				progress := &uploadProgress{round: round}
				if below == 0 && round.Phase == gametypes.PhaseReversedRecording {
					guessingAt = s.now().UTC()
					err := s.repo.UpdatePhase(ctx, tx, roundID, gametypes.PhaseReversedRecording, gametypes.PhaseGuessing, guessingAt)
					if err != nil && !errors.Is(err, rounddb.ErrNoRowsAffected) {
						return operation.Fail[*uploadProgress](err)
					}
					if err == nil {
						round.Phase = gametypes.PhaseGuessing
						round.GuessingStartedAt = &guessingAt
						progress.phaseChanged = true
					}
				}

				tracks, err := s.repo.ListTracks(ctx, tx, roundID)
				if err != nil {
					return operation.Fail[*uploadProgress](err)
				}
				progress.tracks = tracks
				progress.uploaded = len(tracks) - below
				return operation.Success(progress)
			})
			if err != nil {
				return operation.Fail[*UploadResult](err)
			}
			if result.IsFailure() {
				s.discardObjects(ctx, keys.ReverseRecording, keys.Final)
				return operation.Failure[*UploadResult](*result.Failure)
			}

			progress := *result.Success
			code := progress.round.RoomCode
			s.writeCache(ctx, rounddb.State(progress.round, progress.tracks))
			s.notify(ctx, code, events.ReverseUploaded, events.UploadProgressPayload{
				RoundID:       roundID,
				PlayerID:      playerID,
				UploadedCount: progress.uploaded,
				TotalPlayers:  len(progress.tracks),
			})
			if progress.phaseChanged {
				s.notify(ctx, code, events.GuessingStarted, events.GuessingPayload{
					RoundID:   roundID,
					StartedAt: guessingAt,
					ClueCount: len(progress.tracks),
				})
				s.notifyPhase(ctx, progress.round)
			}

			return operation.Success(progress.result())
		}))
}

// storeWithReverse reverses data and stores both versions concurrently.
// Nothing is written when the reversal fails.
func (s *RoundService) storeWithReverse(ctx context.Context, data []byte, rawKey, reversedKey string) error {
	reversed, err := s.reverser.Reverse(ctx, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.audio.Put(gctx, rawKey, data) })
	g.Go(func() error { return s.audio.Put(gctx, reversedKey, reversed) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	return nil
}

// discardObjects removes artifacts whose keys were never committed to a
// track row. Failures only leave orphans behind, so they are logged. A
// transaction error may still have committed, so callers discard only on a
// rolled back rejection.
func (s *RoundService) discardObjects(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := s.audio.Delete(context.WithoutCancel(ctx), key); err != nil {
			s.telemetry.Logger.WarnContext(ctx, "Failed to discard uncommitted audio",
				attr.String("object_key", key), attr.Error(err))
		}
	}
}

// -----------------------------------------------------------------------------
// Guessing and scoring
// -----------------------------------------------------------------------------

type submission struct {
	round  *rounddb.Round
	tracks []rounddb.Track
	result *SubmitResult
}

func (s *RoundService) SubmitGuesses(ctx context.Context, roundID, playerID uuid.UUID, guesses []GuessInput) (*SubmitResult, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "SubmitGuesses", roundID.String(),
		func(ctx context.Context) (results.OperationResult[*SubmitResult, error], error) {
			result, err := operation.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) (results.OperationResult[*submission, error], error) {
				round, err := s.lockRound(ctx, tx, roundID)
				if err != nil {
					return failOrError[*submission](err)
				}
				if round.Phase != gametypes.PhaseGuessing {
					return operation.Failure[*submission](ErrNotGuessing)
				}

				tracks, err := s.repo.ListTracks(ctx, tx, roundID)
				if err != nil {
					return operation.Fail[*submission](err)
				}
				if !ownsTrack(tracks, playerID) {
					return operation.Failure[*submission](ErrNotInRound)
				}
				if len(guesses) == 0 {
					return operation.Failure[*submission](ErrNoGuesses)
				}

				already, err := s.repo.HasGuessed(ctx, tx, roundID, playerID)
				if err != nil {
					return operation.Fail[*submission](err)
				}
				if already {
					return operation.Failure[*submission](ErrAlreadySubmitted)
				}

				now := s.now().UTC()
				rows, err := guessRows(roundID, playerID, tracks, guesses, now)
				if err != nil {
					return operation.Failure[*submission](err)
				}

				err = s.repo.InsertGuesses(ctx, tx, rows)
				if errors.Is(err, rounddb.ErrDuplicateGuess) {
					return operation.Failure[*submission](ErrAlreadySubmitted)
				}
				if err != nil {
					return operation.Fail[*submission](err)
				}

				submitted, err := s.repo.CountSubmitters(ctx, tx, roundID)
				if err != nil {
					return operation.Fail[*submission](err)
				}

				res := &SubmitResult{Accepted: len(rows), SubmittedCount: submitted, TotalPlayers: len(tracks)}
				if submitted >= len(tracks) {
					err := s.repo.UpdatePhase(ctx, tx, roundID, gametypes.PhaseGuessing, gametypes.PhaseScoresFetching, now)
					if err != nil && !errors.Is(err, rounddb.ErrNoRowsAffected) {
						return operation.Fail[*submission](err)
					}
					if err == nil {
						round.Phase = gametypes.PhaseScoresFetching
						res.GuessingEnded = true
					}
				}
				return operation.Success(&submission{round: round, tracks: tracks, result: res})
			})
			if err != nil {
				return operation.Fail[*SubmitResult](err)
			}
			if result.IsFailure() {
				return operation.Failure[*SubmitResult](*result.Failure)
			}

			sub := *result.Success
			code := sub.round.RoomCode
			s.writeCache(ctx, rounddb.State(sub.round, sub.tracks))

			progress := events.GuessProgressPayload{
				RoundID:        roundID,
				SubmittedCount: sub.result.SubmittedCount,
				TotalPlayers:   sub.result.TotalPlayers,
			}
			s.notify(ctx, code, events.GuessProgress, progress)
			if sub.result.GuessingEnded {
				s.notify(ctx, code, events.GuessingEnded, progress)
				s.notifyPhase(ctx, sub.round)
			}

			return operation.Success(sub.result)
		}))
}

func ownsTrack(tracks []rounddb.Track, playerID uuid.UUID) bool {
	for _, t := range tracks {
		if t.PlayerID == playerID {
			return true
		}
	}
	return false
}

// guessRows validates a guess sheet against the round's clues. Repeated
// clue indexes keep the first guess; guesses on the clue the player sang
// are dropped.
func guessRows(roundID, playerID uuid.UUID, tracks []rounddb.Track, guesses []GuessInput, at time.Time) ([]rounddb.Guess, error) {
	seen := make(map[int]bool, len(guesses))
	rows := make([]rounddb.Guess, 0, len(guesses))
	for _, g := range guesses {
		if g.ClueIndex < 0 || g.ClueIndex >= len(tracks) {
			return nil, ErrUnknownClue
		}
		if seen[g.ClueIndex] {
			continue
		}
		seen[g.ClueIndex] = true

		singer := tracks[g.ClueIndex].ReverseSingerPlayerID
		if singer != nil && *singer == playerID {
			continue
		}
		rows = append(rows, rounddb.Guess{
			RoundID:     roundID,
			PlayerID:    playerID,
			ClueIndex:   g.ClueIndex,
			TitleGuess:  clip(g.Title),
			ArtistGuess: clip(g.Artist),
			SubmittedAt: at,
		})
	}
	if len(rows) == 0 {
		return nil, ErrNoGuesses
	}
	return rows, nil
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxGuessLength {
		return string(r[:maxGuessLength])
	}
	return s
}

func (s *RoundService) TriggerScoring(ctx context.Context, roundID, requesterID uuid.UUID) (*ScoreResult, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "TriggerScoring", roundID.String(),
		func(ctx context.Context) (results.OperationResult[*ScoreResult, error], error) {
			round, err := s.loadRound(ctx, roundID)
			if err != nil {
				return failOrError[*ScoreResult](err)
			}
			if _, err := s.memberTrack(ctx, roundID, requesterID); err != nil {
				return failOrError[*ScoreResult](err)
			}
			if err := scorable(round.Phase); err != nil {
				return operation.Failure[*ScoreResult](err)
			}

			scored, err := s.scorer.HasScores(ctx, nil, roundID)
			if err != nil {
				return operation.Fail[*ScoreResult](err)
			}
			if scored {
				return operation.Failure[*ScoreResult](ErrAlreadyScored)
			}

			input, err := s.roundInput(ctx, round)
			if err != nil {
				return operation.Fail[*ScoreResult](err)
			}
			// The oracle can take seconds; no transaction is open here.
			outcome, err := s.scorer.Evaluate(ctx, *input)
			if err != nil {
				return operation.Fail[*ScoreResult](err)
			}

			result, err := operation.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) (results.OperationResult[*gametypes.RoundState, error], error) {
				locked, err := s.lockRound(ctx, tx, roundID)
				if err != nil {
					return failOrError[*gametypes.RoundState](err)
				}
				if err := scorable(locked.Phase); err != nil {
					return operation.Failure[*gametypes.RoundState](err)
				}

				err = s.scorer.SaveScores(ctx, tx, outcome)
				if errors.Is(err, ErrAlreadyScored) {
					return operation.Failure[*gametypes.RoundState](ErrAlreadyScored)
				}
				if err != nil {
					return operation.Fail[*gametypes.RoundState](err)
				}

				now := s.now().UTC()
				err = s.repo.UpdatePhase(ctx, tx, roundID, gametypes.PhaseScoresFetching, gametypes.PhaseRoundEnded, now)
				if errors.Is(err, rounddb.ErrNoRowsAffected) {
					return operation.Failure[*gametypes.RoundState](ErrAlreadyScored)
				}
				if err != nil {
					return operation.Fail[*gametypes.RoundState](err)
				}
				locked.Phase = gametypes.PhaseRoundEnded
				locked.EndedAt = &now

				tracks, err := s.repo.ListTracks(ctx, tx, roundID)
				if err != nil {
					return operation.Fail[*gametypes.RoundState](err)
				}
				return operation.Success(rounddb.State(locked, tracks))
			})
			if err != nil {
				return operation.Fail[*ScoreResult](err)
			}
			if result.IsFailure() {
				return operation.Failure[*ScoreResult](*result.Failure)
			}

			state := *result.Success
			s.writeCache(ctx, state)
			s.notify(ctx, state.RoomCode, events.ScoresReady, events.ScoresReadyPayload{
				RoundID:     roundID,
				Leaderboard: outcome.Leaderboard,
			})
			s.notify(ctx, state.RoomCode, events.RoundPhaseChanged, events.PhasePayload{
				RoundID:     state.RoundID,
				RoundNumber: state.RoundNumber,
				Phase:       state.Phase,
			})

			return operation.Success(&ScoreResult{
				RoundID:       roundID,
				Leaderboard:   outcome.Leaderboard,
				FallbackCount: outcome.FallbackCount,
			})
		}))
}

func scorable(phase gametypes.Phase) error {
	switch phase {
	case gametypes.PhaseScoresFetching:
		return nil
	case gametypes.PhaseRoundEnded:
		return ErrAlreadyScored
	default:
		return ErrNotReadyForScoring
	}
}

// roundInput gathers everything scoring needs about a round. Clue indexes
// follow performer join order.
func (s *RoundService) roundInput(ctx context.Context, round *rounddb.Round) (*scoringservice.RoundInput, error) {
	tracks, err := s.repo.ListTracks(ctx, nil, round.ID)
	if err != nil {
		return nil, err
	}

	songIDs := make([]uuid.UUID, len(tracks))
	for i, t := range tracks {
		songIDs[i] = t.SongID
	}
	songs, err := s.repo.GetSongs(ctx, nil, songIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]rounddb.Song, len(songs))
	for _, song := range songs {
		byID[song.ID] = song
	}

	guesses, err := s.repo.ListGuesses(ctx, nil, round.ID)
	if err != nil {
		return nil, err
	}

	in := &scoringservice.RoundInput{
		RoundID:           round.ID,
		GuessingStartedAt: round.GuessingStartedAt,
		Players:           make([]gametypes.Player, 0, len(tracks)),
		Clues:             make([]scoringservice.Clue, 0, len(tracks)),
	}
	for i, t := range tracks {
		in.Players = append(in.Players, gametypes.Player{ID: t.PlayerID, RoomCode: round.RoomCode, DisplayName: t.PerformerName})
		clue := scoringservice.Clue{Index: i, PerformerID: t.PlayerID, SingerName: t.SingerName}
		if t.ReverseSingerPlayerID != nil {
			clue.SingerID = *t.ReverseSingerPlayerID
		}
		if song, ok := byID[t.SongID]; ok {
			clue.Title, clue.Artist = song.Title, song.Artist
		}
		in.Clues = append(in.Clues, clue)
	}

	index := make(map[uuid.UUID]int)
	for _, g := range guesses {
		i, ok := index[g.PlayerID]
		if !ok {
			i = len(in.Submissions)
			index[g.PlayerID] = i
			in.Submissions = append(in.Submissions, scoringservice.Submission{PlayerID: g.PlayerID, SubmittedAt: g.SubmittedAt})
		}
		in.Submissions[i].Guesses = append(in.Submissions[i].Guesses, scoringservice.Guess{
			ClueIndex: g.ClueIndex,
			Title:     g.TitleGuess,
			Artist:    g.ArtistGuess,
		})
	}
	return in, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (s *RoundService) loadRound(ctx context.Context, roundID uuid.UUID) (*rounddb.Round, error) {
	round, err := s.repo.GetRound(ctx, nil, roundID)
	if errors.Is(err, rounddb.ErrNotFound) {
		return nil, ErrRoundNotFound
	}
	return round, err
}

func (s *RoundService) lockRound(ctx context.Context, tx bun.IDB, roundID uuid.UUID) (*rounddb.Round, error) {
	round, err := s.repo.GetRoundForUpdate(ctx, tx, roundID)
	if errors.Is(err, rounddb.ErrNotFound) {
		return nil, ErrRoundNotFound
	}
	return round, err
}

// memberTrack returns playerID's own track, which doubles as the round
// membership check.
func (s *RoundService) memberTrack(ctx context.Context, roundID, playerID uuid.UUID) (*rounddb.Track, error) {
	track, err := s.repo.GetTrack(ctx, nil, roundID, playerID)
	if errors.Is(err, rounddb.ErrNotFound) {
		return nil, ErrNotInRound
	}
	return track, err
}

// writeCache stores state. When the write fails the stale entry is dropped
// so the next read rebuilds it.
func (s *RoundService) writeCache(ctx context.Context, state *gametypes.RoundState) {
	err := s.cache.Put(ctx, state)
	if err == nil {
		return
	}
	s.telemetry.Logger.WarnContext(ctx, "Failed to update round cache",
		attr.RoomCode(state.RoomCode), attr.RoundID(state.RoundID), attr.Error(err))
	if err := s.cache.Delete(ctx, state.RoomCode); err != nil {
		s.telemetry.Logger.ErrorContext(ctx, "Failed to drop stale round cache entry",
			attr.RoomCode(state.RoomCode), attr.Error(err))
	}
}

func (s *RoundService) notifyPhase(ctx context.Context, round *rounddb.Round) {
	s.notify(ctx, round.RoomCode, events.RoundPhaseChanged, events.PhasePayload{
		RoundID:     round.ID,
		RoundNumber: round.RoundNumber,
		Phase:       round.Phase,
	})
}

func (s *RoundService) notify(ctx context.Context, code string, kind events.Kind, payload any) {
	if err := s.notifier.Notify(ctx, code, kind, payload); err != nil {
		s.telemetry.Logger.WarnContext(ctx, "Failed to publish round event",
			attr.RoomCode(code), attr.String("event_kind", string(kind)), attr.Error(err))
	}
}
