package roundservice

import (
	"context"
	"errors"
	"fmt"

	identitydomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/domain"
	rounddb "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/infrastructure/repositories"
	scoringservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/application"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/Black-And-White-Club/reverse-chorus/internal/kvcache"
	"github.com/Black-And-White-Club/reverse-chorus/internal/objectstore"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/Black-And-White-Club/reverse-chorus/internal/operation"
	"github.com/Black-And-White-Club/reverse-chorus/internal/results"
	"github.com/google/uuid"
)

func (s *RoundService) GetRoundState(ctx context.Context, rawCode string) (*gametypes.RoundState, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "GetRoundState", rawCode,
		func(ctx context.Context) (results.OperationResult[*gametypes.RoundState, error], error) {
			code, ok := gametypes.NormalizeRoomCode(rawCode)
			if !ok {
				return operation.Failure[*gametypes.RoundState](ErrRoomNotFound)
			}

			cached, err := s.cache.Get(ctx, code)
			if err == nil {
				return operation.Success(cached)
			}
			if !errors.Is(err, kvcache.ErrMiss) {
				s.telemetry.Logger.WarnContext(ctx, "Round cache read failed, rebuilding",
					attr.RoomCode(code), attr.Error(err))
			}

			// Concurrent misses for one room share a single rebuild.
			v, err, _ := s.rebuild.Do(code, func() (any, error) {
				return s.rebuildState(ctx, code)
			})
			if err != nil {
				return failOrError[*gametypes.RoundState](err)
			}
			return operation.Success(v.(*gametypes.RoundState))
		}))
}

func (s *RoundService) rebuildState(ctx context.Context, code string) (*gametypes.RoundState, error) {
	round, err := s.repo.LatestRound(ctx, nil, code)
	if errors.Is(err, rounddb.ErrNotFound) {
		return nil, ErrNoRound
	}
	if err != nil {
		return nil, err
	}
	tracks, err := s.repo.ListTracks(ctx, nil, round.ID)
	if err != nil {
		return nil, err
	}
	state := rounddb.State(round, tracks)
	s.writeCache(ctx, state)
	return state, nil
}

func (s *RoundService) GetAssignedSong(ctx context.Context, roundID, playerID uuid.UUID) (*AssignedSong, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "GetAssignedSong", roundID.String(),
		func(ctx context.Context) (results.OperationResult[*AssignedSong, error], error) {
			track, err := s.memberTrack(ctx, roundID, playerID)
			if err != nil {
				return failOrError[*AssignedSong](err)
			}
			song, err := s.repo.GetSong(ctx, nil, track.SongID)
			if err != nil {
				return operation.Fail[*AssignedSong](err)
			}

			url, err := s.grantURL(ctx, identitydomain.AudioGrant{
				RoundID:  roundID,
				PlayerID: playerID,
				Kind:     identitydomain.GrantSong,
				OwnerID:  song.ID,
			})
			if err != nil {
				return operation.Fail[*AssignedSong](err)
			}
			assigned := &AssignedSong{
				SongID:          song.ID,
				Title:           song.Title,
				Artist:          song.Artist,
				Lyrics:          song.Lyrics,
				DurationSeconds: song.DurationSeconds,
				AudioURL:        url,
			}

			target, err := s.repo.GetTrackBySinger(ctx, nil, roundID, playerID)
			switch {
			case errors.Is(err, rounddb.ErrNotFound):
			case err != nil:
				return operation.Fail[*AssignedSong](err)
			case target.ReversedAudioKey != "":
				url, err := s.grantURL(ctx, identitydomain.AudioGrant{
					RoundID:  roundID,
					PlayerID: playerID,
					Kind:     identitydomain.GrantReversedOriginal,
					OwnerID:  target.PlayerID,
				})
				if err != nil {
					return operation.Fail[*AssignedSong](err)
				}
				assigned.ReverseTarget = &ReverseTarget{PerformerID: target.PlayerID, AudioURL: url}
			}

			return operation.Success(assigned)
		}))
}

func (s *RoundService) GetClues(ctx context.Context, roundID, playerID uuid.UUID) ([]Clue, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "GetClues", roundID.String(),
		func(ctx context.Context) (results.OperationResult[[]Clue, error], error) {
			round, err := s.loadRound(ctx, roundID)
			if err != nil {
				return failOrError[[]Clue](err)
			}
			if round.Phase.Rank() < gametypes.PhaseGuessing.Rank() {
				return operation.Failure[[]Clue](ErrNotGuessing)
			}

			tracks, err := s.repo.ListTracks(ctx, nil, roundID)
			if err != nil {
				return operation.Fail[[]Clue](err)
			}
			if !ownsTrack(tracks, playerID) {
				return operation.Failure[[]Clue](ErrNotInRound)
			}

			clues := make([]Clue, 0, len(tracks))
			for i, t := range tracks {
				if t.FinalAudioKey == "" {
					continue
				}
				url, err := s.grantURL(ctx, identitydomain.AudioGrant{
					RoundID:  roundID,
					PlayerID: playerID,
					Kind:     identitydomain.GrantFinal,
					OwnerID:  t.PlayerID,
				})
				if err != nil {
					return operation.Fail[[]Clue](err)
				}
				clue := Clue{
					ClueIndex:        i,
					OriginalPlayerID: t.PlayerID,
					SingerName:       t.SingerName,
					AudioURL:         url,
				}
				if t.ReverseSingerPlayerID != nil {
					clue.SingerPlayerID = *t.ReverseSingerPlayerID
				}
				clues = append(clues, clue)
			}
			return operation.Success(clues)
		}))
}

func (s *RoundService) GetResults(ctx context.Context, roundID uuid.UUID) (*scoringservice.RoundResults, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "GetResults", roundID.String(),
		func(ctx context.Context) (results.OperationResult[*scoringservice.RoundResults, error], error) {
			round, err := s.loadRound(ctx, roundID)
			if err != nil {
				return failOrError[*scoringservice.RoundResults](err)
			}
			input, err := s.roundInput(ctx, round)
			if err != nil {
				return operation.Fail[*scoringservice.RoundResults](err)
			}
			res, err := s.scorer.Results(ctx, *input)
			if err != nil {
				return failOrError[*scoringservice.RoundResults](err)
			}
			return operation.Success(res)
		}))
}

func (s *RoundService) ResultsWorkbook(ctx context.Context, roundID uuid.UUID) ([]byte, error) {
	res, err := s.GetResults(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return s.scorer.ResultsWorkbook(ctx, res)
}

func (s *RoundService) LeaderboardChart(ctx context.Context, roundID uuid.UUID) ([]byte, error) {
	res, err := s.GetResults(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return s.scorer.LeaderboardChart(ctx, res.Leaderboard)
}

func (s *RoundService) OpenAudio(ctx context.Context, token string) (*AudioStream, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "OpenAudio", "",
		func(ctx context.Context) (results.OperationResult[*AudioStream, error], error) {
			grant, err := s.grants.ValidateAudioGrant(ctx, token)
			if err != nil {
				return failOrError[*AudioStream](err)
			}

			var (
				store       = s.audio
				key         string
				contentType = recordingContent
			)
			switch grant.Kind {
			case identitydomain.GrantSong:
				track, err := s.memberTrack(ctx, grant.RoundID, grant.PlayerID)
				if err != nil {
					return failOrError[*AudioStream](err)
				}
				if track.SongID != grant.OwnerID {
					return operation.Failure[*AudioStream](ErrAudioForbidden)
				}
				song, err := s.repo.GetSong(ctx, nil, track.SongID)
				if err != nil {
					return operation.Fail[*AudioStream](err)
				}
				store, key, contentType = s.songs, song.AudioKey, song.AudioType

			case identitydomain.GrantReversedOriginal:
				target, err := s.repo.GetTrackBySinger(ctx, nil, grant.RoundID, grant.PlayerID)
				if errors.Is(err, rounddb.ErrNotFound) {
					return operation.Failure[*AudioStream](ErrAudioForbidden)
				}
				if err != nil {
					return operation.Fail[*AudioStream](err)
				}
				if target.PlayerID != grant.OwnerID {
					return operation.Failure[*AudioStream](ErrAudioForbidden)
				}
				key = target.ReversedAudioKey

			case identitydomain.GrantFinal:
				if _, err := s.memberTrack(ctx, grant.RoundID, grant.PlayerID); err != nil {
					return failOrError[*AudioStream](err)
				}
				track, err := s.repo.GetTrack(ctx, nil, grant.RoundID, grant.OwnerID)
				if errors.Is(err, rounddb.ErrNotFound) {
					return operation.Failure[*AudioStream](ErrAudioNotReady)
				}
				if err != nil {
					return operation.Fail[*AudioStream](err)
				}
				key = track.FinalAudioKey

			default:
				return operation.Failure[*AudioStream](ErrAudioForbidden)
			}

			if key == "" {
				return operation.Failure[*AudioStream](ErrAudioNotReady)
			}
			data, err := store.Get(ctx, key)
			if errors.Is(err, objectstore.ErrObjectNotFound) {
				return operation.Failure[*AudioStream](ErrAudioNotReady)
			}
			if err != nil {
				return operation.Fail[*AudioStream](fmt.Errorf("%w: %v", ErrStorageFailed, err))
			}
			return operation.Success(&AudioStream{ContentType: contentType, Data: data})
		}))
}

func (s *RoundService) RoomCodeForRound(ctx context.Context, roundID uuid.UUID) (string, error) {
	round, err := s.loadRound(ctx, roundID)
	if err != nil {
		return "", err
	}
	return round.RoomCode, nil
}

func (s *RoundService) grantURL(ctx context.Context, grant identitydomain.AudioGrant) (string, error) {
	token, err := s.grants.IssueAudioGrant(ctx, grant)
	if err != nil {
		return "", err
	}
	return s.cfg.AudioPath + token, nil
}

var _ Service = (*RoundService)(nil)
