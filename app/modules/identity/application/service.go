package identityservice

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	identitydomain "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/domain"
	identitystore "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/infrastructure/tokenstore"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gameerrors"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/metrics"
	"github.com/Black-And-White-Club/reverse-chorus/internal/operation"
	"github.com/Black-And-White-Club/reverse-chorus/internal/results"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const tokenBytes = 16

// IdentityService implements Service.
type IdentityService struct {
	store     TokenStore
	rounds    RoundLookup
	grants    GrantSigner
	grantTTL  time.Duration
	telemetry operation.Telemetry
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(
	store TokenStore,
	rounds RoundLookup,
	grants GrantSigner,
	grantTTL time.Duration,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
) *IdentityService {
	return &IdentityService{
		store:     store,
		rounds:    rounds,
		grants:    grants,
		grantTTL:  grantTTL,
		telemetry: operation.NewTelemetry("IdentityService", logger, m, tracer),
	}
}

// SetRoundLookup wires the round resolver once the round module exists.
func (s *IdentityService) SetRoundLookup(rounds RoundLookup) {
	s.rounds = rounds
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *IdentityService) Issue(ctx context.Context, playerID uuid.UUID, roomCode string) (string, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "Issue", playerID.String(),
		func(ctx context.Context) (results.OperationResult[string, error], error) {
			if playerID == uuid.Nil || roomCode == "" {
				return results.FailureResult[string, error](ErrInvalidPlayer), nil
			}
			token, err := newToken()
			if err != nil {
				return results.OperationResult[string, error]{}, err
			}
			id := identitydomain.Identity{PlayerID: playerID, RoomCode: roomCode}
			if err := s.store.Save(ctx, token, id); err != nil {
				return results.OperationResult[string, error]{}, errors.Join(gameerrors.ErrDependencyFailure, err)
			}
			return results.SuccessResult[string, error](token), nil
		}))
}

func (s *IdentityService) Resolve(ctx context.Context, token string) (*identitydomain.Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	id, err := s.store.Lookup(ctx, token)
	if errors.Is(err, identitystore.ErrTokenNotFound) {
		return nil, ErrUnknownToken
	}
	if err != nil {
		s.telemetry.Logger.ErrorContext(ctx, "Token lookup failed",
			attr.ExtractCorrelationID(ctx),
			attr.Error(err),
		)
		return nil, errors.Join(gameerrors.ErrDependencyFailure, err)
	}
	return id, nil
}

func (s *IdentityService) ValidateForRound(ctx context.Context, token string, roundID uuid.UUID) (*identitydomain.RoundIdentity, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "ValidateForRound", roundID.String(),
		func(ctx context.Context) (results.OperationResult[*identitydomain.RoundIdentity, error], error) {
			id, err := s.Resolve(ctx, token)
			if err != nil {
				if gameerrors.IsDomain(err) {
					return results.FailureResult[*identitydomain.RoundIdentity, error](err), nil
				}
				return results.OperationResult[*identitydomain.RoundIdentity, error]{}, err
			}

			roomCode, err := s.rounds.RoomCodeForRound(ctx, roundID)
			if errors.Is(err, gameerrors.ErrNotFound) {
				// Unknown rounds look the same as foreign ones.
				return results.FailureResult[*identitydomain.RoundIdentity, error](ErrRoomMismatch), nil
			}
			if err != nil {
				return results.OperationResult[*identitydomain.RoundIdentity, error]{}, err
			}
			if roomCode != id.RoomCode {
				return results.FailureResult[*identitydomain.RoundIdentity, error](ErrRoomMismatch), nil
			}

			return results.SuccessResult[*identitydomain.RoundIdentity, error](&identitydomain.RoundIdentity{
				Identity: *id,
				RoundID:  roundID,
			}), nil
		}))
}

func (s *IdentityService) Revoke(ctx context.Context, playerID uuid.UUID) (int, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "Revoke", playerID.String(),
		func(ctx context.Context) (results.OperationResult[int, error], error) {
			rooms, err := s.store.RoomsForPlayer(ctx, playerID)
			if err != nil {
				return results.OperationResult[int, error]{}, err
			}
			revoked := 0
			for _, room := range rooms {
				ok, err := s.store.Delete(ctx, room, playerID)
				if err != nil {
					s.telemetry.Logger.WarnContext(ctx, "Failed to revoke token",
						attr.RoomCode(room), attr.PlayerID(playerID), attr.Error(err))
					continue
				}
				if ok {
					revoked++
				}
			}
			return results.SuccessResult[int, error](revoked), nil
		}))
}

func (s *IdentityService) RevokeAll(ctx context.Context, roomCode string) (int, error) {
	return operation.Unwrap(operation.Run(&s.telemetry, ctx, "RevokeAll", roomCode,
		func(ctx context.Context) (results.OperationResult[int, error], error) {
			players, err := s.store.PlayersInRoom(ctx, roomCode)
			if err != nil {
				return results.OperationResult[int, error]{}, err
			}
			revoked := 0
			for _, playerID := range players {
				ok, err := s.store.Delete(ctx, roomCode, playerID)
				if err != nil {
					s.telemetry.Logger.WarnContext(ctx, "Failed to revoke token",
						attr.RoomCode(roomCode), attr.PlayerID(playerID), attr.Error(err))
					continue
				}
				if ok {
					revoked++
				}
			}
			s.telemetry.Logger.InfoContext(ctx, "Room tokens revoked",
				attr.RoomCode(roomCode), attr.Int("revoked", revoked))
			return results.SuccessResult[int, error](revoked), nil
		}))
}

func (s *IdentityService) IssueAudioGrant(ctx context.Context, grant identitydomain.AudioGrant) (string, error) {
	if !grant.Kind.Valid() {
		return "", fmt.Errorf("%w: unknown grant kind %q", gameerrors.ErrInvalidInput, grant.Kind)
	}
	token, err := s.grants.Sign(grant, s.grantTTL)
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *IdentityService) ValidateAudioGrant(ctx context.Context, token string) (*identitydomain.AudioGrant, error) {
	grant, err := s.grants.Verify(token)
	if err != nil {
		s.telemetry.Logger.DebugContext(ctx, "Rejected audio grant", attr.Error(err))
		return nil, ErrInvalidGrant
	}
	return grant, nil
}
