package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	identityservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/application"
	identityhandlers "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/infrastructure/handlers"
	identityjwt "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/infrastructure/jwt"
	identitystore "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/infrastructure/tokenstore"
	"github.com/Black-And-White-Club/reverse-chorus/config"
	"github.com/Black-And-White-Club/reverse-chorus/internal/kvcache"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/metrics"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/trace"
)

// TokenBucket is the key-value bucket holding player tokens.
const TokenBucket = "player_tokens"

// Module represents the identity module.
type Module struct {
	Service *identityservice.IdentityService
	logger  *slog.Logger
}

// NewModule creates the identity module. The round lookup is wired later
// with SetRoundLookup because the round module depends on this one.
func NewModule(
	ctx context.Context,
	cfg *config.Config,
	js jetstream.JetStream,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
) (*Module, error) {
	logger.InfoContext(ctx, "Initializing identity module")

	kv, err := kvcache.EnsureBucket(ctx, js, TokenBucket, cfg.Game.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}

	service := identityservice.NewIdentityService(
		identitystore.NewKVStore(kv),
		nil,
		identityjwt.NewProvider(cfg.JWT.Secret),
		cfg.JWT.AudioGrantTTL,
		logger,
		m,
		tracer,
	)

	logger.InfoContext(ctx, "Identity module initialized successfully")
	return &Module{Service: service, logger: logger}, nil
}

// RequirePlayer returns the token-checking middleware.
func (m *Module) RequirePlayer() func(http.Handler) http.Handler {
	return identityhandlers.RequirePlayer(m.Service, m.logger)
}

// RequireRoundPlayer returns the middleware that binds a player token to the
// round named by roundID.
func (m *Module) RequireRoundPlayer(roundID func(*http.Request) string) func(http.Handler) http.Handler {
	return identityhandlers.RequireRoundPlayer(m.Service, roundID, m.logger)
}
