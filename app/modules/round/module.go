package round

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	roomdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/repositories"
	roundservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/application"
	roundcache "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/infrastructure/cache"
	roundhandlers "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/infrastructure/handlers"
	rounddb "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/infrastructure/repositories"
	scoringservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/application"
	"github.com/Black-And-White-Club/reverse-chorus/config"
	"github.com/Black-And-White-Club/reverse-chorus/internal/httpx"
	"github.com/Black-And-White-Club/reverse-chorus/internal/kvcache"
	"github.com/Black-And-White-Club/reverse-chorus/internal/objectstore"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/metrics"
	"github.com/Black-And-White-Club/reverse-chorus/internal/transcoder"
	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// AudioPath is where granted audio is served, relative to the API root.
const AudioPath = "/api/audio/"

// Module represents the round module.
type Module struct {
	Service  *roundservice.RoundService
	handlers *roundhandlers.RoundHandlers
	limiter  *httpx.IPRateLimiter
	logger   *slog.Logger
}

// NewModule creates and initializes the round module.
func NewModule(
	ctx context.Context,
	cfg *config.Config,
	db *bun.DB,
	js jetstream.JetStream,
	rooms roundservice.RoomRefresher,
	scorer scoringservice.Service,
	grants roundservice.GrantIssuer,
	notifier roundservice.Notifier,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
) (*Module, error) {
	logger.InfoContext(ctx, "Initializing round module")

	kv, err := kvcache.EnsureBucket(ctx, js, roundcache.Bucket, cfg.Game.RoundCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("round: %w", err)
	}
	audio, err := objectstore.Open(ctx, js, cfg.Game.AudioBucket)
	if err != nil {
		return nil, fmt.Errorf("round: %w", err)
	}
	songs, err := objectstore.Open(ctx, js, cfg.Game.SongBucket)
	if err != nil {
		return nil, fmt.Errorf("round: %w", err)
	}

	service := roundservice.NewRoundService(
		rounddb.NewRepository(db),
		roomdb.NewRepository(db),
		rooms,
		roundcache.NewKV(kv),
		scorer,
		grants,
		notifier,
		audio,
		songs,
		transcoder.NewFFmpeg(cfg.Transcoder.FFmpegPath),
		db,
		roundservice.Config{MaxUploadBytes: cfg.Game.MaxUploadBytes, AudioPath: AudioPath},
		logger,
		m,
		tracer,
	)

	logger.InfoContext(ctx, "Round module initialized successfully")
	return &Module{
		Service:  service,
		handlers: roundhandlers.NewRoundHandlers(service, cfg.Game.MaxUploadBytes, logger, tracer),
		limiter:  httpx.NewIPRateLimiter(rate.Limit(2), 6),
		logger:   logger,
	}, nil
}

// MountRoomRoutes adds the start and round-state routes to the /rooms
// subrouter.
func (m *Module) MountRoomRoutes(r chi.Router, requirePlayer func(http.Handler) http.Handler) {
	m.handlers.MountRoomRoutes(r, requirePlayer)
}

// Mount registers /rounds/{id} and /audio/{grant} on the API router.
func (m *Module) Mount(r chi.Router, requireRoundPlayer func(roundID func(*http.Request) string) func(http.Handler) http.Handler) {
	r.Route("/rounds/{id}", func(r chi.Router) {
		guard := requireRoundPlayer(func(req *http.Request) string { return chi.URLParam(req, "id") })
		m.handlers.Mount(r, guard, httpx.RateLimitMiddleware(m.limiter))
	})
	m.handlers.MountAudio(r)
}
