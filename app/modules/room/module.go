package room

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	roomservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/application"
	roomcache "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/cache"
	roomhandlers "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/handlers"
	roomqueue "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/queue"
	roomdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/repositories"
	"github.com/Black-And-White-Club/reverse-chorus/config"
	"github.com/Black-And-White-Club/reverse-chorus/internal/httpx"
	"github.com/Black-And-White-Club/reverse-chorus/internal/kvcache"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Module represents the room module.
type Module struct {
	Service    *roomservice.RoomService
	Queue      *roomqueue.Service
	handlers   *roomhandlers.RoomHandlers
	limiter    *httpx.IPRateLimiter
	logger     *slog.Logger
	cancelFunc context.CancelFunc
}

// NewModule creates and initializes the room module.
func NewModule(
	ctx context.Context,
	cfg *config.Config,
	db *bun.DB,
	js jetstream.JetStream,
	tokens roomservice.TokenIssuer,
	notifier roomservice.Notifier,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
) (*Module, error) {
	logger.InfoContext(ctx, "Initializing room module")

	kv, err := kvcache.EnsureBucket(ctx, js, roomcache.Bucket, cfg.Game.RoomCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("room: %w", err)
	}

	service := roomservice.NewRoomService(
		roomdb.NewRepository(db),
		roomcache.NewKV(kv),
		tokens,
		notifier,
		db,
		roomservice.Config{TokenTTL: cfg.Game.TokenTTL, PublicBaseURL: cfg.HTTP.PublicBaseURL},
		logger,
		m,
		tracer,
	)

	queue, err := roomqueue.NewService(ctx, cfg.Postgres.DSN, service, logger, m)
	if err != nil {
		return nil, fmt.Errorf("room: %w", err)
	}
	service.SetExpiryScheduler(queue)

	logger.InfoContext(ctx, "Room module initialized successfully")
	return &Module{
		Service:  service,
		Queue:    queue,
		handlers: roomhandlers.NewRoomHandlers(service, logger, tracer),
		limiter:  httpx.NewIPRateLimiter(rate.Limit(1), 10),
		logger:   logger,
	}, nil
}

// Mount registers the room routes on r, the /rooms subrouter. The round
// module adds its room-scoped routes to the same subrouter.
func (m *Module) Mount(r chi.Router, requirePlayer func(http.Handler) http.Handler) {
	m.handlers.Mount(r, requirePlayer, httpx.RateLimitMiddleware(m.limiter))
}

// Run starts the expiry queue and blocks until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	if wg != nil {
		defer wg.Done()
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if err := m.Queue.Start(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Room queue failed to start", attr.Error(err))
		return
	}

	<-ctx.Done()
	m.logger.Info("Room module goroutine stopped")
}

// Close stops the expiry queue.
func (m *Module) Close(ctx context.Context) error {
	m.logger.Info("Stopping room module")
	err := m.Queue.Stop(ctx)
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	if err != nil {
		return fmt.Errorf("error stopping room queue: %w", err)
	}
	m.logger.Info("Room module stopped")
	return nil
}
