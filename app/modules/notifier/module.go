package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	identityhandlers "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/infrastructure/handlers"
	notifierservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/notifier/application"
	notifierhandlers "github.com/Black-And-White-Club/reverse-chorus/app/modules/notifier/infrastructure/handlers"
	notifierhub "github.com/Black-And-White-Club/reverse-chorus/app/modules/notifier/infrastructure/hub"
	notifierrouter "github.com/Black-And-White-Club/reverse-chorus/app/modules/notifier/infrastructure/router"
	"github.com/Black-And-White-Club/reverse-chorus/config"
	"github.com/Black-And-White-Club/reverse-chorus/internal/eventbus"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Module represents the event notifier: the bus publisher every other module
// notifies through, and the websocket side that consumes it.
type Module struct {
	Notifier *notifierservice.Publisher
	Hub      *notifierhub.Hub
	router   *notifierrouter.FanoutRouter
	cfg      *config.Config
	logger   *slog.Logger
	tracer   trace.Tracer

	cancelFunc context.CancelFunc
}

// NewModule creates the notifier on bus. registry may be nil.
func NewModule(
	ctx context.Context,
	cfg *config.Config,
	bus *eventbus.Bus,
	logger *slog.Logger,
	registry prometheus.Registerer,
	tracer trace.Tracer,
) (*Module, error) {
	logger.InfoContext(ctx, "Initializing notifier module")

	hub := notifierhub.New(logger)
	router, err := notifierrouter.NewFanoutRouter(logger, bus.Subscriber, hub, registry)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	logger.InfoContext(ctx, "Notifier module initialized successfully")
	return &Module{
		Notifier: notifierservice.NewPublisher(bus.Publisher, logger),
		Hub:      hub,
		router:   router,
		cfg:      cfg,
		logger:   logger,
		tracer:   tracer,
	}, nil
}

// Mount registers GET /ws on r.
func (m *Module) Mount(r chi.Router, resolver identityhandlers.Resolver, rooms notifierhandlers.RoomReader, rounds notifierhandlers.RoundReader) {
	ws := notifierhandlers.NewWSHandler(m.Hub, resolver, rooms, rounds, m.Notifier,
		m.cfg.HTTP.AllowedOrigins, m.logger, m.tracer)
	r.Method("GET", "/ws", ws)
}

// Running is closed once the fan-out handler is subscribed.
func (m *Module) Running() chan struct{} {
	return m.router.Running()
}

// Run runs the fan-out router until ctx is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	if wg != nil {
		defer wg.Done()
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if err := m.router.Run(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Notifier router stopped with error", attr.Error(err))
		return
	}
	m.logger.Info("Notifier module goroutine stopped")
}

// Close stops the fan-out router.
func (m *Module) Close() error {
	m.logger.Info("Stopping notifier module")
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	if err := m.router.Close(); err != nil {
		return fmt.Errorf("error closing notifier router: %w", err)
	}
	m.logger.Info("Notifier module stopped")
	return nil
}
