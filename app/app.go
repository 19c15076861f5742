package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Black-And-White-Club/reverse-chorus/app/modules/identity"
	"github.com/Black-And-White-Club/reverse-chorus/app/modules/notifier"
	"github.com/Black-And-White-Club/reverse-chorus/app/modules/room"
	"github.com/Black-And-White-Club/reverse-chorus/app/modules/round"
	"github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring"
	"github.com/Black-And-White-Club/reverse-chorus/config"
	"github.com/Black-And-White-Club/reverse-chorus/internal/db/bundb"
	"github.com/Black-And-White-Club/reverse-chorus/internal/eventbus"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/metrics"
	nc "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
)

// ServiceName labels logs, traces and metrics.
const ServiceName = "reverse-chorus"

// App wires the modules to their shared infrastructure.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *bun.DB
	NATS     *nc.Conn
	Bus      *eventbus.Bus
	Registry *prometheus.Registry

	Identity *identity.Module
	Room     *room.Module
	Scoring  *scoring.Module
	Round    *round.Module
	Notifier *notifier.Module

	server *http.Server
	wg     sync.WaitGroup
}

// New connects to Postgres and NATS and builds every module.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := metrics.NewPrometheus(app.Registry, "reverse_chorus")
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	tracer := otel.Tracer(ServiceName)

	app.DB, err = bundb.Open(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		return nil, err
	}

	// The key-value and object stores always need a server, even when the
	// event bus runs in process.
	natsURL := cfg.NATS.URL
	if natsURL == "" {
		natsURL = nc.DefaultURL
	}
	conn, js, err := eventbus.Connect(ctx, natsURL, logger)
	if err != nil {
		app.closeStores()
		return nil, err
	}
	app.NATS = conn

	if cfg.NATS.URL == "" {
		logger.WarnContext(ctx, "No NATS URL configured, room events stay in process")
		app.Bus = eventbus.NewInProcess(logger)
	} else if app.Bus, err = eventbus.NewNATS(cfg.NATS.URL, logger); err != nil {
		app.closeStores()
		return nil, err
	}

	if app.Identity, err = identity.NewModule(ctx, cfg, js, logger, m, tracer); err != nil {
		app.closeStores()
		return nil, err
	}
	if app.Notifier, err = notifier.NewModule(ctx, cfg, app.Bus, logger, app.Registry, tracer); err != nil {
		app.closeStores()
		return nil, err
	}
	app.Room, err = room.NewModule(ctx, cfg, app.DB, js, app.Identity.Service, app.Notifier.Notifier, logger, m, tracer)
	if err != nil {
		app.closeStores()
		return nil, err
	}
	app.Scoring = scoring.NewModule(ctx, cfg, app.DB, logger, m, tracer)
	app.Round, err = round.NewModule(ctx, cfg, app.DB, js, app.Room.Service, app.Scoring.Service,
		app.Identity.Service, app.Notifier.Notifier, logger, m, tracer)
	if err != nil {
		app.closeStores()
		return nil, err
	}
	app.Identity.Service.SetRoundLookup(app.Round.Service)

	app.server = &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: app.Router(),
	}

	logger.InfoContext(ctx, "Application initialized", slog.String("environment", cfg.Observability.Environment))
	return app, nil
}

func (app *App) closeStores() {
	if app.Bus != nil {
		app.Bus.Close()
	}
	if app.NATS != nil {
		app.NATS.Close()
	}
	if app.DB != nil {
		app.DB.Close()
	}
}
