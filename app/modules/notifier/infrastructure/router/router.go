// Package notifierrouter consumes room events from the bus and hands them to
// the websocket hub.
package notifierrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/reverse-chorus/internal/events"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// HandlerName identifies the fan-out handler in router metrics.
const HandlerName = "notifier.fanout"

// Broadcaster delivers a frame to every client in a room.
type Broadcaster interface {
	Broadcast(roomCode string, frame []byte) int
}

// FanoutRouter runs one watermill handler on events.Topic. A single handler
// keeps each room's events in publish order.
type FanoutRouter struct {
	Router     *message.Router
	subscriber message.Subscriber
	hub        Broadcaster
	logger     *slog.Logger

	metricsBuilder *metrics.PrometheusMetricsBuilder
}

// NewFanoutRouter builds the router. registry may be nil to skip router
// metrics.
func NewFanoutRouter(logger *slog.Logger, subscriber message.Subscriber, hub Broadcaster, registry prometheus.Registerer) (*FanoutRouter, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier router: %w", err)
	}

	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if registry != nil {
		b := metrics.NewPrometheusMetricsBuilder(registry, "reverse_chorus", "notifier")
		metricsBuilder = &b
	}

	r := &FanoutRouter{
		Router:         router,
		subscriber:     subscriber,
		hub:            hub,
		logger:         logger,
		metricsBuilder: metricsBuilder,
	}
	r.configure()
	return r, nil
}

func (r *FanoutRouter) configure() {
	if r.metricsBuilder != nil {
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	}
	r.Router.AddMiddleware(middleware.Recoverer)
	r.Router.AddNoPublisherHandler(HandlerName, events.Topic, r.subscriber, r.handle)
}

func (r *FanoutRouter) handle(msg *message.Message) error {
	roomCode := msg.Metadata.Get(events.MetadataRoomCode)
	if roomCode == "" {
		var envelope events.Envelope
		if err := json.Unmarshal(msg.Payload, &envelope); err != nil || envelope.RoomCode == "" {
			// Redelivery cannot fix a frame without a room.
			r.logger.Warn("Dropping room event without room code",
				attr.String("message_id", msg.UUID),
				attr.Error(err),
			)
			return nil
		}
		roomCode = envelope.RoomCode
	}

	delivered := r.hub.Broadcast(roomCode, msg.Payload)
	r.logger.Debug("Room event fanned out",
		attr.RoomCode(roomCode),
		attr.String("event_kind", msg.Metadata.Get(events.MetadataKind)),
		attr.Int("clients", delivered),
	)
	return nil
}

// Run blocks until ctx is cancelled or the router is closed.
func (r *FanoutRouter) Run(ctx context.Context) error {
	return r.Router.Run(ctx)
}

// Running is closed once the handler is subscribed.
func (r *FanoutRouter) Running() chan struct{} {
	return r.Router.Running()
}

// Close stops the router.
func (r *FanoutRouter) Close() error {
	return r.Router.Close()
}
