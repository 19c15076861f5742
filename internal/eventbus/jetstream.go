// Package eventbus builds the watermill publisher/subscriber pair room events
// travel on, plus the shared NATS connection the JetStream stores use.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Bus is a publisher/subscriber pair.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	// shared is set when Publisher and Subscriber are the same value.
	shared bool
}

// Close closes both sides.
func (b *Bus) Close() error {
	var firstErr error
	if err := b.Subscriber.Close(); err != nil {
		firstErr = fmt.Errorf("failed to close subscriber: %w", err)
	}
	if !b.shared {
		if err := b.Publisher.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close publisher: %w", err)
		}
	}
	return firstErr
}

// natsOptions are shared by every NATS connection the process opens.
func natsOptions(logger *slog.Logger, name string) []nc.Option {
	return []nc.Option{
		nc.Name(name),
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30 * time.Second),
		nc.ReconnectWait(1 * time.Second),
		nc.ErrorHandler(func(_ *nc.Conn, s *nc.Subscription, err error) {
			if s != nil {
				logger.Error("Error in subscription", attr.String("subject", s.Subject), attr.Error(err))
			} else {
				logger.Error("Error in connection", attr.Error(err))
			}
		}),
	}
}

// Connect opens a NATS connection and its JetStream context.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*nc.Conn, jetstream.JetStream, error) {
	conn, err := nc.Connect(url, natsOptions(logger, "reverse-chorus")...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	logger.InfoContext(ctx, "Connected to NATS", attr.String("url", conn.ConnectedUrlRedacted()))
	return conn, js, nil
}

// NewNATS builds a bus on core NATS subjects. Room events are ephemeral, so
// JetStream persistence is disabled and every process receives every event.
func NewNATS(url string, logger *slog.Logger) (*Bus, error) {
	wmLogger := watermill.NewSlogLogger(logger)
	options := natsOptions(logger, "reverse-chorus-events")

	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:         url,
			NatsOptions: options,
			Marshaler:   &wmnats.NATSMarshaler{},
			JetStream:   wmnats.JetStreamConfig{Disabled: true},
		},
		wmLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Watermill NATS publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(
		wmnats.SubscriberConfig{
			URL:            url,
			NatsOptions:    options,
			Unmarshaler:    &wmnats.NATSMarshaler{},
			CloseTimeout:   10 * time.Second,
			AckWaitTimeout: 30 * time.Second,
			JetStream:      wmnats.JetStreamConfig{Disabled: true},
		},
		wmLogger,
	)
	if err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("failed to create Watermill NATS subscriber: %w", err)
	}

	return &Bus{Publisher: publisher, Subscriber: subscriber}, nil
}

// NewInProcess builds a bus on a go channel, for single-process runs and tests.
// Publish waits for the subscriber's ack so events arrive in publish order.
func NewInProcess(logger *slog.Logger) *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, watermill.NewSlogLogger(logger))
	return &Bus{Publisher: ch, Subscriber: ch, shared: true}
}
