// Package notifierservice publishes room events onto the event bus.
package notifierservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/reverse-chorus/internal/events"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher implements the Notifier port of the room and round modules.
// Events for every room share one topic, so a room's events keep the order
// they were published in.
type Publisher struct {
	publisher message.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewPublisher creates a Publisher writing to pub.
func NewPublisher(pub message.Publisher, logger *slog.Logger) *Publisher {
	return &Publisher{publisher: pub, logger: logger, now: time.Now}
}

// Notify wraps payload in an envelope and publishes it.
func (p *Publisher) Notify(ctx context.Context, roomCode string, kind events.Kind, payload any) error {
	data, err := json.Marshal(events.Envelope{
		Kind:      kind,
		RoomCode:  roomCode,
		Payload:   payload,
		EmittedAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", kind, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	msg.Metadata.Set(events.MetadataRoomCode, roomCode)
	msg.Metadata.Set(events.MetadataKind, string(kind))

	if err := p.publisher.Publish(events.Topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", kind, err)
	}

	p.logger.DebugContext(ctx, "Room event published",
		attr.RoomCode(roomCode),
		attr.String("event_kind", string(kind)),
		attr.String("message_id", msg.UUID),
	)
	return nil
}
