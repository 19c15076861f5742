package eventbus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessBus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := NewInProcess(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := bus.Subscriber.Subscribe(ctx, "room.events")
	require.NoError(t, err)

	published := make(chan error, 1)
	go func() {
		published <- bus.Publisher.Publish("room.events", message.NewMessage("m-1", []byte(`{"type":"room_updated"}`)))
	}()

	select {
	case msg := <-messages:
		assert.Equal(t, "m-1", msg.UUID)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
	require.NoError(t, <-published)

	assert.NoError(t, bus.Close())
}
