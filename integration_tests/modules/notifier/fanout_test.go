package notifierintegrationtests

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"testing"
	"time"

	notifierservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/notifier/application"
	notifierrouter "github.com/Black-And-White-Club/reverse-chorus/app/modules/notifier/infrastructure/router"
	"github.com/Black-And-White-Club/reverse-chorus/integration_tests/testutils"
	"github.com/Black-And-White-Club/reverse-chorus/internal/eventbus"
	"github.com/Black-And-White-Club/reverse-chorus/internal/events"
	internaltestutils "github.com/Black-And-White-Club/reverse-chorus/internal/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	room     string
	envelope events.Envelope
}

// roomLog stands in for the websocket hub of one server process.
type roomLog struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (l *roomLog) Broadcast(roomCode string, data []byte) int {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliveries = append(l.deliveries, delivery{room: roomCode, envelope: env})
	return 1
}

func (l *roomLog) kinds(room string) []events.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Kind
	for _, d := range l.deliveries {
		if d.room == room {
			out = append(out, d.envelope.Kind)
		}
	}
	return out
}

func startProcess(t *testing.T, url string) *roomLog {
	t.Helper()
	logger := internaltestutils.DiscardLogger()

	bus, err := eventbus.NewNATS(url, logger)
	require.NoError(t, err)

	log := &roomLog{}
	r, err := notifierrouter.NewFanoutRouter(logger, bus.Subscriber, log, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = bus.Close()
	})

	select {
	case <-r.Running():
	case <-time.After(10 * time.Second):
		t.Fatal("fanout router did not start")
	}
	return log
}

func TestFanoutAcrossProcesses(t *testing.T) {
	env := testutils.Environment(t)
	url := env.Config.NATS.URL
	logger := internaltestutils.DiscardLogger()

	first := startProcess(t, url)
	second := startProcess(t, url)

	bus, err := eventbus.NewNATS(url, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	publisher := notifierservice.NewPublisher(bus.Publisher, logger)
	ctx := context.Background()

	// Core NATS subscriptions settle asynchronously; publish until both
	// processes see traffic.
	require.Eventually(t, func() bool {
		require.NoError(t, publisher.Notify(ctx, "WARMUP", events.RoomUpdated, nil))
		return len(first.kinds("WARMUP")) > 0 && len(second.kinds("WARMUP")) > 0
	}, 10*time.Second, 100*time.Millisecond)

	roundID := uuid.New()
	sequence := []events.Kind{
		events.GameStarted,
		events.OriginalUploaded,
		events.ReversedRecordingStarted,
		events.GuessingStarted,
		events.ScoresReady,
	}
	for _, kind := range sequence {
		require.NoError(t, publisher.Notify(ctx, "ROOM42", kind, events.PhasePayload{RoundID: roundID}))
		require.NoError(t, publisher.Notify(ctx, "OTHER1", events.GuessProgress, nil))
	}

	for name, log := range map[string]*roomLog{"first": first, "second": second} {
		require.Eventually(t, func() bool {
			return len(log.kinds("ROOM42")) == len(sequence) && len(log.kinds("OTHER1")) == len(sequence)
		}, 10*time.Second, 50*time.Millisecond, name)
		assert.Equal(t, sequence, log.kinds("ROOM42"), name)
		assert.False(t, slices.Contains(log.kinds("OTHER1"), events.GameStarted), name)
	}
}
