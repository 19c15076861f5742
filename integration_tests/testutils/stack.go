package testutils

import (
	"context"
	"slices"
	"testing"
	"time"

	identityservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/application"
	identityjwt "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/infrastructure/jwt"
	identitystore "github.com/Black-And-White-Club/reverse-chorus/app/modules/identity/infrastructure/tokenstore"
	roomservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/application"
	roomcache "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/cache"
	roomqueue "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/queue"
	roomdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/room/infrastructure/repositories"
	roundservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/application"
	roundcache "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/infrastructure/cache"
	rounddb "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/infrastructure/repositories"
	scoringservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/application"
	scoringdb "github.com/Black-And-White-Club/reverse-chorus/app/modules/scoring/infrastructure/repositories"
	"github.com/Black-And-White-Club/reverse-chorus/internal/kvcache"
	"github.com/Black-And-White-Club/reverse-chorus/internal/objectstore"
	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/metrics"
	sharedtestutils "github.com/Black-And-White-Club/reverse-chorus/internal/testutils"
	"go.opentelemetry.io/otel/trace/noop"
)

// ByteReverser stands in for ffmpeg, which the test host may not have.
type ByteReverser struct{}

func (ByteReverser) Reverse(_ context.Context, input []byte) ([]byte, error) {
	out := slices.Clone(input)
	slices.Reverse(out)
	return out, nil
}

// Stack is every game service wired to real Postgres and JetStream, with a
// recording notifier in place of the event bus.
type Stack struct {
	Identity *identityservice.IdentityService
	Rooms    *roomservice.RoomService
	Queue    *roomqueue.Service
	Scoring  *scoringservice.ScoringService
	Rounds   *roundservice.RoundService
	Notifier *sharedtestutils.RecordingNotifier
	Audio    *objectstore.JetStreamStore
	Songs    *objectstore.JetStreamStore
}

// NewStack builds the services and starts the room expiry queue.
func NewStack(t *testing.T, env *TestEnvironment) *Stack {
	t.Helper()
	ctx := env.Ctx
	logger := sharedtestutils.DiscardLogger()
	m := metrics.NewNoop()
	tracer := noop.NewTracerProvider().Tracer("integration")

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("failed to build stack: %v", err)
		}
	}

	tokens, err := kvcache.EnsureBucket(ctx, env.JetStream, "player_tokens", time.Hour)
	must(err)
	roomKV, err := kvcache.EnsureBucket(ctx, env.JetStream, roomcache.Bucket, time.Hour)
	must(err)
	stateKV, err := kvcache.EnsureBucket(ctx, env.JetStream, roundcache.Bucket, time.Hour)
	must(err)
	audio, err := objectstore.Open(ctx, env.JetStream, "audio-recordings")
	must(err)
	songs, err := objectstore.Open(ctx, env.JetStream, "song-audio")
	must(err)

	s := &Stack{Notifier: &sharedtestutils.RecordingNotifier{}, Audio: audio, Songs: songs}

	s.Identity = identityservice.NewIdentityService(
		identitystore.NewKVStore(tokens), nil, identityjwt.NewProvider("integration-secret"),
		time.Hour, logger, m, tracer,
	)
	s.Rooms = roomservice.NewRoomService(
		roomdb.NewRepository(env.DB), roomcache.NewKV(roomKV), s.Identity, s.Notifier, env.DB,
		roomservice.Config{TokenTTL: time.Hour, PublicBaseURL: "http://localhost:5173"},
		logger, m, tracer,
	)

	s.Queue, err = roomqueue.NewService(ctx, env.Config.Postgres.DSN, s.Rooms, logger, m)
	must(err)
	must(s.Queue.Start(ctx))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Queue.Stop(stopCtx)
	})
	s.Rooms.SetExpiryScheduler(s.Queue)

	s.Scoring = scoringservice.NewScoringService(scoringdb.NewRepository(env.DB), nil, logger, m, tracer)
	s.Rounds = roundservice.NewRoundService(
		rounddb.NewRepository(env.DB), roomdb.NewRepository(env.DB), s.Rooms, roundcache.NewKV(stateKV),
		s.Scoring, s.Identity, s.Notifier, audio, songs, ByteReverser{}, env.DB,
		roundservice.Config{MaxUploadBytes: 1 << 20, AudioPath: "/api/audio/"},
		logger, m, tracer,
	)
	s.Identity.SetRoundLookup(s.Rounds)
	return s
}
