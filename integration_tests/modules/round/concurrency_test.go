package roundintegrationtests

import (
	"testing"

	roundservice "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/application"
	rounddb "github.com/Black-And-White-Club/reverse-chorus/app/modules/round/infrastructure/repositories"
	"github.com/Black-And-White-Club/reverse-chorus/integration_tests/testutils"
	"github.com/Black-And-White-Club/reverse-chorus/internal/events"
	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestConcurrentPhaseTransitions fires every join, upload and guess sheet of
// a phase at once. Each phase must advance exactly once.
func TestConcurrentPhaseTransitions(t *testing.T) {
	const playerCount = 5

	env := testutils.Environment(t)
	env.Reset(t)
	stack := testutils.NewStack(t, env)
	gen := testutils.NewTestDataGenerator(77)
	ctx := env.Ctx

	created, err := stack.Rooms.CreateRoom(ctx, gen.PlayerName())
	require.NoError(t, err)
	code := created.Room.Code
	host := created.Player.ID

	names := make([]string, playerCount-1)
	for i := range names {
		names[i] = gen.PlayerName()
	}
	joined := make([]uuid.UUID, len(names))
	var joins errgroup.Group
	for i, name := range names {
		joins.Go(func() error {
			res, err := stack.Rooms.JoinRoom(ctx, code, name)
			if err != nil {
				return err
			}
			joined[i] = res.Player.ID
			return nil
		})
	}
	require.NoError(t, joins.Wait())
	players := append([]uuid.UUID{host}, joined...)

	// The cached view must not be rolled back by a join that committed first
	// but wrote its view last.
	room, err := stack.Rooms.GetRoom(ctx, code)
	require.NoError(t, err)
	assert.Len(t, room.Players, playerCount)

	state, err := stack.Rounds.StartGame(ctx, code, host)
	require.NoError(t, err)
	roundID := state.RoundID

	clips := make([][]byte, playerCount)
	for i := range clips {
		clips[i] = gen.AudioClip(96)
	}
	var originals errgroup.Group
	for i, p := range players {
		originals.Go(func() error {
			_, err := stack.Rounds.UploadOriginal(ctx, roundID, p, roundservice.Audio{ContentType: "audio/webm", Data: clips[i]})
			return err
		})
	}
	require.NoError(t, originals.Wait())

	var reverses errgroup.Group
	for i, p := range players {
		reverses.Go(func() error {
			_, err := stack.Rounds.UploadReverse(ctx, roundID, p, roundservice.Audio{ContentType: "audio/webm", Data: clips[i]})
			return err
		})
	}
	require.NoError(t, reverses.Wait())

	clues, err := stack.Rounds.GetClues(ctx, roundID, host)
	require.NoError(t, err)
	require.Len(t, clues, playerCount)
	var sheets errgroup.Group
	for _, p := range players {
		var sheet []roundservice.GuessInput
		for _, clue := range clues {
			if clue.SingerPlayerID != p {
				sheet = append(sheet, roundservice.GuessInput{ClueIndex: clue.ClueIndex, Title: gen.WrongTitle()})
			}
		}
		sheets.Go(func() error {
			_, err := stack.Rounds.SubmitGuesses(ctx, roundID, p, sheet)
			return err
		})
	}
	require.NoError(t, sheets.Wait())

	state, err = stack.Rounds.GetRoundState(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, gametypes.PhaseScoresFetching, state.Phase)

	assert.Equal(t, 1, stack.Notifier.Count(events.ReversedRecordingStarted))
	assert.Equal(t, 1, stack.Notifier.Count(events.GuessingStarted))
	assert.Equal(t, 1, stack.Notifier.Count(events.GuessingEnded))
	assert.Equal(t, playerCount, stack.Notifier.Count(events.OriginalUploaded))
	assert.Equal(t, playerCount, stack.Notifier.Count(events.ReverseUploaded))

	var assignment events.ReverseAssignmentPayload
	for _, n := range stack.Notifier.Sent() {
		if n.Kind == events.ReversedRecordingStarted {
			assignment = n.Payload.(events.ReverseAssignmentPayload)
		}
	}
	require.Len(t, assignment.ReverseMap, playerCount)

	var tracks []rounddb.Track
	require.NoError(t, env.DB.NewSelect().Model(&tracks).Where("round_id = ?", roundID).Scan(ctx))
	require.Len(t, tracks, playerCount)
	singers := make(map[uuid.UUID]bool, playerCount)
	for _, tr := range tracks {
		require.NotNil(t, tr.ReverseSingerPlayerID)
		singer := *tr.ReverseSingerPlayerID
		assert.NotEqual(t, tr.PlayerID, singer, "nobody reverse-sings their own original")
		assert.False(t, singers[singer], "each player reverse-sings one track")
		singers[singer] = true
		assert.Equal(t, assignment.ReverseMap[tr.PlayerID.String()], singer)
		assert.Equal(t, gametypes.TrackFinalAudioReady, tr.Status)
	}

	guesses, err := testutils.CountRows(ctx, env.DB, "round_guesses", "round_id = ?", roundID)
	require.NoError(t, err)
	assert.Equal(t, playerCount*(playerCount-1), guesses)
}
