package roomqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/Black-And-White-Club/reverse-chorus/internal/testutils"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
)

type fakeExpirer struct {
	codes []string
	err   error
}

func (f *fakeExpirer) ExpireRoom(ctx context.Context, code string) (bool, error) {
	f.codes = append(f.codes, code)
	return f.err == nil, f.err
}

func TestRoomExpiryWorker(t *testing.T) {
	job := &river.Job[RoomExpiryJob]{
		JobRow: &rivertype.JobRow{ID: 7},
		Args:   RoomExpiryJob{RoomCode: "ABC123"},
	}

	t.Run("expires the room", func(t *testing.T) {
		expirer := &fakeExpirer{}
		w := NewRoomExpiryWorker(expirer, testutils.DiscardLogger())
		assert.NoError(t, w.Work(context.Background(), job))
		assert.Equal(t, []string{"ABC123"}, expirer.codes)
	})

	t.Run("failure is retried by river", func(t *testing.T) {
		expirer := &fakeExpirer{err: errors.New("db down")}
		w := NewRoomExpiryWorker(expirer, testutils.DiscardLogger())
		assert.Error(t, w.Work(context.Background(), job))
	})

	assert.Equal(t, "room_expiry", RoomExpiryJob{}.Kind())
}
