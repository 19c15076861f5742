package roomqueue

import (
	"context"
	"log/slog"

	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/riverqueue/river"
)

// Expirer ends abandoned rooms.
type Expirer interface {
	ExpireRoom(ctx context.Context, code string) (bool, error)
}

// RoomExpiryWorker runs RoomExpiryJob.
type RoomExpiryWorker struct {
	river.WorkerDefaults[RoomExpiryJob]
	expirer Expirer
	logger  *slog.Logger
}

func NewRoomExpiryWorker(expirer Expirer, logger *slog.Logger) *RoomExpiryWorker {
	return &RoomExpiryWorker{expirer: expirer, logger: logger}
}

func (w *RoomExpiryWorker) Work(ctx context.Context, job *river.Job[RoomExpiryJob]) error {
	ended, err := w.expirer.ExpireRoom(ctx, job.Args.RoomCode)
	if err != nil {
		w.logger.ErrorContext(ctx, "Room expiry failed",
			attr.RoomCode(job.Args.RoomCode),
			attr.Int64("job_id", job.ID),
			attr.Error(err),
		)
		return err
	}
	w.logger.InfoContext(ctx, "Room expiry processed",
		attr.RoomCode(job.Args.RoomCode),
		attr.Bool("ended", ended),
	)
	return nil
}
