package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/eventhub/internal/jobs"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// SessionsPurgeJob deletes expired session bookkeeping rows.
type SessionsPurgeJob struct {
	DB      shared.Execer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSessionsPurgeJob wires dependencies for the purge handler.
func NewSessionsPurgeJob(db shared.Execer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionsPurgeJob {
	return &SessionsPurgeJob{
		DB:      db,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskSessionsPurge tasks.
func (j *SessionsPurgeJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.DB == nil {
		return errors.New("sessions purge: handler not configured")
	}
	tracker := j.Metrics.Track(TaskSessionsPurge)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	tag, err := j.DB.Exec(ctx, `DELETE FROM user_sessions WHERE expires_at < $1`, j.clock())
	if err != nil {
		if j.Logger != nil {
			j.Logger.Error("purge user_sessions", slog.Any("error", err))
		}
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("purged user_sessions", slog.String("job", TaskSessionsPurge), slog.Int64("rows", tag.RowsAffected()))
	}
	return nil
}
