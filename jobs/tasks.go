package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionSweep forcibly ends privileged sessions past their deadline.
	TaskSessionSweep = "impersonation:sweep"
	// TaskIdempotencyCleanup prunes settled idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// SessionSweepPayload carries scheduling metadata for a sweep run.
type SessionSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSessionSweepTask constructs an Asynq task for the session sweep.
func NewSessionSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SessionSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionSweep, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the retention window for a cleanup run.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for key cleanup.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
