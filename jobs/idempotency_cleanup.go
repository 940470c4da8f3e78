package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atlas-hq/atlas-console/internal/shared"
)

const defaultKeyRetention = 24 * time.Hour

// IdempotencyCleaner prunes settled idempotency keys from Postgres.
type IdempotencyCleaner struct {
	logger *slog.Logger
	store  *shared.IdempotencyStore
}

// NewIdempotencyCleaner constructs a cleaner over the given store.
func NewIdempotencyCleaner(logger *slog.Logger, store *shared.IdempotencyStore) *IdempotencyCleaner {
	return &IdempotencyCleaner{logger: logger, store: store}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (c *IdempotencyCleaner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.OlderThan
	if retention <= 0 {
		retention = defaultKeyRetention
	}
	if err := c.store.Cleanup(ctx, retention); err != nil {
		c.logger.Warn("idempotency cleanup", slog.Any("error", err))
		return err
	}
	return nil
}
