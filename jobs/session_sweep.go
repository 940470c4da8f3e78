package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atlas-hq/atlas-console/internal/platform/coreapi"
)

// SessionSweeper force-ends privileged sessions whose deadline has passed.
// The in-process countdown normally handles expiry; the sweeper covers
// sessions orphaned by a console restart.
type SessionSweeper struct {
	logger *slog.Logger
	api    sweepAPI
	now    func() time.Time
}

type sweepAPI interface {
	ListActiveImpersonations(ctx context.Context) ([]coreapi.ImpersonationGrant, error)
	EndImpersonation(ctx context.Context, sessionID, endedReason string) error
}

// NewSessionSweeper constructs a sweeper backed by the core API.
func NewSessionSweeper(logger *slog.Logger, api sweepAPI) *SessionSweeper {
	return &SessionSweeper{logger: logger, api: api, now: time.Now}
}

// Handle processes TaskSessionSweep tasks.
func (s *SessionSweeper) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SessionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	grants, err := s.api.ListActiveImpersonations(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	swept := 0
	for _, grant := range grants {
		if now.Before(grant.ExpiresAt) {
			continue
		}
		if err := s.api.EndImpersonation(ctx, grant.SessionID, "expired"); err != nil {
			s.logger.Warn("sweep end session",
				slog.String("session_id", grant.SessionID),
				slog.Any("error", err))
			continue
		}
		swept++
	}
	if swept > 0 {
		s.logger.Info("session sweep complete", slog.Int("swept", swept))
	}
	return nil
}
