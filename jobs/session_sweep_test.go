package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/atlas-hq/atlas-console/internal/platform/coreapi"
)

func newRawTask(t *testing.T, taskType string, payload []byte) *asynq.Task {
	t.Helper()
	return asynq.NewTask(taskType, payload)
}

type stubSweepAPI struct {
	grants  []coreapi.ImpersonationGrant
	listErr error
	endErr  error
	ended   []string
}

func (s *stubSweepAPI) ListActiveImpersonations(ctx context.Context) ([]coreapi.ImpersonationGrant, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.grants, nil
}

func (s *stubSweepAPI) EndImpersonation(ctx context.Context, sessionID, endedReason string) error {
	if s.endErr != nil {
		return s.endErr
	}
	s.ended = append(s.ended, sessionID+":"+endedReason)
	return nil
}

func TestSessionSweepEndsOnlyExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	api := &stubSweepAPI{grants: []coreapi.ImpersonationGrant{
		{SessionID: "live", ExpiresAt: now.Add(5 * time.Minute)},
		{SessionID: "dead", ExpiresAt: now.Add(-time.Second)},
		{SessionID: "boundary", ExpiresAt: now},
	}}
	sweeper := NewSessionSweeper(slog.New(slog.NewTextHandler(io.Discard, nil)), api)
	sweeper.now = func() time.Time { return now }

	task, err := NewSessionSweepTask(now)
	require.NoError(t, err)
	require.NoError(t, sweeper.Handle(context.Background(), task))

	require.Equal(t, []string{"dead:expired", "boundary:expired"}, api.ended)
}

func TestSessionSweepRetriesOnListFailure(t *testing.T) {
	api := &stubSweepAPI{listErr: errors.New("core api down")}
	sweeper := NewSessionSweeper(slog.New(slog.NewTextHandler(io.Discard, nil)), api)

	task, err := NewSessionSweepTask(time.Now())
	require.NoError(t, err)
	require.Error(t, sweeper.Handle(context.Background(), task))
}

func TestSessionSweepSkipsMalformedPayload(t *testing.T) {
	api := &stubSweepAPI{}
	sweeper := NewSessionSweeper(slog.New(slog.NewTextHandler(io.Discard, nil)), api)

	err := sweeper.Handle(context.Background(), newRawTask(t, TaskSessionSweep, []byte("{broken")))
	require.Error(t, err)
	require.Empty(t, api.ended)
}
