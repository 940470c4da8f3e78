package mutation_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atlas-hq/atlas-console/internal/clock"
	"github.com/atlas-hq/atlas-console/internal/directory"
	"github.com/atlas-hq/atlas-console/internal/directory/cache"
	"github.com/atlas-hq/atlas-console/internal/directory/mutation"
	"github.com/atlas-hq/atlas-console/internal/shared"
)

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(actorID, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, text)
}

func (n *recordingNotifier) Error(actorID, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, text)
}

type memoryIdemStore struct {
	mu      sync.Mutex
	keys    map[string]bool
	deleted []string
}

func newMemoryIdemStore() *memoryIdemStore {
	return &memoryIdemStore{keys: make(map[string]bool)}
}

func (s *memoryIdemStore) CheckAndInsert(ctx context.Context, key, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = true
	return nil
}

func (s *memoryIdemStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededStore() *cache.Store {
	store := cache.NewStore(clock.NewFake(time.Now()), 5*time.Second)
	store.Replace("users", directory.Collection{
		Items: []directory.Row{
			directory.UserRow(directory.User{ID: "u1", Status: directory.UserStatusActive}),
		},
		Total: 1,
	})
	return store
}

func suspendOp(remote mutation.RemoteCall) mutation.Op {
	return mutation.Op{
		ActorID:        "op-1",
		Name:           "user.suspend",
		EntityID:       "u1",
		CollectionKey:  "users",
		Transform:      directory.WithUserStatus("u1", directory.UserStatusSuspended),
		Remote:         remote,
		SuccessMessage: "User suspended",
		FailureMessage: "Could not suspend user",
	}
}

func TestExecuteRequiresCompleteOp(t *testing.T) {
	c := mutation.NewCoordinator(testLogger(), seededStore(), &recordingNotifier{}, nil, nil)
	err := c.Execute(context.Background(), mutation.Op{CollectionKey: "users"})
	require.Error(t, err)
}

func TestExecuteSuccessCommits(t *testing.T) {
	store := seededStore()
	notifier := &recordingNotifier{}
	idem := newMemoryIdemStore()
	c := mutation.NewCoordinator(testLogger(), store, notifier, idem, nil)

	var gotKey string
	err := c.Execute(context.Background(), suspendOp(func(ctx context.Context, key string) error {
		gotKey = key
		return nil
	}))
	require.NoError(t, err)

	// Feedback fires before the remote call resolves.
	notifier.mu.Lock()
	require.Equal(t, []string{"User suspended"}, notifier.successes)
	notifier.mu.Unlock()

	c.Wait()

	require.Equal(t, "user.suspend:u1", gotKey, "the remote call carries the mutation's key")

	col, _ := store.Read("users")
	require.Equal(t, directory.UserStatusSuspended, col.Items[0].User.Status)
	notifier.mu.Lock()
	require.Empty(t, notifier.errors)
	notifier.mu.Unlock()
	idem.mu.Lock()
	require.Empty(t, idem.keys, "a confirmed edit releases its key so it can be repeated")
	require.Equal(t, []string{"user.suspend:u1"}, idem.deleted)
	idem.mu.Unlock()
}

func TestExecuteRefusesDuplicateWhileUnresolved(t *testing.T) {
	store := seededStore()
	notifier := &recordingNotifier{}
	idem := newMemoryIdemStore()
	c := mutation.NewCoordinator(testLogger(), store, notifier, idem, nil)

	release := make(chan struct{})
	var mu sync.Mutex
	var calls int
	remote := func(ctx context.Context, key string) error {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return nil
	}

	require.NoError(t, c.Execute(context.Background(), suspendOp(remote)))

	err := c.Execute(context.Background(), suspendOp(remote))
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	close(release)
	c.Wait()

	mu.Lock()
	require.Equal(t, 1, calls, "the duplicate submit never reaches the remote")
	mu.Unlock()
	notifier.mu.Lock()
	require.Equal(t, []string{"User suspended"}, notifier.successes, "one toast for one effect")
	notifier.mu.Unlock()
}

func TestExecuteDuplicateLeavesNoOptimisticState(t *testing.T) {
	store := seededStore()
	notifier := &recordingNotifier{}
	idem := newMemoryIdemStore()
	c := mutation.NewCoordinator(testLogger(), store, notifier, idem, nil)

	release := make(chan struct{})
	require.NoError(t, c.Execute(context.Background(), mutation.Op{
		ActorID:        "op-1",
		Name:           "user.delete",
		EntityID:       "u1",
		CollectionKey:  "users",
		Transform:      directory.WithUserDeleted("u1", time.Now()),
		Remote:         func(ctx context.Context, key string) error { <-release; return nil },
		SuccessMessage: "User deleted",
	}))

	before, _ := store.Read("users")
	err := c.Execute(context.Background(), mutation.Op{
		ActorID:        "op-1",
		Name:           "user.delete",
		EntityID:       "u1",
		CollectionKey:  "users",
		Transform:      directory.WithUserDeleted("u1", time.Now()),
		Remote:         func(ctx context.Context, key string) error { return nil },
		SuccessMessage: "User deleted",
	})
	require.Error(t, err)
	after, _ := store.Read("users")
	require.Equal(t, before, after, "a refused duplicate applies nothing")

	close(release)
	c.Wait()
}

func TestExecuteFailureRollsBackAndReports(t *testing.T) {
	store := seededStore()
	notifier := &recordingNotifier{}
	idem := newMemoryIdemStore()
	c := mutation.NewCoordinator(testLogger(), store, notifier, idem, nil)

	remoteErr := errors.New("suspension would orphan active billing run")
	err := c.Execute(context.Background(), suspendOp(func(ctx context.Context, key string) error {
		return remoteErr
	}))
	require.NoError(t, err)
	c.Wait()

	col, _ := store.Read("users")
	require.Equal(t, directory.UserStatusActive, col.Items[0].User.Status, "failed mutation is rolled back")

	notifier.mu.Lock()
	require.Equal(t, []string{"Could not suspend user: suspension would orphan active billing run"}, notifier.errors)
	notifier.mu.Unlock()

	idem.mu.Lock()
	require.Empty(t, idem.keys, "key is released so a manual retry is not a duplicate")
	require.Len(t, idem.deleted, 1)
	idem.mu.Unlock()
}

func TestExecuteOutlivesRequestContext(t *testing.T) {
	store := seededStore()
	notifier := &recordingNotifier{}
	c := mutation.NewCoordinator(testLogger(), store, notifier, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var ctxErr error
	err := c.Execute(ctx, suspendOp(func(callCtx context.Context, key string) error {
		<-started
		// The HTTP request context is gone; the call context must not be.
		ctxErr = callCtx.Err()
		return nil
	}))
	require.NoError(t, err)
	cancel()
	close(started)
	c.Wait()
	require.NoError(t, ctxErr)

	col, _ := store.Read("users")
	require.Equal(t, directory.UserStatusSuspended, col.Items[0].User.Status)
}

func TestNoAutomaticRetry(t *testing.T) {
	store := seededStore()
	notifier := &recordingNotifier{}
	c := mutation.NewCoordinator(testLogger(), store, notifier, nil, nil)

	var calls int32
	var mu sync.Mutex
	err := c.Execute(context.Background(), suspendOp(func(ctx context.Context, key string) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("transient")
	}))
	require.NoError(t, err)
	c.Wait()

	mu.Lock()
	require.EqualValues(t, 1, calls)
	mu.Unlock()
}
