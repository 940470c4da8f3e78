package shared_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/atlas-hq/atlas-console/internal/shared"
)

func TestRedisLockerSingleHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := shared.NewRedisLocker(client)
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, "impersonation:actor:op-1:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = locker.Acquire(ctx, "impersonation:actor:op-1:lock", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "the lock has a single holder")

	require.NoError(t, locker.Release(ctx, "impersonation:actor:op-1:lock"))
	ok, err = locker.Acquire(ctx, "impersonation:actor:op-1:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockerExpiresWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := shared.NewRedisLocker(client)
	ctx := context.Background()

	ok, err := locker.Acquire(ctx, "lock", 30*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A crashed holder never releases; the TTL frees the slot.
	mr.FastForward(31 * time.Minute)

	ok, err = locker.Acquire(ctx, "lock", 30*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNilLockerIsPermissive(t *testing.T) {
	var locker *shared.RedisLocker
	ok, err := locker.Acquire(context.Background(), "lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, locker.Release(context.Background(), "lock"))
}
