package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/birocrat/pkg/adapters/redis"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newTestClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "session1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	assert.True(t, mr.Exists("test:lock:session1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:session1"))
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newTestClient(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker1.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	// The second client blocks until its context expires.
	ctxTimeout, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = locker2.Lock(ctxTimeout, "shared", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	defer unlock2(ctx)
	assert.True(t, mr.Exists("test:lock:shared"))
}

func TestRedisLocker_StaleUnlockIsNoop(t *testing.T) {
	mr, client := newTestClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "flaky", 50*time.Millisecond)
	require.NoError(t, err)

	// Let the lock expire and be re-acquired by someone else.
	mr.FastForward(time.Second)
	unlock2, err := locker.Lock(ctx, "flaky", 5*time.Second)
	require.NoError(t, err)

	// The stale holder's unlock must not release the new holder's lock.
	require.NoError(t, unlock1(ctx))
	assert.True(t, mr.Exists("test:lock:flaky"))

	require.NoError(t, unlock2(ctx))
	assert.False(t, mr.Exists("test:lock:flaky"))
}
