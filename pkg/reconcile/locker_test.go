package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerSerializesSameKey(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "wf-1")
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		acquired time.Time
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		second, err := locker.Acquire(ctx, "wf-1")
		assert.NoError(t, err)

		acquired = time.Now()

		second()
	}()

	time.Sleep(50 * time.Millisecond)
	released := time.Now()

	release()
	wg.Wait()

	assert.False(t, acquired.Before(released))
}

func TestMemoryLockerIndependentKeys(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	release1, err := locker.Acquire(ctx, "wf-1")
	require.NoError(t, err)

	defer release1()

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	release2, err := locker.Acquire(ctx2, "wf-2")
	require.NoError(t, err)

	release2()
}

func TestMemoryLockerRespectsContext(t *testing.T) {
	locker := NewMemoryLocker()

	release, err := locker.Acquire(context.Background(), "wf-1")
	require.NoError(t, err)

	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx, "wf-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLocker(client)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "wf-1")
	require.NoError(t, err)

	assert.True(t, server.Exists(redisLockPrefix+"wf-1"))

	release()

	assert.False(t, server.Exists(redisLockPrefix+"wf-1"))
}

func TestRedisLockerBlocksWhileHeld(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLocker(client)

	release, err := locker.Acquire(context.Background(), "wf-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx, "wf-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	second, err := locker.Acquire(context.Background(), "wf-1")
	require.NoError(t, err)

	second()
}

func TestRedisLockerReleaseIsTokenScoped(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLocker(client)

	release, err := locker.Acquire(context.Background(), "wf-1")
	require.NoError(t, err)

	// Simulate TTL expiry followed by another instance taking the lock.
	server.FastForward(redisLockTTL + time.Second)
	require.NoError(t, server.Set(redisLockPrefix+"wf-1", "other-token"))

	release()

	value, err := server.Get(redisLockPrefix + "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "other-token", value)
}
