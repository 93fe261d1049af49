package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisLockPrefix     = "flowhook:reconcile:"
	redisLockTTL        = 60 * time.Second
	redisLockRetryDelay = 100 * time.Millisecond
)

// releaseScript deletes the lock only when it is still held by the token
// that acquired it, so an expired lock taken over by another instance is
// never released by the old holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker implements Locker with a redis SET NX lock, for deployments
// running more than one API instance.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := redisLockPrefix + key
	token := uuid.NewString()

	for {
		acquired, err := l.client.SetNX(ctx, lockKey, token, redisLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire reconcile lock: %w", err)
		}

		if acquired {
			break
		}

		select {
		case <-time.After(redisLockRetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = l.client.Eval(releaseCtx, releaseScript, []string{lockKey}, token).Err()
	}

	return release, nil
}
