package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a crashed process can hold a pair.
const DefaultLockTTL = 5 * time.Minute

// Locker extends the in-process exclusion across processes. TryAcquire
// reports false without error when another holder owns key.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker is a SetNX lock with an owner token and a TTL.
type RedisLocker struct {
	client *redis.Client
	owner  string
	ttl    time.Duration
	logger *slog.Logger
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{
		client: client,
		owner:  fmt.Sprintf("consolidator-%s", uuid.New().String()[:8]),
		ttl:    ttl,
		logger: logger,
	}
}

func lockKey(key string) string {
	return "consolidation-lock:" + key
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	// Each acquisition gets its own token so a stale release cannot free a
	// newer holder's lock.
	token := l.owner + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(key), token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire consolidation lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// The pass context may already be done.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{lockKey(key)}, token).Err(); err != nil {
			l.logger.Error("Failed to release consolidation lock", "error", err, "key", key)
		}
	}
	return release, true, nil
}
