package infra

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// JobLocker guards a scheduler job against running twice at once, across
// processes when backed by Redis.
type JobLocker interface {
	// TryLock returns a release func and true if the lock was taken.
	TryLock(ctx context.Context, job string, ttl time.Duration) (func(), bool, error)
}

const jobLockPrefix = "lock:job:"

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisJobLocker struct{ rdb *redis.Client }

func NewRedisJobLocker(rdb *redis.Client) *RedisJobLocker { return &RedisJobLocker{rdb: rdb} }

func (l *RedisJobLocker) TryLock(ctx context.Context, job string, ttl time.Duration) (func(), bool, error) {
	key := jobLockPrefix + job
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		_ = releaseScript.Run(context.Background(), l.rdb, []string{key}, token).Err()
	}, true, nil
}

// LocalJobLocker is the single-process fallback when Redis is not configured.
type LocalJobLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalJobLocker() *LocalJobLocker { return &LocalJobLocker{held: make(map[string]bool)} }

func (l *LocalJobLocker) TryLock(_ context.Context, job string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[job] {
		return func() {}, false, nil
	}
	l.held[job] = true
	return func() {
		l.mu.Lock()
		delete(l.held, job)
		l.mu.Unlock()
	}, true, nil
}
