// Package lock provides time-boxed mutual exclusion for scheduled jobs. A lock
// expires on its own after its TTL, so a crashed holder never blocks the job
// for longer than one TTL.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker acquires named locks without waiting. ok is false when another
// holder owns the lock. release is safe to call more than once.
type Locker interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

const redisKeyPrefix = "lock"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker shares locks between processes.
type RedisLocker struct {
	client redis.Cmdable
}

func NewRedisLocker(client redis.Cmdable) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := redisKeyPrefix + ":" + name
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
				zap.L().Warn("release lock failed", zap.String("lock", name), zap.Error(err))
			}
		})
	}
	return release, true, nil
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	seq   uint64
	now   func() time.Time
	locks map[string]memoryLock
}

type memoryLock struct {
	token   uint64
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{now: time.Now, locks: make(map[string]memoryLock)}
}

func (l *MemoryLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[name]; ok && now.Before(held.expires) {
		return nil, false, nil
	}
	l.seq++
	token := l.seq
	l.locks[name] = memoryLock{token: token, expires: now.Add(ttl)}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if held, ok := l.locks[name]; ok && held.token == token {
				delete(l.locks, name)
			}
		})
	}
	return release, true, nil
}
