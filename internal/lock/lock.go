package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrBusy = errors.New("lock busy")

// Locker hands out short-lived named locks. The returned release func is safe to call once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

const pollInterval = 100 * time.Millisecond

type redisCmdable interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Only the holder's token may delete the key.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`

type RedisLocker struct {
	rdb    redisCmdable
	prefix string
}

func NewRedisLocker(rdb *redis.Client, prefix string) *RedisLocker {
	return newRedisLocker(rdb, prefix)
}

func newRedisLocker(rdb redisCmdable, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "studyrag:lock:"
	}
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

// Acquire polls until the key is free, ttl elapses, or ctx ends.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	full := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(ttl)
	for {
		ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				_ = l.rdb.Eval(context.WithoutCancel(ctx), releaseScript, []string{full}, token).Err()
			}, nil
		}
		if err := wait(ctx, deadline); err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
	}
}

// MemoryLocker is the in-process fallback used when Redis is not configured.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]time.Time{}}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	deadline := time.Now().Add(ttl)
	for {
		if release, ok := l.tryAcquire(key, ttl); ok {
			return release, nil
		}
		if err := wait(ctx, deadline); err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
	}
}

func (l *MemoryLocker) tryAcquire(key string, ttl time.Duration) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, false
	}
	exp := now.Add(ttl)
	l.held[key] = exp
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key].Equal(exp) {
				delete(l.held, key)
			}
		})
	}, true
}

func wait(ctx context.Context, deadline time.Time) error {
	if !time.Now().Before(deadline) {
		return ErrBusy
	}
	t := time.NewTimer(pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
