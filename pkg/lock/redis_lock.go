// Package lock provides a Redis-backed mutual exclusion primitive for work
// that must run on exactly one replica at a time (background sweeps).
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"atelier/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	DefaultTTL     = 30 * time.Second
	acquireTimeout = 5 * time.Second
	maxHold        = 2 * time.Minute
)

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`

// Locker is held by one owner at a time
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
	IsHeld() bool
}

// RedisLock SET NX PX lock with owner-checked release and background renewal.
// A nil client degrades to single-instance mode: TryLock always succeeds.
type RedisLock struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration

	mu           sync.Mutex
	held         bool
	acquiredAt   time.Time
	stopRenew    chan struct{}
	renewStopped bool
}

// NewRedisLock creates a lock on key
func NewRedisLock(client *redis.Client, key string) *RedisLock {
	return NewRedisLockWithTTL(client, key, DefaultTTL)
}

// NewRedisLockWithTTL creates a lock on key expiring after ttl unless renewed
func NewRedisLockWithTTL(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLock{
		client: client,
		key:    key,
		owner:  fmt.Sprintf("%s-%s", key, uuid.New().String()),
		ttl:    ttl,
	}
}

// Key returns the redis key guarded by the lock
func (l *RedisLock) Key() string {
	return l.key
}

// TryLock attempts to acquire the lock without waiting for it
func (l *RedisLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		l.mu.Lock()
		l.held = true
		l.mu.Unlock()
		return true, nil
	}

	acquireCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	ok, err := l.client.SetNX(acquireCtx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if !ok {
		logger.DebugCtx(ctx, "lock %s held by another instance", l.key)
		return false, nil
	}

	l.mu.Lock()
	l.held = true
	l.acquiredAt = time.Now()
	// fresh channel per acquisition so TryLock/Unlock can cycle
	l.stopRenew = make(chan struct{})
	l.renewStopped = false
	stop := l.stopRenew
	l.mu.Unlock()

	go l.renew(ctx, stop)

	logger.DebugCtx(ctx, "lock %s acquired", l.key)
	return true, nil
}

// Unlock releases the lock if this instance still owns it
func (l *RedisLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if !l.held && (l.stopRenew == nil || l.renewStopped) {
		l.mu.Unlock()
		return nil
	}
	if l.client == nil {
		l.held = false
		l.mu.Unlock()
		return nil
	}
	if !l.renewStopped && l.stopRenew != nil {
		l.renewStopped = true
		close(l.stopRenew)
	}
	l.mu.Unlock()

	res, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.owner).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}

	l.mu.Lock()
	l.held = false
	l.mu.Unlock()

	if res == 0 {
		logger.WarnCtx(ctx, "lock %s already expired or taken over", l.key)
	}
	return nil
}

// IsHeld reports whether this instance believes it owns the lock
func (l *RedisLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

func (l *RedisLock) renew(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			held := time.Since(l.acquiredAt)
			l.mu.Unlock()

			// the owner is expected to Unlock; past maxHold we stop extending and let the key expire
			if held > maxHold {
				logger.WarnCtx(ctx, "lock %s held for %.0fs, no longer renewing", l.key, held.Seconds())
				l.markLost()
				return
			}

			res, err := l.client.Eval(ctx, renewScript, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int64()
			if err != nil {
				logger.WarnCtx(ctx, "failed to renew lock %s: %v", l.key, err)
				l.markLost()
				return
			}
			if res == 0 {
				logger.WarnCtx(ctx, "lock %s lost before renewal", l.key)
				l.markLost()
				return
			}
		}
	}
}

func (l *RedisLock) markLost() {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
}
