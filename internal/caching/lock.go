package caching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TenantLocker serializes writes per tenant. Lock returns ErrConflict when
// the lock is still held after the wait budget.
type TenantLocker interface {
	Lock(ctx context.Context, tenantID uuid.UUID) (unlock func(), err error)
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*lockEntry
	wait time.Duration
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{keys: map[uuid.UUID]*lockEntry{}, wait: wait}
}

func (l *LocalLocker) Lock(ctx context.Context, tenantID uuid.UUID) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[tenantID]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.keys[tenantID] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				l.release(tenantID, e)
			})
		}, nil
	case <-timer.C:
		l.release(tenantID, e)
		return nil, fmt.Errorf("tenant %s is being updated: %w", tenantID, models.ErrConflict)
	case <-ctx.Done():
		l.release(tenantID, e)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) release(tenantID uuid.UUID, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, tenantID)
	}
}

// unlockScript deletes the key only if this holder still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker extends the single-writer guarantee across processes.
type RedisLocker struct {
	client redisLockClient
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// redisLockClient is what RedisLocker needs from go-redis.
type redisLockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

func NewRedisLocker(client redisLockClient, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func LockKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("%s:lock:tenant:%s", keyPrefix, tenantID)
}

func (l *RedisLocker) Lock(ctx context.Context, tenantID uuid.UUID) (func(), error) {
	client := l.client
	token := newToken()
	key := LockKey(tenantID)
	deadline := time.Now().Add(l.wait)

	for {
		acquired, err := client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire tenant lock: %w", err)
		}
		if acquired {
			return func() {
				// Background context: the request may already be cancelled.
				_ = unlockScript.Run(context.Background(), client, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("tenant %s is being updated: %w", tenantID, models.ErrConflict)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// newToken identifies the holder so unlock never deletes a lock it lost to expiry.
func newToken() string {
	return uuid.NewString()
}

// ChainLocker acquires every locker in order and releases in reverse.
type ChainLocker []TenantLocker

func (c ChainLocker) Lock(ctx context.Context, tenantID uuid.UUID) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, l := range c {
		unlock, err := l.Lock(ctx, tenantID)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return releaseAll, nil
}
