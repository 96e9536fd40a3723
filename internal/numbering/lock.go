package numbering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stwalsh4118/parcelbook/internal/logger"
)

// ErrLockTimeout is returned when a namespace lock cannot be acquired before the context ends.
var ErrLockTimeout = errors.New("timed out waiting for numbering lock")

// Locker serializes allocate-then-insert sequences within one prefix.
type Locker interface {
	Lock(ctx context.Context, namespace string) (unlock func(), err error)
}

// LocalLocker is an in-process Locker keyed by namespace.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(namespace string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[namespace]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[namespace] = ch
	}
	return ch
}

// Lock blocks until the namespace is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, namespace string) (func(), error) {
	ch := l.slot(namespace)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, namespace, ctx.Err())
	}
}

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every API instance pointing at the same Redis.
type RedisLocker struct {
	client *redis.Client
	log    *logger.Logger
	ttl    time.Duration
	retry  time.Duration
}

// releaseTimeout bounds the unlock round trip.
const releaseTimeout = 2 * time.Second

// NewRedisLocker creates a RedisLocker. ttl bounds how long a crashed holder blocks others.
func NewRedisLocker(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		log:    log.WithComponent("numbering-lock"),
		ttl:    ttl,
		retry:  25 * time.Millisecond,
	}
}

// OpenRedis returns a client for addr, or nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func redisLockKey(namespace string) string {
	return "parcelbook:numbering:lock:" + namespace
}

// Lock polls SET NX until it wins or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, namespace string) (func(), error) {
	key := redisLockKey(namespace)
	token := uuid.New().String()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire numbering lock %s: %w", namespace, err)
		}
		if ok {
			var once sync.Once
			return func() { once.Do(func() { l.release(namespace, key, token) }) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, namespace, ctx.Err())
		case <-ticker.C:
		}
	}
}

// release deletes the lock key if it still holds token. A failed release
// leaves the namespace blocked until the TTL expires, so it is logged.
func (l *RedisLocker) release(namespace, key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		l.log.Warn("Failed to release numbering lock", map[string]interface{}{
			"namespace": namespace,
			"ttl":       l.ttl.String(),
			"error":     err.Error(),
		})
		return
	}
	if deleted == 0 {
		l.log.Warn("Numbering lock expired before release", map[string]interface{}{
			"namespace": namespace,
			"ttl":       l.ttl.String(),
		})
	}
}
