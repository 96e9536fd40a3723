package numbering

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcelbook/internal/logger"
)

func TestLocalLocker_SerializesNamespace(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "BUR")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
}

func TestLocalLocker_IndependentNamespaces(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	unlockBur, err := locker.Lock(ctx, "BUR")
	require.NoError(t, err)
	defer unlockBur()

	unlockMad, err := locker.Lock(ctx, "MAD")
	require.NoError(t, err)
	unlockMad()
}

func TestLocalLocker_Timeout(t *testing.T) {
	locker := NewLocalLocker()

	unlock, err := locker.Lock(context.Background(), "BUR")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "BUR")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock() // second call is a no-op

	again, err := locker.Lock(context.Background(), "BUR")
	require.NoError(t, err)
	again()
}

func TestOpenRedis_EmptyAddr(t *testing.T) {
	assert.Nil(t, OpenRedis("", "", 0))
}

func TestRedisLocker_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	client := OpenRedis("localhost:6379", "", 0)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping integration test, redis unavailable: %v", err)
	}

	locker := NewRedisLocker(client, 2*time.Second, logger.Nop())
	unlock, err := locker.Lock(ctx, "TST")
	require.NoError(t, err)

	short, cancelShort := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancelShort()
	_, err = locker.Lock(short, "TST")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	again, err := locker.Lock(ctx, "TST")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ReleaseFailureIsLogged(t *testing.T) {
	// Nothing listens on port 1, so the release round trip fails fast.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	var buf bytes.Buffer
	locker := NewRedisLocker(client, 5*time.Second, logger.NewWithWriter(&buf, zerolog.DebugLevel))

	locker.release("BUR", redisLockKey("BUR"), "token-1")

	out := buf.String()
	assert.Contains(t, out, "Failed to release numbering lock")
	assert.Contains(t, out, `"namespace":"BUR"`)
	assert.Contains(t, out, `"level":"warn"`)
}
