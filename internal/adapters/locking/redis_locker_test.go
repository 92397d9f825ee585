package locking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker_LockAndUnlock(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, DefaultLockOptions(5*time.Second))

	unlock, err := locker.Lock(context.Background(), "transfer:K1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"transfer:K1"))

	unlock()
	assert.False(t, mr.Exists(keyPrefix+"transfer:K1"))
}

func TestRedisLocker_SerializesSameKey(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewRedisLocker(client, LockOptions{Expiry: 5 * time.Second, Tries: 200, RetryDelay: 5 * time.Millisecond})

	var inside, violations int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "shared")
			if !assert.NoError(t, err) {
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&violations, 1)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), violations)
}

func TestRedisLocker_GivesUpOnBusyKey(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewRedisLocker(client, LockOptions{Expiry: 5 * time.Second, Tries: 2, RetryDelay: 5 * time.Millisecond})

	unlock, err := locker.Lock(context.Background(), "busy")
	require.NoError(t, err)
	defer unlock()

	_, err = locker.Lock(context.Background(), "busy")
	assert.Error(t, err)
}

func TestDefaultLockOptions(t *testing.T) {
	opts := DefaultLockOptions(0)
	assert.Equal(t, 30*time.Second, opts.Expiry)
	assert.Equal(t, 301, opts.Tries)
	assert.Equal(t, 100*time.Millisecond, opts.RetryDelay)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}
