package locking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/middleware"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "funds-transfer:lock:"

// LockOptions tunes the Redis mutex.
type LockOptions struct {
	// Expiry bounds how long a crashed holder keeps the key.
	Expiry time.Duration
	// Tries times RetryDelay is roughly how long Lock waits for a busy key.
	Tries      int
	RetryDelay time.Duration
}

// DefaultLockOptions returns options that let a duplicate request wait out a running transfer.
func DefaultLockOptions(expiry time.Duration) LockOptions {
	if expiry <= 0 {
		expiry = 30 * time.Second
	}
	delay := 100 * time.Millisecond
	return LockOptions{
		Expiry:     expiry,
		Tries:      int(expiry/delay) + 1,
		RetryDelay: delay,
	}
}

// RedisLocker serializes work per key across processes with a redsync mutex.
type RedisLocker struct {
	redsync *redsync.Redsync
	opts    LockOptions
}

// NewRedisLocker creates a distributed IdempotencyLocker on top of a go-redis client.
func NewRedisLocker(client redis.UniversalClient, opts LockOptions) *RedisLocker {
	pool := goredis.NewPool(client)
	return &RedisLocker{redsync: redsync.New(pool), opts: opts}
}

var _ portssvc.IdempotencyLocker = (*RedisLocker)(nil)

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	mutex := l.redsync.NewMutex(
		keyPrefix+key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	logger.Debug("Lock acquired", slog.String("key", key))

	return func() {
		// the caller's context may already be done when the work finishes
		ok, err := mutex.UnlockContext(context.WithoutCancel(ctx))
		if err != nil || !ok {
			attrs := []any{slog.String("key", key), slog.Bool("ok", ok)}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			logger.Warn("Failed to release lock", attrs...)
		}
	}, nil
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
