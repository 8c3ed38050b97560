package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	domainerrors "github.com/dawilly/clickpesa/internal/domain/errors"
)

const lockKeyPrefix = "clickpesa:lock:"

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// OrderLock serializes callback processing for a single order reference
// across instances. Each lock value is unique so an expired lock held by
// another instance is never released by mistake.
type OrderLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
	held   bool
}

// NewOrderLock creates a lock scoped to the given order reference.
func NewOrderLock(client *redis.Client, orderReference string, ttl time.Duration) *OrderLock {
	return &OrderLock{
		client: client,
		key:    lockKeyPrefix + orderReference,
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire attempts to take the lock once.
func (l *OrderLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	l.held = ok
	return ok, nil
}

// AcquireWithRetry attempts to take the lock, waiting between attempts.
func (l *OrderLock) AcquireWithRetry(ctx context.Context, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		ok, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return domainerrors.ErrLockAcquisitionFailed
}

// Release gives the lock back. Releasing a lock that was never acquired
// is a no-op.
func (l *OrderLock) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}

	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if val, ok := result.(int64); !ok || val == 0 {
		return domainerrors.ErrLockNotHeld
	}

	l.held = false
	return nil
}

// Held reports whether the lock is currently held by this instance.
func (l *OrderLock) Held() bool {
	return l.held
}
