package service

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dawilly/clickpesa/internal/infrastructure/redis"
)

// Locker serializes callback processing per order reference. Acquire
// blocks until the lock is held or the attempts are exhausted, and the
// returned release function must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// KeyedMutex is an in-process Locker for single-instance deployments.
// A mutex per key is created on demand and kept for the process lifetime;
// the key space is bounded by the set of active order references.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *KeyedMutex) Acquire(_ context.Context, key string) (func(), error) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

// RedisLocker is a Locker backed by Redis for multi-instance deployments.
type RedisLocker struct {
	client     *goredis.Client
	ttl        time.Duration
	retries    int
	retryDelay time.Duration
}

func NewRedisLocker(client *goredis.Client, ttl time.Duration, retries int, retryDelay time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retries <= 0 {
		retries = 5
	}
	if retryDelay <= 0 {
		retryDelay = 200 * time.Millisecond
	}
	return &RedisLocker{client: client, ttl: ttl, retries: retries, retryDelay: retryDelay}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lock := redis.NewOrderLock(r.client, key, r.ttl)
	if err := lock.AcquireWithRetry(ctx, r.retries, r.retryDelay); err != nil {
		return nil, err
	}
	return func() {
		// Release uses a background context so a canceled request still
		// frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}, nil
}
