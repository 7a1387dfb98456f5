// Package redis implements the environment lock on Redis so that
// concurrent harness runs on different hosts exclude each other.
package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"skew/lock"

	"github.com/redis/go-redis/v9"
)

var _ lock.Locker = (*RedisLocker)(nil)
var _ lock.LockHandle = (*redisLockHandle)(nil)

// RedisLocker implements the environment lock using Redis
type RedisLocker struct {
	client redis.Cmdable
	prefix string
}

// Option is a functional option for configuring RedisLocker
type Option func(*RedisLocker)

// WithPrefix sets the key prefix for locks
func WithPrefix(prefix string) Option {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

// NewRedisLocker creates a new Redis-based environment locker
func NewRedisLocker(client redis.Cmdable, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client: client,
		prefix: "skew:lock:",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire acquires the environment lock for the given key.
// The lock carries a TTL so a crashed run cannot wedge the environment.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (lock.LockHandle, error) {
	if key == "" {
		return nil, errors.New("no key provided")
	}

	// Unique token so only the owner can extend or release
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate lock token: %w", err)
	}

	lockKey := l.prefix + key
	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock acquisition failed for key %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock acquisition failed for key %s: lock is held by another process", key)
	}

	return &redisLockHandle{
		client: l.client,
		key:    key,
		token:  token,
		locked: lockKey,
	}, nil
}

// redisLockHandle represents a held Redis environment lock
type redisLockHandle struct {
	client redis.Cmdable
	key    string
	token  string
	locked string // full Redis key, empty once released
	mu     sync.Mutex
}

// Extend extends the TTL of the held lock using a Lua script so only
// the owning token can extend
func (h *redisLockHandle) Extend(ctx context.Context, ttl time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.locked == "" {
		return errors.New("no lock held")
	}

	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)

	result, err := script.Run(ctx, h.client, []string{h.locked}, h.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to extend lock %s: %w", h.key, err)
	}
	if result == 0 {
		return errors.New("lock not held or expired")
	}
	return nil
}

// Release releases the lock using a Lua script so only the owning
// token can delete it
func (h *redisLockHandle) Release(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.locked == "" {
		return nil
	}

	script := redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`)

	_, err := script.Run(ctx, h.client, []string{h.locked}, h.token).Result()

	// Clear the handle regardless of errors
	h.locked = ""

	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", h.key, err)
	}
	return nil
}

// Key returns the locked environment key
func (h *redisLockHandle) Key() string {
	return h.key
}

// generateToken generates a unique token for lock ownership
func generateToken() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
