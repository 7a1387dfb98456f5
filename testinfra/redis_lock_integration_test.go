package testinfra

import (
	"context"
	"testing"
	"time"
)

// ============================================================================
// Integration Tests for the Redis run lock (requires Redis)
// ============================================================================

func TestIntegration_RedisLock_AcquireAndRelease(t *testing.T) {
	SkipIfNoInfrastructure(t)
	infra := NewTestInfrastructure(t)
	defer infra.Close()

	ctx := context.Background()
	key := infra.GenerateRunID("lock")

	handle, err := infra.Locker.Acquire(ctx, key, infra.Config.LockTTL)
	if err != nil {
		t.Fatalf("Expected to acquire the lock, got: %v", err)
	}
	if handle.Key() != key {
		t.Errorf("Expected key %s, got %s", key, handle.Key())
	}

	if err := handle.Release(ctx); err != nil {
		t.Fatalf("Expected release to succeed, got: %v", err)
	}

	// Released locks are acquirable again.
	handle2, err := infra.Locker.Acquire(ctx, key, infra.Config.LockTTL)
	if err != nil {
		t.Fatalf("Expected to re-acquire after release, got: %v", err)
	}
	handle2.Release(ctx)
}

func TestIntegration_RedisLock_MutualExclusion(t *testing.T) {
	SkipIfNoInfrastructure(t)
	infra := NewTestInfrastructure(t)
	defer infra.Close()

	ctx := context.Background()
	key := infra.GenerateRunID("lock")

	handle, err := infra.Locker.Acquire(ctx, key, infra.Config.LockTTL)
	if err != nil {
		t.Fatalf("Expected to acquire the lock, got: %v", err)
	}
	defer handle.Release(ctx)

	if _, err := infra.Locker.Acquire(ctx, key, infra.Config.LockTTL); err == nil {
		t.Fatal("Expected the second acquire to fail while the lock is held")
	}
}

func TestIntegration_RedisLock_Extend(t *testing.T) {
	SkipIfNoInfrastructure(t)
	infra := NewTestInfrastructure(t)
	defer infra.Close()

	ctx := context.Background()
	key := infra.GenerateRunID("lock")

	handle, err := infra.Locker.Acquire(ctx, key, 2*time.Second)
	if err != nil {
		t.Fatalf("Expected to acquire the lock, got: %v", err)
	}
	defer handle.Release(ctx)

	if err := handle.Extend(ctx, 10*time.Second); err != nil {
		t.Fatalf("Expected extend to succeed, got: %v", err)
	}

	ttl, err := infra.Redis.TTL(ctx, "skew:lock:"+key).Result()
	if err != nil {
		t.Fatalf("TTL lookup failed: %v", err)
	}
	if ttl <= 2*time.Second {
		t.Errorf("Expected TTL above the original 2s after extend, got %v", ttl)
	}
}

func TestIntegration_RedisLock_ExpiresWithoutExtension(t *testing.T) {
	SkipIfNoInfrastructure(t)
	if testing.Short() {
		t.Skip("Skipping expiry test in short mode")
	}
	infra := NewTestInfrastructure(t)
	defer infra.Close()

	ctx := context.Background()
	key := infra.GenerateRunID("lock")

	if _, err := infra.Locker.Acquire(ctx, key, 500*time.Millisecond); err != nil {
		t.Fatalf("Expected to acquire the lock, got: %v", err)
	}

	time.Sleep(700 * time.Millisecond)

	handle, err := infra.Locker.Acquire(ctx, key, infra.Config.LockTTL)
	if err != nil {
		t.Fatalf("Expected to acquire after expiry, got: %v", err)
	}
	handle.Release(ctx)
}
