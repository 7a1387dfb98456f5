// Package testinfra provides test infrastructure for harness validation.
// It includes MySQL and Redis connections, cleanup utilities, and test helpers.
package testinfra

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"skew/event"
	"skew/lock"
	skewredis "skew/lock/redis"
	"skew/store/mysql"
)

// DefaultConfig returns default test configuration
func DefaultConfig() TestConfig {
	return TestConfig{
		MySQLDSN:      getEnvOrDefault("SKEW_TEST_MYSQL_DSN", "root:123456@tcp(localhost:3306)/skew_test?parseTime=true"),
		RedisAddr:     getEnvOrDefault("SKEW_TEST_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnvOrDefault("SKEW_TEST_REDIS_PASSWORD", ""),
		RedisDB:       0,
		LockTTL:       30 * time.Second,
		PropertyRuns:  100,
	}
}

// TestConfig holds test configuration
type TestConfig struct {
	MySQLDSN      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
	PropertyRuns  int
}

// TestInfrastructure provides test infrastructure with real MySQL and Redis
type TestInfrastructure struct {
	DB       *sql.DB
	Redis    *redis.Client
	Store    *mysql.MySQLStore
	Locker   lock.Locker
	EventBus event.EventBus
	Config   TestConfig
	testID   string
}

// NewTestInfrastructure creates a new test infrastructure with real MySQL and Redis.
// It skips the test if the infrastructure is not available.
func NewTestInfrastructure(t *testing.T) *TestInfrastructure {
	t.Helper()

	cfg := DefaultConfig()
	testID := fmt.Sprintf("test-%d", time.Now().UnixNano())

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		t.Skipf("Skipping test: MySQL connection failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("Skipping test: MySQL ping failed: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		db.Close()
		t.Skipf("Skipping test: Redis ping failed: %v", err)
	}

	return &TestInfrastructure{
		DB:       db,
		Redis:    redisClient,
		Store:    mysql.New(db),
		Locker:   skewredis.NewRedisLocker(redisClient),
		EventBus: event.NewMemoryEventBus(),
		Config:   cfg,
		testID:   testID,
	}
}

// TestID returns the unique ID of this test run.
func (ti *TestInfrastructure) TestID() string {
	return ti.testID
}

// GenerateRunID generates a run ID scoped to this test run so cleanup
// can find everything it created.
func (ti *TestInfrastructure) GenerateRunID(prefix string) string {
	return fmt.Sprintf("%s-%s-%d", ti.testID, prefix, time.Now().UnixNano())
}

// Cleanup removes all rows created by this test run.
func (ti *TestInfrastructure) Cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	pattern := ti.testID + "-%"
	if _, err := ti.DB.ExecContext(ctx, "DELETE FROM skew_violations WHERE run_id LIKE ?", pattern); err != nil {
		t.Logf("cleanup violations: %v", err)
	}
	if _, err := ti.DB.ExecContext(ctx, "DELETE FROM skew_runs WHERE run_id LIKE ?", pattern); err != nil {
		t.Logf("cleanup runs: %v", err)
	}
}

// Close closes all connections.
func (ti *TestInfrastructure) Close() {
	if ti.Redis != nil {
		ti.Redis.Close()
	}
	if ti.DB != nil {
		ti.DB.Close()
	}
}

// SkipIfNoInfrastructure skips the test if infrastructure is not available
func SkipIfNoInfrastructure(t *testing.T) {
	t.Helper()
	cfg := DefaultConfig()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		t.Skipf("Skipping test: MySQL not available: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("Skipping test: MySQL not available: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping test: Redis not available: %v", err)
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
