package skew

import (
	"errors"
	"testing"
	"time"
)

// ============================================================================
// Unit Tests for options.go
// Tests configuration defaults, options and validation
// ============================================================================

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid, got: %v", err)
	}
}

func TestApplyOptions(t *testing.T) {
	cfg := ApplyOptions(
		WithMemberServiceURL("http://a.internal:8080"),
		WithAccountServiceURL("http://b.internal:3000"),
		WithClients(25),
		WithThinkTime(100*time.Millisecond, 200*time.Millisecond),
		WithSetupTimeout(5*time.Second),
		WithInitialBalance(250.00),
		WithAmbiguousTolerance(0.1),
		WithRunLockTTL(time.Minute),
		WithRunLockExtendPeriod(20*time.Second),
		WithMonitorInterval(time.Second),
	)

	if cfg.MemberServiceURL != "http://a.internal:8080" {
		t.Errorf("Unexpected member URL: %s", cfg.MemberServiceURL)
	}
	if cfg.AccountServiceURL != "http://b.internal:3000" {
		t.Errorf("Unexpected account URL: %s", cfg.AccountServiceURL)
	}
	if cfg.Clients != 25 {
		t.Errorf("Expected 25 clients, got %d", cfg.Clients)
	}
	if cfg.MinThinkTime != 100*time.Millisecond || cfg.MaxThinkTime != 200*time.Millisecond {
		t.Errorf("Unexpected think time range: %v-%v", cfg.MinThinkTime, cfg.MaxThinkTime)
	}
	if cfg.SetupTimeout != 5*time.Second {
		t.Errorf("Unexpected setup timeout: %v", cfg.SetupTimeout)
	}
	if cfg.InitialBalance != 250.00 {
		t.Errorf("Unexpected initial balance: %v", cfg.InitialBalance)
	}
	if cfg.AmbiguousTolerance != 0.1 {
		t.Errorf("Unexpected tolerance: %v", cfg.AmbiguousTolerance)
	}
	if cfg.RunLockTTL != time.Minute || cfg.RunLockExtendPeriod != 20*time.Second {
		t.Errorf("Unexpected lock config: ttl=%v extend=%v", cfg.RunLockTTL, cfg.RunLockExtendPeriod)
	}
	if cfg.MonitorInterval != time.Second {
		t.Errorf("Unexpected monitor interval: %v", cfg.MonitorInterval)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Configured options should be valid, got: %v", err)
	}
}

func TestWithConfig_ReplacesEverything(t *testing.T) {
	custom := DefaultConfig()
	custom.Clients = 3

	cfg := ApplyOptions(WithClients(99), WithConfig(custom))
	if cfg.Clients != 3 {
		t.Errorf("WithConfig should override prior options, got %d clients", cfg.Clients)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"default is valid", func(c *Config) {}, true},
		{"empty member URL", func(c *Config) { c.MemberServiceURL = "" }, false},
		{"empty account URL", func(c *Config) { c.AccountServiceURL = "" }, false},
		{"zero clients", func(c *Config) { c.Clients = 0 }, false},
		{"negative clients", func(c *Config) { c.Clients = -1 }, false},
		{"zero min think time", func(c *Config) { c.MinThinkTime = 0 }, false},
		{"max think below min", func(c *Config) { c.MaxThinkTime = c.MinThinkTime - 1 }, false},
		{"equal think bounds", func(c *Config) { c.MaxThinkTime = c.MinThinkTime }, true},
		{"zero setup timeout", func(c *Config) { c.SetupTimeout = 0 }, false},
		{"negative balance", func(c *Config) { c.InitialBalance = -1 }, false},
		{"zero balance", func(c *Config) { c.InitialBalance = 0 }, true},
		{"negative tolerance", func(c *Config) { c.AmbiguousTolerance = -0.1 }, false},
		{"tolerance above one", func(c *Config) { c.AmbiguousTolerance = 1.1 }, false},
		{"tolerance of one", func(c *Config) { c.AmbiguousTolerance = 1.0 }, true},
		{"zero lock TTL", func(c *Config) { c.RunLockTTL = 0 }, false},
		{"zero extend period", func(c *Config) { c.RunLockExtendPeriod = 0 }, false},
		{"extend period at TTL", func(c *Config) { c.RunLockExtendPeriod = c.RunLockTTL }, false},
		{"zero monitor interval", func(c *Config) { c.MonitorInterval = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid config, got: %v", err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatal("Expected validation error, got nil")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Expected ErrInvalidConfig, got: %v", err)
				}
			}
		})
	}
}
