package skew

import (
	"time"
)

// Config holds the configuration for a harness run.
type Config struct {
	// Service endpoints. The two services are addressed independently;
	// there is no shared gateway in front of them.
	MemberServiceURL  string // service A base URL
	AccountServiceURL string // service B base URL

	// Workload configuration
	Clients      int           // number of virtual clients, default 10
	MinThinkTime time.Duration // lower bound between probes, default 500ms
	MaxThinkTime time.Duration // upper bound between probes, default 1s

	// Setup configuration
	SetupTimeout   time.Duration // per-call timeout during linkage, default 10s
	InitialBalance float64       // balance for the linked account, default 100.00

	// Verdict configuration
	AmbiguousTolerance float64 // ambiguous fraction allowed in a clean run, default 0.05

	// Run lock configuration
	RunLockTTL          time.Duration // environment lock TTL, default 30s
	RunLockExtendPeriod time.Duration // lock extension interval, default 10s

	// Monitor configuration
	MonitorInterval time.Duration // watchdog scan interval, default 5s
}

// DefaultConfig returns the default configuration for a harness run.
func DefaultConfig() Config {
	return Config{
		MemberServiceURL:    "http://localhost:8080",
		AccountServiceURL:   "http://localhost:3000",
		Clients:             10,
		MinThinkTime:        500 * time.Millisecond,
		MaxThinkTime:        1 * time.Second,
		SetupTimeout:        10 * time.Second,
		InitialBalance:      100.00,
		AmbiguousTolerance:  0.05,
		RunLockTTL:          30 * time.Second,
		RunLockExtendPeriod: 10 * time.Second,
		MonitorInterval:     5 * time.Second,
	}
}

// Option is a function that modifies the Config.
type Option func(*Config)

// WithMemberServiceURL sets the member service base URL.
func WithMemberServiceURL(url string) Option {
	return func(c *Config) {
		c.MemberServiceURL = url
	}
}

// WithAccountServiceURL sets the account service base URL.
func WithAccountServiceURL(url string) Option {
	return func(c *Config) {
		c.AccountServiceURL = url
	}
}

// WithClients sets the number of virtual clients.
func WithClients(n int) Option {
	return func(c *Config) {
		c.Clients = n
	}
}

// WithThinkTime sets the think-time range between probes.
func WithThinkTime(min, max time.Duration) Option {
	return func(c *Config) {
		c.MinThinkTime = min
		c.MaxThinkTime = max
	}
}

// WithSetupTimeout sets the per-call timeout used during linkage.
func WithSetupTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.SetupTimeout = timeout
	}
}

// WithInitialBalance sets the balance of the linked account.
func WithInitialBalance(balance float64) Option {
	return func(c *Config) {
		c.InitialBalance = balance
	}
}

// WithAmbiguousTolerance sets the ambiguous fraction allowed in a clean run.
func WithAmbiguousTolerance(tolerance float64) Option {
	return func(c *Config) {
		c.AmbiguousTolerance = tolerance
	}
}

// WithRunLockTTL sets the environment lock TTL.
func WithRunLockTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.RunLockTTL = ttl
	}
}

// WithRunLockExtendPeriod sets the lock extension interval.
func WithRunLockExtendPeriod(period time.Duration) Option {
	return func(c *Config) {
		c.RunLockExtendPeriod = period
	}
}

// WithMonitorInterval sets the watchdog scan interval.
func WithMonitorInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.MonitorInterval = interval
	}
}

// WithConfig applies a complete Config, overriding all values.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// ApplyOptions applies the given options to a default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.MemberServiceURL == "" {
		return ErrInvalidConfig
	}
	if c.AccountServiceURL == "" {
		return ErrInvalidConfig
	}
	if c.Clients <= 0 {
		return ErrInvalidConfig
	}
	if c.MinThinkTime <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxThinkTime < c.MinThinkTime {
		return ErrInvalidConfig
	}
	if c.SetupTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.InitialBalance < 0 {
		return ErrInvalidConfig
	}
	if c.AmbiguousTolerance < 0 || c.AmbiguousTolerance > 1.0 {
		return ErrInvalidConfig
	}
	if c.RunLockTTL <= 0 {
		return ErrInvalidConfig
	}
	if c.RunLockExtendPeriod <= 0 {
		return ErrInvalidConfig
	}
	if c.RunLockExtendPeriod >= c.RunLockTTL {
		return ErrInvalidConfig
	}
	if c.MonitorInterval <= 0 {
		return ErrInvalidConfig
	}
	return nil
}
