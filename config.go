package skew

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML shape of a config file. Zero values mean
// "keep the default"; only fields present in the file override it.
type fileConfig struct {
	MemberServiceURL  string `yaml:"member_service_url"`
	AccountServiceURL string `yaml:"account_service_url"`

	Clients      int           `yaml:"clients"`
	MinThinkTime time.Duration `yaml:"min_think_time"`
	MaxThinkTime time.Duration `yaml:"max_think_time"`

	SetupTimeout   time.Duration `yaml:"setup_timeout"`
	InitialBalance float64       `yaml:"initial_balance"`

	AmbiguousTolerance *float64 `yaml:"ambiguous_tolerance"`

	RunLockTTL          time.Duration `yaml:"run_lock_ttl"`
	RunLockExtendPeriod time.Duration `yaml:"run_lock_extend_period"`

	MonitorInterval time.Duration `yaml:"monitor_interval"`
}

// LoadConfig reads a YAML config file and merges it over the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config bytes and merges them over the
// defaults. The result is validated.
func ParseConfig(data []byte) (Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg := DefaultConfig()
	if fc.MemberServiceURL != "" {
		cfg.MemberServiceURL = fc.MemberServiceURL
	}
	if fc.AccountServiceURL != "" {
		cfg.AccountServiceURL = fc.AccountServiceURL
	}
	if fc.Clients != 0 {
		cfg.Clients = fc.Clients
	}
	if fc.MinThinkTime != 0 {
		cfg.MinThinkTime = fc.MinThinkTime
	}
	if fc.MaxThinkTime != 0 {
		cfg.MaxThinkTime = fc.MaxThinkTime
	}
	if fc.SetupTimeout != 0 {
		cfg.SetupTimeout = fc.SetupTimeout
	}
	if fc.InitialBalance != 0 {
		cfg.InitialBalance = fc.InitialBalance
	}
	if fc.AmbiguousTolerance != nil {
		cfg.AmbiguousTolerance = *fc.AmbiguousTolerance
	}
	if fc.RunLockTTL != 0 {
		cfg.RunLockTTL = fc.RunLockTTL
	}
	if fc.RunLockExtendPeriod != 0 {
		cfg.RunLockExtendPeriod = fc.RunLockExtendPeriod
	}
	if fc.MonitorInterval != 0 {
		cfg.MonitorInterval = fc.MonitorInterval
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
