package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aixgo-dev/fanin/aggregator"
	"github.com/aixgo-dev/fanin/internal/observability"
)

// DefaultSeparator joins outputs when the config sets none
const DefaultSeparator = " "

// Service kinds
const (
	KindEcho  = "echo"
	KindRedis = "redis"
)

// Config represents one fan-out run
type Config struct {
	// Aggregation
	Policy   string        `yaml:"policy"`
	Fallback string        `yaml:"fallback"`
	Timeout  time.Duration `yaml:"timeout"`

	// Message and Separator are nil when absent from the file; an explicit
	// empty string is kept. Read them through SharedMessage and
	// JoinSeparator.
	Message   *string `yaml:"message,omitempty"`
	Separator *string `yaml:"separator,omitempty"`

	// Services, in launch order
	Services []ServiceConfig `yaml:"services"`

	// Runtime Configuration
	Runtime RuntimeConfig `yaml:"runtime"`

	// Redis connection shared by every redis service
	Redis RedisConfig `yaml:"redis"`

	// Tracing, read from the OTEL_* environment when absent
	Observability *observability.Config `yaml:"observability,omitempty"`
}

// ServiceConfig holds configuration for a single service
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"` // echo, redis

	// Message is this service's message under per-operation policies
	Message string `yaml:"message"`

	// Echo settings
	Delay  time.Duration `yaml:"delay"`
	Jitter time.Duration `yaml:"jitter"`
	Fail   bool          `yaml:"fail"`

	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig throttles a single service
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// RuntimeConfig holds runtime configuration
type RuntimeConfig struct {
	PoolSize    int    `yaml:"pool_size"`
	LogMode     string `yaml:"log_mode"` // development, production
	MetricsPort int    `yaml:"metrics_port"`
}

// MaxConfigSize is the largest config file LoadConfig accepts
const MaxConfigSize = 1 << 20

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if info.Size() > MaxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Policy == "" {
		c.Policy = string(aggregator.AllOrNothing)
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Runtime.LogMode == "" {
		c.Runtime.LogMode = "development"
	}
	for i := range c.Services {
		if c.Services[i].Kind == "" {
			c.Services[i].Kind = KindEcho
		}
	}

	// Load Redis address from environment if not in config
	if c.Redis.Addr == "" {
		c.Redis.Addr = os.Getenv("FANIN_REDIS_ADDR")
	}
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SharedMessage returns the message sent to every service under
// all-or-nothing and completion-order, or "hello" when none is configured
func (c *Config) SharedMessage() string {
	if c.Message == nil {
		return aggregator.DefaultMessage
	}
	return *c.Message
}

// JoinSeparator returns the string placed between joined outputs, or a
// single space when none is configured
func (c *Config) JoinSeparator() string {
	if c.Separator == nil {
		return DefaultSeparator
	}
	return *c.Separator
}

// Tracing returns the observability block, or the settings from the
// environment when the file has none
func (c *Config) Tracing() observability.Config {
	if c.Observability == nil {
		return observability.ConfigFromEnv()
	}
	return *c.Observability
}

// Messages returns the per-service messages, in service order
func (c *Config) Messages() []string {
	messages := make([]string, len(c.Services))
	for i, s := range c.Services {
		messages[i] = s.Message
	}
	return messages
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if _, err := aggregator.ParsePolicy(c.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if c.Runtime.PoolSize < 0 {
		errs = append(errs, errors.New("runtime.pool_size must not be negative"))
	}

	seen := make(map[string]bool, len(c.Services))
	needsRedis := false
	for i, s := range c.Services {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("services[%d]: id is required", i))
		} else if seen[s.ID] {
			errs = append(errs, fmt.Errorf("services[%d]: duplicate id %q", i, s.ID))
		}
		seen[s.ID] = true

		switch s.Kind {
		case KindEcho:
		case KindRedis:
			needsRedis = true
		default:
			errs = append(errs, fmt.Errorf("services[%d]: unknown kind %q", i, s.Kind))
		}
		if s.Delay < 0 || s.Jitter < 0 {
			errs = append(errs, fmt.Errorf("services[%d]: delay and jitter must not be negative", i))
		}
		if s.RateLimit != nil && s.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, fmt.Errorf("services[%d]: rate_limit.requests_per_second must be positive", i))
		}
	}

	if needsRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required for redis services"))
	}

	return errors.Join(errs...)
}
