package config

import (
	"crypto/ed25519"
	"time"
)

// Config represents the complete slashgate configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Server   ServerConfig   `yaml:"server"`
	Discord  DiscordConfig  `yaml:"discord"`
	State    StateConfig    `yaml:"state"`
	Store    StoreConfig    `yaml:"store"`
	FollowUp FollowUpConfig `yaml:"followup"`

	// Populated by Load, never read from YAML.
	SourcePath  string            `yaml:"-"`
	Fingerprint string            `yaml:"-"`
	PublicKey   ed25519.PublicKey `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ServerConfig defines the interactions HTTP listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
	// MaxBodySize accepts plain bytes or a KB/MB/GB suffix.
	MaxBodySize string `yaml:"max_body_size"`
	// MaxTimestampSkew rejects signatures older or newer than this. Zero disables the check.
	MaxTimestampSkew time.Duration `yaml:"max_timestamp_skew"`
	RouteTimeout     time.Duration `yaml:"route_timeout"`
	Metrics          bool          `yaml:"metrics"`
}

// DiscordConfig holds platform credentials and endpoints.
type DiscordConfig struct {
	PublicKey string `yaml:"public_key"`
	APIBase   string `yaml:"api_base"`
}

// StateConfig defines the SQLite database backing the follow-up queue.
type StateConfig struct {
	Path string `yaml:"path"`
}

// StoreConfig selects the persistence backend used by commands.
type StoreConfig struct {
	Driver string      `yaml:"driver"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig is used when store.driver is redis.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	MaxLen    int64  `yaml:"max_len"`
}

// FollowUpConfig tunes follow-up delivery.
type FollowUpConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxAttempts   int           `yaml:"max_attempts"`
	BackoffBase   time.Duration `yaml:"backoff_base"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "slashgate",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Server: ServerConfig{
			Listen:       "0.0.0.0:8080",
			Path:         "/interactions",
			MaxBodySize:  "1MB",
			RouteTimeout: 2500 * time.Millisecond,
			Metrics:      true,
		},
		Discord: DiscordConfig{
			APIBase: "https://discord.com/api/v10",
		},
		State: StateConfig{
			Path: "./data/state.db",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Redis: RedisConfig{
				Addr:      "127.0.0.1:6379",
				KeyPrefix: "slashgate:",
			},
		},
		FollowUp: FollowUpConfig{
			PollInterval:  time.Second,
			MaxAttempts:   4,
			BackoffBase:   2 * time.Second,
			RatePerSecond: 5,
			Burst:         5,
		},
	}
}
