package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath names the config file when --config is not given.
	EnvConfigPath = "SLASHGATE_CONFIG"
	EnvPublicKey  = "PUBLIC_KEY"
	EnvPort       = "PORT"

	defaultConfigFile = "slashgate.yaml"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Discover picks the config file path: the flag value, then
// $SLASHGATE_CONFIG, then ./slashgate.yaml if it exists. An empty result
// means run on defaults and environment only.
func Discover(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	if info, err := os.Stat(defaultConfigFile); err == nil && !info.IsDir() {
		return defaultConfigFile
	}
	return ""
}

// Load reads configuration from path, or from defaults when path is empty,
// then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path %q: %w", path, err)
		}
		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("config file not found: %s\n"+
				"Hint: Check the path or run with --config flag", absPath)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", absPath, err)
		}
		cfg.SourcePath = absPath
		cfg.Fingerprint = fingerprint(data)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg = applyConfigDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// decode unmarshals YAML on top of cfg so unset keys keep their defaults.
// Unknown keys are rejected.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(interpolateEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// fingerprint is the BLAKE3 hash of the raw config file, before interpolation.
func fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return "blake3:" + hex.EncodeToString(sum[:])
}

// applyEnvOverrides lets the deployment environment win over the file.
func applyEnvOverrides(cfg *Config) error {
	if key, ok := os.LookupEnv(EnvPublicKey); ok && strings.TrimSpace(key) != "" {
		cfg.Discord.PublicKey = key
	}

	if port, ok := os.LookupEnv(EnvPort); ok && port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("%s must be a TCP port, got %q", EnvPort, port)
		}
		host := ""
		if h, _, err := net.SplitHostPort(cfg.Server.Listen); err == nil {
			host = h
		}
		cfg.Server.Listen = net.JoinHostPort(host, port)
	}
	return nil
}

// applyConfigDefaults fills values left empty explicitly in the file.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}
	if cfg.Server.Path == "" {
		cfg.Server.Path = defaults.Server.Path
	}
	if cfg.Server.MaxBodySize == "" {
		cfg.Server.MaxBodySize = defaults.Server.MaxBodySize
	}
	if cfg.Server.RouteTimeout == 0 {
		cfg.Server.RouteTimeout = defaults.Server.RouteTimeout
	}

	if cfg.Discord.APIBase == "" {
		cfg.Discord.APIBase = defaults.Discord.APIBase
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = defaults.Store.Driver
	}
	if cfg.Store.Redis.KeyPrefix == "" {
		cfg.Store.Redis.KeyPrefix = defaults.Store.Redis.KeyPrefix
	}

	if cfg.FollowUp.PollInterval == 0 {
		cfg.FollowUp.PollInterval = defaults.FollowUp.PollInterval
	}
	if cfg.FollowUp.MaxAttempts == 0 {
		cfg.FollowUp.MaxAttempts = defaults.FollowUp.MaxAttempts
	}
	if cfg.FollowUp.BackoffBase == 0 {
		cfg.FollowUp.BackoffBase = defaults.FollowUp.BackoffBase
	}

	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs validation on the configuration and parses the key.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if f := strings.ToLower(cfg.Service.LogFormat); f != "json" && f != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if _, _, err := net.SplitHostPort(cfg.Server.Listen); err != nil {
		return fmt.Errorf("server.listen %q: %w", cfg.Server.Listen, err)
	}
	if !strings.HasPrefix(cfg.Server.Path, "/") || cfg.Server.Path == "/" {
		return fmt.Errorf("server.path must start with / and not be the root (got %q)", cfg.Server.Path)
	}
	if cfg.Server.Path == "/metrics" {
		return fmt.Errorf("server.path must not collide with /metrics")
	}
	if _, err := ParseByteSize(cfg.Server.MaxBodySize); err != nil {
		return fmt.Errorf("server.max_body_size %q: %w", cfg.Server.MaxBodySize, err)
	}
	if cfg.Server.MaxTimestampSkew < 0 {
		return fmt.Errorf("server.max_timestamp_skew must not be negative")
	}
	if cfg.Server.RouteTimeout < 0 {
		return fmt.Errorf("server.route_timeout must not be negative")
	}

	key, err := ParsePublicKey(cfg.Discord.PublicKey)
	if err != nil {
		return err
	}
	cfg.PublicKey = key

	if !strings.HasPrefix(cfg.Discord.APIBase, "https://") && !strings.HasPrefix(cfg.Discord.APIBase, "http://") {
		return fmt.Errorf("discord.api_base must be an http(s) URL (got %q)", cfg.Discord.APIBase)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	switch cfg.Store.Driver {
	case "sqlite", "memory":
	case "redis":
		if cfg.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required when store.driver is redis")
		}
		if cfg.Store.Redis.DB < 0 {
			return fmt.Errorf("store.redis.db must not be negative")
		}
	default:
		return fmt.Errorf("store.driver must be one of: sqlite, redis, memory (got %q)", cfg.Store.Driver)
	}

	if cfg.FollowUp.PollInterval <= 0 {
		return fmt.Errorf("followup.poll_interval must be positive")
	}
	if cfg.FollowUp.MaxAttempts <= 0 {
		return fmt.Errorf("followup.max_attempts must be positive")
	}
	if cfg.FollowUp.BackoffBase <= 0 {
		return fmt.Errorf("followup.backoff_base must be positive")
	}
	if cfg.FollowUp.RatePerSecond < 0 || cfg.FollowUp.Burst < 0 {
		return fmt.Errorf("followup.rate_per_second and followup.burst must not be negative")
	}

	return nil
}

// ParseByteSize parses size strings like "1MB", "512KB" or "2048576" to bytes.
func ParseByteSize(size string) (int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}
