package webhook

import (
	"fmt"

	"github.com/mattjoyce/slashgate/internal/config"
)

// FromGlobalConfig converts the server section of config.Config to webhook.Config.
func FromGlobalConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is nil")
	}

	maxBodySize, err := config.ParseByteSize(cfg.Server.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("invalid max_body_size %q: %w", cfg.Server.MaxBodySize, err)
	}

	return Config{
		Listen:        cfg.Server.Listen,
		Path:          cfg.Server.Path,
		MaxBodySize:   maxBodySize,
		RouteTimeout:  cfg.Server.RouteTimeout,
		EnableMetrics: cfg.Server.Metrics,
	}, nil
}
