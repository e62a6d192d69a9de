package webhook

import (
	"testing"
	"time"

	"github.com/mattjoyce/slashgate/internal/config"
)

func TestFromGlobalConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Listen = "127.0.0.1:9000"
	cfg.Server.Path = "/discord"
	cfg.Server.MaxBodySize = "64KB"
	cfg.Server.RouteTimeout = time.Second

	got, err := FromGlobalConfig(cfg)
	if err != nil {
		t.Fatalf("FromGlobalConfig: %v", err)
	}

	want := Config{
		Listen:        "127.0.0.1:9000",
		Path:          "/discord",
		MaxBodySize:   64 * 1024,
		RouteTimeout:  time.Second,
		EnableMetrics: true,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFromGlobalConfig_Errors(t *testing.T) {
	if _, err := FromGlobalConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}

	cfg := config.Defaults()
	cfg.Server.MaxBodySize = "huge"
	if _, err := FromGlobalConfig(cfg); err == nil {
		t.Error("expected error for bad max_body_size")
	}
}
