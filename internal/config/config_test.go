package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Defaults()
	if cfg.HTTPAddr != want.HTTPAddr || cfg.RateLimit != want.RateLimit || cfg.DLQThreshold != want.DLQThreshold {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	os.Setenv("DISPATCH_RATE_LIMIT", "100")
	os.Setenv("DISPATCH_HTTP_ADDR", ":9090")
	defer os.Unsetenv("DISPATCH_RATE_LIMIT")
	defer os.Unsetenv("DISPATCH_HTTP_ADDR")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RateLimit != 100 {
		t.Fatalf("expected rate_limit=100, got %v", cfg.RateLimit)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected http_addr=:9090, got %v", cfg.HTTPAddr)
	}
}

func TestConfig_DurationHelpers(t *testing.T) {
	cfg := Config{
		ProcessingTimeoutMs:   5000,
		HeartbeatIntervalSec:  10,
		UnhealthyThresholdSec: 20,
	}
	if cfg.ProcessingTimeout() != 5*time.Second {
		t.Fatalf("expected 5s, got %v", cfg.ProcessingTimeout())
	}
	if cfg.HeartbeatInterval() != 10*time.Second {
		t.Fatalf("expected 10s, got %v", cfg.HeartbeatInterval())
	}
	if cfg.UnhealthyThreshold() != 20*time.Second {
		t.Fatalf("expected 20s, got %v", cfg.UnhealthyThreshold())
	}
}
