package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Port != 9220 {
		t.Fatalf("port: %d", cfg.Port)
	}
	if cfg.CompletedRetention != 7*24*time.Hour || cfg.FailedRetention != 30*24*time.Hour {
		t.Fatalf("retention defaults: %+v", cfg)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("IROND_PORT", "8080")
	t.Setenv("IROND_LOG", "debug")
	t.Setenv("IROND_STATE_DIR", "/tmp/irond")
	t.Setenv("IROND_SETTLE_DELAY", "250ms")
	cfg := FromEnv()
	if cfg.Port != 8080 {
		t.Fatalf("port: %d", cfg.Port)
	}
	if cfg.LogLevel != zerolog.DebugLevel {
		t.Fatalf("level: %v", cfg.LogLevel)
	}
	if cfg.StateDir != "/tmp/irond" {
		t.Fatalf("state dir: %s", cfg.StateDir)
	}
	if cfg.SettleDelay != 250*time.Millisecond {
		t.Fatalf("settle: %v", cfg.SettleDelay)
	}
}

func TestFromEnvIgnoresBadValues(t *testing.T) {
	t.Setenv("IROND_PORT", "zero")
	t.Setenv("IROND_CLEANUP_INTERVAL", "-3h")
	cfg := FromEnv()
	if cfg.Port != Defaults().Port {
		t.Fatalf("port should fall back: %d", cfg.Port)
	}
	if cfg.CleanupInterval != Defaults().CleanupInterval {
		t.Fatalf("interval should fall back: %v", cfg.CleanupInterval)
	}
}
