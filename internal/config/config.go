package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Port     int
	LogLevel zerolog.Level

	// StateDir holds irond-owned state (pool metadata). EtcDir is the root
	// for system config files (mdadm.conf, irond schedules).
	StateDir string
	EtcDir   string

	// SettleDelay is the wait between array creation and mkfs.
	SettleDelay time.Duration

	// Operation history housekeeping.
	CleanupInterval    time.Duration
	StaleAfter         time.Duration
	CompletedRetention time.Duration
	FailedRetention    time.Duration
}

func Defaults() Config {
	return Config{
		Port:               9220,
		LogLevel:           zerolog.InfoLevel,
		StateDir:           "/var/lib/irond",
		EtcDir:             "/etc",
		SettleDelay:        5 * time.Second,
		CleanupInterval:    time.Hour,
		StaleAfter:         12 * time.Hour,
		CompletedRetention: 7 * 24 * time.Hour,
		FailedRetention:    30 * 24 * time.Hour,
	}
}

func FromEnv() Config {
	cfg := Defaults()
	if v := os.Getenv("IROND_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Port = p
		}
	}
	if v := os.Getenv("IROND_LOG"); v != "" {
		if l, err := zerolog.ParseLevel(v); err == nil {
			cfg.LogLevel = l
		}
	}
	if v := os.Getenv("IROND_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("IROND_ETC_DIR"); v != "" {
		cfg.EtcDir = v
	}
	if d, ok := envDuration("IROND_SETTLE_DELAY"); ok {
		cfg.SettleDelay = d
	}
	if d, ok := envDuration("IROND_CLEANUP_INTERVAL"); ok {
		cfg.CleanupInterval = d
	}
	if d, ok := envDuration("IROND_STALE_AFTER"); ok {
		cfg.StaleAfter = d
	}
	if d, ok := envDuration("IROND_COMPLETED_RETENTION"); ok {
		cfg.CompletedRetention = d
	}
	if d, ok := envDuration("IROND_FAILED_RETENTION"); ok {
		cfg.FailedRetention = d
	}
	return cfg
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
