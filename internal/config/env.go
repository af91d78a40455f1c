package config

import (
	"os"
	"strconv"
)

// FromEnv overlays CONVEYOR_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("CONVEYOR_DISPATCHER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DispatcherCount = n
		}
	}
	if v := os.Getenv("CONVEYOR_SAMPLE_INTERVAL_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.SampleIntervalMs = n
		}
	}
	if v := os.Getenv("CONVEYOR_CLAIM_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.ClaimTimeoutMs = n
		}
	}
	if v := os.Getenv("CONVEYOR_SWEEP_INTERVAL_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.SweepIntervalMs = n
		}
	}
}
