package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StageConfig describes one pipeline stage queue and its alert thresholds.
type StageConfig struct {
	Name string `json:"name" yaml:"name"`
	// RaiseThreshold is the queue depth at which a bottleneck alert opens.
	RaiseThreshold int `json:"raiseThreshold" yaml:"raiseThreshold"`
	// ClearThreshold is the depth at or below which an open alert closes.
	// Must be strictly lower than RaiseThreshold (hysteresis band).
	ClearThreshold int `json:"clearThreshold" yaml:"clearThreshold"`
	// RequiredSlots are the deliverable names a job folder opened at this
	// stage must collect before it is complete.
	RequiredSlots []string `json:"requiredSlots" yaml:"requiredSlots"`
}

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Stages           []StageConfig `json:"stages" yaml:"stages"`
	DispatcherCount  int           `json:"dispatcherCount" yaml:"dispatcherCount"`
	SampleIntervalMs int64         `json:"sampleIntervalMs" yaml:"sampleIntervalMs"`
	// ClaimTimeoutMs is the age after which a claimed-but-uncompleted queue
	// item is considered abandoned and requeued by the sweeper.
	ClaimTimeoutMs int64 `json:"claimTimeoutMs" yaml:"claimTimeoutMs"`
	// SweepIntervalMs controls how often the requeue sweeper runs.
	SweepIntervalMs int64 `json:"sweepIntervalMs" yaml:"sweepIntervalMs"`
}

// Default returns built-in defaults. The stage names mirror the registry's
// stage enum; thresholds generalize the "queue >20 = bottleneck, >30 =
// escalate" rules into per-stage pairs.
func Default() Config {
	return Config{
		Stages: []StageConfig{
			{Name: "spec", RaiseThreshold: 30, ClearThreshold: 15},
			{Name: "manager", RaiseThreshold: 20, ClearThreshold: 10, RequiredSlots: []string{"team-a", "team-b", "team-c"}},
			{Name: "review", RaiseThreshold: 30, ClearThreshold: 15},
			{Name: "migration", RaiseThreshold: 15, ClearThreshold: 8},
		},
		DispatcherCount:  1,
		SampleIntervalMs: 5_000,
		ClaimTimeoutMs:   300_000,
		SweepIntervalMs:  30_000,
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path is
// empty, returns defaults. The loaded config is validated before use.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write marshals cfg to a JSON or YAML file by extension.
func Write(cfg Config, path string) error {
	var b []byte
	var err error
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(cfg)
	default:
		b, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Validate rejects configurations the monitor or allocator cannot honor.
func (c Config) Validate() error {
	if len(c.Stages) == 0 {
		return fmt.Errorf("config: at least one stage required")
	}
	seen := make(map[string]struct{}, len(c.Stages))
	for _, s := range c.Stages {
		if s.Name == "" {
			return fmt.Errorf("config: stage with empty name")
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("config: duplicate stage %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.RaiseThreshold > 0 && s.ClearThreshold >= s.RaiseThreshold {
			return fmt.Errorf("config: stage %q clearThreshold %d must be below raiseThreshold %d",
				s.Name, s.ClearThreshold, s.RaiseThreshold)
		}
	}
	if c.DispatcherCount < 1 {
		return fmt.Errorf("config: dispatcherCount must be >= 1")
	}
	return nil
}

// Stage returns the config for a named stage, if present.
func (c Config) Stage(name string) (StageConfig, bool) {
	for _, s := range c.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageConfig{}, false
}

// StageNames returns the configured stage names in declared order.
func (c Config) StageNames() []string {
	names := make([]string, len(c.Stages))
	for i, s := range c.Stages {
		names[i] = s.Name
	}
	return names
}
