// Package config loads racelog settings from an optional YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// MinQuotaBytes is the smallest accepted storage quota.
const MinQuotaBytes = 64 * 1024

// Config is the top-level configuration.
type Config struct {
	Database    string      `yaml:"database"`
	DeviceName  string      `yaml:"device_name"`
	Persistence Persistence `yaml:"persistence"`
}

// Persistence tunes flushing, retries and the quota probe.
type Persistence struct {
	Debounce      time.Duration `yaml:"debounce"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	QuotaBytes    int64         `yaml:"quota_bytes"`
	WarnRatio     float64       `yaml:"warn_ratio"`
	ProbeSchedule string        `yaml:"probe_schedule"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: "racelog.db",
		Persistence: Persistence{
			Debounce:      100 * time.Millisecond,
			MaxRetries:    3,
			RetryDelay:    250 * time.Millisecond,
			QuotaBytes:    10 * 1024 * 1024,
			WarnRatio:     0.9,
			ProbeSchedule: "@every 1m",
		},
	}
}

// Load reads path over the defaults. An empty path returns Default().
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database must not be empty"))
	}
	p := c.Persistence
	if p.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("persistence.debounce must be positive, got %s", p.Debounce))
	}
	if p.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("persistence.max_retries must not be negative, got %d", p.MaxRetries))
	}
	if p.RetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("persistence.retry_delay must be positive, got %s", p.RetryDelay))
	}
	if p.WarnRatio <= 0 || p.WarnRatio > 1 {
		errs = append(errs, fmt.Errorf("persistence.warn_ratio must be in (0,1], got %g", p.WarnRatio))
	}
	if p.QuotaBytes < MinQuotaBytes {
		errs = append(errs, fmt.Errorf("persistence.quota_bytes must be at least %d, got %d", MinQuotaBytes, p.QuotaBytes))
	}
	if _, err := cron.ParseStandard(p.ProbeSchedule); err != nil {
		errs = append(errs, fmt.Errorf("persistence.probe_schedule: %w", err))
	}
	return errors.Join(errs...)
}
