// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file based configuration of a Scheduler and its Runner.
//
// Example:
//
//	tick_interval: 33ms
//	max_delta: 300ms
//	log_level: warning
//	metrics: true
//	warning_rate_limits:
//	  - window: 1s
//	    count: 5
//	  - window: 1m
//	    count: 30
type Config struct {
	TickInterval      Duration    `yaml:"tick_interval"`
	MaxDelta          Duration    `yaml:"max_delta"`
	FixedDelta        Duration    `yaml:"fixed_delta"`
	LogLevel          string      `yaml:"log_level"`
	Metrics           bool        `yaml:"metrics"`
	WarningRateLimits []RateLimit `yaml:"warning_rate_limits,omitempty"`
}

// RateLimit is a single sliding window of a warning rate limit.
type RateLimit struct {
	Window Duration `yaml:"window"`
	Count  int      `yaml:"count"`
}

// Duration is a time.Duration that is represented in YAML as a string, in
// the format accepted by time.ParseDuration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// DefaultConfig returns the defaults, which match those of New and
// NewRunner.
func DefaultConfig() Config {
	return Config{
		TickInterval: Duration(DefaultTickInterval),
		MaxDelta:     Duration(DefaultMaxDelta),
		LogLevel:     `warning`,
	}
}

// ParseConfig decodes YAML, applied over DefaultConfig. Unknown fields are
// an error.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("ticksched: yaml unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the config file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("ticksched: read %s: %w", path, err)
	}
	return ParseConfig(data)
}

// Validate checks the config for values that would be rejected by New or
// NewRunner.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return errors.New("ticksched: invalid config: tick_interval must be positive")
	}
	if c.MaxDelta < 0 {
		return errors.New("ticksched: invalid config: max_delta must not be negative")
	}
	if c.FixedDelta < 0 {
		return errors.New("ticksched: invalid config: fixed_delta must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("ticksched: invalid config: %w", err)
	}
	for i, r := range c.WarningRateLimits {
		if r.Window <= 0 || r.Count <= 0 {
			return fmt.Errorf("ticksched: invalid config: warning_rate_limits[%d] must have a positive window and count", i)
		}
	}
	return nil
}

// Options converts the config to scheduler options, logging to w (stderr if
// nil) at the configured level.
func (c Config) Options(w io.Writer) ([]Option, error) {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("ticksched: invalid config: %w", err)
	}

	opts := []Option{
		WithLogger(NewLogger(w, level)),
		WithMetrics(c.Metrics),
	}

	if len(c.WarningRateLimits) != 0 {
		rates := make(map[time.Duration]int, len(c.WarningRateLimits))
		for _, r := range c.WarningRateLimits {
			rates[time.Duration(r.Window)] = r.Count
		}
		opts = append(opts, WithWarningRateLimit(rates))
	}

	return opts, nil
}

// RunnerOptions converts the config to runner options.
func (c Config) RunnerOptions() []RunnerOption {
	return []RunnerOption{
		WithTickInterval(time.Duration(c.TickInterval)),
		WithMaxDelta(time.Duration(c.MaxDelta)),
		WithFixedDelta(time.Duration(c.FixedDelta)),
	}
}
