// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Default runner timing.
const (
	// DefaultTickInterval is roughly 30 ticks per second.
	DefaultTickInterval = 33 * time.Millisecond

	// DefaultMaxDelta bounds the delta measured after a long stall.
	DefaultMaxDelta = 300 * time.Millisecond
)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	logger         *logiface.Logger[logiface.Event]
	clock          Clock
	limiter        *catrate.Limiter
	loggerSet      bool
	metricsEnabled bool
}

// runnerOptions holds configuration options for Runner creation.
type runnerOptions struct {
	tickInterval time.Duration
	maxDelta     time.Duration
	fixedDelta   time.Duration
}

// --- Scheduler Options ---

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *optionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithLogger sets the logger used by every container of the Scheduler.
// A nil logger disables logging. Defaults to DefaultLogger.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.logger = l
		opts.loggerSet = true
		return nil
	}}
}

// WithClock sets the clock used to evaluate wall clock waits, such as
// WaitUntil. Defaults to SystemClock.
func WithClock(clock Clock) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		if clock == nil {
			return errors.New(`ticksched: nil clock`)
		}
		opts.clock = clock
		return nil
	}}
}

// WithWarningRateLimit rate limits warnings that may repeat at frame rate,
// such as response timeouts, per category (e.g. per message type). The
// rates map sliding windows to the maximum number of warnings within each
// window, as per catrate.NewLimiter. An empty map disables rate limiting,
// which is the default.
func WithWarningRateLimit(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *schedulerOptions) (err error) {
		if len(rates) == 0 {
			opts.limiter = nil
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf(`ticksched: invalid warning rate limit: %v`, r)
			}
		}()
		opts.limiter = catrate.NewLimiter(rates)
		return nil
	}}
}

// WithMetrics enables runtime metrics collection on the Scheduler.
// When enabled, metrics can be accessed via Scheduler.Metrics().
// This adds the cost of reading the clock twice per tick.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *schedulerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to schedulerOptions.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	if !cfg.loggerSet {
		cfg.logger = DefaultLogger()
	}
	if cfg.clock == nil {
		cfg.clock = SystemClock{}
	}
	return cfg, nil
}

// --- Runner Options ---

// RunnerOption configures a Runner instance.
type RunnerOption interface {
	applyRunner(*runnerOptions) error
}

// runnerOptionImpl implements RunnerOption.
type runnerOptionImpl struct {
	applyRunnerFunc func(*runnerOptions) error
}

func (o *runnerOptionImpl) applyRunner(opts *runnerOptions) error {
	return o.applyRunnerFunc(opts)
}

// WithTickInterval sets how often the Runner ticks the Scheduler.
// Defaults to DefaultTickInterval.
func WithTickInterval(interval time.Duration) RunnerOption {
	return &runnerOptionImpl{func(opts *runnerOptions) error {
		if interval <= 0 {
			return fmt.Errorf(`ticksched: invalid tick interval: %s`, interval)
		}
		opts.tickInterval = interval
		return nil
	}}
}

// WithMaxDelta bounds the measured delta passed to each tick, which
// prevents a burst of expiries after the process was paused. Zero disables
// the bound. Defaults to DefaultMaxDelta.
func WithMaxDelta(d time.Duration) RunnerOption {
	return &runnerOptionImpl{func(opts *runnerOptions) error {
		if d < 0 {
			return fmt.Errorf(`ticksched: invalid max delta: %s`, d)
		}
		opts.maxDelta = d
		return nil
	}}
}

// WithFixedDelta passes the same delta to every tick, rather than measuring
// the time elapsed, e.g. for deterministic simulation. Zero (the default)
// measures the delta.
func WithFixedDelta(delta time.Duration) RunnerOption {
	return &runnerOptionImpl{func(opts *runnerOptions) error {
		if delta < 0 {
			return fmt.Errorf(`ticksched: invalid fixed delta: %s`, delta)
		}
		opts.fixedDelta = delta
		return nil
	}}
}

// resolveRunnerOptions applies RunnerOption instances to runnerOptions.
func resolveRunnerOptions(opts []RunnerOption) (*runnerOptions, error) {
	cfg := &runnerOptions{
		tickInterval: DefaultTickInterval,
		maxDelta:     DefaultMaxDelta,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRunner(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
