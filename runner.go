// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
)

// Runner drives a Scheduler from a dedicated goroutine, for hosts that do
// not have a frame loop of their own. Each tick is passed either the time
// elapsed since the previous tick, bounded by the max delta, or a fixed
// delta.
type Runner struct {
	scheduler *Scheduler
	opts      *runnerOptions
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	state     runnerState
	// goroutine id of Run, or 0
	gid atomic.Int64
}

// NewRunner returns a Runner for s, configured by the given options.
func NewRunner(s *Scheduler, opts ...RunnerOption) (*Runner, error) {
	if s == nil {
		return nil, ErrNilScheduler
	}
	cfg, err := resolveRunnerOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Runner{
		scheduler: s,
		opts:      cfg,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Scheduler returns the scheduler being driven.
func (r *Runner) Scheduler() *Scheduler { return r.scheduler }

// State returns the current state of the runner.
func (r *Runner) State() RunnerState { return r.state.Load() }

// Done returns a channel that is closed once Run returns, or once the
// runner is stopped without having been run.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Run ticks the scheduler until ctx is done, or the runner is stopped by
// Shutdown or Close. A runner may only be run once. Returns nil if
// stopped, or ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	if r.isTickGoroutine() {
		return ErrReentrantRun
	}

	if !r.state.TryTransition(StateAwake, StateRunning) {
		if r.state.IsTerminal() {
			return ErrRunnerTerminated
		}
		return ErrRunnerAlreadyRunning
	}

	defer close(r.done)
	defer r.state.Store(StateTerminated)

	r.gid.Store(goid.Get())
	defer r.gid.Store(0)

	err := r.run(ctx)
	r.scheduler.log.info().
		Bool(`cancelled`, err != nil).
		Log(`runner stopped`)
	return err
}

func (r *Runner) run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.tickInterval)
	defer ticker.Stop()

	deltas := NewDeltaTimer(r.scheduler.clock, r.opts.maxDelta)
	deltas.Next()

	r.scheduler.log.info().
		Dur(`interval`, r.opts.tickInterval).
		Dur(`max_delta`, r.opts.maxDelta).
		Dur(`fixed_delta`, r.opts.fixedDelta).
		Log(`runner started`)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case <-ticker.C:
		}

		// a stop requested by the previous tick takes priority
		select {
		case <-r.stop:
			return nil
		default:
		}

		delta := r.opts.fixedDelta
		if delta == 0 {
			delta = deltas.Next()
		}

		r.scheduler.Tick(delta)
	}
}

// Shutdown stops the runner, waits for Run to return, then clears the
// scheduler. If the runner was never started, the scheduler is cleared
// immediately.
func (r *Runner) Shutdown(ctx context.Context) error {
	if r.isTickGoroutine() {
		return ErrReentrantRun
	}

	for {
		current := r.state.Load()
		if current == StateTerminated || current == StateTerminating {
			return ErrRunnerTerminated
		}
		if current == StateAwake {
			if r.state.TryTransition(StateAwake, StateTerminated) {
				r.signalStop()
				close(r.done)
				r.scheduler.Clear()
				return nil
			}
			continue
		}
		if r.state.TryTransition(current, StateTerminating) {
			break
		}
	}

	r.signalStop()

	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.scheduler.Clear()

	return nil
}

// Close stops the runner without waiting for Run to return, and without
// clearing the scheduler. It is safe to call from within a tick.
func (r *Runner) Close() error {
	for {
		current := r.state.Load()
		if current == StateTerminated || current == StateTerminating {
			return ErrRunnerTerminated
		}
		if current == StateAwake {
			if !r.state.TryTransition(StateAwake, StateTerminated) {
				continue
			}
			close(r.done)
		} else if !r.state.TryTransition(current, StateTerminating) {
			continue
		}
		r.signalStop()
		return nil
	}
}

func (r *Runner) signalStop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// isTickGoroutine reports whether the caller is the goroutine within Run.
func (r *Runner) isTickGoroutine() bool {
	id := r.gid.Load()
	return id != 0 && id == goid.Get()
}
