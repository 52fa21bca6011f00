// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"time"

	"github.com/joeycumines/logiface"
)

// Scheduler owns one of each container, and ticks them together, in a
// fixed order:
//
//  1. Timeouts
//  2. Events
//  3. Posts
//  4. Timers
//  5. Steps
//  6. Commands
//
// Tick is driven either by the host (e.g. once per rendered frame), or by a
// Runner. The containers may be used directly, from any goroutine.
type Scheduler struct {
	Timeouts *ResponseTimeout
	Events   *EventList
	Posts    *PostEventList
	Timers   *TimerList
	Steps    *TickList[*StepSequence]
	Commands *CommandList

	log     *logger
	clock   Clock
	metrics *metrics
	guard   tickGuard
}

// New returns a new Scheduler, configured by the given options.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg.logger, cfg.limiter)

	s := &Scheduler{
		Timeouts: newResponseTimeout(log),
		Events:   newEventList(log),
		Posts:    newPostEventList(log),
		Timers:   newTimerList(log),
		Steps:    newTickList[*StepSequence](log),
		Commands: newCommandList(log),
		log:      log,
		clock:    cfg.clock,
	}
	if cfg.metricsEnabled {
		s.metrics = new(metrics)
	}

	return s, nil
}

// Logger returns the logger shared by the containers, which may be nil.
func (s *Scheduler) Logger() *logiface.Logger[logiface.Event] {
	return s.log.logger()
}

// Clock returns the clock used by step sequences started by StartSteps.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Tick advances every container by delta. A negative delta is treated as
// zero.
//
// Calling Tick from within a callback run by any of the containers is
// ignored as a whole, with a warning, so no container is advanced twice in
// one frame.
func (s *Scheduler) Tick(delta time.Duration) {
	if !s.guard.enter(s.log, `scheduler`) {
		return
	}
	defer s.guard.exit()

	delta = clampDelta(delta)

	var start time.Time
	if s.metrics != nil {
		start = time.Now()
	}

	var c tickCounts
	c.timeouts = s.Timeouts.tick(delta)
	c.events = s.Events.tick(delta)
	c.posts = s.Posts.tick(delta)
	c.timers = s.Timers.tick(delta)
	c.steps = s.Steps.tick(delta)
	c.commands = s.Commands.tick()

	if s.metrics != nil {
		s.metrics.record(delta, time.Since(start), c)
	}
}

// StartSteps starts a step sequence, rooted at the given cursor, to be
// advanced starting with the next tick. An empty name is replaced with a
// random UUID. Returns the name of the sequence.
func (s *Scheduler) StartSteps(name string, root Cursor) (string, error) {
	seq, err := NewStepSequence(name, root, s.clock)
	if err != nil {
		return ``, err
	}
	name, err = s.Steps.Add(seq)
	if err != nil {
		return ``, err
	}
	s.log.debug().
		Str(`name`, name).
		Log(`step sequence started`)
	return name, nil
}

// StopSteps stops every step sequence with the given name, returning false
// if there was none.
func (s *Scheduler) StopSteps(name string) bool {
	return s.Steps.RemoveByName(name)
}

// Clear empties every container, and is intended for use on shutdown.
// Callbacks are not invoked. Deferred clears (events, commands) take
// effect on the next tick.
func (s *Scheduler) Clear() {
	s.Timeouts.Clear()
	s.Events.ClearAll()
	s.Posts.Clear()
	s.Timers.Clear()
	s.Steps.Clear()
	s.Commands.Clear()
	s.log.debug().Log(`scheduler cleared`)
}

// Metrics returns a copy of the current metrics, which will be the zero
// value unless WithMetrics was enabled.
func (s *Scheduler) Metrics() Metrics {
	return s.metrics.snapshot()
}
