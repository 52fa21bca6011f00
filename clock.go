// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"time"
)

// Clock is the time source used for wall-clock based waits, and for
// measuring frame deltas.
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock backed by time.Now, which includes a monotonic
// reading.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// DeltaTimer measures the time elapsed between frames, for hosts that don't
// provide their own delta. Negative drift is clamped to zero, and, if max is
// positive, long stalls (e.g. a debugger pause) are clamped to max.
//
// A DeltaTimer is not safe for concurrent use.
type DeltaTimer struct {
	clock   Clock
	prev    time.Time
	max     time.Duration
	started bool
}

// NewDeltaTimer returns a DeltaTimer reading from clock, which defaults to
// SystemClock if nil.
func NewDeltaTimer(clock Clock, max time.Duration) *DeltaTimer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &DeltaTimer{clock: clock, max: max}
}

// Reset restarts measurement, the next call to Next returns zero.
func (x *DeltaTimer) Reset() { x.started = false }

// Next returns the time elapsed since the previous call. The first call
// returns zero.
func (x *DeltaTimer) Next() time.Duration {
	now := x.clock.Now()
	if !x.started {
		x.prev, x.started = now, true
		return 0
	}
	d := clampDelta(now.Sub(x.prev))
	x.prev = now
	if x.max > 0 && d > x.max {
		d = x.max
	}
	return d
}
