// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

type timerKind uint8

const (
	timerOnce timerKind = iota
	timerLoop
	timerExponent
)

// exponentStart is the first wait of an exponent timer, which then doubles.
const exponentStart = time.Second

// Timer is a named Task that runs a callback after a delay. Depending on
// how it was constructed, it then either completes, repeats at a fixed
// interval, or repeats with a doubling interval.
//
// Timers are normally managed by a TimerList, which allows at most one
// timer per name.
type Timer struct {
	TaskState
	callback  func()
	remaining time.Duration
	// loop interval, or current exponent interval
	interval time.Duration
	limit    time.Duration
	kind     timerKind
}

var _ Task = (*Timer)(nil)

// NewTimer returns a Timer that runs callback once, after delay.
func NewTimer(name string, delay time.Duration, callback func()) (*Timer, error) {
	return newTimer(name, timerOnce, delay, 0, 0, callback)
}

// NewLoopTimer returns a Timer that runs callback after delay, then every
// interval, until removed.
func NewLoopTimer(name string, delay, interval time.Duration, callback func()) (*Timer, error) {
	return newTimer(name, timerLoop, delay, interval, 0, callback)
}

// NewExponentTimer returns a Timer that runs callback after one second,
// then waits twice as long as the previous time (2s, 4s, ...), up to limit,
// until removed. Intended for retrying with backoff.
func NewExponentTimer(name string, limit time.Duration, callback func()) (*Timer, error) {
	return newTimer(name, timerExponent, exponentStart, exponentStart, limit, callback)
}

func newTimer(name string, kind timerKind, delay, interval, limit time.Duration, callback func()) (*Timer, error) {
	if name == `` {
		return nil, ErrEmptyName
	}
	if callback == nil {
		return nil, ErrNilCallback
	}
	return &Timer{
		TaskState: TaskState{name: name},
		callback:  callback,
		remaining: delay,
		interval:  interval,
		limit:     limit,
		kind:      kind,
	}, nil
}

// Advance implements Task.
func (x *Timer) Advance(delta time.Duration) {
	if x.Done() {
		return
	}

	if x.remaining > 0 {
		x.remaining -= delta
		if x.remaining > 0 {
			return
		}
	}

	switch x.kind {
	case timerLoop:
		x.remaining = x.interval
	case timerExponent:
		if x.interval < x.limit {
			x.interval = min(x.interval*2, x.limit)
		}
		x.remaining = x.interval
	default:
		x.MarkDone()
	}

	x.callback()
}

func (x *Timer) String() string {
	switch x.kind {
	case timerLoop:
		return fmt.Sprintf("%q loop timer, delay %s, interval %s", x.Name(), x.remaining, x.interval)
	case timerExponent:
		return fmt.Sprintf("%q exponent timer, limit %s", x.Name(), x.limit)
	default:
		return fmt.Sprintf("%q timer, delay %s", x.Name(), x.remaining)
	}
}

// TimerList holds timers, advanced on each Tick, with at most one timer per
// name. All methods other than Tick are safe to call from any goroutine,
// including from within a timer's callback.
type TimerList struct {
	log  *logger
	list *TickList[*Timer]
	// serializes replacement by name
	mu sync.Mutex
}

// NewTimerList returns a TimerList logging to the given logger, which may
// be nil.
func NewTimerList(l *logiface.Logger[logiface.Event]) *TimerList {
	return newTimerList(newLogger(l, nil))
}

func newTimerList(log *logger) *TimerList {
	return &TimerList{log: log, list: newTickList[*Timer](log)}
}

// Add adds timer, first removing any timer with the same name.
func (x *TimerList) Add(timer *Timer) error {
	if timer == nil {
		return ErrNilTask
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	replaced := x.list.RemoveByName(timer.Name())
	if _, err := x.list.Add(timer); err != nil {
		return err
	}

	x.log.debug().
		Str(`timer`, timer.String()).
		Bool(`replaced`, replaced).
		Log(`timer added`)

	return nil
}

// Remove removes the timer with the given name, returning false if there
// was none.
func (x *TimerList) Remove(name string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.list.RemoveByName(name) {
		return false
	}
	x.log.debug().
		Str(`name`, name).
		Log(`timer deleted`)
	return true
}

// Exists reports whether a timer with the given name is scheduled.
func (x *TimerList) Exists(name string) bool { return x.list.Exists(name) }

// Len returns the number of scheduled timers.
func (x *TimerList) Len() int { return x.list.Len() }

// Clear removes every timer.
func (x *TimerList) Clear() { x.list.Clear() }

// Tick advances every timer by delta.
func (x *TimerList) Tick(delta time.Duration) { x.list.Tick(delta) }

func (x *TimerList) tick(delta time.Duration) int { return x.list.tick(delta) }
