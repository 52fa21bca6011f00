// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"slices"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

// TickList holds tasks that are advanced once per Tick. Add, Remove and the
// read helpers are safe to call from any goroutine, including from within
// Task.Advance. Tick must be driven by a single goroutine at a time.
//
// Tasks are staged: an added task is pending until the next Tick, and so is
// never advanced during the tick in which it was added. Removing an active
// task only marks it done, and it is dropped by the following Tick, which
// keeps removal safe during an in-progress sweep.
//
// The zero value is ready to use, and logs nothing.
type TickList[T Task] struct {
	log     *logger
	pending []T
	active  []T
	// mu guards pending, and the structure of active
	mu sync.Mutex
	// serializes Tick, the only writer of active's structure
	guard tickGuard
}

// NewTickList returns a TickList logging to the given logger, which may be
// nil.
func NewTickList[T Task](l *logiface.Logger[logiface.Event]) *TickList[T] {
	return &TickList[T]{log: newLogger(l, nil)}
}

func newTickList[T Task](log *logger) *TickList[T] {
	return &TickList[T]{log: log}
}

// Add stages task, to be advanced starting with the next Tick, and returns
// its name. ErrNilTask is returned for a nil task, and ErrTaskNotComparable
// for a task that could not later be matched by Remove.
func (x *TickList[T]) Add(task T) (string, error) {
	if isNil(task) {
		return ``, ErrNilTask
	}
	if !isComparable(task) {
		return ``, ErrTaskNotComparable
	}

	x.mu.Lock()
	x.pending = append(x.pending, task)
	x.mu.Unlock()

	return task.Name(), nil
}

// Remove removes task. An active task is marked done, and will not be
// advanced again, while a pending task is dropped outright. Returns false
// if task was not found, or is not comparable.
func (x *TickList[T]) Remove(task T) bool {
	if isNil(task) || !isComparable(task) {
		return false
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	for _, t := range x.active {
		if any(t) == any(task) {
			if t.Done() {
				return false
			}
			t.MarkDone()
			return true
		}
	}

	if i := slices.IndexFunc(x.pending, func(t T) bool { return any(t) == any(task) }); i >= 0 {
		x.pending = slices.Delete(x.pending, i, i+1)
		return true
	}

	return false
}

// RemoveByName removes every task named name, as per Remove. Names are not
// expected to be unique, but a single warning is logged if more than one
// task matched. Returns false if nothing matched.
func (x *TickList[T]) RemoveByName(name string) bool {
	x.mu.Lock()
	var n int
	for _, t := range x.active {
		if !t.Done() && t.Name() == name {
			t.MarkDone()
			n++
		}
	}
	x.pending = slices.DeleteFunc(x.pending, func(t T) bool {
		if t.Name() == name {
			n++
			return true
		}
		return false
	})
	x.mu.Unlock()

	if n > 1 {
		x.log.warning(nil).
			Str(`name`, name).
			Int(`count`, n).
			Log(`too many items with the same name`)
	}

	return n != 0
}

// Exists reports whether a task named name is pending, or active and not
// done.
func (x *TickList[T]) Exists(name string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, t := range x.active {
		if !t.Done() && t.Name() == name {
			return true
		}
	}
	for _, t := range x.pending {
		if t.Name() == name {
			return true
		}
	}
	return false
}

// Len returns the number of pending tasks, plus active tasks not yet done.
func (x *TickList[T]) Len() (n int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, t := range x.active {
		if !t.Done() {
			n++
		}
	}
	return n + len(x.pending)
}

// Clear drops all pending tasks, and marks all active tasks done.
func (x *TickList[T]) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	clear(x.pending)
	x.pending = x.pending[:0]
	for _, t := range x.active {
		t.MarkDone()
	}
}

// ForEach calls fn for each active task that is not done, in insertion
// order. Pending tasks are not visited. The tasks are copied out before fn
// is called, so fn may use the list.
func (x *TickList[T]) ForEach(fn func(task T)) {
	x.mu.Lock()
	tasks := make([]T, 0, len(x.active))
	for _, t := range x.active {
		if !t.Done() {
			tasks = append(tasks, t)
		}
	}
	x.mu.Unlock()

	for _, t := range tasks {
		fn(t)
	}
}

// Tick promotes pending tasks, drops tasks that are done, then advances the
// remaining tasks, in insertion order. The list mutex is not held while
// tasks are advanced. A task that panics is marked done.
//
// Calling Tick from within Task.Advance, on the same list, is ignored.
func (x *TickList[T]) Tick(delta time.Duration) {
	x.tick(delta)
}

// tick returns the number of tasks advanced.
func (x *TickList[T]) tick(delta time.Duration) (advanced int) {
	if !x.guard.enter(x.log, `tick list`) {
		return 0
	}
	defer x.guard.exit()

	delta = clampDelta(delta)

	x.mu.Lock()
	if len(x.pending) != 0 {
		x.active = append(x.active, x.pending...)
		clear(x.pending)
		x.pending = x.pending[:0]
	}
	x.active = slices.DeleteFunc(x.active, func(t T) bool { return t.Done() })
	active := x.active
	x.mu.Unlock()

	// only this method modifies the structure of active, so the slice is
	// stable until it returns
	for _, t := range active {
		if t.Done() {
			continue
		}
		x.advance(t, delta)
		advanced++
	}

	return advanced
}

func (x *TickList[T]) advance(t T, delta time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			t.MarkDone()
			x.log.recovered(t.Name(), r)
		}
	}()
	t.Advance(delta)
}
