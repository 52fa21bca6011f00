// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrNilTask is returned when a nil task is passed to a list.
	ErrNilTask = errors.New("ticksched: nil task")

	// ErrTaskNotComparable is returned when a task's dynamic type cannot be
	// compared with ==, e.g. a struct value with a slice field.
	ErrTaskNotComparable = errors.New("ticksched: task type is not comparable")

	// ErrNilCallback is returned when a nil callback or cursor is scheduled.
	ErrNilCallback = errors.New("ticksched: nil callback")

	// ErrEmptyName is returned when a named item (e.g. a timer) has no name.
	ErrEmptyName = errors.New("ticksched: empty name")

	// ErrNilScheduler is returned when a runner is created without a scheduler.
	ErrNilScheduler = errors.New("ticksched: nil scheduler")

	// ErrRunnerAlreadyRunning is returned when Run is called on a runner that is already running.
	ErrRunnerAlreadyRunning = errors.New("ticksched: runner is already running")

	// ErrRunnerTerminated is returned when operations are attempted on a terminated runner.
	ErrRunnerTerminated = errors.New("ticksched: runner has been terminated")

	// ErrReentrantRun is returned when Run or Shutdown is called from the tick goroutine.
	ErrReentrantRun = errors.New("ticksched: cannot call Run or Shutdown from within a tick")
)

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
	// Name identifies what panicked, e.g. a task name.
	Name string
}

// Error implements the error interface.
func (e PanicError) Error() string {
	if e.Name == `` {
		return fmt.Sprintf("ticksched: callback panicked: %v", e.Value)
	}
	return fmt.Sprintf("ticksched: %q panicked: %v", e.Name, e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
