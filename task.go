// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"reflect"
	"sync/atomic"
	"time"
)

// Task is a unit of schedulable work, advanced once per tick by a TickList.
//
// Name is used only for lookup, and need not be unique. Done may be read
// and MarkDone called from any goroutine, while Advance is only ever called
// from the goroutine driving the owning list. Implementations must have
// comparable dynamic types, typically pointers, or lists reject them with
// ErrTaskNotComparable.
type Task interface {
	Name() string
	Done() bool
	MarkDone()
	Advance(delta time.Duration)
}

// TaskState implements the identity and completion parts of Task, and is
// intended to be embedded. The zero value is an unnamed, running task.
type TaskState struct {
	name string
	done atomic.Bool
}

// SetName sets the name of the task. It must be called before the task is
// added to a list.
func (x *TaskState) SetName(name string) { x.name = name }

// Name returns the name of the task.
func (x *TaskState) Name() string { return x.name }

// Done reports whether the task has completed, or was removed.
func (x *TaskState) Done() bool { return x.done.Load() }

// MarkDone flags the task as complete. The owning list drops it on its next
// tick, and will not advance it again.
func (x *TaskState) MarkDone() { x.done.Store(true) }

// TaskFunc adapts a function to a Task. The function is called on every
// tick until it returns true.
type TaskFunc struct {
	TaskState
	fn func(delta time.Duration) bool
}

// NewTaskFunc returns a named TaskFunc, or nil if fn is nil.
func NewTaskFunc(name string, fn func(delta time.Duration) (done bool)) *TaskFunc {
	if fn == nil {
		return nil
	}
	return &TaskFunc{TaskState: TaskState{name: name}, fn: fn}
}

// Advance implements Task.
func (x *TaskFunc) Advance(delta time.Duration) {
	if x.Done() {
		return
	}
	if x.fn(delta) {
		x.MarkDone()
	}
}

// isNil reports whether v is nil, including typed nil pointers wrapped in an
// interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// isComparable reports whether v can be used with == without panicking.
func isComparable(v any) bool {
	return reflect.TypeOf(v).Comparable()
}

// clampDelta treats negative drift as no elapsed time.
func clampDelta(delta time.Duration) time.Duration {
	if delta < 0 {
		return 0
	}
	return delta
}
