// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CursorState is the outcome of advancing a Cursor once.
type CursorState uint8

const (
	// CursorRunning indicates the cursor made progress, and has more work.
	// A Yield in this state may carry a child cursor, to be run to
	// completion before the cursor is advanced again.
	CursorRunning CursorState = iota
	// CursorSuspended indicates the cursor is waiting, and made no progress.
	CursorSuspended
	// CursorCompleted indicates the cursor has no more steps.
	CursorCompleted
)

// String returns a human-readable representation of the state.
func (s CursorState) String() string {
	switch s {
	case CursorRunning:
		return "Running"
	case CursorSuspended:
		return "Suspended"
	case CursorCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("CursorState(%d)", s)
	}
}

// Yield is returned by Cursor.Next. Use Continue, Suspend, Call or
// Complete to construct one. The zero value is equivalent to Continue.
type Yield struct {
	child Cursor
	state CursorState
}

// Continue indicates progress was made, and there are more steps.
func Continue() Yield { return Yield{state: CursorRunning} }

// Suspend indicates nothing could be done this tick.
func Suspend() Yield { return Yield{state: CursorSuspended} }

// Complete indicates there are no more steps.
func Complete() Yield { return Yield{state: CursorCompleted} }

// Call pushes child onto the stack of the running StepSequence. The caller
// resumes only after child completes. A nil child is equivalent to
// Continue.
func Call(child Cursor) Yield { return Yield{state: CursorRunning, child: child} }

// State returns the state of the yield.
func (y Yield) State() CursorState { return y.state }

// Child returns the cursor to push, if any.
func (y Yield) Child() Cursor { return y.child }

// StepEnv is passed to each Cursor.Next call.
type StepEnv struct {
	// Now is read from the sequence's clock immediately before the call.
	Now time.Time
	// Delta is the (clamped) delta of the current tick.
	Delta time.Duration
}

// Cursor is one resumable unit of a nested, multi-step operation. Cursors
// are owned by exactly one StepSequence, and are never advanced
// concurrently.
type Cursor interface {
	Next(env StepEnv) Yield
}

// CursorFunc adapts a function to a Cursor.
type CursorFunc func(env StepEnv) Yield

// Next implements Cursor.
func (f CursorFunc) Next(env StepEnv) Yield { return f(env) }

// StepSequence is a Task that runs a stack of cursors, depth first. Each
// Advance performs at most one stack mutation: the top cursor is advanced
// once, and is then either popped (completed), has a child pushed on top of
// it, or is left as-is. The sequence is done once the stack is empty.
type StepSequence struct {
	TaskState
	clock Clock
	stack []Cursor
}

// NewStepSequence returns a sequence that starts with root. An empty name is
// replaced with a random UUID. A nil clock uses the system clock.
// ErrNilCallback is returned for a nil root.
func NewStepSequence(name string, root Cursor, clock Clock) (*StepSequence, error) {
	if isNil(root) {
		return nil, ErrNilCallback
	}
	if name == `` {
		name = uuid.NewString()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &StepSequence{
		TaskState: TaskState{name: name},
		clock:     clock,
		stack:     []Cursor{root},
	}, nil
}

// Depth returns the number of cursors on the stack. It must only be called
// from the goroutine that advances the sequence.
func (x *StepSequence) Depth() int { return len(x.stack) }

// Advance implements Task.
func (x *StepSequence) Advance(delta time.Duration) {
	if x.Done() {
		return
	}

	if len(x.stack) == 0 {
		x.MarkDone()
		return
	}

	top := x.stack[len(x.stack)-1]
	y := top.Next(StepEnv{Now: x.clock.Now(), Delta: clampDelta(delta)})

	switch y.state {
	case CursorCompleted:
		x.stack[len(x.stack)-1] = nil
		x.stack = x.stack[:len(x.stack)-1]
	case CursorRunning:
		if !isNil(y.child) {
			x.stack = append(x.stack, y.child)
		}
	}
}

// Sequence returns a generator-like cursor, running steps in order, one per
// Next call. Each step decides what happens next:
//
//   - Continue: the following step runs on the next call
//   - Suspend: the same step runs again on the next call
//   - Call(child): child runs to completion, then the following step runs
//   - Complete: the sequence ends immediately
//
// After the last step, the sequence completes on the next call.
func Sequence(steps ...func(env StepEnv) Yield) Cursor {
	return &sequence{steps: steps}
}

type sequence struct {
	steps []func(env StepEnv) Yield
	i     int
}

func (x *sequence) Next(env StepEnv) Yield {
	if x.i >= len(x.steps) {
		return Complete()
	}
	y := x.steps[x.i](env)
	switch y.state {
	case CursorRunning:
		x.i++
	case CursorCompleted:
		x.i = len(x.steps)
	}
	return y
}

// WaitUntil returns a leaf cursor that is suspended until deadline. The
// check uses the wall clock at the time of each call, not accumulated
// deltas, so skipped or late ticks do not stretch the wait.
func WaitUntil(deadline time.Time) Cursor {
	return CursorFunc(func(env StepEnv) Yield {
		if env.Now.Before(deadline) {
			return Suspend()
		}
		return Complete()
	})
}

// Sleep returns a leaf cursor that waits for d, measured from the first
// time it is advanced.
func Sleep(d time.Duration) Cursor {
	var (
		deadline time.Time
		started  bool
	)
	return CursorFunc(func(env StepEnv) Yield {
		if !started {
			deadline, started = env.Now.Add(d), true
		}
		if env.Now.Before(deadline) {
			return Suspend()
		}
		return Complete()
	})
}

// WaitWhile returns a leaf cursor that is suspended while cond returns true.
func WaitWhile(cond func() bool) Cursor {
	return CursorFunc(func(StepEnv) Yield {
		if cond() {
			return Suspend()
		}
		return Complete()
	})
}
