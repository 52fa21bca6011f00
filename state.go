// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"sync/atomic"
)

// RunnerState represents the current state of a Runner.
//
// State Machine:
//
//	StateAwake → StateRunning            [Run()]
//	StateAwake → StateTerminated         [Shutdown() or Close() before Run()]
//	StateRunning → StateTerminating      [Shutdown() or Close()]
//	StateRunning → StateTerminated       [ctx done]
//	StateTerminating → StateTerminated   [Run() returned]
//	StateTerminated → (terminal)
//
// Use TryTransition (CAS) to leave StateAwake or StateRunning, and Store
// only for StateTerminated.
type RunnerState uint64

const (
	// StateAwake indicates the runner has been created but not started.
	StateAwake RunnerState = iota
	// StateRunning indicates the runner is ticking its scheduler.
	StateRunning
	// StateTerminating indicates a stop has been requested, but Run has not
	// yet returned.
	StateTerminating
	// StateTerminated indicates the runner has stopped, and cannot be
	// restarted.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s RunnerState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// runnerState is a lock-free state machine.
type runnerState struct {
	v atomic.Uint64
}

// Load returns the current state atomically.
func (s *runnerState) Load() RunnerState {
	return RunnerState(s.v.Load())
}

// Store atomically stores a new state, without validating the transition.
func (s *runnerState) Store(state RunnerState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was successful.
func (s *runnerState) TryTransition(from, to RunnerState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal returns true if the current state is terminal (Terminated).
func (s *runnerState) IsTerminal() bool {
	return s.Load() == StateTerminated
}
