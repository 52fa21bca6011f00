// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Command is a unit of sequential work, run by a CommandList.
//
// Execute is called exactly once, when the command reaches the head of the
// queue. The command then stays at the head, blocking the commands behind
// it, for as long as KeepWaiting returns true.
type Command interface {
	Name() string
	Execute()
	KeepWaiting() bool
}

// CommandFunc adapts functions to a Command. A nil Wait never waits.
type CommandFunc struct {
	Label string
	Run   func()
	Wait  func() bool
}

var _ Command = (*CommandFunc)(nil)

// Name implements Command.
func (x *CommandFunc) Name() string { return x.Label }

// Execute implements Command.
func (x *CommandFunc) Execute() {
	if x.Run != nil {
		x.Run()
	}
}

// KeepWaiting implements Command.
func (x *CommandFunc) KeepWaiting() bool { return x.Wait != nil && x.Wait() }

type commandEntry struct {
	cmd      Command
	executed bool
}

// CommandList runs commands one at a time, in the order they were added.
// Add and Clear are safe to call from any goroutine, including from within
// a command. Tick must be driven by a single goroutine at a time.
//
// The zero value is ready to use, and logs nothing.
type CommandList struct {
	log     *logger
	pending []Command
	// only accessed within Tick
	queue []commandEntry
	// len(queue) as of the end of the last tick
	queued atomic.Int64
	mu     sync.Mutex
	guard  tickGuard
	// drop queue on the next tick
	clearQueue bool
}

// NewCommandList returns a CommandList logging to the given logger, which
// may be nil.
func NewCommandList(l *logiface.Logger[logiface.Event]) *CommandList {
	return &CommandList{log: newLogger(l, nil)}
}

func newCommandList(log *logger) *CommandList {
	return &CommandList{log: log}
}

// Add queues cmd, to be considered starting with the next Tick.
func (x *CommandList) Add(cmd Command) error {
	if isNil(cmd) {
		return ErrNilTask
	}
	x.mu.Lock()
	x.pending = append(x.pending, cmd)
	x.mu.Unlock()
	return nil
}

// Clear discards every queued command. Commands already in the queue are
// dropped at the start of the next tick, and so the head will not be
// considered again. Commands added after Clear are kept.
func (x *CommandList) Clear() {
	x.mu.Lock()
	clear(x.pending)
	x.pending = x.pending[:0]
	x.clearQueue = true
	x.mu.Unlock()
}

// Len returns the number of queued commands, including the head, as of
// the last tick, plus any added since.
func (x *CommandList) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := len(x.pending)
	if !x.clearQueue {
		n += int(x.queued.Load())
	}
	return n
}

// Tick appends newly added commands to the queue, then runs commands from
// the head of the queue until it is empty, or the head is still waiting.
func (x *CommandList) Tick() {
	x.tick()
}

// tick returns the number of commands executed.
func (x *CommandList) tick() (executed int) {
	if !x.guard.enter(x.log, `command list`) {
		return 0
	}
	defer x.guard.exit()

	x.mu.Lock()
	if x.clearQueue {
		clear(x.queue)
		x.queue = x.queue[:0]
		x.clearQueue = false
	}
	for _, cmd := range x.pending {
		x.queue = append(x.queue, commandEntry{cmd: cmd})
	}
	clear(x.pending)
	x.pending = x.pending[:0]
	x.mu.Unlock()

	for len(x.queue) != 0 {
		head := &x.queue[0]
		if !head.executed {
			head.executed = true
			executed++
			if !x.run(head.cmd, Command.Execute) {
				// a panicking command is dropped
				x.pop()
				continue
			}
		}
		waiting := true
		if !x.run(head.cmd, func(cmd Command) { waiting = cmd.KeepWaiting() }) || !waiting {
			x.pop()
			continue
		}
		break
	}

	x.queued.Store(int64(len(x.queue)))

	return executed
}

func (x *CommandList) pop() {
	x.queue[0] = commandEntry{}
	x.queue = x.queue[1:]
}

// run calls fn, returning false if it panicked.
func (x *CommandList) run(cmd Command, fn func(Command)) (ok bool) {
	defer func() {
		if !ok {
			x.log.recovered(cmd.Name(), recover())
		}
	}()
	fn(cmd)
	return true
}
