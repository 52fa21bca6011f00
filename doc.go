// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package ticksched implements a per-frame cooperative task scheduler.
//
// Work is advanced by repeatedly calling Tick with the time elapsed since
// the previous call (the delta), typically once per rendered frame, or from
// a Runner. Every container may be mutated from any goroutine, while Tick
// is driven by one goroutine at a time. Callbacks run on the goroutine
// calling Tick, never while a container's mutex is held, so they may freely
// use the containers, including the one that invoked them.
//
// The containers are:
//
//   - TickList: tasks advanced once per tick, staged so that a task added
//     during a tick is first advanced on the following tick
//   - StepSequence: a stack of nested cursors, advanced one step per tick,
//     for coroutine style multi-frame workflows
//   - EventList: one-shot and repeating delayed callbacks, cancellable by
//     handle, with a deferred clear
//   - ResponseTimeout: watchdogs for outstanding request/response pairs,
//     keyed by message type
//   - TimerList, PostEventList and CommandList: named timers, deferred
//     functions, and a sequential command queue
//
// A Scheduler owns one of each, ticking them in a fixed order.
//
// # Logging
//
// Logging uses [logiface], defaulting to JSON lines on stderr, at warning
// level, via [stumpy]. Warnings that may repeat every tick can be rate
// limited per category, see WithWarningRateLimit.
//
// [logiface]: https://github.com/joeycumines/logiface
// [stumpy]: https://github.com/joeycumines/stumpy
package ticksched
