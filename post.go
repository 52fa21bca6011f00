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

// postEventName is the name shared by every posted function.
const postEventName = `Event`

type postEvent struct {
	TaskState
	fn        func()
	remaining time.Duration
}

func (x *postEvent) Advance(delta time.Duration) {
	if x.Done() {
		return
	}
	x.remaining -= delta
	if x.remaining > 0 {
		return
	}
	x.MarkDone()
	x.fn()
}

// PostEventList runs functions once, on the goroutine calling Tick, after a
// delay. It is typically used to hand work from other goroutines to the
// tick goroutine. Post is safe to call from any goroutine.
//
// Unlike an EventList, posted functions have no handle, and cannot be
// cancelled individually.
type PostEventList struct {
	list *TickList[*postEvent]
}

// NewPostEventList returns a PostEventList logging to the given logger,
// which may be nil.
func NewPostEventList(l *logiface.Logger[logiface.Event]) *PostEventList {
	return newPostEventList(newLogger(l, nil))
}

func newPostEventList(log *logger) *PostEventList {
	return &PostEventList{list: newTickList[*postEvent](log)}
}

// Post runs fn on a subsequent tick, once at least delay has elapsed. A
// delay <= 0 runs fn on the next tick.
func (x *PostEventList) Post(fn func(), delay time.Duration) error {
	if fn == nil {
		return ErrNilCallback
	}
	_, err := x.list.Add(&postEvent{
		TaskState: TaskState{name: postEventName},
		fn:        fn,
		remaining: delay,
	})
	return err
}

// Len returns the number of functions not yet run.
func (x *PostEventList) Len() int { return x.list.Len() }

// Clear discards every function not yet run.
func (x *PostEventList) Clear() { x.list.Clear() }

// Tick advances every posted function by delta, running those that are
// due.
func (x *PostEventList) Tick(delta time.Duration) { x.list.Tick(delta) }

func (x *PostEventList) tick(delta time.Duration) int { return x.list.tick(delta) }
