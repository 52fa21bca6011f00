// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

// EventHandle identifies a scheduled event, for cancellation.
type EventHandle uint64

// FirstEventHandle is the first handle assigned by an EventList. Handles
// below it are never assigned, so the zero value may be used as "none".
const FirstEventHandle EventHandle = 100

type eventStage uint8

const (
	eventPending eventStage = iota
	eventActive
	// scheduled after ClearAll, before the next tick
	eventDeferred
)

type eventItem struct {
	callback  func()
	handle    EventHandle
	remaining time.Duration
	interval  time.Duration
	stage     eventStage
	repeat    bool
	// expired entries are purged at the end of the tick
	expired   bool
	cancelled bool
}

// EventList runs deferred callbacks, once or repeatedly, identified by
// handle. Schedule, Cancel and ClearAll are safe to call from any goroutine,
// including from within a callback. Tick must be driven by a single
// goroutine at a time.
//
// Callbacks are invoked on the goroutine calling Tick, in the order they
// were scheduled, without holding the list's mutex.
//
// The zero value is ready to use, and logs nothing.
type EventList struct {
	log      *logger
	handles  map[EventHandle]*eventItem
	active   []*eventItem
	pending  []*eventItem
	deferred []*eventItem
	fire     []*eventItem
	next     EventHandle
	mu       sync.Mutex
	guard    tickGuard
	clearAll bool
}

// NewEventList returns an EventList logging to the given logger, which may
// be nil.
func NewEventList(l *logiface.Logger[logiface.Event]) *EventList {
	return &EventList{log: newLogger(l, nil)}
}

func newEventList(log *logger) *EventList {
	return &EventList{log: log}
}

// Schedule runs callback once, after delay. A delay <= 0 runs it on the
// next tick. ErrNilCallback is returned for a nil callback.
func (x *EventList) Schedule(callback func(), delay time.Duration) (EventHandle, error) {
	return x.schedule(callback, delay, false, 0)
}

// ScheduleRepeat runs callback after delay, then every interval, until
// cancelled. Unconsumed time is not carried over between runs, so each run
// is at least interval after the previous one. ErrNilCallback is returned
// for a nil callback.
func (x *EventList) ScheduleRepeat(callback func(), delay, interval time.Duration) (EventHandle, error) {
	return x.schedule(callback, delay, true, interval)
}

func (x *EventList) schedule(callback func(), delay time.Duration, repeat bool, interval time.Duration) (EventHandle, error) {
	if callback == nil {
		return 0, ErrNilCallback
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.handles == nil {
		x.handles = make(map[EventHandle]*eventItem)
	}

	handle := max(x.next, FirstEventHandle)
	for {
		if _, ok := x.handles[handle]; !ok {
			break
		}
		handle++
		if handle < FirstEventHandle {
			// wrapped
			handle = FirstEventHandle
		}
	}
	x.next = handle + 1

	item := &eventItem{
		callback:  callback,
		handle:    handle,
		remaining: delay,
		interval:  interval,
		repeat:    repeat,
	}
	x.handles[handle] = item

	if x.clearAll {
		item.stage = eventDeferred
		x.deferred = append(x.deferred, item)
	} else {
		x.pending = append(x.pending, item)
	}

	x.log.debug().
		Uint64(`handle`, uint64(handle)).
		Dur(`delay`, delay).
		Bool(`repeat`, repeat).
		Log(`event scheduled`)

	return handle, nil
}

// Cancel cancels the event identified by handle. A pending event is dropped
// immediately, while an active event is flagged, and will not run again,
// even later in a sweep that is in progress. Returns false if the handle is
// unknown, or was already cancelled.
func (x *EventList) Cancel(handle EventHandle) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	item, ok := x.handles[handle]
	if !ok || item.cancelled {
		return false
	}

	switch item.stage {
	case eventPending:
		x.pending = slices.DeleteFunc(x.pending, func(v *eventItem) bool { return v == item })
		delete(x.handles, handle)
	case eventDeferred:
		x.deferred = slices.DeleteFunc(x.deferred, func(v *eventItem) bool { return v == item })
		delete(x.handles, handle)
	default:
		item.cancelled = true
		item.expired = true
	}

	return true
}

// Contains reports whether handle identifies an event that was not
// cancelled, and has not yet been purged.
func (x *EventList) Contains(handle EventHandle) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	item, ok := x.handles[handle]
	return ok && !item.cancelled
}

// Len returns the number of events that may still run.
func (x *EventList) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.clearAll {
		return len(x.deferred)
	}
	n := len(x.pending)
	for _, item := range x.active {
		if !item.expired {
			n++
		}
	}
	return n
}

// ClearAll requests that every event be discarded, at the start of the next
// tick. Events scheduled after ClearAll, but before that tick, survive, and
// become the entire active set. Events not yet run by a sweep in progress
// are skipped.
func (x *EventList) ClearAll() {
	x.mu.Lock()
	x.clearAll = true
	x.mu.Unlock()
}

// Tick advances every active event by delta, running those that are due.
//
// Calling Tick from within an event callback, on the same list, is ignored.
func (x *EventList) Tick(delta time.Duration) {
	x.tick(delta)
}

// tick returns the number of callbacks run.
func (x *EventList) tick(delta time.Duration) (fired int) {
	if !x.guard.enter(x.log, `event list`) {
		return 0
	}
	defer x.guard.exit()

	delta = clampDelta(delta)

	x.mu.Lock()

	if x.clearAll {
		x.discardLocked()
	}

	if len(x.pending) != 0 {
		for _, item := range x.pending {
			item.stage = eventActive
		}
		x.active = append(x.active, x.pending...)
		clear(x.pending)
		x.pending = x.pending[:0]
	}

	fire := x.fire[:0]
	for _, item := range x.active {
		if item.expired {
			continue
		}
		if item.remaining > 0 {
			item.remaining -= delta
			if item.remaining > 0 {
				continue
			}
		}
		if item.repeat {
			item.remaining = item.interval
		} else {
			item.expired = true
		}
		fire = append(fire, item)
	}

	x.mu.Unlock()

	for i, item := range fire {
		x.mu.Lock()
		skip := item.cancelled || x.clearAll
		x.mu.Unlock()
		if !skip {
			x.invoke(item)
			fired++
		}
		fire[i] = nil
	}
	x.fire = fire[:0]

	x.mu.Lock()
	x.active = slices.DeleteFunc(x.active, func(item *eventItem) bool {
		if item.expired {
			delete(x.handles, item.handle)
			return true
		}
		return false
	})
	x.mu.Unlock()

	return fired
}

// discardLocked drops the active and pending generations, promoting any
// deferred events.
func (x *EventList) discardLocked() {
	for _, item := range x.active {
		delete(x.handles, item.handle)
	}
	for _, item := range x.pending {
		delete(x.handles, item.handle)
	}
	clear(x.active)
	clear(x.pending)
	x.pending = x.pending[:0]

	x.active, x.deferred = x.deferred, x.active[:0]
	for _, item := range x.active {
		item.stage = eventActive
	}

	x.clearAll = false

	x.log.debug().
		Int(`kept`, len(x.active)).
		Log(`events cleared`)
}

func (x *EventList) invoke(item *eventItem) {
	defer func() {
		if r := recover(); r != nil {
			x.log.recovered(`event `+strconv.FormatUint(uint64(item.handle), 10), r)
		}
	}()
	item.callback()
}
