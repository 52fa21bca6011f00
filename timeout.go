// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

// ResponseTimeout tracks outstanding waits for response messages, keyed by
// message type, and reports those that are not removed in time. Integer and
// string message types are independent key spaces, each with at most one
// expiry callback.
//
// Add and Remove are safe to call from any goroutine, including from within
// an expiry callback. Tick must be driven by a single goroutine at a time.
// Each key space is swept by swapping in a fresh map, so registrations made
// during a sweep never land in the generation being processed. Expiry
// callbacks are invoked without holding the mutex.
//
// The zero value is ready to use, and logs nothing.
type ResponseTimeout struct {
	log   *logger
	ints  timeoutSpace[int]
	strs  timeoutSpace[string]
	seq   uint64
	mu    sync.Mutex
	guard tickGuard
}

type timeoutSpace[K comparable] struct {
	live map[K]*timeoutEntry
	// generation being swept, keys only may be read while sweeping
	sweeping map[K]*timeoutEntry
	// keys of sweeping that are no longer live, true if expired with the
	// callback yet to run
	gone     map[K]bool
	callback func(K)
}

type timeoutEntry struct {
	remaining time.Duration
	seq       uint64
}

// NewResponseTimeout returns a ResponseTimeout logging to the given logger,
// which may be nil.
func NewResponseTimeout(l *logiface.Logger[logiface.Event]) *ResponseTimeout {
	return &ResponseTimeout{log: newLogger(l, nil)}
}

func newResponseTimeout(log *logger) *ResponseTimeout {
	return &ResponseTimeout{log: log}
}

// AddInt starts waiting for a response of the given message type. If the
// type is already being waited on, a warning is logged, the existing wait
// is kept, and false is returned.
func (x *ResponseTimeout) AddInt(msgType int, wait time.Duration) bool {
	return addTimeout(x, &x.ints, msgType, wait)
}

// AddString is the string keyed variant of AddInt. An empty message type is
// rejected.
func (x *ResponseTimeout) AddString(msgType string, wait time.Duration) bool {
	if msgType == `` {
		return false
	}
	return addTimeout(x, &x.strs, msgType, wait)
}

// RemoveInt stops waiting for the given message type. Returns false if it
// was not being waited on (e.g. it already expired, and was reported).
func (x *ResponseTimeout) RemoveInt(msgType int) bool {
	return removeTimeout(x, &x.ints, msgType)
}

// RemoveString is the string keyed variant of RemoveInt.
func (x *ResponseTimeout) RemoveString(msgType string) bool {
	return removeTimeout(x, &x.strs, msgType)
}

// ContainsInt reports whether the given message type is being waited on.
func (x *ResponseTimeout) ContainsInt(msgType int) bool {
	return containsTimeout(x, &x.ints, msgType)
}

// ContainsString is the string keyed variant of ContainsInt.
func (x *ResponseTimeout) ContainsString(msgType string) bool {
	return containsTimeout(x, &x.strs, msgType)
}

// SetIntCallback sets the expiry callback for integer message types,
// replacing any existing callback. A nil fn removes the callback.
func (x *ResponseTimeout) SetIntCallback(fn func(msgType int)) {
	x.mu.Lock()
	x.ints.callback = fn
	x.mu.Unlock()
}

// SetStringCallback sets the expiry callback for string message types,
// replacing any existing callback. A nil fn removes the callback.
func (x *ResponseTimeout) SetStringCallback(fn func(msgType string)) {
	x.mu.Lock()
	x.strs.callback = fn
	x.mu.Unlock()
}

// SetCallback sets the expiry callback for the key space matching fn, which
// must be a func(int) or a func(string). Other values are not supported,
// and are rejected with a warning.
func (x *ResponseTimeout) SetCallback(fn any) bool {
	switch fn := fn.(type) {
	case func(int):
		x.SetIntCallback(fn)
	case func(string):
		x.SetStringCallback(fn)
	default:
		x.log.warning(nil).
			Str(`type`, fmt.Sprintf(`%T`, fn)).
			Log(`response timeout does not support this key type`)
		return false
	}
	return true
}

// Len returns the number of outstanding waits, across both key spaces.
func (x *ResponseTimeout) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.ints.lenLocked() + x.strs.lenLocked()
}

// Clear drops every outstanding wait, without invoking callbacks, including
// waits that expired during a sweep in progress, but were not yet reported.
func (x *ResponseTimeout) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ints.clearLocked()
	x.strs.clearLocked()
}

// Tick advances every outstanding wait by delta, reporting those that have
// run out of time. The integer key space is processed first.
func (x *ResponseTimeout) Tick(delta time.Duration) {
	x.tick(delta)
}

func (x *ResponseTimeout) tick(delta time.Duration) (expired int) {
	if !x.guard.enter(x.log, `response timeout`) {
		return 0
	}
	defer x.guard.exit()
	delta = clampDelta(delta)
	expired += tickTimeouts(x, &x.ints, delta)
	expired += tickTimeouts(x, &x.strs, delta)
	return expired
}

func addTimeout[K comparable](x *ResponseTimeout, s *timeoutSpace[K], key K, wait time.Duration) bool {
	x.mu.Lock()
	if s.containsLocked(key) {
		x.mu.Unlock()
		x.log.warning(warnCategory{Msg: `duplicate response timeout`, Key: key}).
			Str(`key`, fmt.Sprint(key)).
			Log(`response timeout type is already added, ignored`)
		return false
	}
	if s.live == nil {
		s.live = make(map[K]*timeoutEntry)
	}
	x.seq++
	s.live[key] = &timeoutEntry{remaining: wait, seq: x.seq}
	x.mu.Unlock()

	x.log.debug().
		Str(`key`, fmt.Sprint(key)).
		Dur(`wait`, wait).
		Log(`response timeout added`)

	return true
}

func removeTimeout[K comparable](x *ResponseTimeout, s *timeoutSpace[K], key K) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := s.live[key]; ok {
		delete(s.live, key)
	} else if _, ok := s.sweeping[key]; ok && s.gone[key] {
		// expired, but not yet reported
		s.gone[key] = false
	} else if s.sweepingLocked(key) {
		s.gone[key] = false
	} else {
		return false
	}

	x.log.debug().
		Str(`key`, fmt.Sprint(key)).
		Log(`response timeout removed`)

	return true
}

func containsTimeout[K comparable](x *ResponseTimeout, s *timeoutSpace[K], key K) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return s.containsLocked(key)
}

func tickTimeouts[K comparable](x *ResponseTimeout, s *timeoutSpace[K], delta time.Duration) int {
	x.mu.Lock()
	if len(s.live) == 0 {
		x.mu.Unlock()
		return 0
	}
	snapshot := s.live
	s.live = make(map[K]*timeoutEntry)
	s.sweeping = snapshot
	s.gone = make(map[K]bool)
	callback := s.callback
	x.mu.Unlock()

	type due struct {
		key K
		seq uint64
	}
	var (
		fired    []due
		reported int
	)
	for key, e := range snapshot {
		e.remaining -= delta
		if e.remaining <= 0 {
			fired = append(fired, due{key, e.seq})
		}
	}

	if len(fired) != 0 {
		slices.SortFunc(fired, func(a, b due) int { return cmp.Compare(a.seq, b.seq) })

		// expired keys are released before any callback runs, so a callback
		// may register the same key again
		x.mu.Lock()
		for _, d := range fired {
			if _, ok := s.gone[d.key]; !ok {
				s.gone[d.key] = true
			}
		}
		x.mu.Unlock()

		for _, d := range fired {
			x.mu.Lock()
			pending := s.gone[d.key]
			s.gone[d.key] = false
			x.mu.Unlock()
			if !pending {
				// removed by an earlier callback
				continue
			}
			reported++
			x.log.warning(warnCategory{Msg: `response timeout`, Key: d.key}).
				Str(`key`, fmt.Sprint(d.key)).
				Bool(`callback`, callback != nil).
				Log(`message waiting time has been exceeded`)
			if callback != nil {
				invokeTimeout(x.log, callback, d.key)
			}
		}
	}

	x.mu.Lock()
	for key, e := range snapshot {
		if e.remaining <= 0 {
			continue
		}
		if _, ok := s.gone[key]; ok {
			continue
		}
		if _, ok := s.live[key]; ok {
			// registered during the sweep, takes precedence
			continue
		}
		s.live[key] = e
	}
	s.sweeping = nil
	s.gone = nil
	x.mu.Unlock()

	return reported
}

func invokeTimeout[K comparable](log *logger, callback func(K), key K) {
	defer func() {
		if r := recover(); r != nil {
			log.recovered(`response timeout `+fmt.Sprint(key), r)
		}
	}()
	callback(key)
}

func (s *timeoutSpace[K]) sweepingLocked(key K) bool {
	if _, ok := s.sweeping[key]; !ok {
		return false
	}
	_, gone := s.gone[key]
	return !gone
}

func (s *timeoutSpace[K]) containsLocked(key K) bool {
	if _, ok := s.live[key]; ok {
		return true
	}
	return s.sweepingLocked(key)
}

func (s *timeoutSpace[K]) lenLocked() int {
	n := len(s.live)
	for key := range s.sweeping {
		if _, gone := s.gone[key]; !gone {
			n++
		}
	}
	return n
}

func (s *timeoutSpace[K]) clearLocked() {
	clear(s.live)
	for key := range s.sweeping {
		s.gone[key] = false
	}
}
