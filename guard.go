// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// tickGuard serializes calls to a Tick method, and detects re-entrant calls
// made by the goroutine currently ticking (e.g. from a callback), which
// would otherwise deadlock.
type tickGuard struct {
	mu sync.Mutex
	// goroutine id of the holder, or 0
	gid atomic.Int64
}

// enter acquires the guard, returning false, without blocking, for a
// re-entrant call.
func (x *tickGuard) enter(log *logger, what string) bool {
	gid := goid.Get()
	if x.gid.Load() == gid {
		log.warning(nil).
			Str(`container`, what).
			Log(`re-entrant tick ignored`)
		return false
	}
	x.mu.Lock()
	x.gid.Store(gid)
	return true
}

func (x *tickGuard) exit() {
	x.gid.Store(0)
	x.mu.Unlock()
}

// held reports whether the calling goroutine holds the guard.
func (x *tickGuard) held() bool {
	return x.gid.Load() == goid.Get()
}
