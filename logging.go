// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// logger is the logging collaborator shared by every container owned by a
// Scheduler. The zero value and a nil pointer are both valid, and log
// nothing.
//
// Warnings that may repeat at frame rate (e.g. a watchdog expiring on every
// retry) pass a category, which is rate limited when a limiter is
// configured.
type logger struct {
	l       *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
}

func newLogger(l *logiface.Logger[logiface.Event], limiter *catrate.Limiter) *logger {
	return &logger{l: l, limiter: limiter}
}

// NewLogger returns a stumpy backed logger writing JSON lines to w, at the
// given level. A nil w writes to stderr.
func NewLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	if w == nil {
		w = os.Stderr
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// DefaultLogger is used when no logger option is provided.
// It writes warnings and above to stderr.
func DefaultLogger() *logiface.Logger[logiface.Event] {
	return NewLogger(os.Stderr, logiface.LevelWarning)
}

// ParseLevel converts a level name, as used in config files, to a
// logiface.Level. Both syslog keywords ("err", "warning") and the common
// spellings ("error", "warn") are accepted.
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case `disabled`, `off`, `none`:
		return logiface.LevelDisabled, nil
	case `emerg`, `emergency`:
		return logiface.LevelEmergency, nil
	case `alert`:
		return logiface.LevelAlert, nil
	case `crit`, `critical`:
		return logiface.LevelCritical, nil
	case `err`, `error`:
		return logiface.LevelError, nil
	case `warning`, `warn`:
		return logiface.LevelWarning, nil
	case `notice`:
		return logiface.LevelNotice, nil
	case `info`, `informational`:
		return logiface.LevelInformational, nil
	case `debug`:
		return logiface.LevelDebug, nil
	case `trace`:
		return logiface.LevelTrace, nil
	default:
		return logiface.LevelDisabled, fmt.Errorf("ticksched: unknown log level %q", s)
	}
}

func (x *logger) logger() *logiface.Logger[logiface.Event] {
	if x == nil {
		return nil
	}
	return x.l
}

func (x *logger) debug() *logiface.Builder[logiface.Event] {
	return x.logger().Debug()
}

func (x *logger) info() *logiface.Builder[logiface.Event] {
	return x.logger().Info()
}

func (x *logger) err() *logiface.Builder[logiface.Event] {
	return x.logger().Err()
}

// warning returns a builder for a warning, or nil if the category is
// currently rate limited. A nil category is never limited.
func (x *logger) warning(category any) *logiface.Builder[logiface.Event] {
	b := x.logger().Warning()
	if b == nil || category == nil || x.limiter == nil {
		return b
	}
	if next, ok := x.limiter.Allow(category); !ok {
		b.Release()
		return nil
	} else if next != (time.Time{}) {
		// last one before the limit kicks in
		b = b.Str(`suppressed_until`, next.Format(time.RFC3339Nano))
	}
	return b
}

// recovered logs a recovered panic, at error level.
func (x *logger) recovered(name string, r any) {
	x.err().
		Str(`name`, name).
		Err(PanicError{Value: r, Name: name}).
		Log(`recovered panic`)
}

// warnCategory identifies a rate limited warning.
type warnCategory struct {
	Msg string
	Key any
}
