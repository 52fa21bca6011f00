// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

// lockedBuffer is a goroutine safe io.Writer, for capturing log output.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *lockedBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *lockedBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

// entries decodes each JSON line written so far.
func (x *lockedBuffer) entries(t *testing.T) (entries []map[string]any) {
	t.Helper()
	scanner := bufio.NewScanner(bytes.NewReader([]byte(x.String())))
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), scanner.Text())
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

// messages returns the entries with the given message.
func (x *lockedBuffer) messages(t *testing.T, msg string) (entries []map[string]any) {
	t.Helper()
	for _, entry := range x.entries(t) {
		if entry[`msg`] == msg {
			entries = append(entries, entry)
		}
	}
	return entries
}

// newTestLogger returns a logger writing to a buffer, at debug level.
func newTestLogger() (*logiface.Logger[logiface.Event], *lockedBuffer) {
	var buf lockedBuffer
	return NewLogger(&buf, logiface.LevelDebug), &buf
}

// fakeClock is a Clock that only moves when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (x *fakeClock) Now() time.Time {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.now
}

func (x *fakeClock) Advance(d time.Duration) {
	x.mu.Lock()
	x.now = x.now.Add(d)
	x.mu.Unlock()
}

// testTask records every call to Advance.
type testTask struct {
	TaskState
	mu     sync.Mutex
	deltas []time.Duration
	fn     func(delta time.Duration)
}

func newTestTask(name string) *testTask {
	x := &testTask{}
	x.SetName(name)
	return x
}

func (x *testTask) Advance(delta time.Duration) {
	x.mu.Lock()
	x.deltas = append(x.deltas, delta)
	fn := x.fn
	x.mu.Unlock()
	if fn != nil {
		fn(delta)
	}
}

func (x *testTask) calls() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.deltas)
}
