// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStepSequence(t *testing.T) {
	_, err := NewStepSequence(`x`, nil, nil)
	assert.ErrorIs(t, err, ErrNilCallback)

	_, err = NewStepSequence(`x`, CursorFunc(nil), nil)
	assert.ErrorIs(t, err, ErrNilCallback)

	seq, err := NewStepSequence(``, Sequence(), nil)
	require.NoError(t, err)
	_, err = uuid.Parse(seq.Name())
	assert.NoError(t, err)
	assert.Equal(t, 1, seq.Depth())

	seq, err = NewStepSequence(`named`, Sequence(), nil)
	require.NoError(t, err)
	assert.Equal(t, `named`, seq.Name())
}

func TestStepSequence_childDrainsBeforeParentResumes(t *testing.T) {
	var trace []string
	child := Sequence(
		func(StepEnv) Yield { trace = append(trace, `child 1`); return Continue() },
		func(StepEnv) Yield { trace = append(trace, `child 2`); return Continue() },
	)
	root := Sequence(
		func(StepEnv) Yield { trace = append(trace, `parent 1`); return Call(child) },
		func(StepEnv) Yield { trace = append(trace, `parent 2`); return Continue() },
	)

	seq, err := NewStepSequence(`nested`, root, nil)
	require.NoError(t, err)

	depths := []int{2, 2, 2, 1, 1, 0}
	for i, depth := range depths {
		seq.Advance(time.Millisecond)
		assert.Equal(t, depth, seq.Depth(), `advance %d`, i+1)
		assert.False(t, seq.Done(), `advance %d`, i+1)
	}

	assert.Equal(t, []string{`parent 1`, `child 1`, `child 2`, `parent 2`}, trace)

	seq.Advance(time.Millisecond)
	assert.True(t, seq.Done())

	seq.Advance(time.Millisecond)
	assert.Len(t, trace, 4)
}

func TestStepSequence_Advance_stateTransitions(t *testing.T) {
	for _, tc := range [...]struct {
		name  string
		yield Yield
		depth int
	}{
		{name: `running`, yield: Continue(), depth: 1},
		{name: `running nil child`, yield: Call(nil), depth: 1},
		{name: `running child`, yield: Call(Sequence()), depth: 2},
		{name: `suspended`, yield: Suspend(), depth: 1},
		{name: `completed`, yield: Complete(), depth: 0},
		{name: `zero value`, yield: Yield{}, depth: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			seq, err := NewStepSequence(tc.name, CursorFunc(func(StepEnv) Yield { return tc.yield }), nil)
			require.NoError(t, err)
			seq.Advance(0)
			assert.Equal(t, tc.depth, seq.Depth())
			assert.False(t, seq.Done())
		})
	}
}

func TestSequence_suspendRetriesStep(t *testing.T) {
	var (
		attempts int
		after    bool
	)
	cursor := Sequence(
		func(StepEnv) Yield {
			attempts++
			if attempts < 3 {
				return Suspend()
			}
			return Continue()
		},
		func(StepEnv) Yield {
			after = true
			return Continue()
		},
	)

	env := StepEnv{}
	assert.Equal(t, CursorSuspended, cursor.Next(env).State())
	assert.Equal(t, CursorSuspended, cursor.Next(env).State())
	assert.Equal(t, CursorRunning, cursor.Next(env).State())
	assert.False(t, after)
	assert.Equal(t, CursorRunning, cursor.Next(env).State())
	assert.True(t, after)
	assert.Equal(t, CursorCompleted, cursor.Next(env).State())
	assert.Equal(t, CursorCompleted, cursor.Next(env).State())
	assert.Equal(t, 3, attempts)
}

func TestSequence_completeEndsEarly(t *testing.T) {
	var skipped bool
	cursor := Sequence(
		func(StepEnv) Yield { return Complete() },
		func(StepEnv) Yield { skipped = true; return Continue() },
	)
	assert.Equal(t, CursorCompleted, cursor.Next(StepEnv{}).State())
	assert.Equal(t, CursorCompleted, cursor.Next(StepEnv{}).State())
	assert.False(t, skipped)
}

func TestSleep_usesClock(t *testing.T) {
	clock := newFakeClock()
	seq, err := NewStepSequence(`sleep`, Sleep(time.Second), clock)
	require.NoError(t, err)

	// the deadline is set on the first advance
	clock.Advance(time.Hour)
	seq.Advance(0)
	assert.Equal(t, 1, seq.Depth())

	clock.Advance(999 * time.Millisecond)
	seq.Advance(0)
	assert.Equal(t, 1, seq.Depth())

	clock.Advance(time.Millisecond)
	seq.Advance(0)
	assert.Equal(t, 0, seq.Depth())
}

func TestWaitUntil(t *testing.T) {
	clock := newFakeClock()
	cursor := WaitUntil(clock.Now().Add(time.Second))
	assert.Equal(t, CursorSuspended, cursor.Next(StepEnv{Now: clock.Now()}).State())
	clock.Advance(time.Second)
	assert.Equal(t, CursorCompleted, cursor.Next(StepEnv{Now: clock.Now()}).State())
}

func TestWaitWhile(t *testing.T) {
	wait := true
	cursor := WaitWhile(func() bool { return wait })
	assert.Equal(t, CursorSuspended, cursor.Next(StepEnv{}).State())
	wait = false
	assert.Equal(t, CursorCompleted, cursor.Next(StepEnv{}).State())
}

func TestCursorState_String(t *testing.T) {
	assert.Equal(t, `Running`, CursorRunning.String())
	assert.Equal(t, `Suspended`, CursorSuspended.String())
	assert.Equal(t, `Completed`, CursorCompleted.String())
	assert.Equal(t, `CursorState(9)`, CursorState(9).String())
}
