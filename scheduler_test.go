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

func TestNew_defaults(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	assert.NotNil(t, s.Logger())
	assert.IsType(t, SystemClock{}, s.Clock())
	assert.NotNil(t, s.Timeouts)
	assert.NotNil(t, s.Events)
	assert.NotNil(t, s.Posts)
	assert.NotNil(t, s.Timers)
	assert.NotNil(t, s.Steps)
	assert.NotNil(t, s.Commands)
	assert.Equal(t, Metrics{}, s.Metrics())

	s, err = New(nil, WithLogger(nil))
	require.NoError(t, err)
	assert.Nil(t, s.Logger())
}

func TestNew_invalidOptions(t *testing.T) {
	_, err := New(WithClock(nil))
	assert.Error(t, err)

	_, err = New(WithWarningRateLimit(map[time.Duration]int{time.Second: 0}))
	assert.ErrorContains(t, err, `invalid warning rate limit`)

	_, err = New(WithWarningRateLimit(nil))
	assert.NoError(t, err)
}

func TestScheduler_Tick_order(t *testing.T) {
	s, err := New(WithLogger(nil))
	require.NoError(t, err)

	var order []string
	record := func(name string) func() {
		return func() { order = append(order, name) }
	}

	// registered in reverse
	require.NoError(t, s.Commands.Add(&CommandFunc{Label: `command`, Run: record(`commands`)}))
	_, err = s.StartSteps(`steps`, CursorFunc(func(StepEnv) Yield {
		record(`steps`)()
		return Complete()
	}))
	require.NoError(t, err)
	timer, err := NewTimer(`timer`, 0, record(`timers`))
	require.NoError(t, err)
	require.NoError(t, s.Timers.Add(timer))
	require.NoError(t, s.Posts.Post(record(`posts`), 0))
	_, err = s.Events.Schedule(record(`events`), 0)
	require.NoError(t, err)
	s.Timeouts.SetIntCallback(func(int) { record(`timeouts`)() })
	require.True(t, s.Timeouts.AddInt(1, 0))

	s.Tick(time.Millisecond)
	assert.Equal(t, []string{`timeouts`, `events`, `posts`, `timers`, `steps`, `commands`}, order)

	s.Tick(time.Millisecond)
	assert.Len(t, order, 6)
}

func TestScheduler_Tick_reentrant(t *testing.T) {
	l, buf := newTestLogger()
	s, err := New(WithLogger(l))
	require.NoError(t, err)

	var fires int
	_, err = s.Events.ScheduleRepeat(func() { fires++ }, 0, 0)
	require.NoError(t, err)
	_, err = s.StartSteps(`nested`, CursorFunc(func(StepEnv) Yield {
		s.Tick(time.Second)
		return Suspend()
	}))
	require.NoError(t, err)

	for range 2 {
		s.Tick(time.Second)
	}

	assert.Equal(t, 2, fires)
	entries := buf.messages(t, `re-entrant tick ignored`)
	if assert.Len(t, entries, 2) {
		for _, entry := range entries {
			assert.Equal(t, `scheduler`, entry[`container`])
		}
	}
}

func TestScheduler_StartSteps(t *testing.T) {
	clock := newFakeClock()
	s, err := New(WithLogger(nil), WithClock(clock))
	require.NoError(t, err)

	_, err = s.StartSteps(`nil`, nil)
	assert.ErrorIs(t, err, ErrNilCallback)

	name, err := s.StartSteps(``, Sleep(time.Second))
	require.NoError(t, err)
	_, err = uuid.Parse(name)
	assert.NoError(t, err)
	assert.True(t, s.Steps.Exists(name))

	s.Tick(0)
	clock.Advance(time.Second)
	s.Tick(0)
	s.Tick(0)
	assert.False(t, s.Steps.Exists(name))

	name, err = s.StartSteps(`forever`, WaitWhile(func() bool { return true }))
	require.NoError(t, err)
	assert.Equal(t, `forever`, name)
	s.Tick(0)
	assert.True(t, s.StopSteps(`forever`))
	assert.False(t, s.Steps.Exists(`forever`))
	assert.False(t, s.StopSteps(`forever`))
}

func TestScheduler_Clear(t *testing.T) {
	s, err := New(WithLogger(nil))
	require.NoError(t, err)

	fail := func() { t.Error(`cleared work ran`) }
	require.True(t, s.Timeouts.AddInt(1, time.Second))
	s.Timeouts.SetIntCallback(func(int) { fail() })
	_, err = s.Events.Schedule(fail, time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Posts.Post(fail, time.Second))
	timer, _ := NewTimer(`t`, time.Second, fail)
	require.NoError(t, s.Timers.Add(timer))
	_, err = s.StartSteps(`s`, CursorFunc(func(StepEnv) Yield { fail(); return Continue() }))
	require.NoError(t, err)
	require.NoError(t, s.Commands.Add(&CommandFunc{Label: `c`, Run: fail}))

	s.Clear()

	assert.Equal(t, 0, s.Timeouts.Len())
	assert.Equal(t, 0, s.Events.Len())
	assert.Equal(t, 0, s.Posts.Len())
	assert.Equal(t, 0, s.Timers.Len())
	assert.Equal(t, 0, s.Steps.Len())
	assert.Equal(t, 0, s.Commands.Len())

	s.Tick(time.Minute)
	s.Tick(time.Minute)
}

func TestScheduler_Metrics(t *testing.T) {
	s, err := New(WithLogger(nil), WithMetrics(true))
	require.NoError(t, err)

	require.True(t, s.Timeouts.AddInt(1, time.Second))
	_, err = s.Events.ScheduleRepeat(func() {}, 0, time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Commands.Add(&CommandFunc{Label: `c`}))
	_, err = s.StartSteps(`s`, Sequence(func(StepEnv) Yield { return Continue() }))
	require.NoError(t, err)

	s.Tick(time.Second)
	s.Tick(-time.Second)
	s.Tick(time.Second)

	m := s.Metrics()
	assert.Equal(t, uint64(3), m.Ticks)
	assert.Equal(t, 2*time.Second, m.Elapsed)
	assert.Equal(t, uint64(1), m.TimeoutsExpired)
	assert.Equal(t, uint64(2), m.EventsFired)
	assert.Equal(t, uint64(1), m.CommandsExecuted)
	assert.Equal(t, uint64(3), m.StepsAdvanced)
	assert.Equal(t, 3, m.Latency.Samples)
	assert.GreaterOrEqual(t, m.Latency.Max, m.Latency.P50)
}

func TestScheduler_warningRateLimit(t *testing.T) {
	l, buf := newTestLogger()
	s, err := New(WithLogger(l), WithWarningRateLimit(map[time.Duration]int{time.Hour: 2}))
	require.NoError(t, err)

	for range 5 {
		require.True(t, s.Timeouts.AddInt(1, 0))
		require.True(t, s.Timeouts.AddInt(2, 0))
		s.Tick(0)
	}

	var keys []any
	for _, entry := range buf.messages(t, `message waiting time has been exceeded`) {
		keys = append(keys, entry[`key`])
	}
	assert.Equal(t, []any{`1`, `2`, `1`, `2`}, keys)

	entries := buf.messages(t, `message waiting time has been exceeded`)
	assert.NotContains(t, entries[0], `suppressed_until`)
	assert.Contains(t, entries[2], `suppressed_until`)
}
