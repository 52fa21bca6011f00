// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is a point in time copy of the runtime statistics of a
// Scheduler, as returned by Scheduler.Metrics. Metrics are only collected
// when enabled using WithMetrics.
//
// Example:
//
//	s, _ := New(WithMetrics(true))
//	// ... drive s.Tick ...
//	m := s.Metrics()
//	fmt.Printf("ticks: %d, P99 tick: %v\n", m.Ticks, m.Latency.P99)
type Metrics struct {
	// Latency is the distribution of the wall time taken by each tick.
	Latency LatencyMetrics

	// Ticks is the number of completed calls to Scheduler.Tick.
	Ticks uint64
	// Elapsed is the sum of the (clamped) deltas passed to Scheduler.Tick.
	Elapsed time.Duration

	TimeoutsExpired  uint64
	EventsFired      uint64
	PostsAdvanced    uint64
	TimersAdvanced   uint64
	StepsAdvanced    uint64
	CommandsExecuted uint64
}

// LatencyMetrics summarizes the most recent latency samples.
type LatencyMetrics struct {
	P50  time.Duration
	P90  time.Duration
	P95  time.Duration
	P99  time.Duration
	Max  time.Duration
	Mean time.Duration
	// Samples is the number of samples the percentiles were computed from.
	Samples int
}

// sampleSize is the maximum number of latency samples to retain.
const sampleSize = 1000

// latencySamples is a rolling buffer of latency samples.
type latencySamples struct {
	mu      sync.Mutex
	samples [sampleSize]time.Duration
	idx     int
	count   int
	sum     time.Duration
}

func (l *latencySamples) record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// replacing the oldest sample
	if l.count >= sampleSize {
		l.sum -= l.samples[l.idx]
	}

	l.samples[l.idx] = d
	l.sum += d
	l.idx++
	if l.idx >= sampleSize {
		l.idx = 0
	}
	if l.count < sampleSize {
		l.count++
	}
}

// sample computes percentiles from the retained samples. Sorting is
// O(n log n), so it should not be called every tick.
func (l *latencySamples) sample() (m LatencyMetrics) {
	l.mu.Lock()
	sorted := slices.Clone(l.samples[:l.count])
	sum := l.sum
	l.mu.Unlock()

	count := len(sorted)
	if count == 0 {
		return
	}

	slices.Sort(sorted)

	m.P50 = sorted[percentileIndex(count, 50)]
	m.P90 = sorted[percentileIndex(count, 90)]
	m.P95 = sorted[percentileIndex(count, 95)]
	m.P99 = sorted[percentileIndex(count, 99)]
	m.Max = sorted[count-1]
	m.Mean = sum / time.Duration(count)
	m.Samples = count

	return m
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}

// metrics collects statistics for a Scheduler. A nil *metrics records
// nothing.
type metrics struct {
	latency          latencySamples
	ticks            atomic.Uint64
	elapsed          atomic.Int64
	timeoutsExpired  atomic.Uint64
	eventsFired      atomic.Uint64
	postsAdvanced    atomic.Uint64
	timersAdvanced   atomic.Uint64
	stepsAdvanced    atomic.Uint64
	commandsExecuted atomic.Uint64
}

// tickCounts are the per container results of a single tick.
type tickCounts struct {
	timeouts, events, posts, timers, steps, commands int
}

func (x *metrics) record(delta, took time.Duration, c tickCounts) {
	if x == nil {
		return
	}
	x.latency.record(took)
	x.elapsed.Add(int64(delta))
	x.timeoutsExpired.Add(uint64(c.timeouts))
	x.eventsFired.Add(uint64(c.events))
	x.postsAdvanced.Add(uint64(c.posts))
	x.timersAdvanced.Add(uint64(c.timers))
	x.stepsAdvanced.Add(uint64(c.steps))
	x.commandsExecuted.Add(uint64(c.commands))
	x.ticks.Add(1)
}

func (x *metrics) snapshot() (m Metrics) {
	if x == nil {
		return
	}
	m.Latency = x.latency.sample()
	m.Ticks = x.ticks.Load()
	m.Elapsed = time.Duration(x.elapsed.Load())
	m.TimeoutsExpired = x.timeoutsExpired.Load()
	m.EventsFired = x.eventsFired.Load()
	m.PostsAdvanced = x.postsAdvanced.Load()
	m.TimersAdvanced = x.timersAdvanced.Load()
	m.StepsAdvanced = x.stepsAdvanced.Load()
	m.CommandsExecuted = x.commandsExecuted.Load()
	return m
}
