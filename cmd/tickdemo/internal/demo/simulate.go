// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package demo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-ticksched"
	"golang.org/x/sync/errgroup"
)

// Params controls a simulation.
type Params struct {
	Producers     int
	Requests      int
	SendInterval  time.Duration
	ResponseWait  time.Duration
	ResponseDelay time.Duration
	DropEvery     int
	Heartbeat     time.Duration
}

// Simulate runs r, while producers send requests, then shuts r down once
// every request was either answered, or timed out.
func Simulate(ctx context.Context, r *ticksched.Runner, p Params) (*Summary, error) {
	if p.Producers <= 0 || p.Requests <= 0 {
		return nil, errors.New(`tickdemo: producers and requests must be positive`)
	}

	s := r.Scheduler()
	var (
		sent, answered, expired, heartbeats, finished atomic.Int64
	)

	s.Timeouts.SetIntCallback(func(int) { expired.Add(1) })

	if p.Heartbeat > 0 {
		hb, err := ticksched.NewLoopTimer(`heartbeat`, p.Heartbeat, p.Heartbeat, func() { heartbeats.Add(1) })
		if err != nil {
			return nil, err
		}
		if err := s.Timers.Add(hb); err != nil {
			return nil, err
		}
	}

	runErr := make(chan error, 1)
	go func() { runErr <- r.Run(ctx) }()

	g, gctx := errgroup.WithContext(ctx)
	for producer := range p.Producers {
		g.Go(func() error {
			for i := range p.Requests {
				msgType := producer*p.Requests + i
				if !s.Timeouts.AddInt(msgType, p.ResponseWait) {
					return fmt.Errorf(`tickdemo: duplicate request %d`, msgType)
				}
				sent.Add(1)

				if p.DropEvery <= 0 || (i+1)%p.DropEvery != 0 {
					if err := s.Posts.Post(func() {
						if s.Timeouts.RemoveInt(msgType) {
							answered.Add(1)
						}
					}, p.ResponseDelay); err != nil {
						return err
					}
				}

				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-time.After(p.SendInterval):
				}
			}
			return nil
		})
	}

	// a step sequence waits for every request to resolve, on the tick goroutine
	total := int64(p.Producers * p.Requests)
	if _, err := s.StartSteps(`drain`, ticksched.Sequence(
		func(ticksched.StepEnv) ticksched.Yield {
			return ticksched.Call(ticksched.WaitWhile(func() bool {
				return sent.Load() < total || s.Timeouts.Len() != 0
			}))
		},
		func(ticksched.StepEnv) ticksched.Yield {
			finished.Store(1)
			return ticksched.Complete()
		},
	)); err != nil {
		return nil, err
	}

	if err := g.Wait(); err != nil {
		_ = r.Close()
		<-runErr
		return nil, err
	}

	// wait for the drain sequence, or the runner to stop
	t := time.NewTicker(p.SendInterval/2 + time.Millisecond)
	defer t.Stop()
	for finished.Load() == 0 {
		select {
		case err := <-runErr:
			if err == nil {
				err = errors.New(`tickdemo: runner stopped before requests resolved`)
			}
			return nil, err
		case <-t.C:
		}
	}

	if err := r.Shutdown(ctx); err != nil {
		return nil, err
	}
	if err := <-runErr; err != nil {
		return nil, err
	}

	return &Summary{
		Sent:       sent.Load(),
		Answered:   answered.Load(),
		Expired:    expired.Load(),
		Heartbeats: heartbeats.Load(),
		Metrics:    s.Metrics(),
	}, nil
}
