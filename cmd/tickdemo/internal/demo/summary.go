// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package demo

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/joeycumines/go-ticksched"
)

// Summary is the outcome of a simulation.
type Summary struct {
	Sent       int64
	Answered   int64
	Expired    int64
	Heartbeats int64
	Metrics    ticksched.Metrics
}

// Write prints the summary as a table. Metrics are only printed if any
// ticks were recorded.
func (x *Summary) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "requests sent\t%s\n", humanize.Comma(x.Sent))
	fmt.Fprintf(tw, "responses\t%s\n", humanize.Comma(x.Answered))
	fmt.Fprintf(tw, "timed out\t%s\n", humanize.Comma(x.Expired))
	fmt.Fprintf(tw, "heartbeats\t%s\n", humanize.Comma(x.Heartbeats))

	if m := x.Metrics; m.Ticks != 0 {
		fmt.Fprintf(tw, "ticks\t%s\n", humanize.Comma(int64(m.Ticks)))
		fmt.Fprintf(tw, "simulated time\t%s\n", m.Elapsed)
		fmt.Fprintf(tw, "tick p50 / p99 / max\t%s / %s / %s\n", m.Latency.P50, m.Latency.P99, m.Latency.Max)
		fmt.Fprintf(tw, "expiry rate\t%s%%\n", humanize.FtoaWithDigits(100*float64(x.Expired)/float64(max(x.Sent, 1)), 2))
	}

	return tw.Flush()
}
