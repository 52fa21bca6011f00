// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package demo

import (
	"time"

	"github.com/joeycumines/go-ticksched"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root cobra command for tickdemo.
func NewRootCmd() *cobra.Command {
	var (
		flagConfig   string
		flagLogLevel string
		flagMetrics  bool
		params       = DefaultParams()
	)

	root := &cobra.Command{
		Use:   "tickdemo",
		Short: "Simulate producers feeding a tick scheduler",
		Long: "tickdemo runs a scheduler on a dedicated goroutine, while producers send\n" +
			"simulated requests, each guarded by a response timeout. Some responses\n" +
			"are dropped, and time out.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ticksched.DefaultConfig()
			if flagConfig != `` {
				var err error
				if cfg, err = ticksched.LoadConfig(flagConfig); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed(`log-level`) {
				cfg.LogLevel = flagLogLevel
			}
			if cmd.Flags().Changed(`metrics`) {
				cfg.Metrics = flagMetrics
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			opts, err := cfg.Options(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			s, err := ticksched.New(opts...)
			if err != nil {
				return err
			}
			r, err := ticksched.NewRunner(s, cfg.RunnerOptions()...)
			if err != nil {
				return err
			}

			summary, err := Simulate(cmd.Context(), r, params)
			if err != nil {
				return err
			}

			return summary.Write(cmd.OutOrStdout())
		},
	}

	root.Flags().StringVar(&flagConfig, "config", "", "YAML config file")
	root.Flags().StringVar(&flagLogLevel, "log-level", "warning", "Log level (debug, info, warning, err, disabled)")
	root.Flags().BoolVar(&flagMetrics, "metrics", false, "Collect and print tick metrics")
	root.Flags().IntVar(&params.Producers, "producers", params.Producers, "Number of producer goroutines")
	root.Flags().IntVar(&params.Requests, "requests", params.Requests, "Requests sent by each producer")
	root.Flags().DurationVar(&params.SendInterval, "send-interval", params.SendInterval, "Pause between requests")
	root.Flags().DurationVar(&params.ResponseWait, "response-wait", params.ResponseWait, "Response timeout for each request")
	root.Flags().DurationVar(&params.ResponseDelay, "response-delay", params.ResponseDelay, "Simulated response latency")
	root.Flags().IntVar(&params.DropEvery, "drop-every", params.DropEvery, "Drop every Nth response (0 drops none)")
	root.Flags().DurationVar(&params.Heartbeat, "heartbeat", params.Heartbeat, "Heartbeat timer interval")

	return root
}

// DefaultParams returns the flag defaults.
func DefaultParams() Params {
	return Params{
		Producers:     4,
		Requests:      25,
		SendInterval:  20 * time.Millisecond,
		ResponseWait:  500 * time.Millisecond,
		ResponseDelay: 50 * time.Millisecond,
		DropEvery:     10,
		Heartbeat:     250 * time.Millisecond,
	}
}
