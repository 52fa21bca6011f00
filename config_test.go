// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ticksched

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseConfig(t *testing.T) {
	for _, tc := range [...]struct {
		name string
		data string
		want Config
		err  string
	}{
		{
			name: `empty`,
			data: ``,
			want: DefaultConfig(),
		},
		{
			name: `full`,
			data: `
tick_interval: 16ms
max_delta: 0s
fixed_delta: 16ms
log_level: debug
metrics: true
warning_rate_limits:
  - window: 1s
    count: 5
  - window: 1m
    count: 30
`,
			want: Config{
				TickInterval: Duration(16 * time.Millisecond),
				FixedDelta:   Duration(16 * time.Millisecond),
				LogLevel:     `debug`,
				Metrics:      true,
				WarningRateLimits: []RateLimit{
					{Window: Duration(time.Second), Count: 5},
					{Window: Duration(time.Minute), Count: 30},
				},
			},
		},
		{
			name: `partial keeps defaults`,
			data: `metrics: true`,
			want: func() Config {
				c := DefaultConfig()
				c.Metrics = true
				return c
			}(),
		},
		{
			name: `unknown field`,
			data: `tick_rate: 1`,
			err:  `field tick_rate not found`,
		},
		{
			name: `bad duration`,
			data: `tick_interval: 5`,
			err:  `missing unit`,
		},
		{
			name: `zero interval`,
			data: `tick_interval: 0s`,
			err:  `tick_interval must be positive`,
		},
		{
			name: `bad level`,
			data: `log_level: loud`,
			err:  `unknown log level`,
		},
		{
			name: `bad rate`,
			data: "warning_rate_limits:\n  - window: 1s\n",
			err:  `warning_rate_limits[0]`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tc.data))
			if tc.err != `` {
				assert.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), `config.yaml`)
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, `info`, cfg.LogLevel)

	_, err = LoadConfig(filepath.Join(t.TempDir(), `missing.yaml`))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDuration_MarshalYAML(t *testing.T) {
	b, err := yaml.Marshal(DefaultConfig())
	require.NoError(t, err)
	assert.Contains(t, string(b), `tick_interval: 33ms`)

	cfg, err := ParseConfig(b)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_Options(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
tick_interval: 5ms
fixed_delta: 7ms
log_level: info
metrics: true
warning_rate_limits:
  - window: 1h
    count: 1
`))
	require.NoError(t, err)

	var buf lockedBuffer
	opts, err := cfg.Options(&buf)
	require.NoError(t, err)
	s, err := New(opts...)
	require.NoError(t, err)

	r, err := NewRunner(s, cfg.RunnerOptions()...)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, r.opts.tickInterval)
	assert.Equal(t, 7*time.Millisecond, r.opts.fixedDelta)
	assert.Equal(t, DefaultMaxDelta, r.opts.maxDelta)

	require.True(t, s.Timeouts.AddInt(1, 0))
	s.Tick(0)
	require.True(t, s.Timeouts.AddInt(1, 0))
	s.Tick(0)
	assert.Equal(t, uint64(2), s.Metrics().Ticks)
	assert.Len(t, buf.messages(t, `message waiting time has been exceeded`), 1)
	assert.Empty(t, buf.messages(t, `response timeout added`))
}
