package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123456:abcdefghijkl")
	t.Setenv("WORKER_COUNT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "wss://ws-live-data.polymarket.com", cfg.FeedWSURL)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.False(t, cfg.LiquidityZeroDisables)
	assert.Equal(t, "1234****ijkl", cfg.MaskedTelegramToken())
	assert.Equal(t, "(not set)", cfg.MaskedDatabaseURL())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token-value")
	t.Setenv("LIQUIDITY_ZERO_DISABLES", "true")
	t.Setenv("EVAL_CONCURRENCY", "2")
	t.Setenv("MAX_OUTSTANDING_CALLS", "4")
	t.Setenv("SEND_TIMEOUT_MS", "750")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.LiquidityZeroDisables)
	assert.Equal(t, 2, cfg.EvalConcurrency)
	assert.Equal(t, 4, cfg.MaxOutstandingCalls)
	assert.Equal(t, int64(750), cfg.SendTimeout.Milliseconds())
}

func TestValidate(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token-value")
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing token", func(c *Config) { c.TelegramToken = "" }},
		{"no workers", func(c *Config) { c.WorkerCount = 0 }},
		{"outstanding below concurrency", func(c *Config) { c.MaxOutstandingCalls = c.EvalConcurrency - 1 }},
		{"zero timeout", func(c *Config) { c.HistoryTimeout = 0 }},
		{"bad port", func(c *Config) { c.PrometheusPort = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
