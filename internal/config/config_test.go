package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8021", cfg.Server.Listen)
	assert.Equal(t, "BTCUSDT", cfg.Market.Symbol)
	assert.Equal(t, 15, cfg.Engine.BaseSeconds)
	assert.Equal(t, 600, cfg.Engine.CycleSeconds)
	assert.InDelta(t, 10.0, cfg.Engine.Notional, 1e-9)
	assert.InDelta(t, 0.0004, cfg.Engine.FeeRate, 1e-9)
	assert.Equal(t, 10000, cfg.Engine.BufferCapacity)
	assert.Equal(t, "price_15s", cfg.Rowstore.PriceTable)
	assert.Equal(t, "simulations_10m", cfg.Rowstore.SimTable)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
log_level: debug
engine:
  base_seconds: 5
  cycle_seconds: 120
  notional: 25
market:
  symbol: ETHUSDT
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Engine.BaseSeconds)
	assert.Equal(t, 120, cfg.Engine.CycleSeconds)
	assert.InDelta(t, 25.0, cfg.Engine.Notional, 1e-9)
	assert.Equal(t, "ETHUSDT", cfg.Market.Symbol)
	// untouched keys keep their defaults
	assert.InDelta(t, 0.0004, cfg.Engine.FeeRate, 1e-9)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTSIM_ENGINE_NOTIONAL", "50")
	t.Setenv("HTSIM_MARKET_SYMBOL", "SOLUSDT")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, cfg.Engine.Notional, 1e-9)
	assert.Equal(t, "SOLUSDT", cfg.Market.Symbol)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"HTSIM_ENGINE_BASE_SECONDS": "0",
		"HTSIM_ENGINE_NOTIONAL":     "-1",
		"HTSIM_MARKET_FETCH_LIMIT":  "0",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsCycleShorterThanBase(t *testing.T) {
	t.Setenv("HTSIM_ENGINE_CYCLE_SECONDS", "10")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
