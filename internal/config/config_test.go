package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("strategy:\n  instrument: ETHUSD\n"))
	require.NoError(t, err)

	assert.Equal(t, "ETHUSD", cfg.Strategy.Instrument)
	assert.Equal(t, 14, cfg.Strategy.ATRPeriod)
	assert.Equal(t, 10*time.Minute, cfg.Strategy.Timeframe)
	assert.Equal(t, 3.0, cfg.Strategy.PriceThreshold)
	assert.Equal(t, StopATRMultiple, cfg.Risk.StopPolicy)
	assert.Equal(t, 1.5, cfg.Risk.StopLossMultiple)
	assert.Equal(t, 2.5, cfg.Risk.TakeProfitMultiple)
	assert.Equal(t, EquityOnce, cfg.Risk.EquityRefresh)
	assert.Equal(t, VenuePaper, cfg.Venue.Mode)
}

func TestParse_Durations(t *testing.T) {
	cfg, err := Parse([]byte("strategy:\n  confirmDelay: 2s\n  pollInterval: 500ms\n"))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Strategy.ConfirmDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Strategy.PollInterval)
}

func TestParse_RejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"unknown direction":     "strategy:\n  direction: sideways\n",
		"negative sl multiple":  "risk:\n  stopLossMultiple: -1\n",
		"negative tp percent":   "risk:\n  stopPolicy: fixed_percent\n  takeProfitPercent: -8\n",
		"unknown stop policy":   "risk:\n  stopPolicy: trailing\n",
		"unknown sizing":        "risk:\n  sizingPolicy: kelly\n",
		"risk fraction too big": "risk:\n  riskFraction: 2\n",
		"unknown refresh":       "risk:\n  equityRefresh: hourly\n",
		"unsupported venue":     "venue:\n  mode: shm\n",
		"short lookback":        "strategy:\n  lookbackBars: 5\n",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParse_EquityDivisorReplacesFraction(t *testing.T) {
	cfg, err := Parse([]byte("risk:\n  equityDivisor: 20\n"))
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.Risk.EquityDivisor)
	assert.Zero(t, cfg.Risk.RiskFraction)
}

func TestLoad_FileAndPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("venue:\n  passwordEnv: MOMENTUM_TEST_PASSWORD\n"), 0o600))
	t.Setenv("MOMENTUM_TEST_PASSWORD", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Password())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
