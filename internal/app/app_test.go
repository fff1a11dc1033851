package app

import (
	"bytes"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"momentum-trade/internal/config"
	"momentum-trade/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const bars = `time,open,high,low,close
2024-03-01T00:00:00Z,100,100,100,100
2024-03-01T00:10:00Z,100,101,99,100
2024-03-01T00:20:00Z,100,104,100,104
2024-03-01T00:30:00Z,104,108,104,108
2024-03-01T00:40:00Z,108,119,108,110
2024-03-01T00:50:00Z,110,110,110,110
`

func TestBacktest(t *testing.T) {
	dir := t.TempDir()
	candles := filepath.Join(dir, "bars.csv")
	require.NoError(t, os.WriteFile(candles, []byte(bars), 0o644))

	cfg := config.Default()
	cfg.App.LogLevel = "error"
	cfg.App.LogFile = ""
	cfg.Strategy.ATRPeriod = 1
	cfg.Backtest.CandlesPath = candles
	cfg.Backtest.TradesOut = filepath.Join(dir, "out", "trades.csv")

	var out bytes.Buffer
	stats, err := New(cfg).Backtest(&out, true)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.Wins)
	assert.InDelta(t, 10009.3, stats.FinalBalance, 1e-9)
	assert.Contains(t, out.String(), "=== Trade List ===")
	assert.Contains(t, out.String(), "Final Balance:    10009.30")

	exported, err := os.ReadFile(cfg.Backtest.TradesOut)
	require.NoError(t, err)
	assert.Contains(t, string(exported), "TAKE_PROFIT")
}

func TestBacktest_SampleData(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	cfg.App.LogLevel = "error"
	cfg.App.LogFile = ""
	cfg.Backtest.CandlesPath = filepath.Join("..", "..", cfg.Backtest.CandlesPath)
	cfg.Backtest.TradesOut = ""

	stats, err := New(cfg).Backtest(&bytes.Buffer{}, false)
	require.NoError(t, err)
	assert.Positive(t, stats.TotalTrades)
}

func TestBacktest_MissingCandles(t *testing.T) {
	cfg := config.Default()
	cfg.App.LogLevel = "error"
	cfg.App.LogFile = ""

	_, err := New(cfg).Backtest(&bytes.Buffer{}, false)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRun_RequiresCandles(t *testing.T) {
	cfg := config.Default()
	cfg.App.LogLevel = "error"
	cfg.App.LogFile = ""

	assert.ErrorIs(t, New(cfg).Run(), config.ErrInvalidConfig)
}

func TestRun_StopDuringConfirmation(t *testing.T) {
	dir := t.TempDir()
	candles := filepath.Join(dir, "bars.csv")
	require.NoError(t, os.WriteFile(candles, []byte(bars), 0o644))

	cfg := config.Default()
	cfg.API.ListenAddress = ""
	cfg.Venue.CandlesPath = candles
	cfg.Venue.ReplayEvery = time.Hour
	cfg.Strategy.ATRPeriod = 1
	cfg.Strategy.LookbackBars = 3
	cfg.Strategy.PollInterval = 50 * time.Millisecond
	cfg.Strategy.ConfirmDelay = 2 * time.Second

	core, logs := observer.New(zapcore.DebugLevel)
	a := New(cfg)
	a.SetLogger(zap.New(core))

	stop := make(chan os.Signal, 1)
	go func() {
		time.Sleep(400 * time.Millisecond)
		stop <- syscall.SIGINT
	}()

	started := time.Now()
	require.NoError(t, a.run(stop))
	assert.Less(t, time.Since(started), 2*time.Second, "confirmation wait is cut short")

	rejected := logs.FilterMessage("signal_rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, engine.RejectCancelled, rejected[0].ContextMap()["reason"])

	// The cycle's remaining venue calls run before the venue closes.
	assert.Zero(t, logs.FilterMessage("deal_history_skipped").Len())
	assert.Zero(t, logs.FilterMessage("venue_close_failed").Len())

	entries := logs.All()
	last := entries[len(entries)-1]
	assert.Equal(t, "momentum stopped", last.Message)
	assert.Equal(t, int64(1), last.ContextMap()["cycles"])
}
