package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"momentum-trade/internal/bridge"
	"momentum-trade/internal/config"
	"momentum-trade/internal/metrics"
	"momentum-trade/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedVenue is a paper venue whose confirmation re-check sees a chosen close.
type scriptedVenue struct {
	*bridge.Paper
	confirm      float64
	positionsErr error
	dealsErr     error
	retcode      int
	sends        int
}

func (v *scriptedVenue) SendOrder(ctx context.Context, req model.OrderRequest) (model.OrderResult, error) {
	v.sends++
	if v.retcode != 0 {
		return model.OrderResult{Retcode: v.retcode, Comment: "rejected"}, nil
	}
	return v.Paper.SendOrder(ctx, req)
}

func (v *scriptedVenue) Deals(ctx context.Context, from, to time.Time) ([]model.DealRecord, error) {
	if v.dealsErr != nil {
		return nil, v.dealsErr
	}
	return v.Paper.Deals(ctx, from, to)
}

func (v *scriptedVenue) Candles(ctx context.Context, symbol string, timeframe time.Duration, count int) ([]model.Candle, error) {
	if count == 1 && v.confirm > 0 {
		return []model.Candle{{Close: v.confirm}}, nil
	}
	return v.Paper.Candles(ctx, symbol, timeframe, count)
}

func (v *scriptedVenue) OpenPositions(ctx context.Context, symbol string) ([]model.Position, error) {
	if v.positionsErr != nil {
		return nil, v.positionsErr
	}
	return v.Paper.OpenPositions(ctx, symbol)
}

func engineConfig() *config.Config {
	cfg := config.Default()
	cfg.Strategy.ATRPeriod = 1
	cfg.Strategy.ConfirmDelay = 0
	return cfg
}

func liveSeries() []model.Candle {
	return []model.Candle{
		bar(0, 100, 100, 100, 100),
		bar(1, 100, 101, 99, 100),
		bar(2, 100, 104, 100, 104),
		bar(3, 104, 115, 104, 104),
		bar(4, 104, 108, 104, 108),
		bar(5, 108, 120, 108, 110),
	}
}

func newTestEngine(t *testing.T, cfg *config.Config, visible bool) (*Engine, *scriptedVenue) {
	t.Helper()
	info := model.SymbolInfo{Symbol: "BTCUSD", VolumeMin: 0.01, VolumeStep: 0.01, VolumeMax: 100, Visible: visible}
	paper := bridge.NewPaper(info, liveSeries(), 10000, 0)
	require.NoError(t, paper.Connect(context.Background()))
	paper.Seek(2)

	venue := &scriptedVenue{Paper: paper}
	return New(cfg, venue), venue
}

func TestCycle_TradeLifecycle(t *testing.T) {
	ctx := context.Background()
	e, venue := newTestEngine(t, engineConfig(), true)
	require.NoError(t, e.Start(ctx))
	assert.Equal(t, 10000.0, e.Equity())

	venue.confirm = 108
	res := e.Cycle(ctx)
	require.Equal(t, metrics.OutcomeOrdered, res.Outcome)
	require.NotNil(t, res.Order)
	assert.Equal(t, 104.0, res.Order.Price)
	assert.InDelta(t, 0.96, res.Sizing.RoundedVolume, 1e-12)
	assert.Equal(t, model.SignalConfirmed, res.Signal.State)

	positions, err := venue.OpenPositions(ctx, "BTCUSD")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 98.0, positions[0].StopLoss, 1e-9)
	assert.InDelta(t, 114.0, positions[0].TakeProfit, 1e-9)

	res = e.Cycle(ctx)
	assert.Equal(t, metrics.OutcomeRejected, res.Outcome)
	assert.Equal(t, RejectPositionOpen, res.Signal.Reason)

	// Bar 3 reaches the take-profit; the first closing deal is only the baseline.
	require.True(t, venue.Advance())
	res = e.Cycle(ctx)
	assert.Equal(t, metrics.OutcomeNoSignal, res.Outcome)
	assert.Nil(t, res.Deal)

	require.True(t, venue.Advance())
	venue.confirm = 112
	res = e.Cycle(ctx)
	require.Equal(t, metrics.OutcomeOrdered, res.Outcome)
	assert.Equal(t, 108.0, res.Order.Price)
	assert.InDelta(t, 0.93, res.Sizing.RoundedVolume, 1e-12, "equity is sampled once at start")

	require.True(t, venue.Advance())
	res = e.Cycle(ctx)
	require.NotNil(t, res.Deal)
	assert.Equal(t, model.DealEntryOut, res.Deal.Entry)
	assert.InDelta(t, 9.3, res.Deal.Profit, 1e-9)

	res = e.Cycle(ctx)
	assert.Nil(t, res.Deal, "a closed deal is reported once")

	status := e.Status()
	assert.Equal(t, int64(6), status.Metrics.Cycles)
	assert.Equal(t, int64(2), status.Metrics.Orders)
	assert.Equal(t, int64(1), status.Metrics.Rejected)
	assert.Equal(t, int64(1), status.Metrics.DealsReported)
	assert.NotZero(t, status.LastSeen)

	raw, err := e.StatusJSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "BTCUSD", decoded["symbol"])
}

func TestCycle_EquityRefreshedEachCycle(t *testing.T) {
	ctx := context.Background()
	cfg := engineConfig()
	cfg.Risk.EquityRefresh = config.EquityCycle
	e, venue := newTestEngine(t, cfg, true)
	require.NoError(t, e.Start(ctx))

	venue.confirm = 108
	require.Equal(t, metrics.OutcomeOrdered, e.Cycle(ctx).Outcome)

	// Bar 3 closes the position at its take-profit.
	require.True(t, venue.Advance())
	e.Cycle(ctx)
	assert.InDelta(t, 10000+10*0.96, e.Equity(), 1e-9)
}

func TestCycle_CancelledDuringConfirmation(t *testing.T) {
	cfg := engineConfig()
	cfg.Strategy.ConfirmDelay = time.Hour
	e, venue := newTestEngine(t, cfg, true)
	require.NoError(t, e.Start(context.Background()))
	venue.confirm = 108

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := e.Cycle(ctx)
	assert.Equal(t, metrics.OutcomeRejected, res.Outcome)
	assert.Equal(t, RejectCancelled, res.Signal.Reason)

	positions, err := venue.OpenPositions(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestCycle_PositionQueryFailureBlocksEntry(t *testing.T) {
	ctx := context.Background()
	e, venue := newTestEngine(t, engineConfig(), true)
	require.NoError(t, e.Start(ctx))

	venue.confirm = 108
	venue.positionsErr = errors.New("terminal busy")

	res := e.Cycle(ctx)
	assert.Equal(t, metrics.OutcomeRejected, res.Outcome)
	assert.Equal(t, RejectPositionOpen, res.Signal.Reason)
}

func TestCycle_SkipsWithoutATR(t *testing.T) {
	ctx := context.Background()
	cfg := engineConfig()
	cfg.Strategy.ATRPeriod = 14
	e, _ := newTestEngine(t, cfg, true)
	require.NoError(t, e.Start(ctx))

	assert.Equal(t, metrics.OutcomeSkipped, e.Cycle(ctx).Outcome)
	assert.Equal(t, int64(1), e.Status().Metrics.Skipped)
}

func TestStart_RequiresVisibleSymbol(t *testing.T) {
	e, _ := newTestEngine(t, engineConfig(), false)
	assert.Error(t, e.Start(context.Background()))
}

func TestStart_RequiresConnection(t *testing.T) {
	e, venue := newTestEngine(t, engineConfig(), true)
	require.NoError(t, venue.Close())
	assert.ErrorIs(t, e.Start(context.Background()), bridge.ErrNotConnected)
}

func TestCycle_OrderFailureIsNotRetried(t *testing.T) {
	ctx := context.Background()
	e, venue := newTestEngine(t, engineConfig(), true)
	require.NoError(t, e.Start(ctx))

	venue.confirm = 108
	venue.retcode = bridge.RetcodeMarketClosed

	res := e.Cycle(ctx)
	assert.Equal(t, metrics.OutcomeOrderFailed, res.Outcome)
	require.NotNil(t, res.Order)
	assert.Equal(t, bridge.RetcodeMarketClosed, res.Order.Retcode)
	assert.Equal(t, 1, venue.sends)
	assert.Equal(t, int64(1), e.Status().Metrics.OrderFailures)
	assert.Zero(t, e.Status().Metrics.Orders)

	positions, err := venue.OpenPositions(ctx, "BTCUSD")
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestCycle_DealHistoryFailureKeepsTracker(t *testing.T) {
	ctx := context.Background()
	e, venue := newTestEngine(t, engineConfig(), true)
	require.NoError(t, e.Start(ctx))

	venue.confirm = 108
	require.Equal(t, metrics.OutcomeOrdered, e.Cycle(ctx).Outcome)
	require.True(t, venue.Advance())

	venue.dealsErr = errors.New("history unavailable")
	res := e.Cycle(ctx)
	assert.Nil(t, res.Deal)
	ticket, ready := e.tracker.LastSeen()
	assert.Zero(t, ticket)
	assert.False(t, ready)
	assert.Zero(t, e.Status().LastSeen)

	venue.dealsErr = nil
	res = e.Cycle(ctx)
	assert.Nil(t, res.Deal, "the first closing deal seen is the baseline")
	_, ready = e.tracker.LastSeen()
	assert.True(t, ready)
	assert.NotZero(t, e.Status().LastSeen)
}
