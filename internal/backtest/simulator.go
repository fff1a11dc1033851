// Package backtest replays historical candles through the live decision
// components and aggregates the resolved trades into performance statistics.
package backtest

import (
	"errors"
	"fmt"

	"momentum-trade/internal/config"
	"momentum-trade/internal/engine"
	"momentum-trade/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrUnorderedCandles is returned when timestamps are not strictly increasing.
var ErrUnorderedCandles = errors.New("candle timestamps not strictly increasing")

// Simulator runs the signal detector, stop calculator and sizer over a candle series.
//
// Each trade is resolved on the single bar after its confirmation bar. A trade
// that touches neither bound on that bar is recorded with ExitNone and dropped,
// never carried forward. Take-profit is checked before stop-loss when a bar
// spans both.
type Simulator struct {
	symbol    string
	atrPeriod int
	initial   float64
	feeRate   float64
	detector  *engine.SignalDetector
	stops     *engine.StopCalculator
	sizer     *engine.Sizer
	logger    *zap.Logger
}

// Result holds the raw output of one simulation run.
type Result struct {
	RunID          string                 `json:"runId"`
	Symbol         string                 `json:"symbol"`
	InitialBalance float64                `json:"initialBalance"`
	Trades         []model.Trade          `json:"trades"`
	Equity         []model.EquitySnapshot `json:"equity"`
}

// NewSimulator creates a simulator from configuration.
func NewSimulator(cfg *config.Config, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		symbol:    cfg.Strategy.Instrument,
		atrPeriod: cfg.Strategy.ATRPeriod,
		initial:   cfg.Backtest.InitialBalance,
		feeRate:   cfg.Backtest.FeeRate,
		detector:  engine.NewSignalDetector(cfg.Strategy, logger),
		stops:     engine.NewStopCalculator(cfg.Risk),
		sizer:     engine.NewSizer(cfg.Risk),
		logger:    logger,
	}
}

// Run simulates the strategy over candles.
func (s *Simulator) Run(candles []model.Candle) (*Result, error) {
	for i := 1; i < len(candles); i++ {
		if !candles[i].Time.After(candles[i-1].Time) {
			return nil, fmt.Errorf("%w at index %d", ErrUnorderedCandles, i)
		}
	}

	result := &Result{
		RunID:          uuid.NewString(),
		Symbol:         s.symbol,
		InitialBalance: s.initial,
		Trades:         []model.Trade{},
	}

	series := engine.ATR(candles, s.atrPeriod)
	start := series.FirstReady()
	if start < 0 {
		s.logger.Warn("backtest_not_enough_bars",
			zap.Int("bars", len(candles)),
			zap.Int("atr_period", s.atrPeriod),
		)
		return result, nil
	}

	s.logger.Debug("backtest_started",
		zap.String("run_id", result.RunID),
		zap.Int("bars", len(candles)),
		zap.Int("first_bar", start),
		zap.Float64("initial_balance", s.initial),
	)

	balance := s.initial
	curve := engine.NewEquityCurve(s.initial)

	for i := start; i < len(candles)-1; i++ {
		if trade, ok := s.evaluate(candles, series, i, balance, len(result.Trades)+1); ok {
			balance += trade.PnL
			result.Trades = append(result.Trades, trade)
		}
		curve.Record(i, candles[i].Time, balance)
	}

	result.Equity = curve.Snapshots()
	return result, nil
}

// evaluate runs the trigger at bar i, confirms on bar i+1 and resolves on bar i+2.
func (s *Simulator) evaluate(candles []model.Candle, series engine.VolatilitySeries, i int, balance float64, id int) (model.Trade, bool) {
	sig, ok := s.detector.TriggerAt(candles, series, i)
	if !ok {
		return model.Trade{}, false
	}

	// A trade entered at bar c settles within bar c+1, before any later
	// confirmation at the close of c+1, so no position is ever open here.
	confirm := candles[i+1]
	if !s.detector.Confirm(&sig, confirm.Close, false) {
		return model.Trade{}, false
	}

	trade, err := s.open(sig, id, i+1, confirm, balance)
	if err != nil {
		s.logger.Warn("backtest_entry_skipped", zap.Int("index", i+1), zap.Error(err))
		return model.Trade{}, false
	}

	if i+2 >= len(candles) {
		trade.ExitIndex = -1
		trade.ExitReason = model.ExitNone
		return trade, true
	}
	return s.resolve(trade, i+2, candles[i+2]), true
}

func (s *Simulator) open(sig model.Signal, id, index int, bar model.Candle, balance float64) (model.Trade, error) {
	entry := bar.Close
	levels, err := s.stops.Levels(entry, sig.Side, sig.ATR)
	if err != nil {
		return model.Trade{}, err
	}
	sizing, err := s.sizer.Size(balance, entry, sig.ATR)
	if err != nil {
		return model.Trade{}, err
	}
	return model.Trade{
		ID:         id,
		Side:       sig.Side,
		EntryIndex: index,
		EntryTime:  bar.Time,
		EntryPrice: entry,
		Volume:     sizing.RoundedVolume,
		StopLoss:   levels.StopLoss,
		TakeProfit: levels.TakeProfit,
	}, nil
}

// resolve settles a trade against a single bar.
func (s *Simulator) resolve(trade model.Trade, index int, bar model.Candle) model.Trade {
	trade.ExitIndex = index
	trade.ExitTime = bar.Time

	var tpHit, slHit bool
	if trade.Side == model.SideShort {
		tpHit = bar.Low <= trade.TakeProfit
		slHit = bar.High >= trade.StopLoss
	} else {
		tpHit = bar.High >= trade.TakeProfit
		slHit = bar.Low <= trade.StopLoss
	}

	switch {
	case tpHit:
		trade.ExitReason = model.ExitTakeProfit
		trade.ExitPrice = trade.TakeProfit
		trade.RMultiple = engine.RMultiple(trade.Side, trade.EntryPrice, trade.TakeProfit, trade.StopLoss)
	case slHit:
		trade.ExitReason = model.ExitStopLoss
		trade.ExitPrice = trade.StopLoss
		trade.RMultiple = -1
	default:
		trade.ExitReason = model.ExitNone
		return trade
	}

	gross := (trade.ExitPrice - trade.EntryPrice) * trade.Side.Sign() * trade.Volume
	trade.Fees = s.fees(trade.Volume, trade.EntryPrice, trade.ExitPrice)
	trade.PnL = gross - trade.Fees

	s.logger.Debug("backtest_trade_closed",
		zap.Int("id", trade.ID),
		zap.String("side", string(trade.Side)),
		zap.String("reason", string(trade.ExitReason)),
		zap.Float64("entry", trade.EntryPrice),
		zap.Float64("exit", trade.ExitPrice),
		zap.Float64("volume", trade.Volume),
		zap.Float64("pnl", trade.PnL),
		zap.Float64("r", trade.RMultiple),
	)
	return trade
}

// fees charges feeRate on the notional of both the entry and exit legs.
func (s *Simulator) fees(volume, entry, exit float64) float64 {
	if s.feeRate == 0 {
		return 0
	}
	rate := decimal.NewFromFloat(s.feeRate)
	vol := decimal.NewFromFloat(volume)
	legs := decimal.NewFromFloat(entry).Add(decimal.NewFromFloat(exit))
	return rate.Mul(vol).Mul(legs).InexactFloat64()
}
