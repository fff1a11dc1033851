package engine

import (
	"context"
	"math"
	"time"

	"momentum-trade/internal/config"
	"momentum-trade/internal/model"

	"go.uber.org/zap"
)

// Rejection reasons attached to discarded signals.
const (
	RejectThreshold    = "threshold_not_held"
	RejectPositionOpen = "position_open"
	RejectCancelled    = "cancelled"
)

// SignalDetector implements the two-phase momentum protocol: a raw trigger on the
// latest close-to-close change, then a delayed re-check against the trigger price.
// Live and backtest share the same comparison in exceeds.
type SignalDetector struct {
	symbol    string
	threshold float64 // percent
	direction config.Direction
	logger    *zap.Logger
}

// NewSignalDetector creates a detector from strategy settings.
func NewSignalDetector(cfg config.StrategyConfig, logger *zap.Logger) *SignalDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignalDetector{
		symbol:    cfg.Instrument,
		threshold: cfg.PriceThreshold,
		direction: cfg.Direction,
		logger:    logger,
	}
}

// PercentChange returns the change from -> to in percent.
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// Trigger evaluates the last bar of candles.
func (d *SignalDetector) Trigger(candles []model.Candle, atr VolatilitySeries) (model.Signal, bool) {
	return d.TriggerAt(candles, atr, len(candles)-1)
}

// TriggerAt evaluates bar i against bar i-1. Bars without a defined ATR are skipped.
func (d *SignalDetector) TriggerAt(candles []model.Candle, atr VolatilitySeries, i int) (model.Signal, bool) {
	if i < 1 || i >= len(candles) {
		return model.Signal{}, false
	}
	vol, ok := atr.At(i)
	if !ok {
		return model.Signal{}, false
	}

	prev, last := candles[i-1].Close, candles[i].Close
	change := PercentChange(prev, last)
	if math.Abs(change) <= d.threshold {
		return model.Signal{}, false
	}

	side := model.SideLong
	if change < 0 {
		side = model.SideShort
	}
	if !d.allows(side) {
		d.logger.Debug("signal_direction_filtered",
			zap.String("symbol", d.symbol),
			zap.String("side", string(side)),
			zap.Float64("change_pct", change),
		)
		return model.Signal{}, false
	}

	return model.Signal{
		Symbol:         d.symbol,
		Side:           side,
		ReferencePrice: last,
		ChangePct:      change,
		ATR:            vol,
		TriggeredAt:    candles[i].Time,
		State:          model.SignalPending,
	}, true
}

// Wait blocks for delay before the re-check. Cancellation during the wait moves
// the signal to Rejected and returns the context error.
func (d *SignalDetector) Wait(ctx context.Context, sig *model.Signal, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		reject(sig, RejectCancelled)
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Confirm re-checks a pending signal against the latest close. It confirms only
// when the change from the trigger price still exceeds the threshold in the same
// direction and nothing is open on the instrument.
func (d *SignalDetector) Confirm(sig *model.Signal, latest float64, positionOpen bool) bool {
	if sig.State != model.SignalPending {
		return sig.Confirmed()
	}

	change := PercentChange(sig.ReferencePrice, latest)
	switch {
	case positionOpen:
		reject(sig, RejectPositionOpen)
	case !d.exceeds(change, sig.Side):
		reject(sig, RejectThreshold)
	default:
		sig.State = model.SignalConfirmed
	}

	d.logger.Debug("signal_rechecked",
		zap.String("symbol", sig.Symbol),
		zap.String("side", string(sig.Side)),
		zap.Float64("reference", sig.ReferencePrice),
		zap.Float64("latest", latest),
		zap.Float64("change_pct", change),
		zap.String("state", string(sig.State)),
	)
	return sig.Confirmed()
}

func (d *SignalDetector) exceeds(change float64, side model.Side) bool {
	if side == model.SideShort {
		return change < -d.threshold
	}
	return change > d.threshold
}

func (d *SignalDetector) allows(side model.Side) bool {
	switch d.direction {
	case config.DirectionLong:
		return side == model.SideLong
	case config.DirectionShort:
		return side == model.SideShort
	default:
		return true
	}
}

func reject(sig *model.Signal, reason string) {
	sig.State = model.SignalRejected
	sig.Reason = reason
}
