package engine

import (
	"errors"
	"fmt"
	"math"

	"momentum-trade/internal/config"
	"momentum-trade/internal/model"
)

// ErrInvalidStops is returned when derived levels do not straddle the entry price.
var ErrInvalidStops = errors.New("invalid stop levels")

// StopCalculator derives stop-loss and take-profit prices from either an ATR
// multiple pair or a fixed percentage pair.
type StopCalculator struct {
	policy config.StopPolicy
	slMult float64
	tpMult float64
	slPct  float64
	tpPct  float64
}

// NewStopCalculator creates a calculator from risk settings.
func NewStopCalculator(cfg config.RiskConfig) *StopCalculator {
	return &StopCalculator{
		policy: cfg.StopPolicy,
		slMult: cfg.StopLossMultiple,
		tpMult: cfg.TakeProfitMultiple,
		slPct:  cfg.StopLossPercent,
		tpPct:  cfg.TakeProfitPercent,
	}
}

// Levels returns the stop levels for an entry at price. atr is ignored by the
// fixed-percent policy.
func (c *StopCalculator) Levels(price float64, side model.Side, atr float64) (model.StopLevels, error) {
	if price <= 0 {
		return model.StopLevels{}, fmt.Errorf("%w: non-positive price %f", ErrInvalidStops, price)
	}

	var risk, reward float64
	switch c.policy {
	case config.StopATRMultiple:
		risk, reward = atr*c.slMult, atr*c.tpMult
	case config.StopFixedPercent:
		risk, reward = price*c.slPct/100, price*c.tpPct/100
	default:
		return model.StopLevels{}, fmt.Errorf("%w: unknown policy %q", ErrInvalidStops, c.policy)
	}

	sign := side.Sign()
	levels := model.StopLevels{
		StopLoss:   price - sign*risk,
		TakeProfit: price + sign*reward,
	}
	if !Straddles(levels, price, side) {
		return model.StopLevels{}, fmt.Errorf("%w: sl=%f tp=%f price=%f side=%s",
			ErrInvalidStops, levels.StopLoss, levels.TakeProfit, price, side)
	}
	return levels, nil
}

// Straddles reports whether the levels sit on the correct sides of price.
func Straddles(levels model.StopLevels, price float64, side model.Side) bool {
	if side == model.SideShort {
		return levels.TakeProfit < price && price < levels.StopLoss
	}
	return levels.StopLoss < price && price < levels.TakeProfit
}

// RMultiple expresses the move from entry to exit in units of the initial risk distance.
func RMultiple(side model.Side, entry, exit, stopLoss float64) float64 {
	risk := math.Abs(entry - stopLoss)
	if risk == 0 {
		return 0
	}
	return (exit - entry) * side.Sign() / risk
}
