package engine

import (
	"errors"
	"fmt"

	"momentum-trade/internal/config"
	"momentum-trade/internal/model"

	"github.com/shopspring/decimal"
)

// ErrInvalidSizing is returned when a volume cannot be derived from the inputs.
var ErrInvalidSizing = errors.New("invalid sizing input")

// Sizer converts account equity into a venue-tradable volume.
type Sizer struct {
	policy   config.SizingPolicy
	fraction float64
	divisor  float64
	min      float64
	step     float64
	max      float64
}

// NewSizer creates a sizer from risk settings. Volume limits come from the config
// until WithLimits applies the venue's own constraints.
func NewSizer(cfg config.RiskConfig) *Sizer {
	return &Sizer{
		policy:   cfg.SizingPolicy,
		fraction: cfg.RiskFraction,
		divisor:  cfg.EquityDivisor,
		min:      cfg.VolumeMin,
		step:     cfg.VolumeStep,
		max:      cfg.VolumeMax,
	}
}

// WithLimits returns a copy using the venue's volume constraints where they are set.
func (s *Sizer) WithLimits(info model.SymbolInfo) *Sizer {
	out := *s
	if info.VolumeMin > 0 {
		out.min = info.VolumeMin
	}
	if info.VolumeStep > 0 {
		out.step = info.VolumeStep
	}
	if info.VolumeMax > 0 {
		out.max = info.VolumeMax
	}
	return &out
}

// RiskAmount returns the money put at risk for the given equity.
func (s *Sizer) RiskAmount(equity float64) float64 {
	if s.divisor > 0 {
		return equity / s.divisor
	}
	return equity * s.fraction
}

// Size returns the sizing for one entry. The denominator is the price for the
// fixed-fraction policy and the ATR for the ATR-based policy.
func (s *Sizer) Size(equity, price, atr float64) (model.PositionSizing, error) {
	if equity <= 0 {
		return model.PositionSizing{}, fmt.Errorf("%w: equity %f", ErrInvalidSizing, equity)
	}

	denominator := price
	if s.policy == config.SizingATRBased {
		denominator = atr
	}
	if denominator <= 0 {
		return model.PositionSizing{}, fmt.Errorf("%w: %s denominator %f", ErrInvalidSizing, s.policy, denominator)
	}

	risk := s.RiskAmount(equity)
	raw := risk / denominator
	return model.PositionSizing{
		RiskAmount:    risk,
		RawVolume:     raw,
		RoundedVolume: RoundVolume(raw, s.step, s.min, s.max),
	}, nil
}

// RoundVolume rounds raw to the nearest multiple of step and clamps it to
// [min, max]. The bounds are aligned to step first so the result is always on-step.
// A non-positive max disables the upper bound.
func RoundVolume(raw, step, minVol, maxVol float64) float64 {
	if step <= 0 {
		step = minVol
	}
	if step <= 0 {
		return 0
	}
	stepD := decimal.NewFromFloat(step)
	minD := decimal.NewFromFloat(minVol).Div(stepD).Ceil().Mul(stepD)
	if !minD.IsPositive() {
		minD = stepD
	}

	vol := decimal.NewFromFloat(raw).Div(stepD).Round(0).Mul(stepD)
	if vol.LessThan(minD) {
		vol = minD
	}
	if maxVol > 0 {
		maxD := decimal.NewFromFloat(maxVol).Div(stepD).Floor().Mul(stepD)
		if maxD.GreaterThanOrEqual(minD) && vol.GreaterThan(maxD) {
			vol = maxD
		}
	}
	return vol.InexactFloat64()
}
