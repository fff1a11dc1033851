package engine

import (
	"testing"

	"momentum-trade/internal/config"
	"momentum-trade/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func atrStops() *StopCalculator {
	return NewStopCalculator(config.RiskConfig{
		StopPolicy:         config.StopATRMultiple,
		StopLossMultiple:   1.5,
		TakeProfitMultiple: 2.5,
	})
}

func TestLevels_ATRMultiple(t *testing.T) {
	levels, err := atrStops().Levels(1000, model.SideLong, 10)
	require.NoError(t, err)
	assert.InDelta(t, 985.0, levels.StopLoss, 1e-9)
	assert.InDelta(t, 1025.0, levels.TakeProfit, 1e-9)
	assert.InDelta(t, 1.667, RMultiple(model.SideLong, 1000, levels.TakeProfit, levels.StopLoss), 1e-3)

	short, err := atrStops().Levels(1000, model.SideShort, 10)
	require.NoError(t, err)
	assert.InDelta(t, 1015.0, short.StopLoss, 1e-9)
	assert.InDelta(t, 975.0, short.TakeProfit, 1e-9)
	assert.InDelta(t, -1.0, RMultiple(model.SideShort, 1000, short.StopLoss, short.StopLoss), 1e-9)
}

func TestLevels_FixedPercent(t *testing.T) {
	calc := NewStopCalculator(config.RiskConfig{
		StopPolicy:        config.StopFixedPercent,
		StopLossPercent:   5,
		TakeProfitPercent: 8,
	})

	levels, err := calc.Levels(200, model.SideLong, 0)
	require.NoError(t, err)
	assert.InDelta(t, 190.0, levels.StopLoss, 1e-9)
	assert.InDelta(t, 216.0, levels.TakeProfit, 1e-9)
	assert.True(t, Straddles(levels, 200, model.SideLong))
}

func TestLevels_Invalid(t *testing.T) {
	_, err := atrStops().Levels(1000, model.SideLong, 0)
	assert.ErrorIs(t, err, ErrInvalidStops, "zero ATR collapses the levels onto the price")

	_, err = atrStops().Levels(0, model.SideLong, 10)
	assert.ErrorIs(t, err, ErrInvalidStops)

	_, err = NewStopCalculator(config.RiskConfig{StopPolicy: "trailing"}).Levels(1000, model.SideLong, 10)
	assert.ErrorIs(t, err, ErrInvalidStops)
}

func TestRMultiple_ZeroRisk(t *testing.T) {
	assert.Zero(t, RMultiple(model.SideLong, 100, 110, 100))
}
