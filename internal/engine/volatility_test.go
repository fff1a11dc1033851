package engine

import (
	"testing"
	"time"

	"momentum-trade/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, o, h, l, c float64) model.Candle {
	return model.Candle{Time: t0.Add(time.Duration(i) * 10 * time.Minute), Open: o, High: h, Low: l, Close: c}
}

// flat builds bars whose open, high, low and close all equal the given close.
func flat(closes ...float64) []model.Candle {
	out := make([]model.Candle, len(closes))
	for i, c := range closes {
		out[i] = bar(i, c, c, c, c)
	}
	return out
}

func TestTrueRange(t *testing.T) {
	assert.Equal(t, 4.0, TrueRange(bar(1, 100, 104, 100, 103), 100))
	assert.Equal(t, 7.0, TrueRange(bar(1, 100, 101, 99, 100), 106), "gap down uses previous close")
	assert.Equal(t, 6.0, TrueRange(bar(1, 100, 103, 102, 103), 97), "gap up uses previous close")
}

func TestATR_WarmUp(t *testing.T) {
	candles := flat(100, 101, 103, 102, 104, 107)
	series := ATR(candles, 3)

	require.Equal(t, len(candles), series.Len())
	for i := 0; i < 3; i++ {
		_, ok := series.At(i)
		assert.False(t, ok, "index %d must be undefined", i)
	}
	assert.Equal(t, 3, series.FirstReady())

	v, ok := series.At(3)
	require.True(t, ok)
	assert.InDelta(t, (1.0+2.0+1.0)/3, v, 1e-9)

	last, ok := series.Last()
	require.True(t, ok)
	assert.InDelta(t, (1.0+2.0+3.0)/3, last, 1e-9)
}

func TestATR_NeverNegative(t *testing.T) {
	candles := []model.Candle{
		bar(0, 100, 102, 98, 101),
		bar(1, 101, 101, 95, 96),
		bar(2, 96, 99, 96, 98),
		bar(3, 98, 98, 90, 91),
		bar(4, 91, 97, 91, 96),
	}
	series := ATR(candles, 2)
	for i := series.FirstReady(); i < series.Len(); i++ {
		v, ok := series.At(i)
		require.True(t, ok)
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestATR_ShortSeries(t *testing.T) {
	series := ATR(flat(100, 101), 14)
	assert.Equal(t, -1, series.FirstReady())
	_, ok := series.Last()
	assert.False(t, ok)

	assert.Equal(t, 0, ATR(nil, 14).Len())
	assert.Equal(t, DefaultATRPeriod, ATR(nil, 0).Period())
}
