package engine

import (
	"math"

	"momentum-trade/internal/model"
)

// DefaultATRPeriod is the rolling window used when none is configured.
const DefaultATRPeriod = 14

// VolatilitySeries is an ATR series aligned 1:1 with the candles it was computed from.
// Entries before the window fills are undefined and reported as not ready.
type VolatilitySeries struct {
	period int
	values []float64 // NaN where undefined
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(cur model.Candle, prevClose float64) float64 {
	return math.Max(cur.High-cur.Low, math.Max(
		math.Abs(cur.High-prevClose),
		math.Abs(cur.Low-prevClose),
	))
}

// ATR computes the Average True Range of candles as the arithmetic mean of the
// trailing period true ranges. True range needs a previous close, so bar 0 never
// has one and the first defined ATR sits at index period.
func ATR(candles []model.Candle, period int) VolatilitySeries {
	if period <= 0 {
		period = DefaultATRPeriod
	}
	n := len(candles)
	series := VolatilitySeries{period: period, values: make([]float64, n)}
	if n == 0 {
		return series
	}

	tr := make([]float64, n)
	series.values[0] = math.NaN()
	for i := 1; i < n; i++ {
		tr[i] = TrueRange(candles[i], candles[i-1].Close)
		if i < period {
			series.values[i] = math.NaN()
			continue
		}
		series.values[i] = sma(tr[i-period+1 : i+1])
	}
	return series
}

// Period returns the rolling window length.
func (s VolatilitySeries) Period() int {
	return s.period
}

// Len returns the number of entries, equal to the candle count.
func (s VolatilitySeries) Len() int {
	return len(s.values)
}

// At returns the ATR at index i and whether it is defined.
func (s VolatilitySeries) At(i int) (float64, bool) {
	if i < 0 || i >= len(s.values) || math.IsNaN(s.values[i]) {
		return 0, false
	}
	return s.values[i], true
}

// Last returns the most recent ATR and whether it is defined.
func (s VolatilitySeries) Last() (float64, bool) {
	return s.At(len(s.values) - 1)
}

// FirstReady returns the first index with a defined ATR, or -1 if none.
func (s VolatilitySeries) FirstReady() int {
	if len(s.values) <= s.period {
		return -1
	}
	return s.period
}

// sma calculates the simple moving average of a float64 slice.
func sma(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
