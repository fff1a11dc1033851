package engine

import (
	"time"

	"momentum-trade/internal/model"
)

// EquityCurve tracks balance against its running peak and records one
// snapshot per evaluated bar.
type EquityCurve struct {
	peak      float64
	snapshots []model.EquitySnapshot
}

// NewEquityCurve starts a curve at the initial balance.
func NewEquityCurve(initial float64) *EquityCurve {
	return &EquityCurve{peak: initial}
}

// Record appends a snapshot for balance at bar index.
func (c *EquityCurve) Record(index int, at time.Time, balance float64) model.EquitySnapshot {
	snap := Drawdown(model.EquitySnapshot{
		Index:      index,
		Time:       at,
		Balance:    balance,
		MaxBalance: c.peak,
	})
	c.peak = snap.MaxBalance
	c.snapshots = append(c.snapshots, snap)
	return snap
}

// Peak returns the highest balance seen so far.
func (c *EquityCurve) Peak() float64 {
	return c.peak
}

// Snapshots returns a copy of the recorded snapshots.
func (c *EquityCurve) Snapshots() []model.EquitySnapshot {
	out := make([]model.EquitySnapshot, len(c.snapshots))
	copy(out, c.snapshots)
	return out
}

// Drawdown recalculates the peak and drawdown fields of a snapshot.
// The peak never decreases and the drawdown fraction is never negative.
func Drawdown(snap model.EquitySnapshot) model.EquitySnapshot {
	if snap.Balance > snap.MaxBalance || snap.MaxBalance == 0 {
		snap.MaxBalance = snap.Balance
	}
	snap.DrawdownPct = 0
	if snap.MaxBalance > 0 && snap.Balance < snap.MaxBalance {
		snap.DrawdownPct = (snap.MaxBalance - snap.Balance) / snap.MaxBalance
	}
	return snap
}
