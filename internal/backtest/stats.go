package backtest

import (
	"fmt"
	"io"
	"math"
	"sort"

	"momentum-trade/internal/model"
)

// RBucketWidth is the width of one R-multiple distribution bucket.
const RBucketWidth = 0.5

// RBucket counts resolved trades whose R-multiple falls in [Lower, Lower+RBucketWidth).
type RBucket struct {
	Lower float64 `json:"lower"`
	Count int     `json:"count"`
}

// Statistics is the performance summary of one run.
type Statistics struct {
	// Basic
	TotalTrades int `json:"totalTrades"`
	Resolved    int `json:"resolved"`
	Abandoned   int `json:"abandoned"`
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`

	// P&L
	InitialBalance float64 `json:"initialBalance"`
	FinalBalance   float64 `json:"finalBalance"`
	NetPnL         float64 `json:"netPnl"`
	GrossProfit    float64 `json:"grossProfit"` // winning trades, after fees
	GrossLoss      float64 `json:"grossLoss"`   // losing trades after fees, magnitude
	Fees           float64 `json:"fees"`
	ProfitFactor   float64 `json:"profitFactor"`
	WinLossRatio   float64 `json:"winLossRatio"`

	// Risk
	MaxDrawdownPct float64   `json:"maxDrawdownPct"`
	AvgRMultiple   float64   `json:"avgRMultiple"`
	RDistribution  []RBucket `json:"rDistribution"`
}

// Aggregate computes statistics from the trade and equity sequences of a run.
// Trades that never touched a bound count toward Abandoned only.
//
// Ratios with a zero denominator are +Inf when the numerator is positive and 0
// otherwise.
func Aggregate(initial float64, equity []model.EquitySnapshot, trades []model.Trade) *Statistics {
	stats := &Statistics{
		TotalTrades:    len(trades),
		InitialBalance: initial,
		FinalBalance:   initial,
		RDistribution:  []RBucket{},
	}

	var rSum float64
	buckets := make(map[float64]int)
	for _, trade := range trades {
		stats.NetPnL += trade.PnL
		stats.Fees += trade.Fees
		if !trade.Resolved() {
			stats.Abandoned++
			continue
		}
		stats.Resolved++

		if trade.PnL > 0 {
			stats.Wins++
			stats.GrossProfit += trade.PnL
		} else if trade.PnL < 0 {
			stats.Losses++
			stats.GrossLoss -= trade.PnL
		}

		rSum += trade.RMultiple
		buckets[rBucket(trade.RMultiple)]++
	}

	if len(equity) > 0 {
		stats.FinalBalance = equity[len(equity)-1].Balance
	} else {
		stats.FinalBalance = initial + stats.NetPnL
	}

	for _, snap := range equity {
		if dd := snap.DrawdownPct * 100; dd > stats.MaxDrawdownPct {
			stats.MaxDrawdownPct = dd
		}
	}

	stats.ProfitFactor = ratio(stats.GrossProfit, stats.GrossLoss)
	stats.WinLossRatio = ratio(float64(stats.Wins), float64(stats.Losses))

	if stats.Resolved > 0 {
		stats.AvgRMultiple = rSum / float64(stats.Resolved)
	}

	for lower, count := range buckets {
		stats.RDistribution = append(stats.RDistribution, RBucket{Lower: lower, Count: count})
	}
	sort.Slice(stats.RDistribution, func(i, j int) bool {
		return stats.RDistribution[i].Lower < stats.RDistribution[j].Lower
	})

	return stats
}

func ratio(num, den float64) float64 {
	if den == 0 {
		if num > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return num / den
}

func rBucket(r float64) float64 {
	return math.Floor(r/RBucketWidth) * RBucketWidth
}

// Print writes a human-readable summary to w.
func (s *Statistics) Print(w io.Writer) {
	fmt.Fprintln(w, "\n=== Backtest Results ===")
	fmt.Fprintf(w, "Total Trades:     %d\n", s.TotalTrades)
	fmt.Fprintf(w, "Resolved:         %d\n", s.Resolved)
	fmt.Fprintf(w, "Abandoned:        %d\n", s.Abandoned)
	fmt.Fprintf(w, "Wins / Losses:    %d / %d\n\n", s.Wins, s.Losses)

	fmt.Fprintf(w, "Initial Balance:  %.2f\n", s.InitialBalance)
	fmt.Fprintf(w, "Final Balance:    %.2f\n", s.FinalBalance)
	fmt.Fprintf(w, "Net P&L:          %.2f\n", s.NetPnL)
	fmt.Fprintf(w, "Gross Profit:     %.2f (after fees)\n", s.GrossProfit)
	fmt.Fprintf(w, "Gross Loss:       %.2f (after fees)\n", s.GrossLoss)
	fmt.Fprintf(w, "Fees:             %.2f\n", s.Fees)
	fmt.Fprintf(w, "Profit Factor:    %.2f\n", s.ProfitFactor)
	fmt.Fprintf(w, "Win/Loss Ratio:   %.2f\n\n", s.WinLossRatio)

	fmt.Fprintf(w, "Max Drawdown:     %.2f%%\n", s.MaxDrawdownPct)
	fmt.Fprintf(w, "Avg R-Multiple:   %.2f\n", s.AvgRMultiple)

	if len(s.RDistribution) == 0 {
		return
	}
	fmt.Fprintln(w, "\nR Distribution:")
	for _, b := range s.RDistribution {
		fmt.Fprintf(w, "  [%+.1fR, %+.1fR)  %d\n", b.Lower, b.Lower+RBucketWidth, b.Count)
	}
}
