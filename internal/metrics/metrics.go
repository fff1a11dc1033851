// Package metrics exposes Prometheus collectors for the live decision loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Cycle outcomes used as label values.
const (
	OutcomeSkipped     = "skipped"
	OutcomeNoSignal    = "no_signal"
	OutcomeRejected    = "rejected"
	OutcomeOrdered     = "ordered"
	OutcomeOrderFailed = "order_failed"
)

var (
	Cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_cycles_total",
			Help: "Decision cycles by outcome.",
		},
		[]string{"symbol", "outcome"},
	)

	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_signals_total",
			Help: "Momentum signals by confirmation state.",
		},
		[]string{"symbol", "state"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_orders_total",
			Help: "Order submissions by result.",
		},
		[]string{"symbol", "result"},
	)

	DealsReported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_deals_reported_total",
			Help: "Closed deals reported by the deal tracker.",
		},
		[]string{"symbol"},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "momentum_equity",
			Help: "Account equity used for sizing.",
		},
	)

	ATR = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "momentum_atr",
			Help: "ATR at the latest evaluated bar.",
		},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(Cycles, Signals, Orders, DealsReported, Equity, ATR)
}
