// Package model defines shared data types used across all momentum-trade modules.
package model

import "time"

// Side represents a trading direction.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Sign returns +1 for long and -1 for short.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// ExitReason records how a simulated trade was resolved.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitNone       ExitReason = "NONE"
)

// SignalState tracks a signal through the confirmation protocol.
type SignalState string

const (
	SignalPending   SignalState = "PENDING_CONFIRMATION"
	SignalConfirmed SignalState = "CONFIRMED"
	SignalRejected  SignalState = "REJECTED"
)

// DealType is the side of an executed deal.
type DealType string

const (
	DealBuy  DealType = "BUY"
	DealSell DealType = "SELL"
)

// DealEntry tells whether a deal opened or closed a position.
type DealEntry string

const (
	DealEntryIn    DealEntry = "IN"
	DealEntryOut   DealEntry = "OUT"
	DealEntryInOut DealEntry = "INOUT"
)

// TimeInForce and FillPolicy values understood by the order gateway.
type TimeInForce string

const (
	TimeGTC TimeInForce = "GTC"
	TimeDay TimeInForce = "DAY"
)

type FillPolicy string

const (
	FillIOC FillPolicy = "IOC"
	FillFOK FillPolicy = "FOK"
)

// RetcodeDone is the gateway status code for an accepted order.
const RetcodeDone = 10009

// Candle is a single OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Tick is the current bid/ask for a symbol.
type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// Signal is a momentum event awaiting or past confirmation.
type Signal struct {
	Symbol         string      `json:"symbol"`
	Side           Side        `json:"side"`
	ReferencePrice float64     `json:"referencePrice"`
	ChangePct      float64     `json:"changePct"`
	ATR            float64     `json:"atr"`
	TriggeredAt    time.Time   `json:"triggeredAt"`
	State          SignalState `json:"state"`
	Reason         string      `json:"reason,omitempty"`
}

// Confirmed reports whether the signal passed its re-check.
func (s Signal) Confirmed() bool {
	return s.State == SignalConfirmed
}

// StopLevels holds the protective price levels for one entry.
type StopLevels struct {
	StopLoss   float64 `json:"stopLoss"`
	TakeProfit float64 `json:"takeProfit"`
}

// PositionSizing is the output of the risk sizer. Only RoundedVolume is ever submitted.
type PositionSizing struct {
	RiskAmount    float64 `json:"riskAmount"`
	RawVolume     float64 `json:"rawVolume"`
	RoundedVolume float64 `json:"roundedVolume"`
}

// Trade is a simulated position resolved by the backtest.
type Trade struct {
	ID         int        `json:"id"`
	Side       Side       `json:"side"`
	EntryIndex int        `json:"entryIndex"`
	EntryTime  time.Time  `json:"entryTime"`
	EntryPrice float64    `json:"entryPrice"`
	Volume     float64    `json:"volume"`
	StopLoss   float64    `json:"stopLoss"`
	TakeProfit float64    `json:"takeProfit"`
	ExitIndex  int        `json:"exitIndex"`
	ExitTime   time.Time  `json:"exitTime"`
	ExitPrice  float64    `json:"exitPrice"`
	ExitReason ExitReason `json:"exitReason"`
	RMultiple  float64    `json:"rMultiple"`
	Fees       float64    `json:"fees"`
	PnL        float64    `json:"pnl"`
}

// Resolved reports whether the trade hit either of its bounds.
func (t Trade) Resolved() bool {
	return t.ExitReason == ExitTakeProfit || t.ExitReason == ExitStopLoss
}

// EquitySnapshot is appended once per evaluated bar.
type EquitySnapshot struct {
	Index       int       `json:"index"`
	Time        time.Time `json:"time"`
	Balance     float64   `json:"balance"`
	MaxBalance  float64   `json:"maxBalance"`
	DrawdownPct float64   `json:"drawdownPct"` // fraction in [0,1]
}

// DealRecord is an executed deal reported by the venue.
type DealRecord struct {
	Ticket  int64     `json:"ticket"`
	Order   int64     `json:"order"`
	Symbol  string    `json:"symbol"`
	Type    DealType  `json:"type"`
	Entry   DealEntry `json:"entry"`
	Volume  float64   `json:"volume"`
	Price   float64   `json:"price"`
	Profit  float64   `json:"profit"`
	Magic   int       `json:"magic"`
	Comment string    `json:"comment"`
	Time    time.Time `json:"time"`
}

// SymbolInfo holds venue trading constraints for an instrument.
type SymbolInfo struct {
	Symbol     string  `json:"symbol"`
	VolumeMin  float64 `json:"volumeMin"`
	VolumeStep float64 `json:"volumeStep"`
	VolumeMax  float64 `json:"volumeMax"`
	Digits     int     `json:"digits"`
	Visible    bool    `json:"visible"`
}

// AccountState represents the current state of a trading account.
type AccountState struct {
	Login   string    `json:"login"`
	Server  string    `json:"server"`
	Balance float64   `json:"balance"`
	Equity  float64   `json:"equity"`
	Time    time.Time `json:"time"`
}

// Position is an open position on the venue.
type Position struct {
	Ticket     int64     `json:"ticket"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Volume     float64   `json:"volume"`
	Price      float64   `json:"price"`
	StopLoss   float64   `json:"stopLoss"`
	TakeProfit float64   `json:"takeProfit"`
	Magic      int       `json:"magic"`
	Comment    string    `json:"comment"`
	OpenTime   time.Time `json:"openTime"`
}

// OrderRequest is a market order handed to the execution gateway.
type OrderRequest struct {
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Volume      float64     `json:"volume"`
	Price       float64     `json:"price"`
	StopLoss    float64     `json:"stopLoss"`
	TakeProfit  float64     `json:"takeProfit"`
	Deviation   int         `json:"deviation"`
	Magic       int         `json:"magic"`
	Comment     string      `json:"comment"`
	TimeInForce TimeInForce `json:"timeInForce"`
	Fill        FillPolicy  `json:"fill"`
}

// OrderResult is the gateway reply to an OrderRequest.
type OrderResult struct {
	Retcode int     `json:"retcode"`
	Ticket  int64   `json:"ticket"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	Comment string  `json:"comment"`
}

// OK reports whether the order was accepted.
func (r OrderResult) OK() bool {
	return r.Retcode == RetcodeDone
}

// APIResponse is the standard REST API response envelope.
type APIResponse struct {
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
