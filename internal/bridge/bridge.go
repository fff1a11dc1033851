// Package bridge abstracts the trading venue consumed by the decision engine:
// market data, account information and order execution.
package bridge

import (
	"context"
	"errors"
	"time"

	"momentum-trade/internal/model"
)

var (
	// ErrNotConnected is returned by venue calls made before Connect or after Close.
	ErrNotConnected = errors.New("venue not connected")
	// ErrNoData is returned when the venue has nothing to serve for a request.
	ErrNoData = errors.New("no market data")
	// ErrUnknownSymbol is returned for instruments the venue does not list.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Gateway status codes besides model.RetcodeDone.
const (
	RetcodeInvalidVolume = 10014
	RetcodeInvalidStops  = 10016
	RetcodeMarketClosed  = 10018
)

// MarketData serves candles and quotes.
type MarketData interface {
	Candles(ctx context.Context, symbol string, timeframe time.Duration, count int) ([]model.Candle, error)
	Tick(ctx context.Context, symbol string) (model.Tick, error)
}

// Account serves equity, instrument constraints and current exposure.
type Account interface {
	AccountState(ctx context.Context) (model.AccountState, error)
	SymbolInfo(ctx context.Context, symbol string) (model.SymbolInfo, error)
	OpenPositions(ctx context.Context, symbol string) ([]model.Position, error)
	PendingOrders(ctx context.Context, symbol string) (int, error)
}

// Gateway submits orders and reports executed deals.
type Gateway interface {
	SendOrder(ctx context.Context, req model.OrderRequest) (model.OrderResult, error)
	Deals(ctx context.Context, from, to time.Time) ([]model.DealRecord, error)
}

// Venue is a connected trading venue.
type Venue interface {
	MarketData
	Account
	Gateway

	Connect(ctx context.Context) error
	Login(ctx context.Context, login, password, server string) error
	Close() error
}
