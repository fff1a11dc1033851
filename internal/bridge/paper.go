package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"momentum-trade/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ Venue = (*Paper)(nil)

// Paper is an in-memory venue that replays a candle series. Market orders fill at
// the current quote; open positions are closed when a later bar touches their
// take-profit (checked first) or stop-loss, producing closing deals.
type Paper struct {
	mu         sync.Mutex
	store      *Store
	info       model.SymbolInfo
	candles    []model.Candle
	cursor     int
	spread     float64
	connected  bool
	finished   bool
	nextTicket int64
	now        func() time.Time
	logger     *zap.Logger
}

// NewPaper creates a paper venue for one instrument. The replay starts at the first candle.
func NewPaper(info model.SymbolInfo, candles []model.Candle, balance, spread float64) *Paper {
	store := NewStore()
	store.SetAccount(model.AccountState{Balance: balance, Equity: balance})
	return &Paper{
		store:      store,
		info:       info,
		candles:    candles,
		spread:     spread,
		nextTicket: 1,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
}

// SetLogger sets the structured logger for the venue.
func (p *Paper) SetLogger(logger *zap.Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// SetClock replaces the wall clock used to stamp ticks and deals.
func (p *Paper) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// Connect opens the venue.
func (p *Paper) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.candles) == 0 {
		return fmt.Errorf("paper venue for %s: %w", p.info.Symbol, ErrNoData)
	}
	p.connected = true
	return nil
}

// Login records the account identity. Paper accepts any credentials.
func (p *Paper) Login(ctx context.Context, login, password, server string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return ErrNotConnected
	}
	acct := p.store.Account()
	acct.Login = login
	acct.Server = server
	p.store.SetAccount(acct)
	return nil
}

// Close shuts the venue down.
func (p *Paper) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

// Seek moves the replay cursor to bar i without resolving positions.
func (p *Paper) Seek(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 {
		i = 0
	}
	if i >= len(p.candles) {
		i = len(p.candles) - 1
	}
	p.cursor = i
}

// Cursor returns the index of the current bar.
func (p *Paper) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Advance moves to the next bar and resolves open positions against it.
// It returns false once the series is exhausted, after which the market is closed.
func (p *Paper) Advance() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursor+1 >= len(p.candles) {
		p.finished = true
		return false
	}
	p.cursor++
	bar := p.candles[p.cursor]

	for _, pos := range p.store.GetPositions(p.info.Symbol) {
		if exit, ok := touched(pos, bar); ok {
			p.closePosition(pos, exit)
		}
	}
	return true
}

// Run advances the replay every interval until ctx is done or the series ends.
func (p *Paper) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	p.logger.Info("paper_replay_started",
		zap.String("symbol", p.info.Symbol),
		zap.Int("bars", len(p.candles)),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.Advance() {
				p.logger.Info("paper_replay_finished", zap.String("symbol", p.info.Symbol))
				return
			}
		}
	}
}

// Candles returns up to count bars ending at the current bar. The replayed
// series has a fixed bar size, so timeframe is not used.
func (p *Paper) Candles(ctx context.Context, symbol string, timeframe time.Duration, count int) ([]model.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(symbol); err != nil {
		return nil, err
	}
	visible := p.candles[:p.cursor+1]
	if count > 0 && count < len(visible) {
		visible = visible[len(visible)-count:]
	}
	out := make([]model.Candle, len(visible))
	copy(out, visible)
	return out, nil
}

// Tick returns a quote around the current close.
func (p *Paper) Tick(ctx context.Context, symbol string) (model.Tick, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(symbol); err != nil {
		return model.Tick{}, err
	}
	return p.quote(), nil
}

// AccountState returns balance and equity marked at the current close.
func (p *Paper) AccountState(ctx context.Context) (model.AccountState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return model.AccountState{}, ErrNotConnected
	}
	acct := p.store.Account()
	last := p.candles[p.cursor].Close
	floating := 0.0
	for _, pos := range p.store.GetPositions(p.info.Symbol) {
		floating += (last - pos.Price) * pos.Side.Sign() * pos.Volume
	}
	acct.Equity = acct.Balance + floating
	acct.Time = p.now()
	return acct, nil
}

// SymbolInfo returns the trading constraints of the replayed instrument.
func (p *Paper) SymbolInfo(ctx context.Context, symbol string) (model.SymbolInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(symbol); err != nil {
		return model.SymbolInfo{}, err
	}
	return p.info, nil
}

// OpenPositions returns open positions on symbol.
func (p *Paper) OpenPositions(ctx context.Context, symbol string) ([]model.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(symbol); err != nil {
		return nil, err
	}
	return p.store.GetPositions(symbol), nil
}

// PendingOrders always returns 0; paper fills market orders immediately.
func (p *Paper) PendingOrders(ctx context.Context, symbol string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(symbol); err != nil {
		return 0, err
	}
	return 0, nil
}

// SendOrder fills a market order at the current quote.
func (p *Paper) SendOrder(ctx context.Context, req model.OrderRequest) (model.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(req.Symbol); err != nil {
		return model.OrderResult{}, err
	}

	if p.finished {
		return model.OrderResult{Retcode: RetcodeMarketClosed, Comment: "market closed"}, nil
	}
	if !p.tradable(req.Volume) {
		return model.OrderResult{Retcode: RetcodeInvalidVolume, Comment: "invalid volume"}, nil
	}

	q := p.quote()
	price := q.Ask
	dealType := model.DealBuy
	if req.Side == model.SideShort {
		price = q.Bid
		dealType = model.DealSell
	}
	if !validStops(req, price) {
		return model.OrderResult{Retcode: RetcodeInvalidStops, Comment: "invalid stops"}, nil
	}

	ticket := p.ticket()
	now := p.now()
	p.store.AddPosition(model.Position{
		Ticket:     ticket,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Volume:     req.Volume,
		Price:      price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Magic:      req.Magic,
		Comment:    req.Comment,
		OpenTime:   now,
	})
	p.store.AppendDeal(model.DealRecord{
		Ticket:  p.ticket(),
		Order:   ticket,
		Symbol:  req.Symbol,
		Type:    dealType,
		Entry:   model.DealEntryIn,
		Volume:  req.Volume,
		Price:   price,
		Magic:   req.Magic,
		Comment: req.Comment,
		Time:    now,
	})

	p.logger.Info("paper_order_filled",
		zap.Int64("ticket", ticket),
		zap.String("side", string(req.Side)),
		zap.Float64("volume", req.Volume),
		zap.Float64("price", price),
	)

	return model.OrderResult{
		Retcode: model.RetcodeDone,
		Ticket:  ticket,
		Volume:  req.Volume,
		Price:   price,
		Comment: "done",
	}, nil
}

// Deals returns executed deals stamped within [from, to].
func (p *Paper) Deals(ctx context.Context, from, to time.Time) ([]model.DealRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, ErrNotConnected
	}
	return p.store.DealsBetween(from, to), nil
}

// check must be called with p.mu held.
func (p *Paper) check(symbol string) error {
	if !p.connected {
		return ErrNotConnected
	}
	if symbol != p.info.Symbol {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return nil
}

func (p *Paper) quote() model.Tick {
	last := p.candles[p.cursor].Close
	return model.Tick{
		Symbol: p.info.Symbol,
		Bid:    last - p.spread/2,
		Ask:    last + p.spread/2,
		Time:   p.now(),
	}
}

func (p *Paper) ticket() int64 {
	t := p.nextTicket
	p.nextTicket++
	return t
}

func (p *Paper) tradable(volume float64) bool {
	if volume < p.info.VolumeMin || volume <= 0 {
		return false
	}
	if p.info.VolumeMax > 0 && volume > p.info.VolumeMax {
		return false
	}
	if p.info.VolumeStep <= 0 {
		return true
	}
	return decimal.NewFromFloat(volume).Mod(decimal.NewFromFloat(p.info.VolumeStep)).IsZero()
}

func (p *Paper) closePosition(pos model.Position, exit float64) {
	profit := (exit - pos.Price) * pos.Side.Sign() * pos.Volume
	p.store.RemovePosition(pos.Symbol, pos.Ticket)
	balance := p.store.AddBalance(profit)

	dealType := model.DealSell
	if pos.Side == model.SideShort {
		dealType = model.DealBuy
	}
	p.store.AppendDeal(model.DealRecord{
		Ticket:  p.ticket(),
		Order:   pos.Ticket,
		Symbol:  pos.Symbol,
		Type:    dealType,
		Entry:   model.DealEntryOut,
		Volume:  pos.Volume,
		Price:   exit,
		Profit:  profit,
		Magic:   pos.Magic,
		Comment: pos.Comment,
		Time:    p.now(),
	})

	p.logger.Info("paper_position_closed",
		zap.Int64("ticket", pos.Ticket),
		zap.Float64("exit", exit),
		zap.Float64("profit", profit),
		zap.Float64("balance", balance),
	)
}

// touched resolves a position against one bar, take-profit first.
func touched(pos model.Position, bar model.Candle) (float64, bool) {
	if pos.Side == model.SideShort {
		if pos.TakeProfit > 0 && bar.Low <= pos.TakeProfit {
			return pos.TakeProfit, true
		}
		if pos.StopLoss > 0 && bar.High >= pos.StopLoss {
			return pos.StopLoss, true
		}
		return 0, false
	}
	if pos.TakeProfit > 0 && bar.High >= pos.TakeProfit {
		return pos.TakeProfit, true
	}
	if pos.StopLoss > 0 && bar.Low <= pos.StopLoss {
		return pos.StopLoss, true
	}
	return 0, false
}

func validStops(req model.OrderRequest, price float64) bool {
	if req.Side == model.SideShort {
		return (req.StopLoss == 0 || req.StopLoss > price) && (req.TakeProfit == 0 || req.TakeProfit < price)
	}
	return (req.StopLoss == 0 || req.StopLoss < price) && (req.TakeProfit == 0 || req.TakeProfit > price)
}
