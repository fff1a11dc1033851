package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"momentum-trade/internal/bridge"
	"momentum-trade/internal/config"
	"momentum-trade/internal/metrics"
	"momentum-trade/internal/model"

	"go.uber.org/zap"
)

// RejectNoData marks a signal discarded because the re-check price was unavailable.
const RejectNoData = "data_unavailable"

// Engine is the live decision loop for one instrument. Each cycle runs to
// completion (fetch, trigger, confirmation wait, order, deal tracking) before the
// next one starts; cancellation is only honored between cycles and during the
// confirmation wait, where it rejects the pending signal.
type Engine struct {
	venue    bridge.Venue
	strategy config.StrategyConfig
	refresh  config.EquityRefresh
	detector *SignalDetector
	stops    *StopCalculator
	sizer    *Sizer
	tracker  *DealTracker
	now      func() time.Time

	mu       sync.Mutex
	equity   float64
	started  time.Time
	session  string
	lastSeen int64
	metrics  Metrics
	last     CycleResult
	logger   *zap.Logger
}

// Metrics tracks engine processing counters.
type Metrics struct {
	Cycles        int64     `json:"cycles"`
	Skipped       int64     `json:"skipped"`
	Signals       int64     `json:"signals"`
	Confirmed     int64     `json:"confirmed"`
	Rejected      int64     `json:"rejected"`
	Orders        int64     `json:"orders"`
	OrderFailures int64     `json:"orderFailures"`
	DealsReported int64     `json:"dealsReported"`
	LastCycleAt   time.Time `json:"lastCycleAt"`
}

// CycleResult describes what one decision cycle did.
type CycleResult struct {
	Outcome string                `json:"outcome"`
	ATR     float64               `json:"atr,omitempty"`
	Signal  *model.Signal         `json:"signal,omitempty"`
	Order   *model.OrderResult    `json:"order,omitempty"`
	Sizing  *model.PositionSizing `json:"sizing,omitempty"`
	Deal    *model.DealRecord     `json:"deal,omitempty"`
	At      time.Time             `json:"at"`
}

// Status represents the current engine state for API consumers.
type Status struct {
	Time      time.Time   `json:"time"`
	StartedAt time.Time   `json:"startedAt"`
	Session   string      `json:"session"`
	Symbol    string      `json:"symbol"`
	Equity    float64     `json:"equity"`
	LastSeen  int64       `json:"lastSeenTicket"`
	Metrics   Metrics     `json:"metrics"`
	Last      CycleResult `json:"last"`
}

// New creates an Engine from configuration and venue.
func New(cfg *config.Config, venue bridge.Venue) *Engine {
	logger := zap.NewNop()
	return &Engine{
		venue:    venue,
		strategy: cfg.Strategy,
		refresh:  cfg.Risk.EquityRefresh,
		detector: NewSignalDetector(cfg.Strategy, logger),
		stops:    NewStopCalculator(cfg.Risk),
		sizer:    NewSizer(cfg.Risk),
		tracker:  NewDealTracker(cfg.Strategy.Instrument, cfg.Strategy.Magic, logger),
		now:      time.Now,
		logger:   logger,
	}
}

// SetLogger sets the structured logger for the engine and its components.
func (e *Engine) SetLogger(logger *zap.Logger) {
	if logger == nil {
		return
	}
	e.logger = logger
	e.detector.logger = logger
	e.tracker.logger = logger
}

// SetSession tags logs and status with a session identifier.
func (e *Engine) SetSession(id string) {
	e.mu.Lock()
	e.session = id
	e.mu.Unlock()
	e.SetLogger(e.logger.With(zap.String("session", id)))
}

// Start samples account equity and applies the venue's volume constraints.
// Failures here are fatal for the process.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.refreshEquity(ctx); err != nil {
		return err
	}

	info, err := e.venue.SymbolInfo(ctx, e.strategy.Instrument)
	if err != nil {
		return fmt.Errorf("reading symbol info for %s: %w", e.strategy.Instrument, err)
	}
	if !info.Visible {
		return fmt.Errorf("symbol %s is not visible on the venue", e.strategy.Instrument)
	}
	e.sizer = e.sizer.WithLimits(info)

	e.mu.Lock()
	e.started = e.now()
	e.mu.Unlock()
	return nil
}

// Run polls Cycle every poll interval. It blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.strategy.PollInterval)
	defer ticker.Stop()

	e.logger.Info("engine_started",
		zap.String("symbol", e.strategy.Instrument),
		zap.Duration("poll_interval", e.strategy.PollInterval),
		zap.Duration("confirm_delay", e.strategy.ConfirmDelay),
		zap.Float64("equity", e.Equity()),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// select does not prefer Done when both are ready.
			if err := ctx.Err(); err != nil {
				return err
			}
			e.Cycle(ctx)
		}
	}
}

// Cycle runs one decision cycle followed by a deal-tracker update.
func (e *Engine) Cycle(ctx context.Context) CycleResult {
	// Venue calls must not be torn down by an interrupt mid-cycle.
	vctx := context.WithoutCancel(ctx)

	res := e.decide(ctx, vctx)
	if deal, ok := e.observeDeals(vctx); ok {
		res.Deal = &deal
	}
	res.At = e.now()

	e.record(res)
	return res
}

// Status returns the current engine status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Time:      e.now(),
		StartedAt: e.started,
		Session:   e.session,
		Symbol:    e.strategy.Instrument,
		Equity:    e.equity,
		LastSeen:  e.lastSeen,
		Metrics:   e.metrics,
		Last:      e.last,
	}
}

// StatusJSON returns Status encoded as JSON.
func (e *Engine) StatusJSON() ([]byte, error) {
	return json.Marshal(e.Status())
}

// Equity returns the equity currently used for sizing.
func (e *Engine) Equity() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.equity
}

func (e *Engine) decide(ctx, vctx context.Context) CycleResult {
	symbol := e.strategy.Instrument

	if e.refresh == config.EquityCycle {
		if err := e.refreshEquity(vctx); err != nil {
			e.logger.Debug("cycle_skipped", zap.String("reason", "equity"), zap.Error(err))
			return CycleResult{Outcome: metrics.OutcomeSkipped}
		}
	}

	candles, err := e.venue.Candles(vctx, symbol, e.strategy.Timeframe, e.strategy.LookbackBars)
	if err != nil || len(candles) < 2 {
		e.logger.Debug("cycle_skipped", zap.String("reason", "candles"), zap.Error(err))
		return CycleResult{Outcome: metrics.OutcomeSkipped}
	}

	series := ATR(candles, e.strategy.ATRPeriod)
	atr, ok := series.Last()
	if !ok {
		e.logger.Debug("cycle_skipped", zap.String("reason", "atr_not_ready"), zap.Int("bars", len(candles)))
		return CycleResult{Outcome: metrics.OutcomeSkipped}
	}
	metrics.ATR.WithLabelValues(symbol).Set(atr)

	sig, ok := e.detector.Trigger(candles, series)
	if !ok {
		return CycleResult{Outcome: metrics.OutcomeNoSignal, ATR: atr}
	}
	metrics.Signals.WithLabelValues(symbol, "triggered").Inc()
	e.logger.Info("signal_triggered",
		zap.String("symbol", symbol),
		zap.String("side", string(sig.Side)),
		zap.Float64("reference", sig.ReferencePrice),
		zap.Float64("change_pct", sig.ChangePct),
		zap.Float64("atr", sig.ATR),
	)

	res := CycleResult{ATR: atr, Signal: &sig}
	if !e.confirm(ctx, vctx, &sig) {
		metrics.Signals.WithLabelValues(symbol, "rejected").Inc()
		e.logger.Info("signal_rejected",
			zap.String("symbol", symbol),
			zap.String("side", string(sig.Side)),
			zap.String("reason", sig.Reason),
		)
		res.Outcome = metrics.OutcomeRejected
		return res
	}
	metrics.Signals.WithLabelValues(symbol, "confirmed").Inc()

	order, sizing, err := e.submit(vctx, sig)
	res.Sizing = sizing
	res.Order = order
	if err != nil {
		metrics.Orders.WithLabelValues(symbol, "failed").Inc()
		e.logger.Warn("order_failed",
			zap.String("symbol", symbol),
			zap.String("side", string(sig.Side)),
			zap.Error(err),
		)
		res.Outcome = metrics.OutcomeOrderFailed
		return res
	}

	metrics.Orders.WithLabelValues(symbol, "accepted").Inc()
	e.logger.Info("order_placed",
		zap.String("symbol", symbol),
		zap.String("side", string(sig.Side)),
		zap.Int64("ticket", order.Ticket),
		zap.Float64("volume", order.Volume),
		zap.Float64("price", order.Price),
	)
	res.Outcome = metrics.OutcomeOrdered
	return res
}

// confirm waits out the confirmation delay and re-checks the signal. The open
// exposure query is the single-position precondition of the re-check.
func (e *Engine) confirm(ctx, vctx context.Context, sig *model.Signal) bool {
	if err := e.detector.Wait(ctx, sig, e.strategy.ConfirmDelay); err != nil {
		return false
	}

	latest, err := e.venue.Candles(vctx, sig.Symbol, e.strategy.Timeframe, 1)
	if err != nil || len(latest) == 0 {
		reject(sig, RejectNoData)
		return false
	}

	return e.detector.Confirm(sig, latest[len(latest)-1].Close, e.exposed(vctx, sig.Symbol))
}

// exposed reports whether a position or order is open on symbol. Query failures
// count as exposed so a duplicate entry is never sent.
func (e *Engine) exposed(ctx context.Context, symbol string) bool {
	positions, err := e.venue.OpenPositions(ctx, symbol)
	if err != nil {
		e.logger.Warn("positions_query_failed", zap.String("symbol", symbol), zap.Error(err))
		return true
	}
	orders, err := e.venue.PendingOrders(ctx, symbol)
	if err != nil {
		e.logger.Warn("orders_query_failed", zap.String("symbol", symbol), zap.Error(err))
		return true
	}
	return len(positions) > 0 || orders > 0
}

// submit prices, sizes and sends the order for a confirmed signal. There is no
// retry within the cycle.
func (e *Engine) submit(ctx context.Context, sig model.Signal) (*model.OrderResult, *model.PositionSizing, error) {
	tick, err := e.venue.Tick(ctx, sig.Symbol)
	if err != nil {
		return nil, nil, fmt.Errorf("reading tick: %w", err)
	}
	price := tick.Ask
	if sig.Side == model.SideShort {
		price = tick.Bid
	}

	levels, err := e.stops.Levels(price, sig.Side, sig.ATR)
	if err != nil {
		return nil, nil, err
	}
	sizing, err := e.sizer.Size(e.Equity(), price, sig.ATR)
	if err != nil {
		return nil, nil, err
	}

	req := model.OrderRequest{
		Symbol:      sig.Symbol,
		Side:        sig.Side,
		Volume:      sizing.RoundedVolume,
		Price:       price,
		StopLoss:    levels.StopLoss,
		TakeProfit:  levels.TakeProfit,
		Deviation:   e.strategy.Deviation,
		Magic:       e.strategy.Magic,
		Comment:     e.strategy.Comment,
		TimeInForce: model.TimeGTC,
		Fill:        model.FillIOC,
	}
	result, err := e.venue.SendOrder(ctx, req)
	if err != nil {
		return nil, &sizing, fmt.Errorf("sending order: %w", err)
	}
	if !result.OK() {
		return &result, &sizing, fmt.Errorf("order rejected: retcode=%d comment=%q", result.Retcode, result.Comment)
	}
	return &result, &sizing, nil
}

// observeDeals feeds the deal history window to the tracker. A failed fetch
// leaves the tracker untouched.
func (e *Engine) observeDeals(ctx context.Context) (model.DealRecord, bool) {
	to := e.now()
	deals, err := e.venue.Deals(ctx, to.Add(-e.strategy.DealLookback), to)
	if err != nil {
		e.logger.Debug("deal_history_skipped", zap.Error(err))
		return model.DealRecord{}, false
	}

	deal, ok := e.tracker.Observe(deals)
	if !ok {
		return model.DealRecord{}, false
	}
	metrics.DealsReported.WithLabelValues(deal.Symbol).Inc()
	e.logger.Info("deal_closed",
		zap.String("symbol", deal.Symbol),
		zap.Int64("ticket", deal.Ticket),
		zap.Int64("order", deal.Order),
		zap.String("type", string(deal.Type)),
		zap.Float64("volume", deal.Volume),
		zap.Float64("price", deal.Price),
		zap.Float64("profit", deal.Profit),
		zap.Time("time", deal.Time),
	)
	return deal, true
}

func (e *Engine) refreshEquity(ctx context.Context) error {
	acct, err := e.venue.AccountState(ctx)
	if err != nil {
		return fmt.Errorf("reading account equity: %w", err)
	}
	if acct.Equity <= 0 {
		return errors.New("reading account equity: non-positive equity")
	}
	e.mu.Lock()
	e.equity = acct.Equity
	e.mu.Unlock()
	metrics.Equity.Set(acct.Equity)
	return nil
}

func (e *Engine) record(res CycleResult) {
	metrics.Cycles.WithLabelValues(e.strategy.Instrument, res.Outcome).Inc()
	lastSeen, _ := e.tracker.LastSeen()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = lastSeen
	e.metrics.Cycles++
	e.metrics.LastCycleAt = res.At
	switch res.Outcome {
	case metrics.OutcomeSkipped:
		e.metrics.Skipped++
	case metrics.OutcomeRejected:
		e.metrics.Signals++
		e.metrics.Rejected++
	case metrics.OutcomeOrdered:
		e.metrics.Signals++
		e.metrics.Confirmed++
		e.metrics.Orders++
	case metrics.OutcomeOrderFailed:
		e.metrics.Signals++
		e.metrics.Confirmed++
		e.metrics.OrderFailures++
	}
	if res.Deal != nil {
		e.metrics.DealsReported++
	}
	e.last = res
}
