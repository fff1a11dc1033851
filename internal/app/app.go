package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"momentum-trade/internal/api"
	"momentum-trade/internal/backtest"
	"momentum-trade/internal/bridge"
	"momentum-trade/internal/config"
	"momentum-trade/internal/engine"
	"momentum-trade/internal/logging"
	"momentum-trade/internal/marketdata"
	"momentum-trade/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// App is the application lifecycle manager.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
}

// New creates a new App instance.
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Run starts the live loop against the configured venue: connect, login, sample
// equity, then trade until SIGINT or SIGTERM. Connection, login and account
// failures are fatal.
func (a *App) Run() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	return a.run(sigCh)
}

// SetLogger replaces the logger built from the app config.
func (a *App) SetLogger(logger *zap.Logger) {
	a.logger = logger
}

// run trades until stop delivers a signal. The in-flight cycle always finishes
// before the venue is closed.
func (a *App) run(stop <-chan os.Signal) error {
	log, err := a.buildLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	session := uuid.NewString()
	log.Info("starting momentum",
		zap.String("session", session),
		zap.String("env", a.cfg.App.Env),
		zap.String("symbol", a.cfg.Strategy.Instrument),
		zap.String("venue", string(a.cfg.Venue.Mode)),
		zap.String("log_level", a.cfg.App.LogLevel),
	)

	venue, err := a.openPaper(log)
	if err != nil {
		return err
	}
	defer venue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := venue.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to venue: %w", err)
	}
	if err := venue.Login(ctx, a.cfg.Venue.Login, a.cfg.Password(), a.cfg.Venue.Server); err != nil {
		return fmt.Errorf("logging in to %s: %w", a.cfg.Venue.Server, err)
	}
	log.Info("venue_connected", zap.String("server", a.cfg.Venue.Server), zap.String("login", a.cfg.Venue.Login))

	eng := engine.New(a.cfg, venue)
	eng.SetLogger(log)
	eng.SetSession(session)
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 3)
	wg.Add(2)
	go func() {
		defer wg.Done()
		venue.Run(ctx, a.cfg.Venue.ReplayEvery)
	}()
	go func() {
		defer wg.Done()
		errCh <- eng.Run(ctx)
	}()
	if addr := a.cfg.API.ListenAddress; addr != "" {
		srv := api.NewServer(addr, eng, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- srv.Run(ctx)
		}()
	}

	var runErr error
	select {
	case sig := <-stop:
		log.Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("fatal_error", zap.Error(err))
			runErr = err
		}
	}

	cancel()
	wg.Wait()
	if err := venue.Close(); err != nil {
		log.Warn("venue_close_failed", zap.Error(err))
	}

	status := eng.Status()
	log.Info("momentum stopped",
		zap.Int64("cycles", status.Metrics.Cycles),
		zap.Int64("orders", status.Metrics.Orders),
		zap.Int64("deals_reported", status.Metrics.DealsReported),
	)
	return runErr
}

func (a *App) buildLogger() (*zap.Logger, error) {
	if a.logger != nil {
		return a.logger, nil
	}
	return logging.Build(a.cfg.App.LogLevel, a.cfg.App.LogFile)
}

// openPaper loads the replay series and builds the paper venue. The replay
// starts with a full lookback window already visible.
func (a *App) openPaper(log *zap.Logger) (*bridge.Paper, error) {
	if a.cfg.Venue.CandlesPath == "" {
		return nil, fmt.Errorf("%w: venue.candlesPath is required for the paper venue", config.ErrInvalidConfig)
	}
	candles, err := marketdata.Load(a.cfg.Venue.CandlesPath)
	if err != nil {
		return nil, err
	}

	info := model.SymbolInfo{
		Symbol:     a.cfg.Strategy.Instrument,
		VolumeMin:  a.cfg.Risk.VolumeMin,
		VolumeStep: a.cfg.Risk.VolumeStep,
		VolumeMax:  a.cfg.Risk.VolumeMax,
		Visible:    true,
	}
	venue := bridge.NewPaper(info, candles, a.cfg.Venue.Balance, a.cfg.Venue.Spread)
	venue.SetLogger(log)
	venue.Seek(a.cfg.Strategy.LookbackBars - 1)

	log.Info("paper_venue_loaded",
		zap.String("path", a.cfg.Venue.CandlesPath),
		zap.Int("bars", len(candles)),
		zap.Float64("balance", a.cfg.Venue.Balance),
	)
	return venue, nil
}

// Backtest replays the backtest candle file through the simulator, prints the
// statistics to out and optionally exports the trade list.
func (a *App) Backtest(out io.Writer, listTrades bool) (*backtest.Statistics, error) {
	log, err := a.buildLogger()
	if err != nil {
		return nil, err
	}
	defer log.Sync()

	path := a.cfg.Backtest.CandlesPath
	if path == "" {
		path = a.cfg.Venue.CandlesPath
	}
	if path == "" {
		return nil, fmt.Errorf("%w: backtest.candlesPath is required", config.ErrInvalidConfig)
	}
	candles, err := marketdata.Load(path)
	if err != nil {
		return nil, err
	}

	res, err := backtest.NewSimulator(a.cfg, log).Run(candles)
	if err != nil {
		return nil, fmt.Errorf("running backtest: %w", err)
	}
	stats := res.Statistics()

	if listTrades {
		res.PrintTrades(out)
	}
	stats.Print(out)

	if a.cfg.Backtest.TradesOut != "" {
		if err := backtest.ExportTrades(a.cfg.Backtest.TradesOut, res.Trades); err != nil {
			return stats, err
		}
	}

	log.Info("backtest_finished",
		zap.String("run_id", res.RunID),
		zap.String("symbol", res.Symbol),
		zap.Int("bars", len(candles)),
		zap.Int("trades", stats.TotalTrades),
		zap.Float64("final_balance", stats.FinalBalance),
		zap.Float64("max_drawdown_pct", stats.MaxDrawdownPct),
		zap.String("trades_out", a.cfg.Backtest.TradesOut),
	)
	return stats, nil
}
