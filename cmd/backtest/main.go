// backtest replays a historical candle file through the momentum strategy and
// prints performance statistics.
package main

import (
	"flag"
	"fmt"
	"os"

	"momentum-trade/internal/app"
	"momentum-trade/internal/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	candles := flag.String("candles", "", "candle CSV, overrides backtest.candlesPath")
	tradesOut := flag.String("trades", "", "trade CSV output, overrides backtest.tradesOut")
	listTrades := flag.Bool("list", false, "print every trade")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *candles != "" {
		cfg.Backtest.CandlesPath = *candles
	}
	if *tradesOut != "" {
		cfg.Backtest.TradesOut = *tradesOut
	}

	if _, err := app.New(cfg).Backtest(os.Stdout, *listTrades); err != nil {
		fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
		os.Exit(1)
	}
}
