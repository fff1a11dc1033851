package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"momentum-trade/internal/model"
)

var tradeHeader = []string{
	"id", "side", "entry_time", "entry_price", "volume", "stop_loss", "take_profit",
	"exit_time", "exit_price", "exit_reason", "r_multiple", "fees", "pnl",
}

// Statistics aggregates the run.
func (r *Result) Statistics() *Statistics {
	return Aggregate(r.InitialBalance, r.Equity, r.Trades)
}

// PrintTrades writes one line per trade to w.
func (r *Result) PrintTrades(w io.Writer) {
	fmt.Fprintln(w, "\n=== Trade List ===")
	for _, trade := range r.Trades {
		fmt.Fprintf(w, "#%d | %s | Entry: %.5f | Exit: %.5f | R: %+.2f | P&L: %.2f | %s | %s\n",
			trade.ID,
			trade.Side,
			trade.EntryPrice,
			trade.ExitPrice,
			trade.RMultiple,
			trade.PnL,
			trade.ExitReason,
			trade.EntryTime.Format("2006-01-02 15:04"),
		)
	}
}

// WriteTrades writes the trades as CSV with a header row.
func WriteTrades(w io.Writer, trades []model.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return fmt.Errorf("writing trade header: %w", err)
	}
	for _, t := range trades {
		row := []string{
			strconv.Itoa(t.ID),
			string(t.Side),
			t.EntryTime.UTC().Format(time.RFC3339),
			formatFloat(t.EntryPrice),
			formatFloat(t.Volume),
			formatFloat(t.StopLoss),
			formatFloat(t.TakeProfit),
			formatTime(t.ExitTime),
			formatFloat(t.ExitPrice),
			string(t.ExitReason),
			formatFloat(t.RMultiple),
			formatFloat(t.Fees),
			formatFloat(t.PnL),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing trade %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportTrades writes the trades CSV to path, creating parent directories.
func ExportTrades(path string, trades []model.Trade) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating trades dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trades file: %w", err)
	}
	if err := WriteTrades(f, trades); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
