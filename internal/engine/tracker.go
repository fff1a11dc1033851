package engine

import (
	"time"

	"momentum-trade/internal/model"

	"go.uber.org/zap"
)

// DealTracker recognizes newly closed positions across repeated deal-history polls.
// It owns the per-instrument observation state; one tracker per instrument.
//
// The first closing deal ever observed becomes the baseline and is not reported,
// since it may predate this process. After that each distinct closing deal is
// reported once, when it becomes the most recent one.
type DealTracker struct {
	symbol       string
	magic        int
	lastSeen     int64
	lastTime     time.Time
	bootstrapped bool
	logger       *zap.Logger
}

// NewDealTracker creates a tracker for deals on symbol tagged with magic.
func NewDealTracker(symbol string, magic int, logger *zap.Logger) *DealTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DealTracker{
		symbol: symbol,
		magic:  magic,
		logger: logger,
	}
}

// Observe inspects one batch of deal history and returns the newly closed deal, if any.
func (t *DealTracker) Observe(deals []model.DealRecord) (model.DealRecord, bool) {
	latest, ok := t.latestClosing(deals)
	if !ok {
		return model.DealRecord{}, false
	}

	if !t.bootstrapped {
		t.bootstrapped = true
		t.remember(latest)
		t.logger.Info("deal_baseline",
			zap.String("symbol", t.symbol),
			zap.Int64("ticket", latest.Ticket),
		)
		return model.DealRecord{}, false
	}

	if latest.Ticket == t.lastSeen || latest.Time.Before(t.lastTime) {
		return model.DealRecord{}, false
	}

	t.remember(latest)
	return latest, true
}

// LastSeen returns the last recorded ticket and whether the baseline exists.
func (t *DealTracker) LastSeen() (int64, bool) {
	return t.lastSeen, t.bootstrapped
}

func (t *DealTracker) remember(deal model.DealRecord) {
	t.lastSeen = deal.Ticket
	t.lastTime = deal.Time
}

// latestClosing selects the most recent closing deal belonging to this strategy.
// Ties on time are broken by the higher ticket.
func (t *DealTracker) latestClosing(deals []model.DealRecord) (model.DealRecord, bool) {
	var (
		best  model.DealRecord
		found bool
	)
	for _, d := range deals {
		if d.Symbol != t.symbol || d.Magic != t.magic {
			continue
		}
		if d.Entry != model.DealEntryOut && d.Entry != model.DealEntryInOut {
			continue
		}
		if !found || d.Time.After(best.Time) || (d.Time.Equal(best.Time) && d.Ticket > best.Ticket) {
			best = d
			found = true
		}
	}
	return best, found
}
