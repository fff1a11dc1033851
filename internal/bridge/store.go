package bridge

import (
	"sort"
	"sync"
	"time"

	"momentum-trade/internal/model"
)

// Store is a thread-safe in-memory state store for positions, deals and the account.
type Store struct {
	mu        sync.RWMutex
	positions map[string]map[int64]model.Position // symbol -> ticket -> Position
	deals     []model.DealRecord
	account   model.AccountState
}

// NewStore creates an empty state store.
func NewStore() *Store {
	return &Store{
		positions: make(map[string]map[int64]model.Position),
	}
}

// AddPosition upserts a position.
func (s *Store) AddPosition(pos model.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[pos.Symbol]; !ok {
		s.positions[pos.Symbol] = make(map[int64]model.Position)
	}
	s.positions[pos.Symbol][pos.Ticket] = pos
}

// RemovePosition deletes a position by ticket.
func (s *Store) RemovePosition(symbol string, ticket int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.positions[symbol]
	delete(items, ticket)
	if len(items) == 0 {
		delete(s.positions, symbol)
	}
}

// GetPositions returns open positions for a symbol ordered by ticket.
func (s *Store) GetPositions(symbol string) []model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.positions[symbol]
	out := make([]model.Position, 0, len(m))
	for _, pos := range m {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out
}

// AppendDeal records an executed deal.
func (s *Store) AppendDeal(deal model.DealRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deals = append(s.deals, deal)
}

// DealsBetween returns deals with from <= time <= to.
func (s *Store) DealsBetween(from, to time.Time) []model.DealRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DealRecord, 0)
	for _, d := range s.deals {
		if d.Time.Before(from) || d.Time.After(to) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// SetAccount sets the account state.
func (s *Store) SetAccount(state model.AccountState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = state
}

// AddBalance adds profit to the account balance and returns the new balance.
func (s *Store) AddBalance(profit float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account.Balance += profit
	return s.account.Balance
}

// Account returns the account state.
func (s *Store) Account() model.AccountState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}
