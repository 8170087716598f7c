// Package economytest provides an in-memory implementation of the
// economy storage ports for tests.  Each capability can be made to fail
// by setting the matching Err field.
package economytest

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/phillboard/internal/economy"
	"github.com/iliyamo/phillboard/internal/model"
)

// Store implements economy.PhillboardStore, economy.BalanceStore and
// economy.HistoryStore.  All methods are safe for concurrent use; the
// atomic balance primitives hold the lock across read and write so they
// behave like their SQL counterparts.
type Store struct {
	mu       sync.Mutex
	seq      int
	boards   map[string]storedBoard
	balances map[uint64]model.UserBalance
	history  []model.EditHistoryEntry

	ErrNear      error
	ErrGet       error
	ErrInsert    error
	ErrUpdate    error
	ErrDelete    error
	ErrBalance   error
	ErrSet       error
	ErrAdd       error
	ErrDecrement error
	ErrCount     error
	ErrHistory   error
}

type storedBoard struct {
	seq int
	p   model.Phillboard
}

var (
	_ economy.PhillboardStore = (*Store)(nil)
	_ economy.BalanceStore    = (*Store)(nil)
	_ economy.HistoryStore    = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		boards:   map[string]storedBoard{},
		balances: map[uint64]model.UserBalance{},
	}
}

// Seed sets a user's balance directly, bypassing failure injection.
func (s *Store) Seed(userID uint64, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = model.UserBalance{UserID: userID, Balance: balance, UpdatedAt: time.Now().UTC()}
}

// Balance returns a user's balance, or zero when the user has none.
func (s *Store) Balance(userID uint64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID].Balance
}

// History returns a copy of every recorded history row in insertion order.
func (s *Store) History() []model.EditHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EditHistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// Put stores a phillboard directly, bypassing failure injection.
func (s *Store) Put(p model.Phillboard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.boards[p.ID] = storedBoard{seq: s.seq, p: p}
}

func (s *Store) Near(_ context.Context, lat, lng, tolerance float64) ([]model.Phillboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrNear != nil {
		return nil, s.ErrNear
	}
	var found []storedBoard
	for _, b := range s.boards {
		if math.Abs(b.p.Latitude-lat) <= tolerance && economy.LongitudeDistance(b.p.Longitude, lng) <= tolerance {
			found = append(found, b)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if !found[i].p.CreatedAt.Equal(found[j].p.CreatedAt) {
			return found[i].p.CreatedAt.After(found[j].p.CreatedAt)
		}
		return found[i].seq > found[j].seq
	})
	out := make([]model.Phillboard, 0, len(found))
	for _, b := range found {
		out = append(out, b.p)
	}
	return out, nil
}

func (s *Store) GetByID(_ context.Context, id string) (model.Phillboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrGet != nil {
		return model.Phillboard{}, s.ErrGet
	}
	b, ok := s.boards[id]
	if !ok {
		return model.Phillboard{}, economy.ErrNotFound
	}
	return b.p, nil
}

func (s *Store) Insert(_ context.Context, p *model.Phillboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrInsert != nil {
		return s.ErrInsert
	}
	s.seq++
	s.boards[p.ID] = storedBoard{seq: s.seq, p: *p}
	return nil
}

func (s *Store) Update(_ context.Context, id string, upd model.PhillboardUpdate) (model.Phillboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrUpdate != nil {
		return model.Phillboard{}, s.ErrUpdate
	}
	b, ok := s.boards[id]
	if !ok {
		return model.Phillboard{}, economy.ErrNotFound
	}
	if upd.Title != nil {
		b.p.Title = *upd.Title
	}
	if upd.PlacementType != nil {
		b.p.PlacementType = *upd.PlacementType
	}
	b.p.UpdatedAt = time.Now().UTC()
	s.boards[id] = b
	return b.p, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrDelete != nil {
		return s.ErrDelete
	}
	if _, ok := s.boards[id]; !ok {
		return economy.ErrNotFound
	}
	delete(s.boards, id)
	return nil
}

func (s *Store) GetBalance(_ context.Context, userID uint64) (decimal.Decimal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrBalance != nil {
		return decimal.Zero, false, s.ErrBalance
	}
	b, ok := s.balances[userID]
	return b.Balance, ok, nil
}

func (s *Store) SetBalance(_ context.Context, userID uint64, balance decimal.Decimal, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrSet != nil {
		return s.ErrSet
	}
	s.balances[userID] = model.UserBalance{UserID: userID, Balance: balance, UpdatedAt: updatedAt}
	return nil
}

func (s *Store) AddToBalance(_ context.Context, userID uint64, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrAdd != nil {
		return s.ErrAdd
	}
	b, ok := s.balances[userID]
	if !ok {
		return economy.ErrBalanceNotFound
	}
	b.Balance = b.Balance.Add(amount)
	b.UpdatedAt = time.Now().UTC()
	s.balances[userID] = b
	return nil
}

func (s *Store) DecrementIfAtLeast(_ context.Context, userID uint64, amount decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrDecrement != nil {
		return false, s.ErrDecrement
	}
	b, ok := s.balances[userID]
	if !ok || b.Balance.LessThan(amount) {
		return false, nil
	}
	b.Balance = b.Balance.Sub(amount)
	b.UpdatedAt = time.Now().UTC()
	s.balances[userID] = b
	return true, nil
}

func (s *Store) EditCount(_ context.Context, phillboardID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrCount != nil {
		return 0, s.ErrCount
	}
	var n int64
	for _, e := range s.history {
		if e.PhillboardID == phillboardID && e.Kind == model.HistoryEdit {
			n++
		}
	}
	return n, nil
}

func (s *Store) InsertEditHistory(_ context.Context, e *model.EditHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ErrHistory != nil {
		return s.ErrHistory
	}
	e.ID = uint64(len(s.history) + 1)
	s.history = append(s.history, *e)
	return nil
}
