package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/google/uuid"

	"github.com/efreitasn/marketboard/internal/domain"
	"github.com/efreitasn/marketboard/internal/stats"
)

// tradeLess orders the log by timestamp ascending, then trade ID
// ascending so that equal timestamps still form a total order.
func tradeLess(a, b *domain.Trade) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// TradeStoreOption configures a TradeStore.
type TradeStoreOption func(*TradeStore)

// WithoutOperators makes Aggregate reject the given reducers with
// domain.ErrUnsupportedOperator, the way a storage back-end lacking them
// would.
func WithoutOperators(ops ...domain.Op) TradeStoreOption {
	return func(s *TradeStore) {
		for _, op := range ops {
			s.unsupported[op] = true
		}
	}
}

// TradeStore is a thread-safe in-memory trade log. Trades are append-only
// and kept in a B-tree ordered by timestamp, so windowed reads are range
// scans rather than full passes.
type TradeStore struct {
	mu          sync.RWMutex
	trades      *btree.BTreeG[*domain.Trade]
	index       map[string]*domain.Trade // trade_id → trade
	unsupported map[domain.Op]bool
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore(opts ...TradeStoreOption) *TradeStore {
	const degree = 32
	s := &TradeStore{
		trades:      btree.NewG[*domain.Trade](degree, tradeLess),
		index:       make(map[string]*domain.Trade),
		unsupported: make(map[domain.Op]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds a trade to the log, assigning an ID when the trade has none.
// The timestamp is normalized to UTC.
func (s *TradeStore) Append(ctx context.Context, t domain.Trade) (domain.Trade, error) {
	if err := ctx.Err(); err != nil {
		return domain.Trade{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Timestamp = t.Timestamp.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.index[t.ID]; ok {
		s.trades.Delete(prev)
	}
	stored := t
	s.trades.ReplaceOrInsert(&stored)
	s.index[stored.ID] = &stored
	return stored, nil
}

// Delete removes a trade by ID. It returns domain.ErrTradeNotFound if the
// trade does not exist.
func (s *TradeStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.index[id]
	if !ok {
		return domain.ErrTradeNotFound
	}
	delete(s.index, id)
	s.trades.Delete(t)
	return nil
}

// List returns every trade, newest first.
func (s *TradeStore) List(ctx context.Context) ([]domain.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Trade, 0, s.trades.Len())
	s.trades.Descend(func(t *domain.Trade) bool {
		result = append(result, *t)
		return true
	})
	return result, nil
}

// Count returns the number of trades in the log.
func (s *TradeStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(s.trades.Len()), nil
}

// Find returns the trades matching f in chronological order.
// Returns an empty slice if nothing matches.
func (s *TradeStore) Find(ctx context.Context, f domain.Filter) ([]domain.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Trade, 0)
	collect := func(t *domain.Trade) bool {
		if f.Match(*t) {
			result = append(result, *t)
		}
		return true
	}

	if f.Since.IsZero() {
		s.trades.Ascend(collect)
	} else {
		// An empty ID sorts before every real ID at the same instant,
		// so the pivot is inclusive of trades exactly at Since.
		pivot := &domain.Trade{Timestamp: f.Since.UTC()}
		s.trades.AscendGreaterOrEqual(pivot, collect)
	}
	return result, nil
}

// Aggregate evaluates q with the shared reducer implementation. Reducers
// disabled with WithoutOperators fail with domain.ErrUnsupportedOperator.
func (s *TradeStore) Aggregate(ctx context.Context, q domain.Query) ([]domain.Group, error) {
	for _, acc := range q.Accumulators {
		if s.unsupported[acc.Op] {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedOperator, acc.Op)
		}
	}

	trades, err := s.Find(ctx, q.Filter)
	if err != nil {
		return nil, err
	}
	return stats.Aggregate(trades, q.GroupBy, q.Accumulators), nil
}
