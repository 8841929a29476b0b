// Package analytics derives market statistics from the trade log: sales
// summary, daily trade volume, item price statistics, the price volatility
// index and the demand stability score.
//
// Every operation is a stateless, read-only function of the trade log (and
// the clock, for windowed statistics). Grouped statistics are first asked of
// the storage back-end; when it reports domain.ErrUnsupportedOperator the
// same statistic is recomputed from raw trades.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/efreitasn/marketboard/internal/domain"
)

// Defaults of the price volatility index.
const (
	DefaultTrailingHours = 24
	DefaultMinSales      = 2
)

// Operation names used in logs and metrics.
const (
	opSalesSummary    = "sales_summary"
	opDailyVolume     = "daily_volume"
	opItemPriceStats  = "item_price_stats"
	opPriceVolatility = "price_volatility"
	opDemandStability = "demand_stability"
)

// TradeLog is the read surface of the trade log the engine consumes.
type TradeLog interface {
	// Find returns the trades matching f; an empty slice when none do.
	Find(ctx context.Context, f domain.Filter) ([]domain.Trade, error)
	// Aggregate evaluates q on the storage side. It fails with
	// domain.ErrUnsupportedOperator when a reducer is unavailable.
	Aggregate(ctx context.Context, q domain.Query) ([]domain.Group, error)
}

// Clock supplies the evaluation instant of windowed statistics.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Engine computes analytics over a trade log. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	log    TradeLog
	clock  Clock
	logger *slog.Logger
}

// NewEngine creates an Engine. A nil clock means SystemClock and a nil
// logger means slog.Default().
func NewEngine(log TradeLog, clock Clock, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		log:    log,
		clock:  clock,
		logger: logger.With(slog.String("component", "analytics")),
	}
}
