package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/efreitasn/marketboard/internal/domain"
	"github.com/efreitasn/marketboard/internal/metrics"
	"github.com/efreitasn/marketboard/internal/stats"
)

// ItemVolatility is one row of the price volatility index.
type ItemVolatility struct {
	ItemName string
	Sigma    float64 // population standard deviation of itemPrice
	AvgPrice float64
	Count    int64
}

// PriceVolatility ranks items by the spread of their traded prices within
// the trailing window [now-trailingHours, now], most volatile first. Items
// with fewer than minSales trades in the window are left out. Non-positive
// arguments take DefaultTrailingHours and DefaultMinSales.
func (e *Engine) PriceVolatility(ctx context.Context, trailingHours, minSales int) ([]ItemVolatility, error) {
	defer metrics.NewTimer(opPriceVolatility).ObserveDuration()

	if trailingHours <= 0 {
		trailingHours = DefaultTrailingHours
	}
	if minSales <= 0 {
		minSales = DefaultMinSales
	}

	f := domain.Filter{Since: windowStart(e.clock.Now(), trailingHours)}

	rows, _, err := resilient(ctx, e.logger, opPriceVolatility,
		func(ctx context.Context) ([]ItemVolatility, error) {
			return e.volatilityNative(ctx, f)
		},
		func(ctx context.Context) ([]ItemVolatility, error) {
			return e.volatilityFallback(ctx, f)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("price volatility: %w", err)
	}
	return rankVolatility(rows, int64(minSales)), nil
}

// volatilityNative asks the storage back-end for the per-item reducers.
func (e *Engine) volatilityNative(ctx context.Context, f domain.Filter) ([]ItemVolatility, error) {
	groups, err := e.log.Aggregate(ctx, domain.Query{
		Filter:  f,
		GroupBy: domain.GroupByItem,
		Accumulators: []domain.Accumulator{
			{Name: "avgPrice", Op: domain.OpAvg, Field: domain.FieldPrice},
			{Name: "sigma", Op: domain.OpStdDevPop, Field: domain.FieldPrice},
			{Name: "count", Op: domain.OpCount},
		},
	})
	if err != nil {
		return nil, err
	}

	rows := make([]ItemVolatility, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, ItemVolatility{
			ItemName: g.Key,
			Sigma:    g.Values["sigma"],
			AvgPrice: g.Values["avgPrice"],
			Count:    int64(math.Round(g.Values["count"])),
		})
	}
	return rows, nil
}

// volatilityFallback pulls the windowed trades and computes every item's
// statistics from its full price list.
func (e *Engine) volatilityFallback(ctx context.Context, f domain.Filter) ([]ItemVolatility, error) {
	trades, err := e.log.Find(ctx, f)
	if err != nil {
		return nil, err
	}

	items, prices := stats.Partition(trades, domain.GroupByItem, domain.FieldPrice)
	rows := make([]ItemVolatility, 0, len(items))
	for _, item := range items {
		p := prices[item]
		rows = append(rows, ItemVolatility{
			ItemName: item,
			Sigma:    stats.PopulationStdDev(p),
			AvgPrice: stats.Mean(p),
			Count:    int64(len(p)),
		})
	}
	return rows, nil
}

// maxTrailingHours is the longest window a time.Duration can hold.
const maxTrailingHours = int(math.MaxInt64 / int64(time.Hour))

// windowStart returns now-hours in UTC. Windows too long for a
// time.Duration have no lower bound and yield the zero time.
func windowStart(now time.Time, hours int) time.Time {
	if hours > maxTrailingHours {
		return time.Time{}
	}
	return now.UTC().Add(-time.Duration(hours) * time.Hour)
}

func rankVolatility(rows []ItemVolatility, minSales int64) []ItemVolatility {
	kept := make([]ItemVolatility, 0, len(rows))
	for _, r := range rows {
		if r.Count >= minSales {
			kept = append(kept, r)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Sigma != kept[j].Sigma {
			return kept[i].Sigma > kept[j].Sigma
		}
		return kept[i].ItemName < kept[j].ItemName
	})
	return kept
}
