package analytics

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/efreitasn/marketboard/internal/domain"
	"github.com/efreitasn/marketboard/internal/metrics"
)

// ItemPriceStats is the traded price range of one item.
type ItemPriceStats struct {
	ItemName          string
	HighestPrice      float64
	LowestPrice       float64
	AveragePrice      float64
	TotalTransactions int64
}

var priceStatsQuery = domain.Query{
	GroupBy: domain.GroupByItem,
	Accumulators: []domain.Accumulator{
		{Name: "highestPrice", Op: domain.OpMax, Field: domain.FieldPrice},
		{Name: "lowestPrice", Op: domain.OpMin, Field: domain.FieldPrice},
		{Name: "averagePrice", Op: domain.OpAvg, Field: domain.FieldPrice},
		{Name: "totalTransactions", Op: domain.OpCount},
	},
}

// ItemPriceStatistics returns per-item highest, lowest and average traded
// price and transaction count, ordered by item name.
//
// Storage failures do not propagate: they are logged and counted, and the
// result is empty. Callers therefore cannot tell an empty log from a
// failed query by the result alone.
func (e *Engine) ItemPriceStatistics(ctx context.Context) ([]ItemPriceStats, error) {
	defer metrics.NewTimer(opItemPriceStats).ObserveDuration()

	groups, _, err := e.groups(ctx, opItemPriceStats, priceStatsQuery)
	if err != nil {
		e.logger.WarnContext(ctx, "item price statistics failed, returning empty result",
			slog.String("error", err.Error()))
		metrics.ObserveDegraded(opItemPriceStats)
		return []ItemPriceStats{}, nil
	}
	return priceStatsFromGroups(groups), nil
}

func priceStatsFromGroups(groups []domain.Group) []ItemPriceStats {
	rows := make([]ItemPriceStats, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, ItemPriceStats{
			ItemName:          g.Key,
			HighestPrice:      g.Values["highestPrice"],
			LowestPrice:       g.Values["lowestPrice"],
			AveragePrice:      g.Values["averagePrice"],
			TotalTransactions: int64(math.Round(g.Values["totalTransactions"])),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ItemName < rows[j].ItemName
	})
	return rows
}
