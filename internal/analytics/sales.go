package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/efreitasn/marketboard/internal/domain"
	"github.com/efreitasn/marketboard/internal/metrics"
)

// ItemSales is one row of the sales summary.
type ItemSales struct {
	ItemName         string
	TotalSold        int64
	TotalRevenue     float64
	TotalSoldPercent float64 // share of all units sold, 0..100
}

var salesQuery = domain.Query{
	GroupBy: domain.GroupByItem,
	Accumulators: []domain.Accumulator{
		{Name: "totalSold", Op: domain.OpSum, Field: domain.FieldAmount},
		{Name: "totalRevenue", Op: domain.OpSum, Field: domain.FieldRevenue},
	},
}

// SalesSummary returns units sold, revenue and share of units per item,
// ordered by units sold descending. An empty log yields an empty slice.
func (e *Engine) SalesSummary(ctx context.Context) ([]ItemSales, error) {
	defer metrics.NewTimer(opSalesSummary).ObserveDuration()

	groups, _, err := e.groups(ctx, opSalesSummary, salesQuery)
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}
	return salesFromGroups(groups), nil
}

func salesFromGroups(groups []domain.Group) []ItemSales {
	rows := make([]ItemSales, 0, len(groups))
	var totalSoldAll int64
	for _, g := range groups {
		sold := int64(math.Round(g.Values["totalSold"]))
		totalSoldAll += sold
		rows = append(rows, ItemSales{
			ItemName:     g.Key,
			TotalSold:    sold,
			TotalRevenue: g.Values["totalRevenue"],
		})
	}

	for i := range rows {
		if totalSoldAll > 0 {
			rows[i].TotalSoldPercent = float64(rows[i].TotalSold) / float64(totalSoldAll) * 100
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalSold != rows[j].TotalSold {
			return rows[i].TotalSold > rows[j].TotalSold
		}
		return rows[i].ItemName < rows[j].ItemName
	})
	return rows
}
