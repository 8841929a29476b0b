package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/efreitasn/marketboard/internal/domain"
	"github.com/efreitasn/marketboard/internal/metrics"
)

// DailyVolume is the number of units sold on one UTC calendar day.
type DailyVolume struct {
	Date   string // YYYY-MM-DD
	Volume int64
}

func dailyVolumeQuery(itemName string) domain.Query {
	return domain.Query{
		Filter:  domain.Filter{ItemName: itemName},
		GroupBy: domain.GroupByDay,
		Accumulators: []domain.Accumulator{
			{Name: "volume", Op: domain.OpSum, Field: domain.FieldAmount},
		},
	}
}

// DailyTradeVolume returns units sold per UTC day in ascending date order.
// A non-empty itemName restricts the series to that item.
func (e *Engine) DailyTradeVolume(ctx context.Context, itemName string) ([]DailyVolume, error) {
	defer metrics.NewTimer(opDailyVolume).ObserveDuration()

	daily, err := e.dailyVolume(ctx, opDailyVolume, itemName)
	if err != nil {
		return nil, fmt.Errorf("daily trade volume: %w", err)
	}
	return daily, nil
}

func (e *Engine) dailyVolume(ctx context.Context, operation, itemName string) ([]DailyVolume, error) {
	groups, _, err := e.groups(ctx, operation, dailyVolumeQuery(itemName))
	if err != nil {
		return nil, err
	}
	return dailyFromGroups(groups), nil
}

func dailyFromGroups(groups []domain.Group) []DailyVolume {
	daily := make([]DailyVolume, 0, len(groups))
	for _, g := range groups {
		daily = append(daily, DailyVolume{
			Date:   g.Key,
			Volume: int64(math.Round(g.Values["volume"])),
		})
	}
	// YYYY-MM-DD sorts lexicographically in chronological order.
	sort.Slice(daily, func(i, j int) bool {
		return daily[i].Date < daily[j].Date
	})
	return daily
}
