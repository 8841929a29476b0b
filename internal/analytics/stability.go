package analytics

import (
	"context"
	"fmt"

	"github.com/efreitasn/marketboard/internal/metrics"
	"github.com/efreitasn/marketboard/internal/stats"
)

// MarketStability is the market-wide demand stability score.
type MarketStability struct {
	Score float64
}

// ItemStability is the demand stability score of one item together with
// the daily volume series it was computed from.
type ItemStability struct {
	Item  string
	Score float64
	Daily []DailyVolume
}

// DemandStability returns the population standard deviation of the daily
// volume series across all items. Lower is steadier.
func (e *Engine) DemandStability(ctx context.Context) (MarketStability, error) {
	defer metrics.NewTimer(opDemandStability).ObserveDuration()

	daily, err := e.dailyVolume(ctx, opDemandStability, "")
	if err != nil {
		return MarketStability{}, fmt.Errorf("demand stability: %w", err)
	}
	return MarketStability{Score: volumeSpread(daily)}, nil
}

// ItemDemandStability is DemandStability restricted to one item. An item
// with no trades scores 0 with an empty series.
func (e *Engine) ItemDemandStability(ctx context.Context, item string) (ItemStability, error) {
	defer metrics.NewTimer(opDemandStability).ObserveDuration()

	daily, err := e.dailyVolume(ctx, opDemandStability, item)
	if err != nil {
		return ItemStability{}, fmt.Errorf("demand stability of %q: %w", item, err)
	}
	return ItemStability{
		Item:  item,
		Score: volumeSpread(daily),
		Daily: daily,
	}, nil
}

func volumeSpread(daily []DailyVolume) float64 {
	xs := make([]float64, len(daily))
	for i, d := range daily {
		xs[i] = float64(d.Volume)
	}
	return stats.PopulationStdDev(xs)
}
