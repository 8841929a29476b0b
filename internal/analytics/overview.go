package analytics

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Overview bundles the dashboard statistics computed by a single call.
type Overview struct {
	Sales      []ItemSales
	Daily      []DailyVolume
	Prices     []ItemPriceStats
	Volatility []ItemVolatility
	Stability  MarketStability
}

// Overview computes the sales summary, daily volume, price statistics,
// default-window volatility and market stability concurrently. The first
// failure cancels the others and is returned.
func (e *Engine) Overview(ctx context.Context) (Overview, error) {
	var ov Overview
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		ov.Sales, err = e.SalesSummary(ctx)
		return err
	})
	g.Go(func() (err error) {
		ov.Daily, err = e.DailyTradeVolume(ctx, "")
		return err
	})
	g.Go(func() (err error) {
		ov.Prices, err = e.ItemPriceStatistics(ctx)
		return err
	})
	g.Go(func() (err error) {
		ov.Volatility, err = e.PriceVolatility(ctx, DefaultTrailingHours, DefaultMinSales)
		return err
	})
	g.Go(func() (err error) {
		ov.Stability, err = e.DemandStability(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return ov, nil
}
