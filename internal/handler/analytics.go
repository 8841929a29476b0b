package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/efreitasn/marketboard/internal/analytics"
	"github.com/efreitasn/marketboard/internal/metrics"
)

// DegradedHeader is set on analytics responses whose empty body stands in
// for a failed computation.
const DegradedHeader = "X-Analytics-Degraded"

// AnalyticsHandler handles HTTP requests for analytics endpoints.
type AnalyticsHandler struct {
	engine       *analytics.Engine
	queryTimeout time.Duration
	logger       *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(engine *analytics.Engine, queryTimeout time.Duration, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		engine:       engine,
		queryTimeout: queryTimeout,
		logger:       logger.With(slog.String("component", "analytics_handler")),
	}
}

type itemSalesResponse struct {
	ItemName         string  `json:"itemName"`
	TotalSold        int64   `json:"totalSold"`
	TotalRevenue     float64 `json:"totalRevenue"`
	TotalSoldPercent float64 `json:"totalSoldPercent"`
}

type dailyVolumeResponse struct {
	Date   string `json:"date"`
	Volume int64  `json:"volume"`
}

type itemPriceStatsResponse struct {
	ItemName          string  `json:"itemName"`
	HighestPrice      float64 `json:"highestPrice"`
	LowestPrice       float64 `json:"lowestPrice"`
	AveragePrice      float64 `json:"averagePrice"`
	TotalTransactions int64   `json:"totalTransactions"`
}

type itemVolatilityResponse struct {
	ItemName string  `json:"itemName"`
	Sigma    float64 `json:"sigma"`
	AvgPrice float64 `json:"avgPrice"`
	Count    int64   `json:"count"`
}

type marketStabilityResponse struct {
	Score float64 `json:"score"`
}

// itemStabilityResponse always carries daily, as [] when the item never
// traded.
type itemStabilityResponse struct {
	Item  string                `json:"item"`
	Score float64               `json:"score"`
	Daily []dailyVolumeResponse `json:"daily"`
}

type overviewResponse struct {
	SalesSummary    []itemSalesResponse      `json:"salesSummary"`
	DailyVolume     []dailyVolumeResponse    `json:"dailyVolume"`
	ItemPriceStats  []itemPriceStatsResponse `json:"itemPriceStats"`
	PriceVolatility []itemVolatilityResponse `json:"priceVolatility"`
	DemandStability marketStabilityResponse  `json:"demandStability"`
}

// SalesSummary handles GET /analytics/sales-summary.
func (h *AnalyticsHandler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	rows, err := h.engine.SalesSummary(ctx)
	if err != nil {
		h.degraded(w, r, "sales_summary", err, []itemSalesResponse{})
		return
	}
	WriteJSON(w, http.StatusOK, buildSalesResponse(rows))
}

// DailyVolume handles GET /analytics/daily-volume and GET /daily_volume.
// The optional item query parameter restricts the series to one item.
func (h *AnalyticsHandler) DailyVolume(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	item := strings.TrimSpace(r.URL.Query().Get("item"))
	daily, err := h.engine.DailyTradeVolume(ctx, item)
	if err != nil {
		h.degraded(w, r, "daily_volume", err, []dailyVolumeResponse{})
		return
	}
	WriteJSON(w, http.StatusOK, buildDailyResponse(daily))
}

// ItemPriceStats handles GET /analytics/item-price-stats.
func (h *AnalyticsHandler) ItemPriceStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	rows, err := h.engine.ItemPriceStatistics(ctx)
	if err != nil {
		h.degraded(w, r, "item_price_stats", err, []itemPriceStatsResponse{})
		return
	}
	WriteJSON(w, http.StatusOK, buildPriceStatsResponse(rows))
}

// PriceVolatility handles GET /analytics/price-volatility. Missing or
// invalid hours and minSales take the engine defaults.
func (h *AnalyticsHandler) PriceVolatility(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	q := r.URL.Query()
	hours := queryInt(q.Get("hours"))
	minSales := queryInt(q.Get("minSales"))

	rows, err := h.engine.PriceVolatility(ctx, hours, minSales)
	if err != nil {
		h.degraded(w, r, "price_volatility", err, []itemVolatilityResponse{})
		return
	}
	WriteJSON(w, http.StatusOK, buildVolatilityResponse(rows))
}

// DemandStability handles GET /analytics/demand-stability. With an item
// query parameter it returns the per-item form.
func (h *AnalyticsHandler) DemandStability(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	item := strings.TrimSpace(r.URL.Query().Get("item"))
	if item == "" {
		s, err := h.engine.DemandStability(ctx)
		if err != nil {
			h.degraded(w, r, "demand_stability", err, marketStabilityResponse{})
			return
		}
		WriteJSON(w, http.StatusOK, marketStabilityResponse{Score: s.Score})
		return
	}

	s, err := h.engine.ItemDemandStability(ctx, item)
	if err != nil {
		h.degraded(w, r, "demand_stability", err, itemStabilityResponse{
			Item:  item,
			Daily: []dailyVolumeResponse{},
		})
		return
	}
	WriteJSON(w, http.StatusOK, itemStabilityResponse{
		Item:  s.Item,
		Score: s.Score,
		Daily: buildDailyResponse(s.Daily),
	})
}

// Overview handles GET /analytics/overview.
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	ov, err := h.engine.Overview(ctx)
	if err != nil {
		h.degraded(w, r, "overview", err, overviewResponse{
			SalesSummary:    []itemSalesResponse{},
			DailyVolume:     []dailyVolumeResponse{},
			ItemPriceStats:  []itemPriceStatsResponse{},
			PriceVolatility: []itemVolatilityResponse{},
		})
		return
	}
	WriteJSON(w, http.StatusOK, overviewResponse{
		SalesSummary:    buildSalesResponse(ov.Sales),
		DailyVolume:     buildDailyResponse(ov.Daily),
		ItemPriceStats:  buildPriceStatsResponse(ov.Prices),
		PriceVolatility: buildVolatilityResponse(ov.Volatility),
		DemandStability: marketStabilityResponse{Score: ov.Stability.Score},
	})
}

func (h *AnalyticsHandler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	if h.queryTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.queryTimeout)
}

// degraded answers a failed analytics request with an empty body of the
// usual shape and marks the response with DegradedHeader.
func (h *AnalyticsHandler) degraded(w http.ResponseWriter, r *http.Request, operation string, err error, empty any) {
	h.logger.WarnContext(r.Context(), "analytics request degraded to empty result",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	metrics.ObserveDegraded(operation)
	w.Header().Set(DegradedHeader, "true")
	WriteJSON(w, http.StatusOK, empty)
}

// queryInt parses a positive integer query value; anything else is 0.
func queryInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func buildSalesResponse(rows []analytics.ItemSales) []itemSalesResponse {
	out := make([]itemSalesResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, itemSalesResponse{
			ItemName:         r.ItemName,
			TotalSold:        r.TotalSold,
			TotalRevenue:     r.TotalRevenue,
			TotalSoldPercent: r.TotalSoldPercent,
		})
	}
	return out
}

func buildDailyResponse(daily []analytics.DailyVolume) []dailyVolumeResponse {
	out := make([]dailyVolumeResponse, 0, len(daily))
	for _, d := range daily {
		out = append(out, dailyVolumeResponse{Date: d.Date, Volume: d.Volume})
	}
	return out
}

func buildPriceStatsResponse(rows []analytics.ItemPriceStats) []itemPriceStatsResponse {
	out := make([]itemPriceStatsResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, itemPriceStatsResponse{
			ItemName:          r.ItemName,
			HighestPrice:      r.HighestPrice,
			LowestPrice:       r.LowestPrice,
			AveragePrice:      r.AveragePrice,
			TotalTransactions: r.TotalTransactions,
		})
	}
	return out
}

func buildVolatilityResponse(rows []analytics.ItemVolatility) []itemVolatilityResponse {
	out := make([]itemVolatilityResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, itemVolatilityResponse{
			ItemName: r.ItemName,
			Sigma:    r.Sigma,
			AvgPrice: r.AvgPrice,
			Count:    r.Count,
		})
	}
	return out
}
