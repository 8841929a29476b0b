package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/efreitasn/marketboard/internal/analytics"
	"github.com/efreitasn/marketboard/internal/domain"
	"github.com/efreitasn/marketboard/internal/service"
	"github.com/efreitasn/marketboard/internal/store"
)

// testEnv bundles all dependencies for handler integration tests.
type testEnv struct {
	router    http.Handler
	trades    *store.TradeStore
	listings  *store.ListingStore
	marketSvc *service.MarketService
}

func newTestEnv() *testEnv {
	ts := store.NewTradeStore()
	ls := store.NewListingStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine := analytics.NewEngine(ts, analytics.SystemClock, logger)
	marketSvc := service.NewMarketService(ls, ts, logger)
	router := NewRouter(engine, marketSvc, 5*time.Second, logger)

	return &testEnv{
		router:    router,
		trades:    ts,
		listings:  ls,
		marketSvc: marketSvc,
	}
}

// brokenLog is a trade log whose every read fails.
type brokenLog struct{}

func (brokenLog) Find(context.Context, domain.Filter) ([]domain.Trade, error) {
	return nil, errors.New("connection refused")
}

func (brokenLog) Aggregate(context.Context, domain.Query) ([]domain.Group, error) {
	return nil, errors.New("connection refused")
}

func newBrokenEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := analytics.NewEngine(brokenLog{}, analytics.SystemClock, logger)
	marketSvc := service.NewMarketService(store.NewListingStore(), store.NewTradeStore(), logger)
	return &testEnv{router: NewRouter(engine, marketSvc, time.Second, logger)}
}

// doJSON sends a JSON request and returns the recorder.
func (env *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// doRaw sends a raw request with optional content-type override.
func (env *testEnv) doRaw(t *testing.T, method, path, contentType, rawBody string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(rawBody))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

func (env *testEnv) seedTrade(t *testing.T, item string, price float64, amount int64, ts time.Time) {
	t.Helper()
	if _, err := env.trades.Append(context.Background(), domain.Trade{
		Timestamp:  ts,
		ItemName:   item,
		ItemPrice:  price,
		AmountSold: amount,
		Buyer:      "seed",
	}); err != nil {
		t.Fatalf("seed trade: %v", err)
	}
}

func (env *testEnv) addPosting(t *testing.T, name string, price float64, qty int64) string {
	t.Helper()
	rr := env.doJSON(t, http.MethodPost, "/add", map[string]any{
		"itemName":     name,
		"itemPrice":    price,
		"itemQuantity": qty,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("add posting: status %d, body %s", rr.Code, rr.Body.String())
	}
	if qty == 0 {
		return ""
	}
	listings, err := env.listings.ListAvailable(context.Background(), name)
	if err != nil || len(listings) == 0 {
		t.Fatalf("posting %q not stored: %v", name, err)
	}
	return listings[len(listings)-1].ID
}

// --- Health and metrics ---

func TestHealthz(t *testing.T) {
	env := newTestEnv()
	rr := env.doJSON(t, http.MethodGet, "/healthz", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]string
	decodeJSON(t, rr, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", rr.Header().Get("Content-Type"))
	}
}

func TestMetrics_Exposed(t *testing.T) {
	env := newTestEnv()
	env.doJSON(t, http.MethodGet, "/analytics/sales-summary", nil)

	rr := env.doJSON(t, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "marketboard_analytics_duration_seconds") {
		t.Error("expected analytics duration histogram in exposition")
	}
}

// --- Analytics ---

func TestAnalytics_EmptyLogReturnsEmptyArrays(t *testing.T) {
	env := newTestEnv()

	for _, path := range []string{
		"/analytics/sales-summary",
		"/analytics/daily-volume",
		"/daily_volume",
		"/analytics/item-price-stats",
		"/analytics/price-volatility",
	} {
		t.Run(path, func(t *testing.T) {
			rr := env.doJSON(t, http.MethodGet, path, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
				t.Errorf("expected [], got %s", got)
			}
			if rr.Header().Get(DegradedHeader) != "" {
				t.Errorf("unexpected %s header", DegradedHeader)
			}
		})
	}
}

func TestAnalytics_SalesSummary(t *testing.T) {
	env := newTestEnv()
	now := time.Now()
	env.seedTrade(t, "Potion", 10, 3, now)
	env.seedTrade(t, "Sword", 100, 1, now)

	rr := env.doJSON(t, http.MethodGet, "/analytics/sales-summary", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body []map[string]any
	decodeJSON(t, rr, &body)
	if len(body) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(body))
	}
	for _, field := range []string{"itemName", "totalSold", "totalRevenue", "totalSoldPercent"} {
		if _, ok := body[0][field]; !ok {
			t.Errorf("missing field %q", field)
		}
	}
	if body[0]["itemName"] != "Potion" || body[0]["totalSoldPercent"] != 75.0 {
		t.Errorf("unexpected first row %v", body[0])
	}
}

func TestAnalytics_DailyVolumeAndStability(t *testing.T) {
	env := newTestEnv()
	env.seedTrade(t, "Potion", 10, 5, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	env.seedTrade(t, "Potion", 10, 15, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	env.seedTrade(t, "Sword", 100, 1, time.Date(2024, 1, 2, 11, 0, 0, 0, time.UTC))

	rr := env.doJSON(t, http.MethodGet, "/analytics/daily-volume?item=Potion", nil)
	var daily []dailyVolumeResponse
	decodeJSON(t, rr, &daily)
	want := []dailyVolumeResponse{{Date: "2024-01-01", Volume: 5}, {Date: "2024-01-02", Volume: 15}}
	if len(daily) != 2 || daily[0] != want[0] || daily[1] != want[1] {
		t.Fatalf("got %v, want %v", daily, want)
	}

	rr = env.doJSON(t, http.MethodGet, "/analytics/demand-stability?item=Potion", nil)
	var item itemStabilityResponse
	decodeJSON(t, rr, &item)
	if item.Item != "Potion" || math.Abs(item.Score-5.0) > 1e-9 || len(item.Daily) != 2 {
		t.Errorf("unexpected item stability %+v", item)
	}

	rr = env.doJSON(t, http.MethodGet, "/analytics/demand-stability?item=Elixir", nil)
	var raw map[string]any
	decodeJSON(t, rr, &raw)
	if raw["score"] != 0.0 {
		t.Errorf("expected score 0, got %v", raw["score"])
	}
	if d, ok := raw["daily"].([]any); !ok || len(d) != 0 {
		t.Errorf("expected daily [], got %v", raw["daily"])
	}

	rr = env.doJSON(t, http.MethodGet, "/analytics/demand-stability", nil)
	var market map[string]any
	decodeJSON(t, rr, &market)
	if _, ok := market["item"]; ok {
		t.Error("market-wide form must not carry item")
	}
	// Daily volumes {5, 16}.
	if s, _ := market["score"].(float64); math.Abs(s-5.5) > 1e-9 {
		t.Errorf("expected score 5.5, got %v", market["score"])
	}
}

func TestAnalytics_PriceVolatility(t *testing.T) {
	env := newTestEnv()
	now := time.Now()
	env.seedTrade(t, "Potion", 10, 1, now.Add(-10*time.Minute))
	env.seedTrade(t, "Potion", 20, 1, now.Add(-20*time.Minute))
	env.seedTrade(t, "Potion", 30, 1, now.Add(-30*time.Minute))
	env.seedTrade(t, "Sword", 100, 1, now.Add(-2*time.Hour))

	rr := env.doJSON(t, http.MethodGet, "/analytics/price-volatility", nil)
	var body []itemVolatilityResponse
	decodeJSON(t, rr, &body)
	if len(body) != 1 {
		t.Fatalf("expected 1 row, got %v", body)
	}
	if body[0].ItemName != "Potion" || body[0].Count != 3 ||
		math.Abs(body[0].Sigma-8.16496580927726) > 1e-9 || body[0].AvgPrice != 20 {
		t.Errorf("unexpected row %+v", body[0])
	}

	rr = env.doJSON(t, http.MethodGet, "/analytics/price-volatility?hours=1&minSales=1", nil)
	decodeJSON(t, rr, &body)
	if len(body) != 1 || body[0].ItemName != "Potion" {
		t.Errorf("expected only Potion in a 1h window, got %v", body)
	}

	// Invalid values fall back to defaults.
	rr = env.doJSON(t, http.MethodGet, "/analytics/price-volatility?hours=abc&minSales=-3", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	decodeJSON(t, rr, &body)
	if len(body) != 1 {
		t.Errorf("expected default window and threshold, got %v", body)
	}
}

func TestAnalytics_ItemPriceStats(t *testing.T) {
	env := newTestEnv()
	now := time.Now()
	env.seedTrade(t, "Sword", 100, 1, now)
	env.seedTrade(t, "Sword", 140, 1, now)
	env.seedTrade(t, "Arrow", 1, 10, now)

	rr := env.doJSON(t, http.MethodGet, "/analytics/item-price-stats", nil)
	var body []itemPriceStatsResponse
	decodeJSON(t, rr, &body)
	want := []itemPriceStatsResponse{
		{ItemName: "Arrow", HighestPrice: 1, LowestPrice: 1, AveragePrice: 1, TotalTransactions: 1},
		{ItemName: "Sword", HighestPrice: 140, LowestPrice: 100, AveragePrice: 120, TotalTransactions: 2},
	}
	if len(body) != 2 || body[0] != want[0] || body[1] != want[1] {
		t.Errorf("got %+v, want %+v", body, want)
	}
}

func TestAnalytics_Overview(t *testing.T) {
	env := newTestEnv()
	env.seedTrade(t, "Potion", 10, 2, time.Now())

	rr := env.doJSON(t, http.MethodGet, "/analytics/overview", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var raw map[string]any
	decodeJSON(t, rr, &raw)
	for _, field := range []string{"salesSummary", "dailyVolume", "itemPriceStats", "priceVolatility", "demandStability"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing field %q", field)
		}
	}
}

func TestAnalytics_StorageFailureDegrades(t *testing.T) {
	env := newBrokenEnv()

	tests := []struct {
		path     string
		wantBody string
		flagged  bool
	}{
		{"/analytics/sales-summary", "[]", true},
		{"/analytics/daily-volume", "[]", true},
		{"/analytics/price-volatility", "[]", true},
		{"/analytics/demand-stability", `{"score":0}`, true},
		{"/analytics/demand-stability?item=Potion", `{"item":"Potion","score":0,"daily":[]}`, true},
		// Degrades inside the engine.
		{"/analytics/item-price-stats", "[]", false},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			rr := env.doJSON(t, http.MethodGet, tc.path, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != tc.wantBody {
				t.Errorf("body = %s, want %s", got, tc.wantBody)
			}
			if got := rr.Header().Get(DegradedHeader) == "true"; got != tc.flagged {
				t.Errorf("%s header set = %v, want %v", DegradedHeader, got, tc.flagged)
			}
		})
	}
}

// --- Listings ---

func TestPostings_AddListAndSearch(t *testing.T) {
	env := newTestEnv()
	env.addPosting(t, "Health Potion", 10, 3)
	env.addPosting(t, "Iron Sword", 90, 1)
	env.addPosting(t, "Sold Out Shield", 50, 0)

	rr := env.doJSON(t, http.MethodGet, "/postings", nil)
	var all []postingResponse
	decodeJSON(t, rr, &all)
	if len(all) != 2 {
		t.Fatalf("expected 2 postings in stock, got %d", len(all))
	}
	for _, p := range all {
		if p.ID == "" || p.Timestamp == "" {
			t.Errorf("posting missing id or timestamp: %+v", p)
		}
		if p.ItemName == "Health Potion" && p.ItemQuantity != 3 {
			t.Errorf("expected quantity 3, got %d", p.ItemQuantity)
		}
	}

	rr = env.doJSON(t, http.MethodGet, "/postings?search=sWoRd", nil)
	var found []postingResponse
	decodeJSON(t, rr, &found)
	if len(found) != 1 || found[0].ItemName != "Iron Sword" {
		t.Errorf("expected Iron Sword, got %+v", found)
	}
}

func TestPostings_AddValidationError(t *testing.T) {
	env := newTestEnv()
	rr := env.doJSON(t, http.MethodPost, "/add", map[string]any{
		"itemName":     "Potion",
		"itemPrice":    0,
		"itemQuantity": 1,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body resultResponse
	decodeJSON(t, rr, &body)
	if body.Success || body.Message != "itemPrice must be > 0" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestPostings_Delete(t *testing.T) {
	env := newTestEnv()
	id := env.addPosting(t, "Potion", 10, 1)

	rr := env.doJSON(t, http.MethodPost, "/delete", map[string]string{"itemID": id})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = env.doJSON(t, http.MethodPost, "/delete", map[string]string{"itemID": id})
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}

	rr = env.doJSON(t, http.MethodPost, "/delete", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing itemID, got %d", rr.Code)
	}
}

func TestBuy_Success(t *testing.T) {
	env := newTestEnv()
	id := env.addPosting(t, "Potion", 15, 5)

	rr := env.doJSON(t, http.MethodPost, "/buy", map[string]any{
		"itemID":   id,
		"quantity": 2,
		"buyer":    "alice",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"success":true}` {
		t.Errorf("unexpected body %s", got)
	}

	rr = env.doJSON(t, http.MethodGet, "/history", nil)
	var history []historyResponse
	decodeJSON(t, rr, &history)
	if len(history) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history))
	}
	h := history[0]
	if h.ItemName != "Potion" || h.ItemPrice != 15 || h.AmountSold != 2 || h.UserCustomer != "alice" {
		t.Errorf("unexpected history entry %+v", h)
	}
	if _, err := time.Parse(time.RFC3339Nano, h.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC 3339: %v", h.Timestamp, err)
	}

	rr = env.doJSON(t, http.MethodGet, "/analytics/sales-summary", nil)
	var sales []itemSalesResponse
	decodeJSON(t, rr, &sales)
	if len(sales) != 1 || sales[0].TotalSold != 2 || sales[0].TotalRevenue != 30 {
		t.Errorf("purchase not reflected in analytics: %+v", sales)
	}
}

func TestBuy_Errors(t *testing.T) {
	env := newTestEnv()
	id := env.addPosting(t, "Potion", 15, 1)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantMsg    string
	}{
		{"insufficient quantity", map[string]any{"itemID": id, "quantity": 2, "buyer": "bob"}, http.StatusBadRequest, "Not enough quantity"},
		{"unknown listing", map[string]any{"itemID": "nope", "quantity": 1, "buyer": "bob"}, http.StatusNotFound, "Listing not found"},
		{"zero quantity", map[string]any{"itemID": id, "quantity": 0, "buyer": "bob"}, http.StatusBadRequest, "quantity must be > 0"},
		{"missing buyer", map[string]any{"itemID": id, "quantity": 1}, http.StatusBadRequest, "buyer is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.doJSON(t, http.MethodPost, "/buy", tc.body)
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
			var body resultResponse
			decodeJSON(t, rr, &body)
			if body.Success || body.Message != tc.wantMsg {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

// --- Trade history ---

func TestHistory_AddAndDelete(t *testing.T) {
	env := newTestEnv()

	rr := env.doJSON(t, http.MethodPost, "/add_history", map[string]any{
		"itemName":     "Sword",
		"itemPrice":    100,
		"amountSold":   1,
		"userCustomer": "carol",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.doJSON(t, http.MethodGet, "/history", nil)
	var history []historyResponse
	decodeJSON(t, rr, &history)
	if len(history) != 1 || history[0].UserCustomer != "carol" {
		t.Fatalf("unexpected history %+v", history)
	}

	rr = env.doJSON(t, http.MethodPost, "/delete_history", map[string]string{"entryID": history[0].ID})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = env.doJSON(t, http.MethodPost, "/delete_history", map[string]string{"entryID": history[0].ID})
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	rr = env.doJSON(t, http.MethodPost, "/delete_history", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing entryID, got %d", rr.Code)
	}
}

func TestHistory_AddValidationError(t *testing.T) {
	env := newTestEnv()
	rr := env.doJSON(t, http.MethodPost, "/add_history", map[string]any{
		"itemName":   "Sword",
		"itemPrice":  100,
		"amountSold": 1,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body resultResponse
	decodeJSON(t, rr, &body)
	if body.Message != "userCustomer is required" {
		t.Errorf("unexpected message %q", body.Message)
	}
}

// --- Content type ---

func TestContentType_MissingOnPost(t *testing.T) {
	env := newTestEnv()
	rr := env.doRaw(t, http.MethodPost, "/add", "", `{"itemName":"Potion"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestContentType_WrongOnPost(t *testing.T) {
	env := newTestEnv()
	rr := env.doRaw(t, http.MethodPost, "/buy", "text/plain", `{"itemID":"x"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	var body resultResponse
	decodeJSON(t, rr, &body)
	if body.Success {
		t.Error("expected success=false")
	}
}

func TestMalformedJSON(t *testing.T) {
	env := newTestEnv()
	rr := env.doRaw(t, http.MethodPost, "/add", "application/json", `{"itemName":`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}
