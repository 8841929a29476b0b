package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/efreitasn/marketboard/internal/analytics"
	"github.com/efreitasn/marketboard/internal/metrics"
	"github.com/efreitasn/marketboard/internal/service"
)

// NewRouter creates a chi router with all routes registered, request ids,
// panic recovery, request logging and Content-Type validation middleware.
// queryTimeout bounds every analytics request; zero means no bound.
func NewRouter(
	engine *analytics.Engine,
	marketSvc *service.MarketService,
	queryTimeout time.Duration,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(middleware.RequestID)
	r.Use(requestLogging(logger))
	r.Use(middleware.Recoverer)
	r.Use(contentTypeJSON)

	analyticsH := NewAnalyticsHandler(engine, queryTimeout, logger)
	marketH := NewMarketHandler(marketSvc)

	// Health check and metrics.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Analytics routes.
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/sales-summary", analyticsH.SalesSummary)
		r.Get("/daily-volume", analyticsH.DailyVolume)
		r.Get("/item-price-stats", analyticsH.ItemPriceStats)
		r.Get("/price-volatility", analyticsH.PriceVolatility)
		r.Get("/demand-stability", analyticsH.DemandStability)
		r.Get("/overview", analyticsH.Overview)
	})
	r.Get("/daily_volume", analyticsH.DailyVolume)

	// Listing routes.
	r.Get("/postings", marketH.ListPostings)
	r.Post("/add", marketH.AddPosting)
	r.Post("/delete", marketH.DeletePosting)
	r.Post("/buy", marketH.Buy)

	// Trade history routes.
	r.Get("/history", marketH.History)
	r.Post("/add_history", marketH.AddHistory)
	r.Post("/delete_history", marketH.DeleteHistory)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, duration and request id using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteResult(w, http.StatusBadRequest, "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
