package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/efreitasn/marketboard/internal/analytics"
	"github.com/efreitasn/marketboard/internal/config"
	"github.com/efreitasn/marketboard/internal/handler"
	"github.com/efreitasn/marketboard/internal/seed"
	"github.com/efreitasn/marketboard/internal/service"
	"github.com/efreitasn/marketboard/internal/store"
	"github.com/efreitasn/marketboard/internal/store/mongostore"
)

// tradeLog is what every component needs from the trade log.
type tradeLog interface {
	analytics.TradeLog
	service.TradeRepository
	seed.TradeSink
}

// listingRepo is what every component needs from the listing store.
type listingRepo interface {
	service.ListingRepository
	seed.ListingSink
}

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		os.Exit(checkHealth(fmt.Sprintf("http://localhost:%s/healthz", port)))
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Instantiate stores.
	var (
		trades   tradeLog
		listings listingRepo
		closeDB  = func(context.Context) error { return nil }
	)
	switch cfg.StoreBackend {
	case config.BackendMongo:
		connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
		client, db, err := mongostore.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		connectCancel()
		if err != nil {
			logger.Error("failed to connect to mongo", slog.String("error", err.Error()))
			os.Exit(1)
		}
		closeDB = client.Disconnect

		ts := mongostore.NewTradeStore(db)
		if err := ts.EnsureIndexes(ctx); err != nil {
			logger.Error("failed to create indexes", slog.String("error", err.Error()))
			os.Exit(1)
		}
		trades = ts
		listings = mongostore.NewListingStore(db)
		logger.Info("using mongo store", slog.String("database", cfg.MongoDatabase))
	default:
		// Validated by config.Load.
		ops, _ := cfg.Operators()
		trades = store.NewTradeStore(store.WithoutOperators(ops...))
		listings = store.NewListingStore()
		logger.Info("using in-memory store", slog.Int("disabled_operators", len(ops)))
	}

	// Seed data.
	nl, nt, err := seed.NewLoader(listings, trades, logger).Load(ctx, cfg.SeedListingsFile, cfg.SeedHistoryFile)
	if err != nil {
		logger.Error("failed to seed stores", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if nl+nt > 0 {
		logger.Info("stores seeded", slog.Int("listings", nl), slog.Int("trades", nt))
	}

	// Engine and services.
	engine := analytics.NewEngine(trades, analytics.SystemClock, logger)
	marketSvc := service.NewMarketService(listings, trades, logger)

	// Router.
	router := handler.NewRouter(engine, marketSvc, cfg.QueryTimeout, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, then release the store.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	if err := closeDB(shutdownCtx); err != nil {
		logger.Error("store close error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// checkHealth requests url and returns the process exit code: 0 when it
// answers 200, 1 otherwise.
func checkHealth(url string) int {
	resp, err := http.Get(url)
	if err != nil {
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}
