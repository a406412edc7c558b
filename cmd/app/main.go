package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paperledger/configs"
	redisadapter "paperledger/internal/adapter/redis"
	"paperledger/internal/database"
	delivery "paperledger/internal/delivery/http"
	"paperledger/internal/delivery/ops"
	"paperledger/internal/domain"
	"paperledger/internal/infra"
	"paperledger/internal/logger"
	"paperledger/internal/repository"
	"paperledger/internal/service"
	"paperledger/internal/usecase"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg := configs.Load()

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// Money values serialise as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()

	// Position store
	store, closeStore, err := openStore(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to open position store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	// Quote sources: static table first, then Binance for crypto pairs
	staticPrices, err := service.ParseStaticQuotes(cfg.Quotes.Static)
	if err != nil {
		zlog.Fatal("invalid STATIC_QUOTES", zap.Error(err))
	}
	var quotes domain.QuoteSource = service.NewRoutingQuoteSource(
		service.NewStaticQuoteSource(staticPrices),
		service.NewMarketPriceService(cfg.Quotes.BinanceBaseURL, cfg.Quotes.Timeout),
	)

	// Optional Redis price cache and warmer
	var (
		cachePinger ops.Pinger
		warmer      *infra.QuoteWarmer
	)
	if cfg.Redis.URL != "" {
		client, err := redisadapter.New(ctx, cfg.Redis.URL)
		if err != nil {
			zlog.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()

		cached := service.NewCachedQuoteSource(
			redisadapter.NewPriceCache(client, time.Hour),
			quotes,
			cfg.Quotes.CacheTTL,
			zlog.Named("quotes"),
		)
		quotes = cached
		cachePinger = client

		refresher := service.NewQuoteBatcher(domain.QuoteSourceFunc(cached.Refresh), cfg.Quotes.Concurrency, cfg.Quotes.Timeout, zlog.Named("warmer"))
		warmer = infra.NewQuoteWarmer(cfg.Warmer.Schedule, store, refresher, zlog.Named("warmer"))
		if err := warmer.Start(); err != nil {
			zlog.Fatal("failed to start quote warmer", zap.Error(err))
		}
		defer warmer.Stop()

		zlog.Info("redis price cache enabled", zap.Duration("ttl", cfg.Quotes.CacheTTL))
	}

	batcher := service.NewQuoteBatcher(quotes, cfg.Quotes.Concurrency, cfg.Quotes.Timeout, zlog.Named("quotes"))
	ledger := usecase.NewLedgerService(store, batcher, zlog.Named("ledger"))

	// API server
	e := echo.New()
	e.HideBanner = true
	delivery.SetupRoutes(e, &delivery.RouterConfig{
		PositionHandler: delivery.NewPositionHandler(ledger, zlog.Named("http")),
		JWTSecret:       cfg.Auth.JWTSecret,
	})
	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	// Ops server
	opsCfg := ops.Config{Store: store, Cache: cachePinger, Logger: zlog.Named("ops")}
	if warmer != nil {
		opsCfg.Warmer = warmer
	}
	opsSrv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.OpsPort),
		Handler:      ops.NewRouter(opsCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	zlog.Info("paperledger starting",
		zap.String("addr", addr),
		zap.String("ops_addr", opsSrv.Addr),
		zap.String("env", cfg.Server.Env),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("auth", cfg.Auth.JWTSecret != ""),
	)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to start api server", zap.Error(err))
		}
	}()
	go func() {
		if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to start ops server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down servers")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error("api server forced to shutdown", zap.Error(err))
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("ops server forced to shutdown", zap.Error(err))
	}

	zlog.Info("servers exited gracefully")
}

// openStore builds the position store selected by STORE_DRIVER
func openStore(ctx context.Context, cfg *configs.Config, zlog *zap.Logger) (domain.PositionRepository, func(), error) {
	switch cfg.Store.Driver {
	case "", "memory":
		zlog.Warn("using in-memory position store, positions are lost on restart")
		return repository.NewMemoryPositionRepository(), func() {}, nil

	case "postgres":
		db, err := infra.NewDatabase(ctx, cfg.Store.DatabaseURL, zlog)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(ctx, db, zlog); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repository.NewPostgresPositionRepository(db), db.Close, nil

	case "sqlite":
		repo, err := repository.NewSQLitePositionRepository(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		zlog.Info("sqlite position store opened", zap.String("path", cfg.Store.SQLitePath))
		return repo, func() { _ = repo.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q (want memory, postgres or sqlite)", cfg.Store.Driver)
}
