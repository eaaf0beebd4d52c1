// Package main runs the wallet tracker service: the HTTP API, the
// websocket progress feed, and the background TTL purge loop.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dex-wallet-tracker/internal/api"
	"dex-wallet-tracker/internal/cache"
	"dex-wallet-tracker/internal/chaindata"
	"dex-wallet-tracker/internal/collector"
	"dex-wallet-tracker/internal/config"
	"dex-wallet-tracker/internal/correlation"
	"dex-wallet-tracker/internal/dex"
	"dex-wallet-tracker/internal/enrichment"
	"dex-wallet-tracker/internal/events"
	"dex-wallet-tracker/internal/news"
	"dex-wallet-tracker/internal/orchestrator"
	"dex-wallet-tracker/internal/pricing"
	"dex-wallet-tracker/internal/storage"
	chstore "dex-wallet-tracker/internal/storage/clickhouse"
	"dex-wallet-tracker/internal/storage/memory"
	"dex-wallet-tracker/internal/storage/migrations"
	pgstore "dex-wallet-tracker/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retention := time.Duration(cfg.ExpirationDays) * 24 * time.Hour

	var (
		tradeStore storage.TradeStore
		eventStore storage.EventStore
		jobStore   storage.JobStore
	)

	if cfg.UseMemory {
		logger.Info("using in-memory storage")
		tradeStore = memory.NewTradeStore(retention)
		eventStore = memory.NewEventStore(retention)
		jobStore = memory.NewJobStore()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.WithError(err).Fatal("connect postgres")
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.WithError(err).Fatal("apply postgres migrations")
		}

		tradeStore = pgstore.NewTradeStore(pool, retention)
		eventStore = pgstore.NewEventStore(pool, retention)
		jobStore = pgstore.NewJobStore(pool)
	}

	var priceArchive storage.PricePointStore
	if cfg.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			logger.WithError(err).Warn("clickhouse unavailable, price archive disabled")
		} else {
			defer conn.Close()
			if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
				logger.WithError(err).Fatal("apply clickhouse migrations")
			}
			priceArchive = chstore.NewPricePointStore(conn)
		}
	}

	priceCache := cache.NewPriceCache(cfg.RedisAddr, cfg.RedisPassword, cfg.PriceCacheTTL)
	if priceCache == nil && cfg.RedisAddr != "" {
		logger.Warn("redis unavailable, price cache disabled")
	}
	defer priceCache.Close()

	registry := dex.NewRegistry()
	for router, venue := range cfg.ExtraRouters {
		registry.Register(router, venue)
	}

	tradeCollector := collector.New(
		cfg.Chain,
		chaindata.NewClient(cfg.ChainDataBaseURL, cfg.ChainDataAPIKey),
		dex.NewExtractor(registry),
		logger,
	)

	enricher := enrichment.NewEngine(
		tradeStore,
		pricing.NewClient(cfg.PricingBaseURL, cfg.PricingAPIKey, cfg.Chain),
		enrichment.Options{
			BatchLimit: cfg.EnrichBatchLimit,
			PriceCache: priceCache,
			Archive:    priceArchive,
		},
		logger,
	)

	eventCollector := events.NewCollector(
		news.NewClient(cfg.NewsBaseURL, cfg.NewsAPIKey),
		eventStore,
		cfg.MinEventValueUSD,
		cfg.EventWindow,
		logger,
	)

	broadcaster := api.NewBroadcaster(logger)

	orch := orchestrator.New(jobStore, tradeStore, tradeCollector, enricher, eventCollector, orchestrator.Options{
		WindowSize:       cfg.WindowSize,
		InterWindowDelay: cfg.InterWindowDelay,
		Sink:             broadcaster,
	}, logger)

	analyzer := correlation.NewEngine(tradeStore, eventStore, cfg.EventWindow)

	server := api.NewServer(cfg.ListenAddr, jobStore, orch, analyzer, broadcaster, logger)

	go purgeLoop(ctx, tradeStore, eventStore, cfg.PurgeInterval, logger)

	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("http server listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown http server")
	}
}

// purgeLoop deletes expired trades and events on a fixed interval.
func purgeLoop(ctx context.Context, trades storage.TradeStore, events storage.EventStore, interval time.Duration, logger logrus.FieldLogger) {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nowMs := time.Now().UnixMilli()

			purgedTrades, err := trades.PurgeExpired(ctx, nowMs)
			if err != nil {
				logger.WithError(err).Warn("purge trades")
			}
			purgedEvents, err := events.PurgeExpired(ctx, nowMs)
			if err != nil {
				logger.WithError(err).Warn("purge events")
			}

			if purgedTrades > 0 || purgedEvents > 0 {
				logger.WithFields(logrus.Fields{
					"trades": purgedTrades,
					"events": purgedEvents,
				}).Info("purged expired rows")
			}
		}
	}
}
