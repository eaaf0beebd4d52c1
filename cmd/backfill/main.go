// Package main runs a single collection job from the command line and
// exits. Useful for backfilling a wallet's history without the API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dex-wallet-tracker/internal/cache"
	"dex-wallet-tracker/internal/chaindata"
	"dex-wallet-tracker/internal/collector"
	"dex-wallet-tracker/internal/config"
	"dex-wallet-tracker/internal/dex"
	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/enrichment"
	"dex-wallet-tracker/internal/events"
	"dex-wallet-tracker/internal/idhash"
	"dex-wallet-tracker/internal/news"
	"dex-wallet-tracker/internal/orchestrator"
	"dex-wallet-tracker/internal/pricing"
	"dex-wallet-tracker/internal/storage"
	"dex-wallet-tracker/internal/storage/memory"
	"dex-wallet-tracker/internal/storage/migrations"
	pgstore "dex-wallet-tracker/internal/storage/postgres"
)

func main() {
	var (
		address = flag.String("address", "", "wallet address to backfill (required)")
		start   = flag.String("start", "", "range start, ISO-8601 (required)")
		end     = flag.String("end", "", "range end, ISO-8601 (required)")
	)
	flag.Parse()

	logger := logrus.New()

	if *address == "" || *start == "" || *end == "" {
		flag.Usage()
		os.Exit(2)
	}

	startTime, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		logger.WithError(err).Fatal("parse -start")
	}
	endTime, err := time.Parse(time.RFC3339, *end)
	if err != nil {
		logger.WithError(err).Fatal("parse -end")
	}
	if !endTime.After(startTime) {
		logger.Fatal("-end must be after -start")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retention := time.Duration(cfg.ExpirationDays) * 24 * time.Hour

	var (
		tradeStore storage.TradeStore
		eventStore storage.EventStore
		jobStore   storage.JobStore
	)

	if cfg.UseMemory {
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

	priceCache := cache.NewPriceCache(cfg.RedisAddr, cfg.RedisPassword, cfg.PriceCacheTTL)
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
		enrichment.Options{BatchLimit: cfg.EnrichBatchLimit, PriceCache: priceCache},
		logger,
	)

	eventCollector := events.NewCollector(
		news.NewClient(cfg.NewsBaseURL, cfg.NewsAPIKey),
		eventStore,
		cfg.MinEventValueUSD,
		cfg.EventWindow,
		logger,
	)

	orch := orchestrator.New(jobStore, tradeStore, tradeCollector, enricher, eventCollector, orchestrator.Options{
		WindowSize:       cfg.WindowSize,
		InterWindowDelay: cfg.InterWindowDelay,
	}, logger)

	nowMs := time.Now().UnixMilli()
	job := &domain.CollectionJob{
		ID:        idhash.ComputeJobID(*address, startTime.UnixMilli(), endTime.UnixMilli(), nowMs),
		Address:   strings.ToLower(*address),
		StartDate: startTime.UnixMilli(),
		EndDate:   endTime.UnixMilli(),
		Status:    domain.JobStatusQueued,
		CreatedAt: nowMs,
		UpdatedAt: nowMs,
	}
	if err := jobStore.Insert(ctx, job); err != nil {
		logger.WithError(err).Fatal("insert job")
	}

	logger.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"address": *address,
		"start":   startTime.Format(time.RFC3339),
		"end":     endTime.Format(time.RFC3339),
	}).Info("starting backfill")

	if err := orch.Run(ctx, job.ID); err != nil {
		logger.WithError(err).Fatal("backfill failed")
	}

	final, err := jobStore.GetByID(ctx, job.ID)
	if err != nil {
		logger.WithError(err).Fatal("load final job state")
	}

	logger.WithFields(logrus.Fields{
		"status":           final.Status,
		"trades_collected": final.Progress.TradesCollected,
		"trades_enriched":  final.Progress.TradesEnriched,
		"events_collected": final.Progress.EventsCollected,
	}).Info("backfill finished")
}
