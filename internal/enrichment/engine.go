// Package enrichment attaches USD pricing to stored trades.
package enrichment

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"dex-wallet-tracker/internal/cache"
	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/storage"
)

// PriceSource fetches USD prices for tokens on a UTC day (YYYY-MM-DD).
// Implemented by pricing.Client.
type PriceSource interface {
	DailyPrices(ctx context.Context, tokenAddresses []string, day string) (map[string]float64, error)
}

// Result reports one enrichment pass.
type Result struct {
	Processed int
	Enriched  int
	Errors    []string
}

// Engine prices unenriched trades in date-grouped batches.
type Engine struct {
	trades     storage.TradeStore
	prices     PriceSource
	priceCache *cache.PriceCache
	archive    storage.PricePointStore
	batchLimit int
	logger     logrus.FieldLogger

	now func() time.Time
}

// Options configures Engine.
type Options struct {
	// BatchLimit caps how many trades one Run picks up.
	BatchLimit int
	// PriceCache is optional; nil degrades to always-miss.
	PriceCache *cache.PriceCache
	// Archive is optional; fetched prices are recorded there when set.
	Archive storage.PricePointStore
}

// NewEngine creates an enrichment engine.
func NewEngine(trades storage.TradeStore, prices PriceSource, opts Options, logger logrus.FieldLogger) *Engine {
	limit := opts.BatchLimit
	if limit <= 0 {
		limit = 20
	}
	return &Engine{
		trades:     trades,
		prices:     prices,
		priceCache: opts.PriceCache,
		archive:    opts.Archive,
		batchLimit: limit,
		logger:     logger,
		now:        time.Now,
	}
}

// Run picks up a batch of unenriched trades, groups them by UTC trade
// date, and prices each group with a single provider call. A group
// whose prices cannot be fetched is reported in Errors and skipped;
// its trades stay unenriched for a later pass. A trade is marked
// enriched only when both legs have a price.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	trades, err := e.trades.GetUnenriched(ctx, e.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("load unenriched trades: %w", err)
	}

	result := &Result{Processed: len(trades)}
	if len(trades) == 0 {
		return result, nil
	}

	for day, group := range groupByDay(trades) {
		enriched, err := e.enrichGroup(ctx, day, group)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("date %s: %v", day, err))
			e.logger.WithField("day", day).WithError(err).Warn("enrichment group failed")
			continue
		}
		result.Enriched += enriched
	}

	return result, nil
}

// enrichGroup prices all trades of one UTC day and returns how many
// were fully enriched.
func (e *Engine) enrichGroup(ctx context.Context, day string, group []*domain.Trade) (int, error) {
	prices, err := e.dayPrices(ctx, day, group)
	if err != nil {
		return 0, err
	}

	enriched := 0
	for _, t := range group {
		applyLeg(&t.TokenIn, prices)
		applyLeg(&t.TokenOut, prices)

		if t.TokenIn.PriceUSD == nil || t.TokenOut.PriceUSD == nil {
			e.logger.WithField("tx_hash", t.TxHash).Warn("missing price for one leg, trade left unenriched")
			continue
		}
		if err := e.trades.MarkEnriched(ctx, t.TxHash, t.TokenIn, t.TokenOut); err != nil {
			e.logger.WithField("tx_hash", t.TxHash).WithError(err).Warn("persist enrichment failed")
			continue
		}
		enriched++
	}

	return enriched, nil
}

// dayPrices resolves the price of every token referenced by the group,
// consulting the cache first and fetching the remainder in one call.
func (e *Engine) dayPrices(ctx context.Context, day string, group []*domain.Trade) (map[string]float64, error) {
	prices := make(map[string]float64)
	var missing []string
	seen := make(map[string]bool)

	for _, t := range group {
		for _, addr := range []string{t.TokenIn.Address, t.TokenOut.Address} {
			if addr == "" || seen[addr] {
				continue
			}
			seen[addr] = true

			if price, ok := e.priceCache.Get(ctx, addr, day); ok {
				prices[addr] = price
			} else {
				missing = append(missing, addr)
			}
		}
	}

	if len(missing) == 0 {
		return prices, nil
	}

	fetched, err := e.prices.DailyPrices(ctx, missing, day)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	points := make([]*domain.PricePoint, 0, len(fetched))
	for addr, price := range fetched {
		prices[addr] = price
		e.priceCache.Set(ctx, addr, day, price)
		points = append(points, &domain.PricePoint{
			TokenAddress: addr,
			Day:          day,
			PriceUSD:     price,
			FetchedAt:    e.now().UnixMilli(),
		})
	}

	if e.archive != nil && len(points) > 0 {
		if err := e.archive.InsertBulk(ctx, points); err != nil {
			e.logger.WithError(err).Warn("archive price points failed")
		}
	}

	return prices, nil
}

// applyLeg sets price and value on a token leg when a price is known.
func applyLeg(leg *domain.TokenAmount, prices map[string]float64) {
	price, ok := prices[leg.Address]
	if !ok {
		return
	}

	amount := humanAmount(leg.Amount, decimalsFor(leg.Symbol))
	value := price * amount

	leg.PriceUSD = &price
	leg.ValueUSD = &value
}

// humanAmount converts a raw integer token amount to its decimal value.
func humanAmount(raw string, decimals int) float64 {
	amount, ok := new(big.Float).SetString(raw)
	if !ok {
		return 0
	}

	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	amount.Quo(amount, divisor)

	f, _ := amount.Float64()
	return f
}

// groupByDay buckets trades by their UTC trade date.
func groupByDay(trades []*domain.Trade) map[string][]*domain.Trade {
	groups := make(map[string][]*domain.Trade)
	for _, t := range trades {
		day := time.UnixMilli(t.Timestamp).UTC().Format("2006-01-02")
		groups[day] = append(groups[day], t)
	}
	return groups
}
