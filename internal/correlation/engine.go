// Package correlation computes wallet trading metrics and scores news
// events against them.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"dex-wallet-tracker/internal/domain"
	"dex-wallet-tracker/internal/storage"
)

// ErrNoTrades is returned when a wallet has no enriched trades in the
// requested range.
var ErrNoTrades = errors.New("correlation: no enriched trades in range")

// Scoring thresholds.
const (
	// HighValueUSD splits value significance scoring.
	HighValueUSD = 10000.0
	// ActiveTradeCount splits trading intensity scoring.
	ActiveTradeCount = 5
	// MinConfidence is the cut for reported correlations.
	MinConfidence = 0.5
	// DefaultEventWindow bounds the event search around the trading
	// window.
	DefaultEventWindow = 24 * time.Hour
)

// Engine analyzes wallet trade activity against stored events.
type Engine struct {
	trades storage.TradeStore
	events storage.EventStore
	window time.Duration
}

// NewEngine creates a correlation engine. Zero window falls back to
// DefaultEventWindow.
func NewEngine(trades storage.TradeStore, events storage.EventStore, window time.Duration) *Engine {
	if window <= 0 {
		window = DefaultEventWindow
	}
	return &Engine{trades: trades, events: events, window: window}
}

// Analyze computes aggregate metrics over the wallet's enriched trades
// in [startMs, endMs) (zero bounds unbounded). Returns ErrNoTrades when
// nothing qualifies.
func (e *Engine) Analyze(ctx context.Context, walletAddress string, startMs, endMs int64) (*domain.CorrelationMetrics, error) {
	all, err := e.trades.GetByWallet(ctx, walletAddress, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("load trades for %s: %w", walletAddress, err)
	}

	var trades []*domain.Trade
	for _, t := range all {
		if t.IsEnriched {
			trades = append(trades, t)
		}
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	m := &domain.CorrelationMetrics{
		WalletAddress: walletAddress,
		TradeCount:    len(trades),
		TokenPairs:    make(map[string]int),
		StartTime:     trades[0].Timestamp,
		EndTime:       trades[len(trades)-1].Timestamp,
	}

	var gapSum int64
	for i, t := range trades {
		value := 0.0
		if t.TokenIn.ValueUSD != nil {
			value = *t.TokenIn.ValueUSD
		}

		m.TotalValueUSD += value
		if value > m.LargestTradeUSD {
			m.LargestTradeUSD = value
		}
		m.TokenPairs[fmt.Sprintf("%s-%s", t.TokenIn.Symbol, t.TokenOut.Symbol)]++

		if i > 0 {
			gapSum += t.Timestamp - trades[i-1].Timestamp
		}
	}

	m.AverageTradeValue = m.TotalValueUSD / float64(len(trades))
	if len(trades) > 1 {
		m.AvgTradeGapMs = float64(gapSum) / float64(len(trades)-1)
	}

	return m, nil
}

// Correlate scores stored events published around the trading window
// described by the metrics. Events scoring above MinConfidence are
// returned, highest confidence first.
func (e *Engine) Correlate(ctx context.Context, m *domain.CorrelationMetrics) ([]domain.CorrelatedEvent, error) {
	windowMs := e.window.Milliseconds()
	events, err := e.events.GetByTimeRange(ctx, m.StartTime-windowMs, m.EndTime+windowMs)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	var correlated []domain.CorrelatedEvent
	for _, ev := range events {
		confidence, reason := e.score(m, ev)
		if confidence <= MinConfidence {
			continue
		}
		correlated = append(correlated, domain.CorrelatedEvent{
			EventID:    ev.ID,
			Confidence: confidence,
			Reason:     reason,
		})
	}

	sort.Slice(correlated, func(i, j int) bool {
		if correlated[i].Confidence != correlated[j].Confidence {
			return correlated[i].Confidence > correlated[j].Confidence
		}
		return correlated[i].EventID < correlated[j].EventID
	})

	return correlated, nil
}

// score rates one event against the metrics as the mean of time
// proximity, value significance, and trading intensity.
func (e *Engine) score(m *domain.CorrelationMetrics, ev *domain.RelatedEvent) (float64, string) {
	proximity := e.timeProximity(m, ev.Timestamp)

	valueScore := 0.4
	valueDesc := "moderate trading value"
	if m.TotalValueUSD > HighValueUSD {
		valueScore = 0.8
		valueDesc = "high trading value"
	}

	intensityScore := 0.3
	intensityDesc := "sparse trading"
	if m.TradeCount > ActiveTradeCount {
		intensityScore = 0.7
		intensityDesc = "active trading"
	}

	confidence := (proximity + valueScore + intensityScore) / 3

	reason := fmt.Sprintf("published %s with %s and %s",
		proximityDesc(proximity), valueDesc, intensityDesc)

	return confidence, reason
}

// timeProximity is 1.0 for events published at the start of the
// trading activity, decaying linearly to 0 one search window away in
// either direction.
func (e *Engine) timeProximity(m *domain.CorrelationMetrics, eventTs int64) float64 {
	distance := eventTs - m.StartTime
	if distance < 0 {
		distance = -distance
	}

	windowMs := e.window.Milliseconds()
	if distance >= windowMs {
		return 0
	}
	return 1 - float64(distance)/float64(windowMs)
}

func proximityDesc(proximity float64) string {
	if proximity >= 0.5 {
		return "close to the start of trading"
	}
	return "well before or after trading started"
}
