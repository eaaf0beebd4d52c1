// Package collector reduces a wallet's raw transaction history to
// normalized DEX trade records.
package collector

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"dex-wallet-tracker/internal/chaindata"
	"dex-wallet-tracker/internal/dex"
	"dex-wallet-tracker/internal/domain"
)

// TxSource fetches all transactions for a wallet, ascending by block
// time, with decoded log events. Implemented by chaindata.Client.
type TxSource interface {
	Transactions(ctx context.Context, chain, walletAddress string) ([]chaindata.Transaction, error)
}

// Collector fetches and extracts DEX trades for a wallet.
type Collector struct {
	chain     string
	source    TxSource
	extractor *dex.Extractor
	logger    logrus.FieldLogger
}

// New creates a Collector for the given chain.
func New(chain string, source TxSource, extractor *dex.Extractor, logger logrus.FieldLogger) *Collector {
	return &Collector{
		chain:     chain,
		source:    source,
		extractor: extractor,
		logger:    logger,
	}
}

// Collect fetches the wallet's transactions within [startMs, endMs)
// (zero bound = unbounded) and reduces them to trades. Per-transaction
// extraction failures are filtered, not escalated; an upstream error
// (including a structurally invalid response) fails the whole call.
func (c *Collector) Collect(ctx context.Context, walletAddress string, startMs, endMs int64) ([]*domain.Trade, error) {
	txs, err := c.source.Transactions(ctx, c.chain, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions for %s: %w", walletAddress, err)
	}

	log := c.logger.WithField("wallet", walletAddress)

	var trades []*domain.Trade
	for i := range txs {
		tx := &txs[i]

		trade, ok := c.extractor.Extract(tx)
		if !ok {
			continue
		}
		if startMs != 0 && trade.Timestamp < startMs {
			continue
		}
		if endMs != 0 && trade.Timestamp >= endMs {
			continue
		}

		trades = append(trades, trade)
	}

	log.WithFields(logrus.Fields{
		"transactions": len(txs),
		"trades":       len(trades),
	}).Debug("collected trades")

	return trades, nil
}
