package dex

import (
	"strings"

	"dex-wallet-tracker/internal/chaindata"
	"dex-wallet-tracker/internal/domain"
)

// transferEvent is the decoded event name the extractor keys on.
const transferEvent = "Transfer"

// Extractor turns raw transactions into trades. Extraction is a pure
// function of the transaction's logs: first matching Transfer wins on
// each side, with log order preserved.
type Extractor struct {
	registry *Registry
}

// NewExtractor creates an extractor over the given router registry.
func NewExtractor(registry *Registry) *Extractor {
	return &Extractor{registry: registry}
}

// Extract returns the trade for a transaction, or ok=false if the
// transaction does not touch a known router or either token leg cannot
// be resolved. Unresolvable transactions are dropped, not errors.
func (e *Extractor) Extract(tx *chaindata.Transaction) (*domain.Trade, bool) {
	venue, ok := e.registry.Venue(tx.ToAddress)
	if !ok {
		return nil, false
	}

	tokenIn := e.extractTokenIn(tx)
	tokenOut := e.extractTokenOut(tx)
	if tokenIn.Address == "" || tokenOut.Address == "" {
		return nil, false
	}

	ts, err := tx.TimestampMs()
	if err != nil {
		return nil, false
	}

	return &domain.Trade{
		TxHash:        tx.TxHash,
		BlockHeight:   tx.BlockHeight,
		Timestamp:     ts,
		WalletAddress: strings.ToLower(tx.FromAddress),
		Dex:           venue,
		TokenIn:       tokenIn,
		TokenOut:      tokenOut,
	}, true
}

// extractTokenIn finds the first Transfer whose destination is the
// router. If none exists and the transaction carries non-zero native
// value, the leg is native ETH.
func (e *Extractor) extractTokenIn(tx *chaindata.Transaction) domain.TokenAmount {
	if leg, ok := firstTransfer(tx, 1); ok {
		return leg
	}

	if tx.Value != "" && tx.Value != "0" {
		return domain.TokenAmount{
			Address: domain.NativeAssetAddress,
			Symbol:  "ETH",
			Amount:  tx.Value,
		}
	}

	return domain.TokenAmount{Amount: "0"}
}

// extractTokenOut finds the first Transfer whose source is the router.
// There is no native-asset fallback on the output side: a native-ETH
// output leg is not representable in the log data and the transaction
// is dropped.
func (e *Extractor) extractTokenOut(tx *chaindata.Transaction) domain.TokenAmount {
	if leg, ok := firstTransfer(tx, 0); ok {
		return leg
	}
	return domain.TokenAmount{Amount: "0"}
}

// firstTransfer scans log events in original order and returns the leg
// for the first decoded Transfer whose param at paramIdx (0=from, 1=to)
// equals the transaction's router address.
func firstTransfer(tx *chaindata.Transaction, paramIdx int) (domain.TokenAmount, bool) {
	for _, log := range tx.LogEvents {
		if log.Decoded == nil || log.Decoded.Name != transferEvent {
			continue
		}
		if len(log.Decoded.Params) < 3 {
			continue
		}
		if !strings.EqualFold(log.Decoded.Params[paramIdx].Value, tx.ToAddress) {
			continue
		}

		symbol := log.SenderContractTickerSymbol
		if symbol == "" {
			symbol = "UNKNOWN"
		}
		amount := log.Decoded.Params[2].Value
		if amount == "" {
			amount = "0"
		}

		return domain.TokenAmount{
			Address: strings.ToLower(log.SenderAddress),
			Symbol:  symbol,
			Amount:  amount,
		}, true
	}
	return domain.TokenAmount{}, false
}
