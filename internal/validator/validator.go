// Package validator enforces structural completeness of trade records
// before persistence.
package validator

import (
	"fmt"

	"dex-wallet-tracker/internal/domain"
)

// Result reports a validation pass. Valid is true iff at least one
// input trade passed; invalid trades are reported by tx hash in Errors
// and excluded from Trades. Callers decide whether zero valid trades
// is fatal.
type Result struct {
	Valid  bool
	Trades []*domain.Trade
	Errors []string
}

// Validate filters trades to the structurally complete ones.
func Validate(trades []*domain.Trade) Result {
	result := Result{}

	for _, t := range trades {
		switch {
		case t == nil:
			result.Errors = append(result.Errors, "invalid trade: <nil>")
		case isValid(t):
			result.Trades = append(result.Trades, t)
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("invalid trade: %s", t.TxHash))
		}
	}

	result.Valid = len(result.Trades) > 0
	return result
}

// isValid checks every required scalar and token-leg field.
func isValid(t *domain.Trade) bool {
	return t != nil &&
		t.BlockHeight != 0 &&
		t.Timestamp != 0 &&
		t.TxHash != "" &&
		t.WalletAddress != "" &&
		t.Dex != "" &&
		legValid(t.TokenIn) &&
		legValid(t.TokenOut)
}

func legValid(leg domain.TokenAmount) bool {
	return leg.Address != "" && leg.Symbol != "" && leg.Amount != "" && leg.Amount != "0"
}
