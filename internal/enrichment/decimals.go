package enrichment

import "strings"

// tokenDecimals lists known non-18-decimal tokens by symbol. Everything
// else on the chain is assumed to use the standard 18.
var tokenDecimals = map[string]int{
	"USDC":  6,
	"USDT":  6,
	"USDBC": 6,
}

// decimalsFor returns the decimal places for a token symbol.
func decimalsFor(symbol string) int {
	if d, ok := tokenDecimals[strings.ToUpper(symbol)]; ok {
		return d
	}
	return 18
}
