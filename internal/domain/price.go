package domain

// PricePoint is one resolved daily USD spot price for a token, archived
// by the enrichment engine. Corresponds to the price_points table.
type PricePoint struct {
	TokenAddress string
	Day          string // calendar date, YYYY-MM-DD (UTC)
	PriceUSD     float64
	FetchedAt    int64 // Unix timestamp in milliseconds
}
