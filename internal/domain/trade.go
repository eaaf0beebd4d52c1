package domain

// DEX venue tags. A trade's Dex field is one of these.
const (
	DexUniswapV3 = "uniswap_v3"
	DexAerodrome = "aerodrome"
	DexBaseSwap  = "baseswap"
	DexUnknown   = "unknown"
)

// NativeAssetAddress is the pseudo-address used for native-ETH legs.
const NativeAssetAddress = "0x0000000000000000000000000000000000000000"

// TokenAmount is one leg of a swap: the token sent by the trader (in)
// or received (out). Amount is an integer string in the token's smallest
// unit. PriceUSD/ValueUSD are nil until enrichment resolves them.
type TokenAmount struct {
	Address  string
	Symbol   string
	Amount   string
	PriceUSD *float64
	ValueUSD *float64
}

// Trade represents one recognized DEX swap, keyed by TxHash.
// Corresponds to the dex_trades table.
type Trade struct {
	TxHash        string
	BlockHeight   int64
	Timestamp     int64 // Unix timestamp in milliseconds
	WalletAddress string
	Dex           string
	TokenIn       TokenAmount
	TokenOut      TokenAmount
	IsEnriched    bool
	CreatedAt     int64 // record creation timestamp (ms)
	ExpiresAt     int64 // retention expiry timestamp (ms)
}
