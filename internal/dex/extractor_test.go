package dex

import (
	"testing"

	"dex-wallet-tracker/internal/chaindata"
	"dex-wallet-tracker/internal/domain"
)

const (
	testWallet = "0xAbCd000000000000000000000000000000000001"
	tokenA     = "0xaaaa000000000000000000000000000000000001"
	tokenB     = "0xbbbb000000000000000000000000000000000002"
)

func transferLog(token, symbol, from, to, amount string) chaindata.LogEvent {
	return chaindata.LogEvent{
		SenderAddress:              token,
		SenderContractTickerSymbol: symbol,
		Decoded: &chaindata.DecodedEvent{
			Name: "Transfer",
			Params: []chaindata.DecodedParam{
				{Name: "from", Value: from},
				{Name: "to", Value: to},
				{Name: "value", Value: amount},
			},
		},
	}
}

func swapTx(router string, logs ...chaindata.LogEvent) *chaindata.Transaction {
	return &chaindata.Transaction{
		BlockSignedAt: "2024-03-01T12:00:00Z",
		BlockHeight:   1000,
		TxHash:        "0xhash1",
		FromAddress:   testWallet,
		ToAddress:     router,
		Value:         "0",
		LogEvents:     logs,
	}
}

func TestExtract_UniswapSwap(t *testing.T) {
	e := NewExtractor(NewRegistry())

	tx := swapTx(UniswapV3SwapRouter02,
		transferLog(tokenA, "AAA", testWallet, UniswapV3SwapRouter02, "1000000000000000000"),
		transferLog(tokenB, "BBB", UniswapV3SwapRouter02, testWallet, "1500000000"),
	)

	trade, ok := e.Extract(tx)
	if !ok {
		t.Fatal("expected trade, got none")
	}

	if trade.Dex != domain.DexUniswapV3 {
		t.Errorf("Dex = %q, want %q", trade.Dex, domain.DexUniswapV3)
	}
	if trade.TokenIn.Address != tokenA || trade.TokenIn.Amount != "1000000000000000000" {
		t.Errorf("TokenIn = %+v, want %s amount 1000000000000000000", trade.TokenIn, tokenA)
	}
	if trade.TokenOut.Address != tokenB || trade.TokenOut.Amount != "1500000000" {
		t.Errorf("TokenOut = %+v, want %s amount 1500000000", trade.TokenOut, tokenB)
	}
	if trade.WalletAddress != "0xabcd000000000000000000000000000000000001" {
		t.Errorf("WalletAddress not lower-cased: %q", trade.WalletAddress)
	}
	if trade.Timestamp != 1709294400000 {
		t.Errorf("Timestamp = %d, want 1709294400000", trade.Timestamp)
	}
}

func TestExtract_UnknownRouterExcluded(t *testing.T) {
	e := NewExtractor(NewRegistry())

	tx := swapTx("0xdead000000000000000000000000000000000000",
		transferLog(tokenA, "AAA", testWallet, "0xdead000000000000000000000000000000000000", "1"),
		transferLog(tokenB, "BBB", "0xdead000000000000000000000000000000000000", testWallet, "2"),
	)

	if _, ok := e.Extract(tx); ok {
		t.Error("transaction to unrecognized address must be excluded")
	}
}

func TestExtract_RouterMatchCaseInsensitive(t *testing.T) {
	e := NewExtractor(NewRegistry())

	tx := swapTx("0x2626664C2603336E57B271C5C0B26F421741E481",
		transferLog(tokenA, "AAA", testWallet, UniswapV3SwapRouter02, "1"),
		transferLog(tokenB, "BBB", UniswapV3SwapRouter02, testWallet, "2"),
	)
	// Transfer params reference the router in canonical case, tx.to in upper.
	tx.LogEvents[0].Decoded.Params[1].Value = tx.ToAddress
	tx.LogEvents[1].Decoded.Params[0].Value = tx.ToAddress

	if _, ok := e.Extract(tx); !ok {
		t.Error("router matching must be case-insensitive")
	}
}

func TestExtract_NativeValueFallbackForTokenIn(t *testing.T) {
	e := NewExtractor(NewRegistry())

	tx := swapTx(AerodromeRouter,
		transferLog(tokenB, "BBB", AerodromeRouter, testWallet, "500"),
	)
	tx.Value = "2000000000000000000"

	trade, ok := e.Extract(tx)
	if !ok {
		t.Fatal("expected trade with native token-in leg")
	}
	if trade.TokenIn.Address != domain.NativeAssetAddress {
		t.Errorf("TokenIn.Address = %q, want native asset address", trade.TokenIn.Address)
	}
	if trade.TokenIn.Symbol != "ETH" || trade.TokenIn.Amount != "2000000000000000000" {
		t.Errorf("native leg = %+v", trade.TokenIn)
	}
	if trade.Dex != domain.DexAerodrome {
		t.Errorf("Dex = %q, want %q", trade.Dex, domain.DexAerodrome)
	}
}

func TestExtract_NoNativeFallbackForTokenOut(t *testing.T) {
	e := NewExtractor(NewRegistry())

	// Token in resolves, but no Transfer leaves the router: dropped.
	tx := swapTx(BaseSwapRouter,
		transferLog(tokenA, "AAA", testWallet, BaseSwapRouter, "100"),
	)

	if _, ok := e.Extract(tx); ok {
		t.Error("transaction without resolvable token-out leg must be dropped")
	}
}

func TestExtract_UnresolvedTokenInDropped(t *testing.T) {
	e := NewExtractor(NewRegistry())

	// No inbound transfer and zero native value.
	tx := swapTx(BaseSwapRouter,
		transferLog(tokenB, "BBB", BaseSwapRouter, testWallet, "100"),
	)

	if _, ok := e.Extract(tx); ok {
		t.Error("transaction without resolvable token-in leg must be dropped")
	}
}

func TestExtract_FirstMatchWins(t *testing.T) {
	e := NewExtractor(NewRegistry())

	tx := swapTx(UniswapV3SwapRouter02,
		transferLog(tokenA, "AAA", testWallet, UniswapV3SwapRouter02, "111"),
		transferLog(tokenB, "BBB", testWallet, UniswapV3SwapRouter02, "222"),
		transferLog(tokenB, "BBB", UniswapV3SwapRouter02, testWallet, "333"),
		transferLog(tokenA, "AAA", UniswapV3SwapRouter02, testWallet, "444"),
	)

	trade, ok := e.Extract(tx)
	if !ok {
		t.Fatal("expected trade")
	}
	if trade.TokenIn.Address != tokenA || trade.TokenIn.Amount != "111" {
		t.Errorf("first inbound transfer must win, got %+v", trade.TokenIn)
	}
	if trade.TokenOut.Address != tokenB || trade.TokenOut.Amount != "333" {
		t.Errorf("first outbound transfer must win, got %+v", trade.TokenOut)
	}
}

func TestExtract_MissingSymbolDefaultsToUnknown(t *testing.T) {
	e := NewExtractor(NewRegistry())

	tx := swapTx(UniswapV3SwapRouter02,
		transferLog(tokenA, "", testWallet, UniswapV3SwapRouter02, "1"),
		transferLog(tokenB, "BBB", UniswapV3SwapRouter02, testWallet, "2"),
	)

	trade, ok := e.Extract(tx)
	if !ok {
		t.Fatal("expected trade")
	}
	if trade.TokenIn.Symbol != "UNKNOWN" {
		t.Errorf("TokenIn.Symbol = %q, want UNKNOWN", trade.TokenIn.Symbol)
	}
}

func TestRegistry_RegisterNewVenue(t *testing.T) {
	r := NewRegistry()
	r.Register("0xFEED000000000000000000000000000000000042", "sushiswap")

	venue, ok := r.Venue("0xfeed000000000000000000000000000000000042")
	if !ok || venue != "sushiswap" {
		t.Errorf("Venue = %q/%v, want sushiswap/true", venue, ok)
	}
}
