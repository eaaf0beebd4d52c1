// Package dex classifies transactions against known DEX routers and
// extracts the token legs of a swap.
package dex

import (
	"strings"

	"dex-wallet-tracker/internal/domain"
)

// Known Base-chain router addresses.
const (
	// UniswapV3SwapRouter02 is the Uniswap V3 SwapRouter02 on Base.
	UniswapV3SwapRouter02 = "0x2626664c2603336e57b271c5c0b26f421741e481"
	// UniswapUniversalRouter is the Uniswap Universal Router on Base.
	UniswapUniversalRouter = "0x3fc91a3afd70395cd496c647d5a6cc9d4b2b7fad"
	// AerodromeRouter is the Aerodrome router on Base.
	AerodromeRouter = "0xcf77a3ba9a5ca399b7c97c74d54e5b1beb874e43"
	// BaseSwapRouter is the BaseSwap router on Base.
	BaseSwapRouter = "0x802b65b5d9016621e66003aed0b16615093f328b"
)

// Registry maps router addresses to venue tags. The allow-list is data,
// not logic: new venues are added with Register, without code change.
type Registry struct {
	routers map[string]string // lower-case router address -> venue tag
}

// NewRegistry creates a registry with the default Base-chain routers.
func NewRegistry() *Registry {
	r := &Registry{routers: make(map[string]string)}

	r.Register(UniswapV3SwapRouter02, domain.DexUniswapV3)
	r.Register(UniswapUniversalRouter, domain.DexUniswapV3)
	r.Register(AerodromeRouter, domain.DexAerodrome)
	r.Register(BaseSwapRouter, domain.DexBaseSwap)

	return r
}

// Register adds a router address for a venue. Addresses are matched
// case-insensitively.
func (r *Registry) Register(router, venue string) {
	r.routers[strings.ToLower(router)] = venue
}

// Venue returns the venue tag for a router address. A matched router
// with no venue mapping resolves to DexUnknown.
func (r *Registry) Venue(router string) (string, bool) {
	venue, ok := r.routers[strings.ToLower(router)]
	if !ok {
		return domain.DexUnknown, false
	}
	if venue == "" {
		return domain.DexUnknown, true
	}
	return venue, true
}
