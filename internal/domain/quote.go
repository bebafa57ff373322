package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// VenueVersion tags the protocol family a hop routes through.
type VenueVersion uint8

const (
	VenueV2 VenueVersion = iota // constant-product
	VenueV3                     // concentrated-liquidity
)

func (v VenueVersion) String() string {
	switch v {
	case VenueV2:
		return "v2"
	case VenueV3:
		return "v3"
	default:
		return "UNKNOWN"
	}
}

// VersionSet is the allowed venue-version filter for a discovery request.
type VersionSet uint8

const (
	AllowV2 VersionSet = 1 << iota
	AllowV3

	AllowAll = AllowV2 | AllowV3
)

func (s VersionSet) Has(v VenueVersion) bool {
	switch v {
	case VenueV2:
		return s&AllowV2 != 0
	case VenueV3:
		return s&AllowV3 != 0
	default:
		return false
	}
}

// PriceSource is one venue's contribution to a quote, one entry per hop.
// Approximate is set when the output was estimated from the pool mid-price
// instead of an exact simulation.
type PriceSource struct {
	Venue       string         `json:"venue"`
	Pool        common.Address `json:"pool"`
	FeeTier     uint32         `json:"feeTier,omitempty"`
	AmountIn    *big.Int       `json:"amountIn"`
	AmountOut   *big.Int       `json:"amountOut"`
	Approximate bool           `json:"approximate,omitempty"`
}

// PriceQuote is one priced candidate route.
//
// Invariant: len(Path) == len(Sources)+1 == len(HopVersions)+1, and for
// every hop i > 0, Sources[i].AmountIn equals Sources[i-1].AmountOut
// before any plan-time scaling.
type PriceQuote struct {
	AmountIn       *big.Int `json:"amountIn"`
	AmountOut      *big.Int `json:"amountOut"`
	MidPriceQ18    *big.Int `json:"midPrice"`
	ExecPriceQ18   *big.Int `json:"execPrice"`
	PriceImpactBps uint32   `json:"priceImpactBps"`

	Path        []common.Address `json:"path"`
	Pools       []common.Address `json:"pools"`
	Sources     []PriceSource    `json:"sources"`
	HopVersions []VenueVersion   `json:"hopVersions"`

	// LiquidityScore is a conservative reserve/liquidity proxy used only
	// for ranking, never for amount math.
	LiquidityScore *big.Int `json:"liquidityScore,omitempty"`

	GasEstimate uint64   `json:"gasEstimate,omitempty"`
	GasPriceWei *big.Int `json:"gasPriceWei,omitempty"`

	// Offers holds the ranked alternatives that lost to this quote.
	Offers []*PriceQuote `json:"offers,omitempty"`
}

// Hops returns the number of swap hops in the route.
func (q *PriceQuote) Hops() int {
	return len(q.Sources)
}

// Validate checks the structural invariant between path, pools, sources
// and hop versions. Amount chaining is the discovery layer's job and is
// checked by the builder before scaling.
func (q *PriceQuote) Validate() bool {
	if len(q.Path) < 2 {
		return false
	}
	if len(q.Path) != len(q.Sources)+1 {
		return false
	}
	if len(q.Path) != len(q.HopVersions)+1 {
		return false
	}
	return len(q.Pools) == len(q.Sources)
}
