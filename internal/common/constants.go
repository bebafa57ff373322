// Package common contains shared constants and utilities used across services
package common

import "math/big"

var (
	// MaxUint256 is the largest representable ERC-20 amount, used for the
	// open approval grants on injected hops.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// Q18 is the fixed-point scale for price math (18 fractional digits).
	Q18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	BpsDenom = big.NewInt(10_000)
)

const (
	// MaxPriceImpactBps caps reported impact so degenerate pools cannot
	// overflow downstream fields.
	MaxPriceImpactBps uint32 = 10_000_000

	// WordSize is the width of the payload slot overwritten by dynamic
	// injection.
	WordSize = 32
)
