// Package router ranks candidate quotes and selects the route a plan is
// built from.
package router

import (
	"errors"
	"sort"

	"github.com/hxuan190/swap-engine/internal/domain"
)

var ErrNoRoute = errors.New("no route found")

// Compare defines the strict total order over candidate quotes: higher
// amountOut wins, ties break on higher liquidity score, then on lower
// price impact. Returns -1 when a ranks before b, +1 when after, 0 when
// every ranking field is equal.
func Compare(a, b *domain.PriceQuote) int {
	if c := a.AmountOut.Cmp(b.AmountOut); c != 0 {
		return -c
	}

	aliq, bliq := a.LiquidityScore, b.LiquidityScore
	switch {
	case aliq != nil && bliq != nil:
		if c := aliq.Cmp(bliq); c != 0 {
			return -c
		}
	case aliq != nil:
		return -1
	case bliq != nil:
		return 1
	}

	switch {
	case a.PriceImpactBps < b.PriceImpactBps:
		return -1
	case a.PriceImpactBps > b.PriceImpactBps:
		return 1
	}
	return 0
}

// Select returns the best quote with the ranked remainder attached as
// Offers. The input slice is not modified.
func Select(candidates []*domain.PriceQuote) (*domain.PriceQuote, error) {
	if len(candidates) == 0 {
		return nil, ErrNoRoute
	}

	ranked := make([]*domain.PriceQuote, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Compare(ranked[i], ranked[j]) < 0
	})

	best := ranked[0]
	if len(ranked) > 1 {
		best.Offers = ranked[1:]
	}
	return best, nil
}
