package router

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/swap-engine/internal/domain"
)

func quoteWith(amountOut, liquidity int64, impactBps uint32) *domain.PriceQuote {
	return &domain.PriceQuote{
		AmountIn:       big.NewInt(1000),
		AmountOut:      big.NewInt(amountOut),
		LiquidityScore: big.NewInt(liquidity),
		PriceImpactBps: impactBps,
	}
}

func TestCompareAmountOutWins(t *testing.T) {
	a := quoteWith(2000, 1, 500)
	b := quoteWith(1999, 1_000_000, 1)

	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, 1, Compare(b, a))
}

func TestCompareTieBreaks(t *testing.T) {
	// Same output: liquidity decides.
	a := quoteWith(2000, 500, 50)
	b := quoteWith(2000, 100, 10)
	assert.Equal(t, -1, Compare(a, b))

	// Same output and liquidity: lower impact decides.
	c := quoteWith(2000, 500, 10)
	assert.Equal(t, -1, Compare(c, a))
}

func TestCompareAntisymmetric(t *testing.T) {
	quotes := []*domain.PriceQuote{
		quoteWith(2000, 10, 5),
		quoteWith(2000, 10, 9),
		quoteWith(1500, 99, 5),
		quoteWith(2000, 11, 5),
	}
	for _, a := range quotes {
		for _, b := range quotes {
			assert.Equal(t, -Compare(b, a), Compare(a, b))
		}
	}
}

func TestCompareTransitiveOnAmountOut(t *testing.T) {
	a := quoteWith(3000, 1, 1)
	b := quoteWith(2000, 1, 1)
	c := quoteWith(1000, 1, 1)

	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, -1, Compare(b, c))
	assert.Equal(t, -1, Compare(a, c))
}

func TestCompareNilLiquidityRanksLast(t *testing.T) {
	withScore := quoteWith(2000, 5, 10)
	noScore := &domain.PriceQuote{
		AmountIn:       big.NewInt(1000),
		AmountOut:      big.NewInt(2000),
		PriceImpactBps: 1,
	}
	assert.Equal(t, -1, Compare(withScore, noScore))
	assert.Equal(t, 1, Compare(noScore, withScore))
}

func TestSelectEmpty(t *testing.T) {
	_, err := Select(nil)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestSelectAttachesRankedOffers(t *testing.T) {
	best := quoteWith(3000, 1, 1)
	mid := quoteWith(2000, 1, 1)
	worst := quoteWith(1000, 1, 1)

	got, err := Select([]*domain.PriceQuote{worst, best, mid})
	require.NoError(t, err)

	assert.Same(t, best, got)
	require.Len(t, got.Offers, 2)
	assert.Same(t, mid, got.Offers[0])
	assert.Same(t, worst, got.Offers[1])
}

func TestSelectDeterministic(t *testing.T) {
	build := func() []*domain.PriceQuote {
		return []*domain.PriceQuote{
			quoteWith(1000, 7, 3),
			quoteWith(5000, 2, 9),
			quoteWith(5000, 2, 4),
		}
	}

	first, err := Select(build())
	require.NoError(t, err)
	second, err := Select(build())
	require.NoError(t, err)

	assert.Equal(t, first.AmountOut.String(), second.AmountOut.String())
	assert.Equal(t, first.PriceImpactBps, second.PriceImpactBps)
	require.Len(t, second.Offers, 2)
	assert.Equal(t, uint32(9), second.Offers[0].PriceImpactBps)
}

func TestSeverityThresholds(t *testing.T) {
	assert.Equal(t, SeverityNone, GetPriceImpactSeverity(0))
	assert.Equal(t, SeverityLow, GetPriceImpactSeverity(150))
	assert.Equal(t, SeverityModerate, GetPriceImpactSeverity(400))
	assert.Equal(t, SeverityHigh, GetPriceImpactSeverity(700))
	assert.Equal(t, SeverityExtreme, GetPriceImpactSeverity(5000))
	assert.Empty(t, GetPriceImpactWarning(5))
	assert.NotEmpty(t, GetPriceImpactWarning(5000))
}
