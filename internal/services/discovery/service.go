// Package discovery finds and prices candidate routes across the chain's
// configured liquidity venues. Per-candidate read failures are swallowed:
// discovery degrades to fewer candidates, never to a hard failure.
package discovery

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/adapters/chain"
	"github.com/hxuan190/swap-engine/internal/cache"
	swapcommon "github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/services/quote"
)

const DISCOVERY_SERVICE = "discovery-service"

// leg is one priced hop through one pool, before quote assembly.
type leg struct {
	venue       string
	version     domain.VenueVersion
	pool        common.Address
	feeTier     uint32
	amountIn    *big.Int
	amountOut   *big.Int
	midPriceQ18 *big.Int
	liquidity   *big.Int
	approximate bool
}

func (l *leg) source() domain.PriceSource {
	return domain.PriceSource{
		Venue:       l.venue,
		Pool:        l.pool,
		FeeTier:     l.feeTier,
		AmountIn:    l.amountIn,
		AmountOut:   l.amountOut,
		Approximate: l.approximate,
	}
}

type Service struct {
	container.BaseDIInstance

	dexCfg *config.DEXConfig
	reader chain.Reader
	v2     *v2Scanner
	v3     *v3Scanner

	// pairCache maps an order-insensitive venue/pair/tier key to the pool
	// address resolved from the venue factory.
	pairCache *cache.TTLStore[string, common.Address]
}

func (svc *Service) ID() string {
	return DISCOVERY_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.dexCfg = c.GetConfig(config.DEX_CONFIG_KEY).(*config.DEXConfig)
	svc.reader = c.Instance(chain.CHAIN_SERVICE).(*chain.Service)

	v2, err := newV2Scanner(svc.reader)
	if err != nil {
		return err
	}
	v3, err := newV3Scanner(svc.reader)
	if err != nil {
		return err
	}
	svc.v2 = v2
	svc.v3 = v3
	svc.pairCache = cache.NewTTLStore[string, common.Address](time.Duration(svc.dexCfg.PairCacheTTLSeconds) * time.Second)
	return nil
}

func (svc *Service) Start() error {
	log.Info().
		Int("venues", len(svc.dexCfg.Venues)).
		Int("intermediaries", len(svc.dexCfg.Intermediaries)).
		Msg("[discoveryService] started")
	return nil
}

func (svc *Service) Stop() error {
	return nil
}

// pairKey is order-insensitive over the token pair so both directions hit
// the same cache entry.
func pairKey(venue string, a, b common.Address, feeTier uint32) string {
	lo, hi := a, b
	if hi.Cmp(lo) < 0 {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("%s:%s:%s:%d", venue, lo.Hex(), hi.Hex(), feeTier)
}

// FindQuotes returns every viable candidate for the pair: direct quotes
// through each allowed venue plus 2-hop quotes through each configured
// intermediary that is neither endpoint.
func (svc *Service) FindQuotes(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, allowed domain.VersionSet) []*domain.PriceQuote {
	quotes := make([]*domain.PriceQuote, 0, 8)

	for _, l := range svc.collectLegs(ctx, tokenIn, tokenOut, amountIn, allowed) {
		quotes = append(quotes, svc.assembleQuote([]common.Address{tokenIn, tokenOut}, l))
	}

	for _, mid := range svc.dexCfg.Intermediaries {
		if mid == tokenIn || mid == tokenOut {
			continue
		}
		if q := svc.twoHopQuote(ctx, tokenIn, mid, tokenOut, amountIn, allowed); q != nil {
			quotes = append(quotes, q)
		}
	}

	svc.attachGas(ctx, quotes)
	return quotes
}

// collectLegs prices the hop through every allowed venue (and fee tier)
// concurrently. Individual failures drop the candidate.
func (svc *Service) collectLegs(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, allowed domain.VersionSet) []*leg {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		legs []*leg
	)
	add := func(l *leg, err error) {
		if err != nil {
			log.Debug().Err(err).Msg("[discoveryService] candidate dropped")
			return
		}
		mu.Lock()
		legs = append(legs, l)
		mu.Unlock()
	}

	for i := range svc.dexCfg.Venues {
		venue := &svc.dexCfg.Venues[i]
		if !allowed.Has(venue.Version()) {
			continue
		}

		switch venue.Version() {
		case domain.VenueV2:
			wg.Add(1)
			go func() {
				defer wg.Done()
				add(svc.v2Leg(ctx, venue, tokenIn, tokenOut, amountIn))
			}()
		case domain.VenueV3:
			for _, tier := range venue.FeeTiers {
				wg.Add(1)
				go func(tier uint32) {
					defer wg.Done()
					add(svc.v3Leg(ctx, venue, tokenIn, tokenOut, tier, amountIn))
				}(tier)
			}
		}
	}

	wg.Wait()
	return legs
}

func (svc *Service) v2Leg(ctx context.Context, venue *config.VenueConfig, tokenIn, tokenOut common.Address, amountIn *big.Int) (*leg, error) {
	key := pairKey(venue.Name, tokenIn, tokenOut, 0)
	pair, ok := svc.pairCache.Get(key)
	if !ok {
		var err error
		pair, err = svc.v2.pairAddress(ctx, venue, tokenIn, tokenOut)
		if err != nil {
			return nil, err
		}
		svc.pairCache.Set(key, pair)
	}
	return svc.v2.quoteLeg(ctx, venue, pair, tokenIn, amountIn, svc.dexCfg.MinReserve)
}

func (svc *Service) v3Leg(ctx context.Context, venue *config.VenueConfig, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*leg, error) {
	key := pairKey(venue.Name, tokenIn, tokenOut, feeTier)
	pool, ok := svc.pairCache.Get(key)
	if !ok {
		var err error
		pool, err = svc.v3.poolAddress(ctx, venue, tokenIn, tokenOut, feeTier)
		if err != nil {
			return nil, err
		}
		svc.pairCache.Set(key, pool)
	}
	return svc.v3.quoteLeg(ctx, venue, pool, tokenIn, tokenOut, feeTier, amountIn, svc.dexCfg.MinLiquidity)
}

// twoHopQuote chains the best first leg into the best second leg, feeding
// the first leg's realized output into the second. Either leg failing or
// yielding zero discards the candidate.
func (svc *Service) twoHopQuote(ctx context.Context, tokenIn, mid, tokenOut common.Address, amountIn *big.Int, allowed domain.VersionSet) *domain.PriceQuote {
	first := bestLeg(svc.collectLegs(ctx, tokenIn, mid, amountIn, allowed))
	if first == nil || first.amountOut.Sign() == 0 {
		return nil
	}
	second := bestLeg(svc.collectLegs(ctx, mid, tokenOut, first.amountOut, allowed))
	if second == nil || second.amountOut.Sign() == 0 {
		return nil
	}
	return svc.assembleQuote([]common.Address{tokenIn, mid, tokenOut}, first, second)
}

func bestLeg(legs []*leg) *leg {
	var best *leg
	for _, l := range legs {
		if best == nil {
			best = l
			continue
		}
		if c := l.amountOut.Cmp(best.amountOut); c > 0 || (c == 0 && l.liquidity.Cmp(best.liquidity) > 0) {
			best = l
		}
	}
	return best
}

// assembleQuote builds the PriceQuote for an ordered chain of legs. The
// route mid-price is the product of per-leg mids; the liquidity score is
// the weakest leg's, conservatively.
func (svc *Service) assembleQuote(path []common.Address, legs ...*leg) *domain.PriceQuote {
	amountIn := legs[0].amountIn
	amountOut := legs[len(legs)-1].amountOut

	mid := new(big.Int).Set(legs[0].midPriceQ18)
	liquidity := legs[0].liquidity
	sources := make([]domain.PriceSource, len(legs))
	pools := make([]common.Address, len(legs))
	versions := make([]domain.VenueVersion, len(legs))

	for i, l := range legs {
		sources[i] = l.source()
		pools[i] = l.pool
		versions[i] = l.version
		if i > 0 {
			mid.Mul(mid, l.midPriceQ18)
			mid.Div(mid, swapcommon.Q18)
			if l.liquidity.Cmp(liquidity) < 0 {
				liquidity = l.liquidity
			}
		}
	}

	return &domain.PriceQuote{
		AmountIn:       new(big.Int).Set(amountIn),
		AmountOut:      new(big.Int).Set(amountOut),
		MidPriceQ18:    mid,
		ExecPriceQ18:   quote.ExecutionPriceQ18(amountIn, amountOut),
		PriceImpactBps: quote.PriceImpactBps(mid, amountIn, amountOut),
		Path:           path,
		Pools:          pools,
		Sources:        sources,
		HopVersions:    versions,
		LiquidityScore: new(big.Int).Set(liquidity),
	}
}

// attachGas decorates quotes with the heuristic gas estimate and the
// cached gas price. Best effort: a gas-price failure leaves the fields
// empty rather than dropping candidates.
func (svc *Service) attachGas(ctx context.Context, quotes []*domain.PriceQuote) {
	if len(quotes) == 0 {
		return
	}
	gasPrice, err := svc.reader.GasPrice(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("[discoveryService] gas price unavailable")
		gasPrice = nil
	}
	for _, q := range quotes {
		q.GasEstimate = quote.EstimateGasUnits(q.HopVersions)
		if gasPrice != nil {
			q.GasPriceWei = new(big.Int).Set(gasPrice)
		}
	}
}
