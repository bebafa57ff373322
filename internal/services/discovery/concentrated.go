package discovery

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/hxuan190/swap-engine/internal/adapters/chain"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/services/quote"
)

const v3FactoryABI = `[
 {"inputs":[
    {"internalType":"address","name":"tokenA","type":"address"},
    {"internalType":"address","name":"tokenB","type":"address"},
    {"internalType":"uint24","name":"fee","type":"uint24"}],
  "name":"getPool","outputs":[{"internalType":"address","name":"pool","type":"address"}],
  "stateMutability":"view","type":"function"}
]`

const v3PoolABI = `[
 {"inputs":[],"name":"slot0","outputs":[
    {"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
    {"internalType":"int24","name":"tick","type":"int24"},
    {"internalType":"uint16","name":"observationIndex","type":"uint16"},
    {"internalType":"uint16","name":"observationCardinality","type":"uint16"},
    {"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
    {"internalType":"uint8","name":"feeProtocol","type":"uint8"},
    {"internalType":"bool","name":"unlocked","type":"bool"}],
  "stateMutability":"view","type":"function"},
 {"inputs":[],"name":"liquidity","outputs":[{"internalType":"uint128","name":"","type":"uint128"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

// QuoterV2 quoteExactInputSingle. The call reverts when the swap would
// cross uninitialized tick regions; discovery treats that as a signal to
// fall back to the mid-price approximation.
const v3QuoterABI = `[
 {"inputs":[{"components":[
    {"internalType":"address","name":"tokenIn","type":"address"},
    {"internalType":"address","name":"tokenOut","type":"address"},
    {"internalType":"uint256","name":"amountIn","type":"uint256"},
    {"internalType":"uint24","name":"fee","type":"uint24"},
    {"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
   "internalType":"struct IQuoterV2.QuoteExactInputSingleParams","name":"params","type":"tuple"}],
  "name":"quoteExactInputSingle",
  "outputs":[
    {"internalType":"uint256","name":"amountOut","type":"uint256"},
    {"internalType":"uint160","name":"sqrtPriceX96After","type":"uint160"},
    {"internalType":"uint32","name":"initializedTicksCrossed","type":"uint32"},
    {"internalType":"uint256","name":"gasEstimate","type":"uint256"}],
  "stateMutability":"nonpayable","type":"function"}
]`

type v3Scanner struct {
	reader     chain.Reader
	factoryABI abi.ABI
	poolABI    abi.ABI
	quoterABI  abi.ABI
}

func newV3Scanner(reader chain.Reader) (*v3Scanner, error) {
	fABI, err := abi.JSON(strings.NewReader(v3FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("bad v3 factory abi: %w", err)
	}
	pABI, err := abi.JSON(strings.NewReader(v3PoolABI))
	if err != nil {
		return nil, fmt.Errorf("bad v3 pool abi: %w", err)
	}
	qABI, err := abi.JSON(strings.NewReader(v3QuoterABI))
	if err != nil {
		return nil, fmt.Errorf("bad v3 quoter abi: %w", err)
	}
	return &v3Scanner{reader: reader, factoryABI: fABI, poolABI: pABI, quoterABI: qABI}, nil
}

func (s *v3Scanner) poolAddress(ctx context.Context, venue *config.VenueConfig, tokenA, tokenB common.Address, feeTier uint32) (common.Address, error) {
	input, err := s.factoryABI.Pack("getPool", tokenA, tokenB, big.NewInt(int64(feeTier)))
	if err != nil {
		return common.Address{}, fmt.Errorf("pack getPool: %w", err)
	}
	factory := venue.FactoryAddress()
	raw, err := s.reader.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: input})
	if err != nil {
		return common.Address{}, fmt.Errorf("call getPool: %w", err)
	}
	outs, err := s.factoryABI.Methods["getPool"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return common.Address{}, fmt.Errorf("decode getPool: %w", err)
	}
	pool := outs[0].(common.Address)
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no %s pool for fee %d", venue.Name, feeTier)
	}
	return pool, nil
}

// quoteLeg prices a single hop through one v3 pool at one fee tier. State
// reads are batched; output comes from the quoter simulation when it
// succeeds, otherwise from the mid-price approximation with the source
// marked approximate.
func (s *v3Scanner) quoteLeg(ctx context.Context, venue *config.VenueConfig, pool, tokenIn, tokenOut common.Address, feeTier uint32, amountIn, minLiquidity *big.Int) (*leg, error) {
	slot0Data, _ := s.poolABI.Pack("slot0")
	liqData, _ := s.poolABI.Pack("liquidity")
	token0Data, _ := s.poolABI.Pack("token0")

	results, err := s.reader.Aggregate(ctx, []chain.Call{
		{Target: pool, CallData: slot0Data},
		{Target: pool, CallData: liqData},
		{Target: pool, CallData: token0Data},
	})
	if err != nil {
		return nil, fmt.Errorf("read pool %s: %w", pool.Hex(), err)
	}
	if len(results) != 3 || !results[0].Success || !results[1].Success || !results[2].Success {
		return nil, fmt.Errorf("pool %s read failed", pool.Hex())
	}

	slotOuts, err := s.poolABI.Methods["slot0"].Outputs.Unpack(results[0].Data)
	if err != nil || len(slotOuts) == 0 {
		return nil, fmt.Errorf("decode slot0: %w", err)
	}
	liqOuts, err := s.poolABI.Methods["liquidity"].Outputs.Unpack(results[1].Data)
	if err != nil || len(liqOuts) == 0 {
		return nil, fmt.Errorf("decode liquidity: %w", err)
	}
	tokOuts, err := s.poolABI.Methods["token0"].Outputs.Unpack(results[2].Data)
	if err != nil || len(tokOuts) == 0 {
		return nil, fmt.Errorf("decode token0: %w", err)
	}

	sqrtPriceX96 := slotOuts[0].(*big.Int)
	liquidity := liqOuts[0].(*big.Int)
	token0 := tokOuts[0].(common.Address)

	if liquidity.Cmp(minLiquidity) <= 0 {
		return nil, fmt.Errorf("pool %s at or below liquidity threshold", pool.Hex())
	}

	zeroForOne := token0 == tokenIn
	midPriceQ18 := quote.MidPriceFromSqrtPriceX96(sqrtPriceX96, zeroForOne)

	amountOut, approximate := s.simulateOut(ctx, venue, tokenIn, tokenOut, feeTier, amountIn)
	if amountOut == nil {
		amountOut = quote.ApproxOutFromMidPrice(amountIn, midPriceQ18, feeTier)
		approximate = true
	}
	if amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("pool %s yields zero output", pool.Hex())
	}

	return &leg{
		venue:       venue.Name,
		version:     domain.VenueV3,
		pool:        pool,
		feeTier:     feeTier,
		amountIn:    new(big.Int).Set(amountIn),
		amountOut:   amountOut,
		midPriceQ18: midPriceQ18,
		liquidity:   new(big.Int).Set(liquidity),
		approximate: approximate,
	}, nil
}

// simulateOut runs the quoter's exact simulation. A nil return means the
// simulation was unavailable and the caller must approximate.
func (s *v3Scanner) simulateOut(ctx context.Context, venue *config.VenueConfig, tokenIn, tokenOut common.Address, feeTier uint32, amountIn *big.Int) (*big.Int, bool) {
	if venue.Quoter == "" {
		return nil, false
	}

	params := struct {
		TokenIn           common.Address
		TokenOut          common.Address
		AmountIn          *big.Int
		Fee               *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(feeTier)),
		SqrtPriceLimitX96: big.NewInt(0),
	}

	input, err := s.quoterABI.Pack("quoteExactInputSingle", params)
	if err != nil {
		return nil, false
	}
	quoter := venue.QuoterAddress()
	raw, err := s.reader.CallContract(ctx, ethereum.CallMsg{To: &quoter, Data: input})
	if err != nil {
		// Revert here usually means an uninitialized tick region.
		return nil, false
	}
	outs, err := s.quoterABI.Methods["quoteExactInputSingle"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, false
	}
	return outs[0].(*big.Int), false
}
