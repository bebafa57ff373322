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

const v2FactoryABI = `[
 {"inputs":[
    {"internalType":"address","name":"tokenA","type":"address"},
    {"internalType":"address","name":"tokenB","type":"address"}],
  "name":"getPair","outputs":[{"internalType":"address","name":"pair","type":"address"}],
  "stateMutability":"view","type":"function"}
]`

const v2PairABI = `[
 {"inputs":[],"name":"getReserves","outputs":[
    {"internalType":"uint112","name":"reserve0","type":"uint112"},
    {"internalType":"uint112","name":"reserve1","type":"uint112"},
    {"internalType":"uint32","name":"blockTimestampLast","type":"uint32"}],
  "stateMutability":"view","type":"function"},
 {"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

type v2Scanner struct {
	reader     chain.Reader
	factoryABI abi.ABI
	pairABI    abi.ABI
}

func newV2Scanner(reader chain.Reader) (*v2Scanner, error) {
	fABI, err := abi.JSON(strings.NewReader(v2FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("bad v2 factory abi: %w", err)
	}
	pABI, err := abi.JSON(strings.NewReader(v2PairABI))
	if err != nil {
		return nil, fmt.Errorf("bad v2 pair abi: %w", err)
	}
	return &v2Scanner{reader: reader, factoryABI: fABI, pairABI: pABI}, nil
}

func (s *v2Scanner) pairAddress(ctx context.Context, venue *config.VenueConfig, tokenA, tokenB common.Address) (common.Address, error) {
	input, err := s.factoryABI.Pack("getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, fmt.Errorf("pack getPair: %w", err)
	}
	factory := venue.FactoryAddress()
	raw, err := s.reader.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: input})
	if err != nil {
		return common.Address{}, fmt.Errorf("call getPair: %w", err)
	}
	outs, err := s.factoryABI.Methods["getPair"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return common.Address{}, fmt.Errorf("decode getPair: %w", err)
	}
	pair := outs[0].(common.Address)
	if pair == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no %s pair for %s/%s", venue.Name, tokenA.Hex(), tokenB.Hex())
	}
	return pair, nil
}

// quoteLeg prices a single hop through one v2 venue. Reserves and token0
// are fetched in one multicall batch; pools below the configured reserve
// threshold are rejected.
func (s *v2Scanner) quoteLeg(ctx context.Context, venue *config.VenueConfig, pair, tokenIn common.Address, amountIn, minReserve *big.Int) (*leg, error) {
	reservesData, _ := s.pairABI.Pack("getReserves")
	token0Data, _ := s.pairABI.Pack("token0")

	results, err := s.reader.Aggregate(ctx, []chain.Call{
		{Target: pair, CallData: reservesData},
		{Target: pair, CallData: token0Data},
	})
	if err != nil {
		return nil, fmt.Errorf("read pair %s: %w", pair.Hex(), err)
	}
	if len(results) != 2 || !results[0].Success || !results[1].Success {
		return nil, fmt.Errorf("pair %s read failed", pair.Hex())
	}

	resOuts, err := s.pairABI.Methods["getReserves"].Outputs.Unpack(results[0].Data)
	if err != nil || len(resOuts) < 2 {
		return nil, fmt.Errorf("decode getReserves: %w", err)
	}
	tokOuts, err := s.pairABI.Methods["token0"].Outputs.Unpack(results[1].Data)
	if err != nil || len(tokOuts) == 0 {
		return nil, fmt.Errorf("decode token0: %w", err)
	}

	reserve0 := resOuts[0].(*big.Int)
	reserve1 := resOuts[1].(*big.Int)
	token0 := tokOuts[0].(common.Address)

	reserveIn, reserveOut := reserve0, reserve1
	if token0 != tokenIn {
		reserveIn, reserveOut = reserve1, reserve0
	}
	if reserveIn.Cmp(minReserve) < 0 || reserveOut.Cmp(minReserve) < 0 {
		return nil, fmt.Errorf("pair %s below reserve threshold", pair.Hex())
	}

	amountOut := quote.ConstantProductOut(amountIn, reserveIn, reserveOut, venue.FeeBps)
	if amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("pair %s yields zero output", pair.Hex())
	}

	// Conservative liquidity proxy: the smaller reserve side.
	liquidity := reserveIn
	if reserveOut.Cmp(reserveIn) < 0 {
		liquidity = reserveOut
	}

	return &leg{
		venue:       venue.Name,
		version:     domain.VenueV2,
		pool:        pair,
		amountIn:    new(big.Int).Set(amountIn),
		amountOut:   amountOut,
		midPriceQ18: quote.MidPriceFromReserves(reserveIn, reserveOut),
		liquidity:   new(big.Int).Set(liquidity),
	}, nil
}
