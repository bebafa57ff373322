// Package chain wraps the EVM read client behind the narrow interface the
// planning services consume: single eth_call, batched multicall reads, and
// a TTL-cached gas price.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/cache"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/metrics"
)

const CHAIN_SERVICE = "chain-service"

// Reader is the read-only chain access the discovery and gas layers use.
// All planning code depends on this interface, never on ethclient.
type Reader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	Aggregate(ctx context.Context, calls []Call) ([]Result, error)
	GasPrice(ctx context.Context) (*big.Int, error)
}

type Service struct {
	container.BaseDIInstance

	ec        *ethclient.Client
	multicall *Multicall
	chainID   uint64

	gasCache *cache.TTLStore[struct{}, *big.Int]
}

func (svc *Service) ID() string {
	return CHAIN_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	rpcConfig := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	dexConfig := c.GetConfig(config.DEX_CONFIG_KEY).(*config.DEXConfig)

	ec, err := ethclient.Dial(rpcConfig.RPCUrl)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	svc.ec = ec
	svc.chainID = rpcConfig.ChainID
	svc.gasCache = cache.NewTTLStore[struct{}, *big.Int](time.Duration(rpcConfig.GasPriceTTLSeconds) * time.Second)

	mc, err := NewMulticall(ec, dexConfig.Multicall)
	if err != nil {
		return err
	}
	svc.multicall = mc
	return nil
}

func (svc *Service) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := svc.ec.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	if id.Uint64() != svc.chainID {
		return fmt.Errorf("chain id mismatch: node reports %d, config expects %d", id.Uint64(), svc.chainID)
	}
	log.Info().Uint64("chain_id", svc.chainID).Msg("[chainService] connected")
	return nil
}

func (svc *Service) Stop() error {
	svc.ec.Close()
	return nil
}

func (svc *Service) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return svc.ec.CallContract(ctx, msg, nil)
}

func (svc *Service) Aggregate(ctx context.Context, calls []Call) ([]Result, error) {
	metrics.MulticallBatches.Inc()
	results, err := svc.multicall.Aggregate(ctx, calls)
	if err != nil {
		metrics.MulticallFailures.Inc()
	}
	return results, err
}

// GasPrice returns the node's suggested gas price, cached for the
// configured TTL. Staleness is acceptable: the price only decorates
// quotes, it never gates execution.
func (svc *Service) GasPrice(ctx context.Context) (*big.Int, error) {
	if cached, ok := svc.gasCache.Get(struct{}{}); ok {
		return cached, nil
	}
	price, err := svc.ec.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	svc.gasCache.Set(struct{}{}, price)
	metrics.GasPriceGwei.Set(float64(price.Uint64()) / 1e9)
	return price, nil
}
