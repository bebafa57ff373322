// Package tokens resolves and caches ERC-20 metadata, seeded with the
// configured intermediary tokens and warmed from disk across restarts.
package tokens

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/adapters/chain"
	"github.com/hxuan190/swap-engine/internal/adapters/persistence"
	"github.com/hxuan190/swap-engine/internal/cache"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/metrics"
)

const TOKENS_SERVICE = "tokens-service"

const erc20ABI = `[
 {"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"name","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

type Service struct {
	container.BaseDIInstance

	rpcCfg    *config.RPCConfig
	dexCfg    *config.DEXConfig
	tokensCfg *config.TokensConfig

	reader chain.Reader
	erc20  abi.ABI
	cache  *cache.TTLStore[common.Address, *domain.TokenMetadata]

	storage *persistence.Storage

	mu    sync.Mutex
	dirty map[common.Address]*domain.TokenMetadata

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func (svc *Service) ID() string {
	return TOKENS_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.rpcCfg = c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	svc.dexCfg = c.GetConfig(config.DEX_CONFIG_KEY).(*config.DEXConfig)
	svc.tokensCfg = c.GetConfig(config.TOKENS_CONFIG_KEY).(*config.TokensConfig)
	svc.reader = c.Instance(chain.CHAIN_SERVICE).(*chain.Service)

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return fmt.Errorf("bad erc20 abi: %w", err)
	}
	svc.erc20 = parsed

	svc.cache = cache.NewTTLStore[common.Address, *domain.TokenMetadata](time.Duration(svc.tokensCfg.MetadataTTLSeconds) * time.Second)
	svc.dirty = make(map[common.Address]*domain.TokenMetadata)
	svc.stopCh = make(chan struct{})

	if svc.tokensCfg.PersistenceEnabled {
		storage, err := persistence.NewStorage(svc.tokensCfg.DBPath)
		if err != nil {
			return err
		}
		svc.storage = storage
	}
	return nil
}

func (svc *Service) Start() error {
	if svc.storage != nil {
		tokens, err := svc.storage.LoadAllTokens()
		if err != nil {
			log.Warn().Err(err).Msg("[tokensService] warm load failed, starting cold")
		} else {
			for _, token := range tokens {
				svc.cache.Set(token.Address, token)
			}
			log.Info().Int("count", len(tokens)).Msg("[tokensService] warmed cache from disk")
		}

		svc.wg.Add(1)
		go svc.persistLoop()
	}

	svc.wg.Add(1)
	go svc.seedKnownTokens()
	return nil
}

func (svc *Service) Stop() error {
	close(svc.stopCh)
	svc.wg.Wait()
	if svc.storage != nil {
		svc.flushDirty()
		return svc.storage.Close()
	}
	return nil
}

// seedKnownTokens pre-fetches the intermediary and wrapped-native tokens
// so the first quote request never pays the metadata round trip.
func (svc *Service) seedKnownTokens() {
	defer svc.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seeds := append([]common.Address{svc.dexCfg.WrappedNative}, svc.dexCfg.Intermediaries...)
	loaded := 0
	for _, addr := range seeds {
		select {
		case <-svc.stopCh:
			return
		default:
		}
		if _, err := svc.GetToken(ctx, addr); err != nil {
			log.Warn().Err(err).Str("token", addr.Hex()).Msg("[tokensService] seed fetch failed")
			continue
		}
		loaded++
	}
	log.Info().Int("seeded", loaded).Int("requested", len(seeds)).Msg("[tokensService] seeded known tokens")
}

func (svc *Service) persistLoop() {
	defer svc.wg.Done()

	interval := time.Duration(svc.tokensCfg.PersistInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			svc.flushDirty()
			svc.cache.Purge()
		case <-svc.stopCh:
			return
		}
	}
}

func (svc *Service) flushDirty() {
	svc.mu.Lock()
	if len(svc.dirty) == 0 {
		svc.mu.Unlock()
		return
	}
	batch := make([]*domain.TokenMetadata, 0, len(svc.dirty))
	for _, token := range svc.dirty {
		batch = append(batch, token)
	}
	svc.dirty = make(map[common.Address]*domain.TokenMetadata)
	svc.mu.Unlock()

	if err := svc.storage.SaveTokenBatch(batch); err != nil {
		log.Error().Err(err).Msg("[tokensService] failed to persist token batch")
	}
}

// GetToken returns cached metadata, fetching from chain on a miss or
// after TTL expiry.
func (svc *Service) GetToken(ctx context.Context, address common.Address) (*domain.TokenMetadata, error) {
	if token, ok := svc.cache.Get(address); ok {
		return token, nil
	}

	token, err := svc.fetchToken(ctx, address)
	if err != nil {
		metrics.TokenFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.TokenFetches.WithLabelValues("success").Inc()
	svc.cache.Set(address, token)

	if svc.storage != nil {
		svc.mu.Lock()
		svc.dirty[address] = token
		svc.mu.Unlock()
	}
	return token, nil
}

// fetchToken batches the four metadata reads in one multicall. Decimals
// is mandatory; symbol, name and total supply degrade to empty values for
// non-standard tokens.
func (svc *Service) fetchToken(ctx context.Context, address common.Address) (*domain.TokenMetadata, error) {
	symbolData, _ := svc.erc20.Pack("symbol")
	nameData, _ := svc.erc20.Pack("name")
	decimalsData, _ := svc.erc20.Pack("decimals")
	supplyData, _ := svc.erc20.Pack("totalSupply")

	results, err := svc.reader.Aggregate(ctx, []chain.Call{
		{Target: address, CallData: symbolData},
		{Target: address, CallData: nameData},
		{Target: address, CallData: decimalsData},
		{Target: address, CallData: supplyData},
	})
	if err != nil {
		return nil, fmt.Errorf("read token %s: %w", address.Hex(), err)
	}
	if len(results) != 4 || !results[2].Success {
		return nil, fmt.Errorf("token %s has no decimals", address.Hex())
	}

	decOuts, err := svc.erc20.Methods["decimals"].Outputs.Unpack(results[2].Data)
	if err != nil || len(decOuts) == 0 {
		return nil, fmt.Errorf("decode decimals for %s: %w", address.Hex(), err)
	}

	token := &domain.TokenMetadata{
		ChainID:  svc.rpcCfg.ChainID,
		Address:  address,
		Decimals: decOuts[0].(uint8),
	}

	if results[0].Success {
		if outs, err := svc.erc20.Methods["symbol"].Outputs.Unpack(results[0].Data); err == nil && len(outs) > 0 {
			token.Symbol = outs[0].(string)
		}
	}
	if results[1].Success {
		if outs, err := svc.erc20.Methods["name"].Outputs.Unpack(results[1].Data); err == nil && len(outs) > 0 {
			token.Name = outs[0].(string)
		}
	}
	if results[3].Success {
		if outs, err := svc.erc20.Methods["totalSupply"].Outputs.Unpack(results[3].Data); err == nil && len(outs) > 0 {
			token.TotalSupply = outs[0].(*big.Int)
		}
	}

	return token, nil
}
