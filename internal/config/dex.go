package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	gopkg "github.com/andrew-solarstorm/go-packages/common"
	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"

	"github.com/hxuan190/swap-engine/internal/domain"
)

// VenueConfig describes one liquidity protocol deployment on the chain.
type VenueConfig struct {
	Name    string `json:"name"`
	Family  string `json:"family"` // "v2" or "v3"
	Factory string `json:"factory"`
	Router  string `json:"router"`
	// Quoter is the v3 price-simulation entry point (QuoterV2); empty for v2.
	Quoter string `json:"quoter,omitempty"`
	// FeeBps is the v2 venue fee in basis points.
	FeeBps uint32 `json:"feeBps,omitempty"`
	// FeeTiers are the v3 pool fee tiers in hundredths of a bip.
	FeeTiers []uint32 `json:"feeTiers,omitempty"`
	// RouterEmbedsDeadline distinguishes the two exactInputSingle call
	// shapes: the original SwapRouter embeds a deadline field in its params
	// struct, SwapRouter02 does not. The injection offset depends on it.
	RouterEmbedsDeadline bool `json:"routerEmbedsDeadline,omitempty"`
}

func (v *VenueConfig) Version() domain.VenueVersion {
	if v.Family == "v3" {
		return domain.VenueV3
	}
	return domain.VenueV2
}

func (v *VenueConfig) FactoryAddress() common.Address { return common.HexToAddress(v.Factory) }
func (v *VenueConfig) RouterAddress() common.Address  { return common.HexToAddress(v.Router) }
func (v *VenueConfig) QuoterAddress() common.Address  { return common.HexToAddress(v.Quoter) }

// DEXConfig is the per-chain static configuration consumed by discovery
// and the plan builder.
type DEXConfig struct {
	ChainID       uint64
	Multicall     common.Address
	WrappedNative common.Address
	Executor      common.Address

	// Intermediaries are the tokens 2-hop routes may pass through.
	Intermediaries []common.Address

	Venues []VenueConfig

	// MinReserve rejects v2 pools whose output-side reserve is below it.
	MinReserve *big.Int
	// MinLiquidity rejects v3 pools at or below this in-range liquidity.
	MinLiquidity *big.Int

	// InterHopBufferBps is subtracted from every hop amount after the
	// first to absorb rounding and venue drift.
	InterHopBufferBps uint32

	// PairCacheTTLSeconds bounds staleness of the pair/pool address cache.
	PairCacheTTLSeconds int

	// DeadlineSeconds is encoded into every swap call payload.
	DeadlineSeconds int

	// PlanValidForSeconds is the validity window the transport attaches to
	// a returned plan.
	PlanValidForSeconds int
}

func (c *DEXConfig) Key() string {
	return DEX_CONFIG_KEY
}

// defaultVenues is the Ethereum mainnet venue set, overridable with the
// DEX_VENUES env var (JSON array of VenueConfig).
var defaultVenues = []VenueConfig{
	{
		Name:    "uniswap-v2",
		Family:  "v2",
		Factory: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
		Router:  "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
		FeeBps:  30,
	},
	{
		Name:    "sushiswap",
		Family:  "v2",
		Factory: "0xC0AEe478e3658e2610c5F7A4A2E1777cE9e4f2Ac",
		Router:  "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F",
		FeeBps:  30,
	},
	{
		Name:                 "uniswap-v3",
		Family:               "v3",
		Factory:              "0x1F98431c8aD98523631AE4a59f267346ea31F984",
		Router:               "0xE592427A0AEce92De3Edee1F18E0157C05861564",
		Quoter:               "0x61fFE014bA17989E743c5F6cB21bF9697530B21e",
		FeeTiers:             []uint32{500, 3000, 10000},
		RouterEmbedsDeadline: true,
	},
}

const (
	defaultWrappedNative = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2" // WETH
	defaultMulticall     = "0xcA11bde05977b3631167028862bE2a173976CA11" // Multicall3
	// USDC, USDT, DAI
	defaultIntermediaries = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48,0xdAC17F958D2ee523a2206206994597C13D831ec7,0x6B175474E89094C44Da98b954EedeAC495271d0F"
)

func (c *DEXConfig) Load() error {
	c.ChainID = uint64(gopkg.GetEnvOrDefaultInt("CHAIN_ID", 1))
	c.Multicall = common.HexToAddress(gopkg.GetEnvOrDefault("MULTICALL_ADDRESS", defaultMulticall))
	c.WrappedNative = common.HexToAddress(gopkg.GetEnvOrDefault("WRAPPED_NATIVE_ADDRESS", defaultWrappedNative))
	c.Executor = common.HexToAddress(os.Getenv("EXECUTOR_ADDRESS"))

	c.Intermediaries = c.Intermediaries[:0]
	for _, raw := range strings.Split(gopkg.GetEnvOrDefault("INTERMEDIARY_TOKENS", defaultIntermediaries), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !common.IsHexAddress(raw) {
			return fmt.Errorf("invalid intermediary token address %q", raw)
		}
		c.Intermediaries = append(c.Intermediaries, common.HexToAddress(raw))
	}

	if venuesJSON := os.Getenv("DEX_VENUES"); venuesJSON != "" {
		if err := sonic.UnmarshalString(venuesJSON, &c.Venues); err != nil {
			return fmt.Errorf("parse DEX_VENUES: %w", err)
		}
	} else {
		c.Venues = defaultVenues
	}

	c.MinReserve = big.NewInt(int64(gopkg.GetEnvOrDefaultInt("MIN_RESERVE", 1_000_000)))
	c.MinLiquidity = big.NewInt(int64(gopkg.GetEnvOrDefaultInt("MIN_LIQUIDITY", 1_000_000)))
	c.InterHopBufferBps = uint32(gopkg.GetEnvOrDefaultInt("INTER_HOP_BUFFER_BPS", 5))
	c.PairCacheTTLSeconds = gopkg.GetEnvOrDefaultInt("PAIR_CACHE_TTL_SECONDS", 300)
	c.DeadlineSeconds = gopkg.GetEnvOrDefaultInt("SWAP_DEADLINE_SECONDS", 300)
	c.PlanValidForSeconds = gopkg.GetEnvOrDefaultInt("PLAN_VALID_FOR_SECONDS", 30)

	return c.Validate()
}

func (c *DEXConfig) Validate() error {
	if c.Executor == (common.Address{}) {
		return errors.New("EXECUTOR_ADDRESS is required")
	}
	if len(c.Venues) == 0 {
		return errors.New("at least one venue is required")
	}
	for i := range c.Venues {
		v := &c.Venues[i]
		if v.Name == "" {
			return fmt.Errorf("venue %d: missing name", i)
		}
		if v.Family != "v2" && v.Family != "v3" {
			return fmt.Errorf("venue %s: unknown family %q", v.Name, v.Family)
		}
		if !common.IsHexAddress(v.Factory) || !common.IsHexAddress(v.Router) {
			return fmt.Errorf("venue %s: invalid factory/router address", v.Name)
		}
		if v.Family == "v3" && len(v.FeeTiers) == 0 {
			return fmt.Errorf("venue %s: v3 venue needs fee tiers", v.Name)
		}
		if v.Family == "v2" && v.FeeBps == 0 {
			return fmt.Errorf("venue %s: v2 venue needs a fee", v.Name)
		}
	}
	if c.InterHopBufferBps >= 10_000 {
		return errors.New("inter-hop buffer must be below 10000 bps")
	}
	return nil
}

// VenueByName returns the venue config for a quoted source, or nil.
func (c *DEXConfig) VenueByName(name string) *VenueConfig {
	for i := range c.Venues {
		if c.Venues[i].Name == name {
			return &c.Venues[i]
		}
	}
	return nil
}
