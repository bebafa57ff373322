// Package aggregator orchestrates the quote pipeline: discovery across
// venues, ranking, and execution-plan construction.
package aggregator

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	swapcommon "github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/services/builder"
	"github.com/hxuan190/swap-engine/internal/services/discovery"
	"github.com/hxuan190/swap-engine/internal/services/router"
	"github.com/hxuan190/swap-engine/internal/services/tokens"
)

const AGGREGATOR_SERVICE = "aggregator-service"

const DefaultSlippageBps = 50

// Error aliases so the transport layer maps failures without importing
// every subsystem.
var (
	ErrNoRoute = router.ErrNoRoute

	ErrEmptyRoute     = builder.ErrEmptyRoute
	ErrUnknownVenue   = builder.ErrUnknownVenue
	ErrMissingFeeTier = builder.ErrMissingFeeTier
)

// SwapRequest is a validated, transport-agnostic swap order.
type SwapRequest struct {
	TokenIn     common.Address
	TokenOut    common.Address
	AmountIn    *big.Int
	Recipient   common.Address
	SlippageBps uint32
	Versions    domain.VersionSet
	NativeIn    bool
	NativeOut   bool
}

// SwapResponse pairs the winning quote with the ready-to-submit plan.
type SwapResponse struct {
	Quote              *domain.PriceQuote    `json:"quote"`
	Plan               *domain.ExecutionPlan `json:"plan"`
	MinAmountOut       *big.Int              `json:"minAmountOut"`
	Executor           common.Address        `json:"executor"`
	Calldata           string                `json:"calldata"`
	PriceImpactWarning string                `json:"priceImpactWarning,omitempty"`
	ValidUntil         int64                 `json:"validUntil"`
}

type Service struct {
	container.BaseDIInstance

	dexCfg *config.DEXConfig

	discoverySvc *discovery.Service
	builderSvc   *builder.Service
	tokensSvc    *tokens.Service
}

func (svc *Service) ID() string {
	return AGGREGATOR_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.dexCfg = c.GetConfig(config.DEX_CONFIG_KEY).(*config.DEXConfig)
	svc.discoverySvc = c.Instance(discovery.DISCOVERY_SERVICE).(*discovery.Service)
	svc.builderSvc = c.Instance(builder.BUILDER_SERVICE).(*builder.Service)
	svc.tokensSvc = c.Instance(tokens.TOKENS_SERVICE).(*tokens.Service)
	return nil
}

func (svc *Service) Start() error {
	return nil
}

func (svc *Service) Stop() error {
	return nil
}

func (svc *Service) GetToken(ctx context.Context, address common.Address) (*domain.TokenMetadata, error) {
	return svc.tokensSvc.GetToken(ctx, address)
}

// GetQuote discovers every viable candidate and returns the best one with
// the ranked remainder attached as offers.
func (svc *Service) GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, allowed domain.VersionSet) (*domain.PriceQuote, error) {
	candidates := svc.discoverySvc.FindQuotes(ctx, tokenIn, tokenOut, amountIn, allowed)
	best, err := router.Select(candidates)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("tokenIn", tokenIn.Hex()).
		Str("tokenOut", tokenOut.Hex()).
		Int("candidates", len(candidates)).
		Str("amountOut", best.AmountOut.String()).
		Uint32("impactBps", best.PriceImpactBps).
		Msg("[aggregatorService] quote selected")
	return best, nil
}

// BuildSwap quotes the pair, bounds the output by the requested slippage,
// and builds the executor plan plus its submission calldata.
func (svc *Service) BuildSwap(ctx context.Context, req *SwapRequest) (*SwapResponse, error) {
	quote, err := svc.GetQuote(ctx, req.TokenIn, req.TokenOut, req.AmountIn, req.Versions)
	if err != nil {
		return nil, err
	}

	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = DefaultSlippageBps
	}
	minOut := new(big.Int).Mul(quote.AmountOut, big.NewInt(int64(10_000-slippage)))
	minOut.Div(minOut, swapcommon.BpsDenom)

	plan, err := svc.builderSvc.BuildPlan(builder.BuildParams{
		Quote:        quote,
		Recipient:    req.Recipient,
		MinAmountOut: minOut,
		NativeIn:     req.NativeIn,
		NativeOut:    req.NativeOut,
	})
	if err != nil {
		return nil, err
	}

	calldata, err := svc.builderSvc.ExecutorCalldata(plan)
	if err != nil {
		return nil, err
	}

	return &SwapResponse{
		Quote:              quote,
		Plan:               plan,
		MinAmountOut:       minOut,
		Executor:           svc.dexCfg.Executor,
		Calldata:           hexutil.Encode(calldata),
		PriceImpactWarning: router.GetPriceImpactWarning(quote.PriceImpactBps),
		ValidUntil:         time.Now().Unix() + int64(svc.dexCfg.PlanValidForSeconds),
	}, nil
}
