package http

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/swap-engine/internal/aggregator"
	"github.com/hxuan190/swap-engine/internal/http/httputil"
	"github.com/hxuan190/swap-engine/internal/metrics"
)

type SwapHandler struct {
	aggregatorSvc *aggregator.Service
}

func NewSwapHandler(aggregatorSvc *aggregator.Service) *SwapHandler {
	return &SwapHandler{aggregatorSvc: aggregatorSvc}
}

func (h *SwapHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.POST("", h.buildSwap)
}

func (h *SwapHandler) Root() string {
	return "/swap"
}

// SwapHandlerRequest represents the parameters for building an execution plan
type SwapHandlerRequest struct {
	// Input token contract address (EVM hex address)
	TokenIn string `json:"tokenIn" binding:"required" example:"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"`

	// Output token contract address (EVM hex address)
	TokenOut string `json:"tokenOut" binding:"required" example:"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"`

	// Input amount in smallest token units
	AmountIn string `json:"amountIn" binding:"required" example:"1000000000000000000"`

	// Address that receives the swap output
	Recipient string `json:"recipient" binding:"required" example:"0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"`

	// Slippage tolerance in basis points (1 bps = 0.01%)
	// Default: 50 bps (0.5%)
	SlippageBps uint32 `json:"slippageBps" example:"50"`

	// Comma-separated venue versions to route through: "v2", "v3" or "v2,v3"
	// Default: all versions
	Versions string `json:"versions" example:"v2,v3"`

	// Pay with native currency; the plan wraps it before the first hop
	NativeIn bool `json:"nativeIn" example:"false"`

	// Receive native currency; the plan unwraps the output after the last hop
	NativeOut bool `json:"nativeOut" example:"false"`
}

// SwapHandlerResponse contains the executor plan and submission calldata
type SwapHandlerResponse struct {
	// Winning quote backing the plan, including per-hop detail
	Quote QuoteResponse `json:"quote"`

	// Executor contract to submit the calldata to
	Executor string `json:"executor" example:"0x6b175474e89094C44Da98b954EedeAC495271d0F"`

	// ABI-encoded executor calldata, 0x-prefixed hex
	// Submit as the data field of a transaction to the executor address
	Calldata string `json:"calldata" example:"0x8fd8d1bb..."`

	// Minimum acceptable output after slippage; the plan reverts below it
	MinAmountOut string `json:"minAmountOut" example:"1836093400"`

	// Unix timestamp after which the plan should be rebuilt
	ValidUntil int64 `json:"validUntil" example:"1717000000"`

	// User-facing price impact warning, empty when negligible
	PriceImpactWarning string `json:"priceImpactWarning,omitempty" example:"Low price impact"`
}

// @Summary Build swap execution plan
// @Description Build a ready-to-submit execution plan for the best route between two tokens.
// @Description
// @Description **Flow:**
// @Description 1. The aggregator quotes every configured venue and picks the winner
// @Description 2. The plan builder turns the route into pulls, approvals and calls
// @Description 3. The response carries ABI-encoded calldata for the executor contract
// @Description 4. The caller signs and submits a transaction to the executor address
// @Description
// @Description Plans are single-use. Rebuild after validUntil or after on-chain state moves.
// @Tags swap
// @Accept json
// @Produce json
// @Param request body SwapHandlerRequest true "Swap plan request"
// @Success 200 {object} SwapHandlerResponse "Execution plan ready to submit"
// @Failure 400 {object} httputil.Response "Invalid request parameters"
// @Failure 404 {object} httputil.Response "No route found between the token pair"
// @Failure 422 {object} httputil.Response "Route found but plan construction failed"
// @Router /api/v1/swap [post]
func (h *SwapHandler) buildSwap(c *gin.Context) {
	start := time.Now()
	defer func() {
		metrics.SwapDuration.Observe(time.Since(start).Seconds())
	}()

	var req SwapHandlerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.SwapRequests.WithLabelValues("bad_request").Inc()
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if !common.IsHexAddress(req.TokenIn) {
		metrics.SwapRequests.WithLabelValues("bad_request").Inc()
		httputil.BadRequest(c, "invalid tokenIn address")
		return
	}
	if !common.IsHexAddress(req.TokenOut) {
		metrics.SwapRequests.WithLabelValues("bad_request").Inc()
		httputil.BadRequest(c, "invalid tokenOut address")
		return
	}
	if !common.IsHexAddress(req.Recipient) {
		metrics.SwapRequests.WithLabelValues("bad_request").Inc()
		httputil.BadRequest(c, "invalid recipient address")
		return
	}

	amountIn, ok := new(big.Int).SetString(req.AmountIn, 10)
	if !ok || amountIn.Sign() <= 0 {
		metrics.SwapRequests.WithLabelValues("bad_request").Inc()
		httputil.BadRequest(c, "invalid amountIn: must be a positive integer")
		return
	}

	if req.SlippageBps >= 10000 {
		metrics.SwapRequests.WithLabelValues("bad_request").Inc()
		httputil.BadRequest(c, "invalid slippageBps: must be below 10000")
		return
	}

	versions, ok := parseVersions(req.Versions)
	if !ok {
		metrics.SwapRequests.WithLabelValues("bad_request").Inc()
		httputil.BadRequest(c, "invalid versions: expected a comma-separated list of v2, v3")
		return
	}

	swapReq := &aggregator.SwapRequest{
		TokenIn:     common.HexToAddress(req.TokenIn),
		TokenOut:    common.HexToAddress(req.TokenOut),
		AmountIn:    amountIn,
		Recipient:   common.HexToAddress(req.Recipient),
		SlippageBps: req.SlippageBps,
		Versions:    versions,
		NativeIn:    req.NativeIn,
		NativeOut:   req.NativeOut,
	}

	res, err := h.aggregatorSvc.BuildSwap(c.Request.Context(), swapReq)
	if err != nil {
		switch {
		case errors.Is(err, aggregator.ErrNoRoute):
			metrics.SwapRequests.WithLabelValues("no_route").Inc()
			httputil.NotFound(c, "no route found between tokens")
		case errors.Is(err, aggregator.ErrEmptyRoute),
			errors.Is(err, aggregator.ErrUnknownVenue),
			errors.Is(err, aggregator.ErrMissingFeeTier):
			metrics.SwapRequests.WithLabelValues("plan_failed").Inc()
			httputil.UnprocessableEntity(c, "plan construction failed: "+err.Error())
		default:
			metrics.SwapRequests.WithLabelValues("error").Inc()
			httputil.InternalError(c, "failed to build swap: "+err.Error())
		}
		return
	}

	metrics.SwapRequests.WithLabelValues("success").Inc()
	metrics.PlanHops.Observe(float64(res.Quote.Hops()))

	slippage := swapReq.SlippageBps
	if slippage == 0 {
		slippage = aggregator.DefaultSlippageBps
	}

	httputil.Success(c, SwapHandlerResponse{
		Quote:              buildQuoteResponse(res.Quote, slippage),
		Executor:           res.Executor.Hex(),
		Calldata:           res.Calldata,
		MinAmountOut:       res.MinAmountOut.String(),
		ValidUntil:         res.ValidUntil,
		PriceImpactWarning: res.PriceImpactWarning,
	})
}
