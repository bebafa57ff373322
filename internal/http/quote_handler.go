package http

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/swap-engine/internal/aggregator"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/http/httputil"
	"github.com/hxuan190/swap-engine/internal/metrics"
	"github.com/hxuan190/swap-engine/internal/services/router"
)

// bigIntPool reuses big.Int allocations for slippage calculations.
var bigIntPool = sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

type QuoteHandler struct {
	aggregatorSvc *aggregator.Service
}

func NewQuoteHandler(aggregatorSvc *aggregator.Service) *QuoteHandler {
	return &QuoteHandler{aggregatorSvc: aggregatorSvc}
}

func (h *QuoteHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getQuote)
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

// QuoteRequest represents the parameters for requesting a swap quote
type QuoteRequest struct {
	// Input token contract address (EVM hex address)
	TokenIn string `form:"tokenIn" binding:"required" example:"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"`

	// Output token contract address (EVM hex address)
	TokenOut string `form:"tokenOut" binding:"required" example:"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"`

	// Amount of input token in smallest units (wei for 18-decimal tokens)
	AmountIn string `form:"amountIn" binding:"required" example:"1000000000000000000"`

	// Slippage tolerance in basis points (1 bps = 0.01%)
	// Default: 50 bps (0.5%)
	SlippageBps uint32 `form:"slippageBps" example:"50"`

	// Comma-separated venue versions to quote against: "v2", "v3" or "v2,v3"
	// Default: all versions
	Versions string `form:"versions" example:"v2,v3"`
}

// HopInfo describes a single hop in the swap route
type HopInfo struct {
	// DEX venue name as configured (e.g. "uniswap-v2", "uniswap-v3")
	Venue string `json:"venue" example:"uniswap-v3"`

	// Protocol family of the venue: "v2" or "v3"
	Version string `json:"version" example:"v3"`

	// Pool address used for this hop
	Pool string `json:"pool" example:"0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"`

	// Fee tier in hundredths of a bip (v3 only, e.g. 3000 = 0.3%)
	FeeTier uint32 `json:"feeTier,omitempty" example:"3000"`

	// Input amount for this hop in smallest units
	AmountIn string `json:"amountIn" example:"1000000000000000000"`

	// Output amount for this hop in smallest units
	AmountOut string `json:"amountOut" example:"1845320000"`

	// True when the hop output was approximated from the pool mid-price
	// instead of an exact quoter simulation
	Approximate bool `json:"approximate,omitempty" example:"false"`
}

// QuoteResponse contains the winning quote with routing information
type QuoteResponse struct {
	// Input token contract address
	TokenIn string `json:"tokenIn" example:"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"`

	// Output token contract address
	TokenOut string `json:"tokenOut" example:"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"`

	// Input amount in smallest units
	AmountIn string `json:"amountIn" example:"1000000000000000000"`

	// Expected output amount in smallest units
	AmountOut string `json:"amountOut" example:"1845320000"`

	// Minimum output after applying the requested slippage tolerance
	MinAmountOut string `json:"minAmountOut" example:"1836093400"`

	// Route-wide mid price, Q18 fixed point (output units per input unit, scaled by 1e18)
	MidPriceQ18 string `json:"midPriceQ18" example:"1846000000000000000000"`

	// Effective execution price, Q18 fixed point
	ExecPriceQ18 string `json:"execPriceQ18" example:"1845320000000000000000"`

	// Price impact in basis points (1 bps = 0.01%)
	PriceImpactBps uint32 `json:"priceImpactBps" example:"25"`

	// Human-readable price impact percentage
	PriceImpactPercent string `json:"priceImpactPercent" example:"0.25%"`

	// Price impact severity classification: none, low, moderate, high, extreme
	PriceImpactSeverity string `json:"priceImpactSeverity" enums:"none,low,moderate,high,extreme" example:"none"`

	// User-facing warning message, empty when impact is negligible
	PriceImpactWarning string `json:"priceImpactWarning,omitempty" example:"Low price impact"`

	// Detailed information about each hop in the route
	Hops []HopInfo `json:"hops"`

	// Complete token path from input to output
	// Direct swap: [tokenIn, tokenOut]; multi-hop adds intermediaries
	Path []string `json:"path"`

	// Number of swap hops in the route
	HopCount int `json:"hopCount" example:"1"`

	// Estimated gas units for executing the route
	GasEstimate uint64 `json:"gasEstimate,omitempty" example:"180000"`

	// Gas price observed at quote time, in wei
	GasPriceWei string `json:"gasPriceWei,omitempty" example:"20000000000"`
}

// parsedQuoteRequest holds validated quote request data
type parsedQuoteRequest struct {
	tokenIn     common.Address
	tokenOut    common.Address
	amountIn    *big.Int
	slippageBps uint32
	versions    domain.VersionSet
}

func parseVersions(raw string) (domain.VersionSet, bool) {
	if raw == "" {
		return domain.AllowAll, true
	}

	var set domain.VersionSet
	for _, part := range strings.Split(raw, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "v2":
			set |= domain.AllowV2
		case "v3":
			set |= domain.AllowV3
		default:
			return 0, false
		}
	}
	return set, true
}

func (h *QuoteHandler) parseQuoteRequest(c *gin.Context) (*parsedQuoteRequest, bool) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.BadRequest(c, "invalid query parameters: "+err.Error())
		return nil, false
	}

	if !common.IsHexAddress(req.TokenIn) {
		httputil.BadRequest(c, "invalid tokenIn address")
		return nil, false
	}
	if !common.IsHexAddress(req.TokenOut) {
		httputil.BadRequest(c, "invalid tokenOut address")
		return nil, false
	}

	tokenIn := common.HexToAddress(req.TokenIn)
	tokenOut := common.HexToAddress(req.TokenOut)
	if tokenIn == tokenOut {
		httputil.BadRequest(c, "tokenIn and tokenOut must differ")
		return nil, false
	}

	amountIn, ok := new(big.Int).SetString(req.AmountIn, 10)
	if !ok || amountIn.Sign() <= 0 {
		httputil.BadRequest(c, "invalid amountIn: must be a positive integer")
		return nil, false
	}

	slippageBps := req.SlippageBps
	if slippageBps == 0 {
		slippageBps = aggregator.DefaultSlippageBps
	}
	if slippageBps >= 10000 {
		httputil.BadRequest(c, "invalid slippageBps: must be below 10000")
		return nil, false
	}

	versions, ok := parseVersions(req.Versions)
	if !ok {
		httputil.BadRequest(c, "invalid versions: expected a comma-separated list of v2, v3")
		return nil, false
	}

	return &parsedQuoteRequest{
		tokenIn:     tokenIn,
		tokenOut:    tokenOut,
		amountIn:    amountIn,
		slippageBps: slippageBps,
		versions:    versions,
	}, true
}

func buildQuoteResponse(quote *domain.PriceQuote, slippageBps uint32) QuoteResponse {
	minAmountOut := bigIntPool.Get().(*big.Int)
	temp := bigIntPool.Get().(*big.Int)
	defer func() {
		bigIntPool.Put(minAmountOut)
		bigIntPool.Put(temp)
	}()

	temp.SetInt64(int64(10000 - slippageBps))
	minAmountOut.Mul(quote.AmountOut, temp)
	temp.SetInt64(10000)
	minAmountOut.Div(minAmountOut, temp)

	// Capture the string before the big.Int goes back to the pool.
	minAmountOutStr := minAmountOut.String()

	severity := router.GetPriceImpactSeverity(quote.PriceImpactBps)
	warning := router.GetPriceImpactWarning(quote.PriceImpactBps)
	metrics.PriceImpact.WithLabelValues(string(severity)).Observe(float64(quote.PriceImpactBps))

	hops := make([]HopInfo, 0, len(quote.Sources))
	approximate := false
	for i, src := range quote.Sources {
		if src.Approximate {
			approximate = true
		}
		hops = append(hops, HopInfo{
			Venue:       src.Venue,
			Version:     quote.HopVersions[i].String(),
			Pool:        src.Pool.Hex(),
			FeeTier:     src.FeeTier,
			AmountIn:    src.AmountIn.String(),
			AmountOut:   src.AmountOut.String(),
			Approximate: src.Approximate,
		})
	}
	if approximate {
		metrics.ApproximateQuotes.Inc()
	}

	path := make([]string, 0, len(quote.Path))
	for _, token := range quote.Path {
		path = append(path, token.Hex())
	}

	resp := QuoteResponse{
		TokenIn:             quote.Path[0].Hex(),
		TokenOut:            quote.Path[len(quote.Path)-1].Hex(),
		AmountIn:            quote.AmountIn.String(),
		AmountOut:           quote.AmountOut.String(),
		MinAmountOut:        minAmountOutStr,
		MidPriceQ18:         quote.MidPriceQ18.String(),
		ExecPriceQ18:        quote.ExecPriceQ18.String(),
		PriceImpactBps:      quote.PriceImpactBps,
		PriceImpactPercent:  fmt.Sprintf("%.2f%%", float64(quote.PriceImpactBps)/100.0),
		PriceImpactSeverity: string(severity),
		PriceImpactWarning:  warning,
		Hops:                hops,
		Path:                path,
		HopCount:            quote.Hops(),
		GasEstimate:         quote.GasEstimate,
	}
	if quote.GasPriceWei != nil {
		resp.GasPriceWei = quote.GasPriceWei.String()
	}
	return resp
}

// @Summary Get swap quote
// @Description Calculate the best swap quote for a token pair. The aggregator automatically finds the optimal route:
// @Description - Direct swap when a pool exists between the tokens
// @Description - Two-hop routing through configured intermediary tokens otherwise
// @Description - Quotes constant-product (v2) and concentrated-liquidity (v3) venues side by side
// @Description
// @Description The quote includes:
// @Description - Expected output and slippage-adjusted minimum output
// @Description - Mid and execution prices in Q18 fixed point
// @Description - Price impact analysis with severity warnings
// @Description - Per-hop venue, pool and amount detail
// @Tags quote
// @Produce json
// @Param tokenIn query string true "Input token contract address" example("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
// @Param tokenOut query string true "Output token contract address" example("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
// @Param amountIn query string true "Input amount in smallest token units" example("1000000000000000000")
// @Param slippageBps query int false "Slippage tolerance in basis points (1 bps = 0.01%). Default: 50 (0.5%)" default(50) example(50)
// @Param versions query string false "Venue versions to quote: v2, v3 or v2,v3 (default all)" example("v2,v3")
// @Success 200 {object} QuoteResponse "Winning quote with routing information"
// @Failure 400 {object} httputil.Response "Invalid request parameters"
// @Failure 404 {object} httputil.Response "No route found between the token pair"
// @Router /api/v1/quote [get]
func (h *QuoteHandler) getQuote(c *gin.Context) {
	start := time.Now()
	defer func() {
		metrics.QuoteDuration.Observe(time.Since(start).Seconds())
	}()

	parsed, ok := h.parseQuoteRequest(c)
	if !ok {
		metrics.QuoteRequests.WithLabelValues("bad_request").Inc()
		return
	}

	quote, err := h.aggregatorSvc.GetQuote(c.Request.Context(), parsed.tokenIn, parsed.tokenOut, parsed.amountIn, parsed.versions)
	if err != nil {
		metrics.QuoteRequests.WithLabelValues("no_route").Inc()
		httputil.NotFound(c, "no route found: "+err.Error())
		return
	}

	metrics.QuoteRequests.WithLabelValues("success").Inc()
	metrics.CandidatesEvaluated.Observe(float64(len(quote.Offers) + 1))

	httputil.Success(c, buildQuoteResponse(quote, parsed.slippageBps))
}
