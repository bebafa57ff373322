package http

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/swap-engine/internal/aggregator"
	"github.com/hxuan190/swap-engine/internal/http/httputil"
)

type TokenHandler struct {
	aggregatorSvc *aggregator.Service
}

func NewTokenHandler(aggregatorSvc *aggregator.Service) *TokenHandler {
	return &TokenHandler{aggregatorSvc: aggregatorSvc}
}

func (h *TokenHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/:address", h.getToken)
}

func (h *TokenHandler) Root() string {
	return "/tokens"
}

// TokenResponse describes an ERC-20 token
type TokenResponse struct {
	// Chain the token lives on
	ChainID uint64 `json:"chainId" example:"1"`

	// Token contract address
	Address string `json:"address" example:"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"`

	// Token symbol, empty for non-standard tokens
	Symbol string `json:"symbol" example:"USDC"`

	// Token name, empty for non-standard tokens
	Name string `json:"name" example:"USD Coin"`

	// Number of decimals
	Decimals uint8 `json:"decimals" example:"6"`

	// Total supply in smallest units, omitted when unavailable
	TotalSupply string `json:"totalSupply,omitempty" example:"44397914803340285"`
}

// @Summary Get token metadata
// @Description Fetch ERC-20 metadata for a token by contract address. Results are read
// @Description from the on-chain contract on first request and cached afterwards.
// @Tags tokens
// @Produce json
// @Param address path string true "Token contract address" example("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
// @Success 200 {object} TokenResponse "Token metadata"
// @Failure 400 {object} httputil.Response "Invalid address"
// @Failure 404 {object} httputil.Response "Token not found or not a readable ERC-20"
// @Router /api/v1/tokens/{address} [get]
func (h *TokenHandler) getToken(c *gin.Context) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		httputil.BadRequest(c, "invalid token address")
		return
	}

	token, err := h.aggregatorSvc.GetToken(c.Request.Context(), common.HexToAddress(raw))
	if err != nil {
		httputil.NotFound(c, "token not found: "+err.Error())
		return
	}

	resp := TokenResponse{
		ChainID:  token.ChainID,
		Address:  token.Address.Hex(),
		Symbol:   token.Symbol,
		Name:     token.Name,
		Decimals: token.Decimals,
	}
	if token.TotalSupply != nil {
		resp.TotalSupply = token.TotalSupply.String()
	}

	httputil.Success(c, resp)
}
