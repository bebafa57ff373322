package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/swap-engine/internal/adapters/chain"
	"github.com/hxuan190/swap-engine/internal/aggregator"
	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/http"
	"github.com/hxuan190/swap-engine/internal/services/builder"
	"github.com/hxuan190/swap-engine/internal/services/discovery"
	"github.com/hxuan190/swap-engine/internal/services/tokens"
)

// @title Swap Engine API
// @version 1.0
// @description EVM DEX aggregator API for optimal token swaps across constant-product and concentrated-liquidity venues.
// @description
// @description ## Features
// @description - **Multi-Venue Aggregation**: Quotes every configured v2 and v3 venue side by side
// @description - **Smart Routing**: Direct or two-hop routing through configured intermediary tokens
// @description - **Price Impact Analysis**: Q18 fixed-point pricing with severity warnings
// @description - **Execution Plans**: Atomic pull/approve/call/flush plans with dynamic balance injection
// @description - **Slippage Protection**: Configurable tolerance with per-hop minimum outputs
// @description
// @description ## Usage Tips
// @description - Amounts are in smallest token units (wei for 18-decimal tokens)
// @description - Default slippage is 50 bps (0.5%)
// @description - Plans are single-use; rebuild after validUntil
// @description - Rate limit: 10 requests/second (burst: 20)
// @BasePath /
// @schemes http https
// @tag.name quote
// @tag.description Get optimal swap quotes with price impact analysis and routing information
// @tag.name swap
// @tag.description Build executor plans and calldata ready for signing and submission
// @tag.name tokens
// @tag.description Look up ERC-20 token metadata

func main() {
	common.InitRuntime()

	// load env
	err := godotenv.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load env")
		return
	}

	// di container config
	conf := container.NewConf(
		&config.GeneralConfig{},
		&config.RPCConfig{},
		&config.DEXConfig{},
		&config.TokensConfig{},
	)

	// di container
	dic, err := container.New(
		conf,

		// services
		&chain.Service{},
		&discovery.Service{},
		&builder.Service{},
		&tokens.Service{},
		&aggregator.Service{},

		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	// Run() returns on SIGINT/SIGTERM without stopping services
	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}
