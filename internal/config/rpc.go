package config

import (
	"errors"
	"os"

	"github.com/andrew-solarstorm/go-packages/common"
)

type RPCConfig struct {
	RPCUrl string
	// ChainID is validated against the node at startup.
	ChainID uint64
	// GasPriceTTLSeconds bounds staleness of the cached gas price.
	GasPriceTTLSeconds int
}

func (r *RPCConfig) Key() string {
	return RPC_CONFIG_KEY
}

func (r *RPCConfig) Load() error {
	r.RPCUrl = os.Getenv("RPC_URL")
	r.ChainID = uint64(common.GetEnvOrDefaultInt("CHAIN_ID", 1))
	r.GasPriceTTLSeconds = common.GetEnvOrDefaultInt("GAS_PRICE_TTL_SECONDS", 30)
	return r.Validate()
}

func (r *RPCConfig) Validate() error {
	if r.RPCUrl == "" {
		return errors.New("invalid rpc config")
	}
	if r.ChainID == 0 {
		return errors.New("invalid chain id")
	}
	return nil
}
