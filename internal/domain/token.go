package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenMetadata is the cached view of an ERC-20 token. Immutable once
// fetched; the tokens service owns the TTL and re-fetch cycle.
type TokenMetadata struct {
	ChainID     uint64         `json:"chainId"`
	Address     common.Address `json:"address"`
	Symbol      string         `json:"symbol"`
	Name        string         `json:"name"`
	Decimals    uint8          `json:"decimals"`
	TotalSupply *big.Int       `json:"totalSupply,omitempty"`
}
