package tokens

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/swap-engine/internal/adapters/chain"
	"github.com/hxuan190/swap-engine/internal/cache"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/domain"
)

var tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000A1")

type fakeReader struct {
	erc20      abi.ABI
	symbol     string
	name       string
	decimals   uint8
	supply     *big.Int
	standard   bool
	aggregates int
}

func (f *fakeReader) CallContract(context.Context, ethereum.CallMsg) ([]byte, error) {
	return nil, errors.New("not used")
}

func (f *fakeReader) GasPrice(context.Context) (*big.Int, error) {
	return nil, errors.New("not used")
}

func (f *fakeReader) Aggregate(_ context.Context, calls []chain.Call) ([]chain.Result, error) {
	f.aggregates++
	results := make([]chain.Result, len(calls))
	for i, c := range calls {
		var (
			data []byte
			err  error
		)
		switch common.Bytes2Hex(c.CallData[:4]) {
		case common.Bytes2Hex(f.erc20.Methods["symbol"].ID):
			if !f.standard {
				continue
			}
			data, err = f.erc20.Methods["symbol"].Outputs.Pack(f.symbol)
		case common.Bytes2Hex(f.erc20.Methods["name"].ID):
			if !f.standard {
				continue
			}
			data, err = f.erc20.Methods["name"].Outputs.Pack(f.name)
		case common.Bytes2Hex(f.erc20.Methods["decimals"].ID):
			data, err = f.erc20.Methods["decimals"].Outputs.Pack(f.decimals)
		case common.Bytes2Hex(f.erc20.Methods["totalSupply"].ID):
			data, err = f.erc20.Methods["totalSupply"].Outputs.Pack(f.supply)
		}
		if err != nil {
			return nil, err
		}
		if data != nil {
			results[i] = chain.Result{Success: true, Data: data}
		}
	}
	return results, nil
}

func newTestService(t *testing.T, reader chain.Reader) *Service {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)
	return &Service{
		rpcCfg:    &config.RPCConfig{ChainID: 1},
		tokensCfg: &config.TokensConfig{MetadataTTLSeconds: 3600},
		reader:    reader,
		erc20:     parsed,
		cache:     cache.NewTTLStore[common.Address, *domain.TokenMetadata](time.Hour),
		dirty:     make(map[common.Address]*domain.TokenMetadata),
	}
}

func TestGetTokenFetchesAndCaches(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)
	reader := &fakeReader{
		erc20:    parsed,
		symbol:   "USDC",
		name:     "USD Coin",
		decimals: 6,
		supply:   big.NewInt(1_000_000_000),
		standard: true,
	}
	svc := newTestService(t, reader)

	token, err := svc.GetToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	require.Equal(t, "USDC", token.Symbol)
	require.Equal(t, "USD Coin", token.Name)
	require.Equal(t, uint8(6), token.Decimals)
	require.Equal(t, big.NewInt(1_000_000_000), token.TotalSupply)
	require.Equal(t, uint64(1), token.ChainID)

	_, err = svc.GetToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	require.Equal(t, 1, reader.aggregates)
}

func TestGetTokenToleratesNonStandardToken(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)
	reader := &fakeReader{erc20: parsed, decimals: 18, supply: big.NewInt(0), standard: false}
	svc := newTestService(t, reader)

	token, err := svc.GetToken(context.Background(), tokenAddr)
	require.NoError(t, err)
	require.Empty(t, token.Symbol)
	require.Empty(t, token.Name)
	require.Equal(t, uint8(18), token.Decimals)
}
