package builder

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/hxuan190/swap-engine/internal/domain"
)

const v2RouterABI = `[
 {"inputs":[
    {"internalType":"uint256","name":"amountIn","type":"uint256"},
    {"internalType":"uint256","name":"amountOutMin","type":"uint256"},
    {"internalType":"address[]","name":"path","type":"address[]"},
    {"internalType":"address","name":"to","type":"address"},
    {"internalType":"uint256","name":"deadline","type":"uint256"}],
  "name":"swapExactTokensForTokens",
  "outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],
  "stateMutability":"nonpayable","type":"function"}
]`

const v3RouterDeadlineABI = `[
 {"inputs":[{"components":[
    {"internalType":"address","name":"tokenIn","type":"address"},
    {"internalType":"address","name":"tokenOut","type":"address"},
    {"internalType":"uint24","name":"fee","type":"uint24"},
    {"internalType":"address","name":"recipient","type":"address"},
    {"internalType":"uint256","name":"deadline","type":"uint256"},
    {"internalType":"uint256","name":"amountIn","type":"uint256"},
    {"internalType":"uint256","name":"amountOutMinimum","type":"uint256"},
    {"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
   "internalType":"struct ISwapRouter.ExactInputSingleParams","name":"params","type":"tuple"}],
  "name":"exactInputSingle",
  "outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],
  "stateMutability":"payable","type":"function"}
]`

const v3Router02ABI = `[
 {"inputs":[{"components":[
    {"internalType":"address","name":"tokenIn","type":"address"},
    {"internalType":"address","name":"tokenOut","type":"address"},
    {"internalType":"uint24","name":"fee","type":"uint24"},
    {"internalType":"address","name":"recipient","type":"address"},
    {"internalType":"uint256","name":"amountIn","type":"uint256"},
    {"internalType":"uint256","name":"amountOutMinimum","type":"uint256"},
    {"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
   "internalType":"struct IV3SwapRouter.ExactInputSingleParams","name":"params","type":"tuple"}],
  "name":"exactInputSingle",
  "outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],
  "stateMutability":"payable","type":"function"}
]`

const wrappedNativeABI = `[
 {"inputs":[],"name":"deposit","outputs":[],"stateMutability":"payable","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"wad","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const executorABI = `[
 {"inputs":[
   {"components":[
     {"internalType":"address","name":"token","type":"address"},
     {"internalType":"uint256","name":"amount","type":"uint256"}],
    "internalType":"struct ISwapExecutor.TokenPull[]","name":"pulls","type":"tuple[]"},
   {"components":[
     {"internalType":"address","name":"token","type":"address"},
     {"internalType":"address","name":"spender","type":"address"},
     {"internalType":"uint256","name":"amount","type":"uint256"}],
    "internalType":"struct ISwapExecutor.Approval[]","name":"approvals","type":"tuple[]"},
   {"components":[
     {"internalType":"address","name":"target","type":"address"},
     {"internalType":"uint256","name":"value","type":"uint256"},
     {"internalType":"bytes","name":"payload","type":"bytes"},
     {"internalType":"address","name":"injectToken","type":"address"},
     {"internalType":"uint256","name":"injectOffset","type":"uint256"}],
    "internalType":"struct ISwapExecutor.Call[]","name":"calls","type":"tuple[]"},
   {"internalType":"address[]","name":"tokensToFlush","type":"address[]"}],
  "name":"executePlan",
  "outputs":[{"internalType":"bytes[]","name":"results","type":"bytes[]"}],
  "stateMutability":"payable","type":"function"}
]`

// callCodec packs the router, wrapped-native, and executor call payloads.
// Parsed once at service construction.
type callCodec struct {
	v2Router   abi.ABI
	v3Deadline abi.ABI
	v3Router02 abi.ABI
	wrapped    abi.ABI
	executor   abi.ABI
}

func newCallCodec() (*callCodec, error) {
	parse := func(name, def string) (abi.ABI, error) {
		parsed, err := abi.JSON(strings.NewReader(def))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("bad %s abi: %w", name, err)
		}
		return parsed, nil
	}

	c := &callCodec{}
	var err error
	if c.v2Router, err = parse("v2 router", v2RouterABI); err != nil {
		return nil, err
	}
	if c.v3Deadline, err = parse("v3 router", v3RouterDeadlineABI); err != nil {
		return nil, err
	}
	if c.v3Router02, err = parse("v3 router02", v3Router02ABI); err != nil {
		return nil, err
	}
	if c.wrapped, err = parse("wrapped native", wrappedNativeABI); err != nil {
		return nil, err
	}
	if c.executor, err = parse("executor", executorABI); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *callCodec) v2Swap(amountIn, minOut *big.Int, path []common.Address, recipient common.Address, deadline *big.Int) ([]byte, error) {
	return c.v2Router.Pack("swapExactTokensForTokens", amountIn, minOut, path, recipient, deadline)
}

func (c *callCodec) v3ExactInputSingle(embedsDeadline bool, tokenIn, tokenOut common.Address, feeTier uint32, recipient common.Address, deadline, amountIn, minOut *big.Int) ([]byte, error) {
	fee := big.NewInt(int64(feeTier))
	if embedsDeadline {
		params := struct {
			TokenIn           common.Address
			TokenOut          common.Address
			Fee               *big.Int
			Recipient         common.Address
			Deadline          *big.Int
			AmountIn          *big.Int
			AmountOutMinimum  *big.Int
			SqrtPriceLimitX96 *big.Int
		}{tokenIn, tokenOut, fee, recipient, deadline, amountIn, minOut, big.NewInt(0)}
		return c.v3Deadline.Pack("exactInputSingle", params)
	}
	params := struct {
		TokenIn           common.Address
		TokenOut          common.Address
		Fee               *big.Int
		Recipient         common.Address
		AmountIn          *big.Int
		AmountOutMinimum  *big.Int
		SqrtPriceLimitX96 *big.Int
	}{tokenIn, tokenOut, fee, recipient, amountIn, minOut, big.NewInt(0)}
	return c.v3Router02.Pack("exactInputSingle", params)
}

func (c *callCodec) wrapDeposit() ([]byte, error) {
	return c.wrapped.Pack("deposit")
}

func (c *callCodec) wrapWithdraw(amount *big.Int) ([]byte, error) {
	return c.wrapped.Pack("withdraw", amount)
}

// ExecutePlanCalldata encodes the full executor entry-point call for a
// finished plan, ready to submit as transaction data.
func (c *callCodec) ExecutePlanCalldata(plan *domain.ExecutionPlan) ([]byte, error) {
	type pull struct {
		Token  common.Address
		Amount *big.Int
	}
	type approval struct {
		Token   common.Address
		Spender common.Address
		Amount  *big.Int
	}
	type call struct {
		Target       common.Address
		Value        *big.Int
		Payload      []byte
		InjectToken  common.Address
		InjectOffset *big.Int
	}

	pulls := make([]pull, len(plan.Pulls))
	for i, p := range plan.Pulls {
		pulls[i] = pull{p.Token, p.Amount}
	}
	approvals := make([]approval, len(plan.Approvals))
	for i, a := range plan.Approvals {
		approvals[i] = approval{a.Token, a.Spender, a.Amount}
	}
	calls := make([]call, len(plan.Calls))
	for i, cl := range plan.Calls {
		value := cl.Value
		if value == nil {
			value = big.NewInt(0)
		}
		calls[i] = call{cl.Target, value, cl.Payload, cl.InjectToken, big.NewInt(int64(cl.InjectOffset))}
	}
	return c.executor.Pack("executePlan", pulls, approvals, calls, plan.TokensToFlush)
}
