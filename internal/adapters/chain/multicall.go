package chain

import (
	"context"
	"fmt"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Multicall3 tryAggregate: per-call failures come back as success=false
// instead of reverting the whole batch, which is exactly the degradation
// policy discovery wants.
const multicallABI = `[
 {"inputs":[
    {"internalType":"bool","name":"requireSuccess","type":"bool"},
    {"components":[
       {"internalType":"address","name":"target","type":"address"},
       {"internalType":"bytes","name":"callData","type":"bytes"}],
     "internalType":"struct Multicall3.Call[]","name":"calls","type":"tuple[]"}],
  "name":"tryAggregate",
  "outputs":[
    {"components":[
       {"internalType":"bool","name":"success","type":"bool"},
       {"internalType":"bytes","name":"returnData","type":"bytes"}],
     "internalType":"struct Multicall3.Result[]","name":"returnData","type":"tuple[]"}],
  "stateMutability":"payable","type":"function"}
]`

type Call struct {
	Target   common.Address
	CallData []byte
}

type Result struct {
	Success bool
	Data    []byte
}

type Multicall struct {
	c    *ethclient.Client
	addr common.Address
	abi  abi.ABI
}

func NewMulticall(c *ethclient.Client, addr common.Address) (*Multicall, error) {
	parsedABI, err := abi.JSON(strings.NewReader(multicallABI))
	if err != nil {
		return nil, fmt.Errorf("bad multicall abi: %w", err)
	}
	return &Multicall{c: c, addr: addr, abi: parsedABI}, nil
}

func (m *Multicall) Aggregate(ctx context.Context, calls []Call) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	type mcCall struct {
		Target   common.Address
		CallData []byte
	}
	packed := make([]mcCall, len(calls))
	for i, c := range calls {
		packed[i] = mcCall{Target: c.Target, CallData: c.CallData}
	}

	payload, err := m.abi.Pack("tryAggregate", false, packed)
	if err != nil {
		return nil, fmt.Errorf("pack tryAggregate: %w", err)
	}

	raw, err := m.c.CallContract(ctx, ethereum.CallMsg{To: &m.addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call tryAggregate: %w", err)
	}

	type mcResult struct {
		Success    bool
		ReturnData []byte
	}
	var decoded []mcResult
	if err := m.abi.UnpackIntoInterface(&decoded, "tryAggregate", raw); err != nil {
		return nil, fmt.Errorf("unpack tryAggregate: %w", err)
	}
	if len(decoded) != len(calls) {
		return nil, fmt.Errorf("multicall returned %d results for %d calls", len(decoded), len(calls))
	}

	out := make([]Result, len(decoded))
	for i, r := range decoded {
		out[i] = Result{Success: r.Success, Data: r.ReturnData}
	}
	return out, nil
}
