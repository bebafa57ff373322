package executor

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	swapcommon "github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/domain"
)

var (
	user         = common.HexToAddress("0x0000000000000000000000000000000000000101")
	owner        = common.HexToAddress("0x0000000000000000000000000000000000000102")
	executorAddr = common.HexToAddress("0x0000000000000000000000000000000000000103")
	routerAddr   = common.HexToAddress("0x0000000000000000000000000000000000000104")
	router2Addr  = common.HexToAddress("0x0000000000000000000000000000000000000105")

	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000A2")
	tokenC = common.HexToAddress("0x00000000000000000000000000000000000000A3")
)

// fakeRouter pulls the amount encoded at payload byte 4 from the caller
// using its allowance and credits output to the caller at a fixed rate in
// hundredths.
type fakeRouter struct {
	addr     common.Address
	tokenIn  common.Address
	tokenOut common.Address
	rate     int64
}

func (r *fakeRouter) Call(l *Ledger, caller common.Address, _ *big.Int, payload []byte) ([]byte, error) {
	if len(payload) < 36 {
		return nil, errors.New("short payload")
	}
	amountIn := new(big.Int).SetBytes(payload[4:36])
	if err := l.TransferFrom(r.tokenIn, caller, r.addr, r.addr, amountIn); err != nil {
		return nil, err
	}
	out := new(big.Int).Mul(amountIn, big.NewInt(r.rate))
	out.Div(out, big.NewInt(100))
	l.Mint(r.tokenOut, caller, out)
	return common.LeftPadBytes(out.Bytes(), 32), nil
}

type failingTarget struct{ reason error }

func (f *failingTarget) Call(*Ledger, common.Address, *big.Int, []byte) ([]byte, error) {
	return nil, f.reason
}

func swapPayload(amountIn *big.Int) []byte {
	payload := make([]byte, 36)
	copy(payload[4:], common.LeftPadBytes(amountIn.Bytes(), 32))
	return payload
}

func newWorld(t *testing.T) (*Executor, *Ledger) {
	t.Helper()
	ledger := NewLedger()
	exec := New(executorAddr, owner, ledger)
	exec.Deploy(routerAddr, &fakeRouter{addr: routerAddr, tokenIn: tokenA, tokenOut: tokenB, rate: 90})
	exec.Deploy(router2Addr, &fakeRouter{addr: router2Addr, tokenIn: tokenB, tokenOut: tokenC, rate: 100})

	ledger.Mint(tokenA, user, big.NewInt(1_000))
	ledger.Approve(tokenA, user, executorAddr, big.NewInt(1_000))
	return exec, ledger
}

func TestExecutePlanHappyPath(t *testing.T) {
	exec, ledger := newWorld(t)

	plan := &domain.ExecutionPlan{
		Pulls:     []domain.TokenPull{{Token: tokenA, Amount: big.NewInt(1_000)}},
		Approvals: []domain.Approval{{Token: tokenA, Spender: routerAddr, Amount: big.NewInt(1_000)}},
		Calls: []domain.Call{
			{Target: routerAddr, Payload: swapPayload(big.NewInt(1_000))},
		},
		TokensToFlush: []common.Address{tokenA, tokenB},
	}

	results, err := exec.ExecutePlan(user, nil, plan)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, common.LeftPadBytes(big.NewInt(900).Bytes(), 32), results[0])

	require.Equal(t, big.NewInt(0), ledger.BalanceOf(tokenA, user))
	require.Equal(t, big.NewInt(900), ledger.BalanceOf(tokenB, user))
	require.Equal(t, big.NewInt(0), ledger.BalanceOf(tokenA, executorAddr))
	require.Equal(t, big.NewInt(0), ledger.BalanceOf(tokenB, executorAddr))

	// Every approval the executor set is revoked.
	require.Equal(t, big.NewInt(0), ledger.Allowance(tokenA, executorAddr, routerAddr))
}

func TestExecutePlanInjectionUsesLiveBalance(t *testing.T) {
	exec, ledger := newWorld(t)

	// Hop 2 was planned for 500 in, but hop 1 produces only 450. The
	// injected live balance must override the stale word.
	plan := &domain.ExecutionPlan{
		Pulls: []domain.TokenPull{{Token: tokenA, Amount: big.NewInt(500)}},
		Approvals: []domain.Approval{
			{Token: tokenA, Spender: routerAddr, Amount: big.NewInt(500)},
			{Token: tokenB, Spender: router2Addr, Amount: swapcommon.MaxUint256},
		},
		Calls: []domain.Call{
			{Target: routerAddr, Payload: swapPayload(big.NewInt(500))},
			{Target: router2Addr, Payload: swapPayload(big.NewInt(500)), InjectToken: tokenB, InjectOffset: 4},
		},
		TokensToFlush: []common.Address{tokenA, tokenB, tokenC},
	}

	_, err := exec.ExecutePlan(user, nil, plan)
	require.NoError(t, err)

	// 500 * 0.9 = 450 through hop 1, all of it through hop 2.
	require.Equal(t, big.NewInt(450), ledger.BalanceOf(tokenC, user))
	require.Equal(t, big.NewInt(0), ledger.BalanceOf(tokenB, executorAddr))
	require.Equal(t, big.NewInt(450), ledger.BalanceOf(tokenB, router2Addr))
}

func TestExecutePlanRollsBackOnCallFailure(t *testing.T) {
	exec, ledger := newWorld(t)
	reason := errors.New("slippage exceeded")
	failAddr := common.HexToAddress("0x00000000000000000000000000000000000000F1")
	exec.Deploy(failAddr, &failingTarget{reason: reason})

	plan := &domain.ExecutionPlan{
		Pulls:     []domain.TokenPull{{Token: tokenA, Amount: big.NewInt(1_000)}},
		Approvals: []domain.Approval{{Token: tokenA, Spender: routerAddr, Amount: big.NewInt(1_000)}},
		Calls: []domain.Call{
			{Target: routerAddr, Payload: swapPayload(big.NewInt(1_000))},
			{Target: failAddr, Payload: swapPayload(big.NewInt(1))},
		},
		TokensToFlush: []common.Address{tokenA, tokenB},
	}

	_, err := exec.ExecutePlan(user, nil, plan)
	require.ErrorIs(t, err, reason)
	require.ErrorContains(t, err, "slippage exceeded")

	// Full unwind: pre-state exactly, including the completed first hop
	// and the pull.
	require.Equal(t, big.NewInt(1_000), ledger.BalanceOf(tokenA, user))
	require.Equal(t, big.NewInt(0), ledger.BalanceOf(tokenB, user))
	require.Equal(t, big.NewInt(0), ledger.BalanceOf(tokenA, executorAddr))
	require.Equal(t, big.NewInt(0), ledger.BalanceOf(tokenA, routerAddr))
	require.Equal(t, big.NewInt(1_000), ledger.Allowance(tokenA, user, executorAddr))
	require.Equal(t, big.NewInt(0), ledger.Allowance(tokenA, executorAddr, routerAddr))
}

func TestExecutePlanZeroInjectionBalanceAborts(t *testing.T) {
	exec, ledger := newWorld(t)

	plan := &domain.ExecutionPlan{
		Calls: []domain.Call{
			{Target: router2Addr, Payload: swapPayload(big.NewInt(500)), InjectToken: tokenB, InjectOffset: 4},
		},
	}

	_, err := exec.ExecutePlan(user, nil, plan)
	require.ErrorIs(t, err, ErrZeroInjectBalance)
	require.Equal(t, big.NewInt(1_000), ledger.BalanceOf(tokenA, user))
}

func TestExecutePlanInjectionOffsetBoundsRejected(t *testing.T) {
	exec, ledger := newWorld(t)
	ledger.Mint(tokenB, executorAddr, big.NewInt(100))
	before := ledger.Snapshot()

	// 20-byte payload cannot hold a 32-byte word at offset 4.
	plan := &domain.ExecutionPlan{
		Calls: []domain.Call{
			{Target: router2Addr, Payload: make([]byte, 20), InjectToken: tokenB, InjectOffset: 4},
		},
		TokensToFlush: []common.Address{tokenB},
	}

	_, err := exec.ExecutePlan(user, nil, plan)
	require.ErrorIs(t, err, ErrInjectOutOfBounds)
	require.Equal(t, before.BalanceOf(tokenB, executorAddr), ledger.BalanceOf(tokenB, executorAddr))
}

func TestFlushOnlyReturnsDelta(t *testing.T) {
	exec, ledger := newWorld(t)
	// Pre-existing custody balance stays put; only the in-transaction
	// increase flows back.
	ledger.Mint(tokenA, executorAddr, big.NewInt(50))

	plan := &domain.ExecutionPlan{
		Pulls:         []domain.TokenPull{{Token: tokenA, Amount: big.NewInt(100)}},
		TokensToFlush: []common.Address{tokenA},
	}

	_, err := exec.ExecutePlan(user, nil, plan)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50), ledger.BalanceOf(tokenA, executorAddr))
	require.Equal(t, big.NewInt(1_000), ledger.BalanceOf(tokenA, user))
}

func TestUnconsumedValueIsFlushed(t *testing.T) {
	exec, ledger := newWorld(t)
	ledger.MintNative(user, big.NewInt(1_000))

	_, err := exec.ExecutePlan(user, big.NewInt(400), &domain.ExecutionPlan{})
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000), ledger.NativeBalanceOf(user))
	require.Equal(t, big.NewInt(0), ledger.NativeBalanceOf(executorAddr))
}

func TestPauseGuards(t *testing.T) {
	exec, _ := newWorld(t)

	require.ErrorIs(t, exec.Pause(user), ErrNotOwner)
	require.NoError(t, exec.Pause(owner))

	_, err := exec.ExecutePlan(user, nil, &domain.ExecutionPlan{})
	require.ErrorIs(t, err, ErrPaused)

	require.NoError(t, exec.Unpause(owner))
	_, err = exec.ExecutePlan(user, nil, &domain.ExecutionPlan{})
	require.NoError(t, err)
}

// reentrantProbe attempts a nested ExecutePlan and fails the outer plan
// unless the guard rejected it.
type reentrantProbe struct{ exec *Executor }

func (p *reentrantProbe) Call(*Ledger, common.Address, *big.Int, []byte) ([]byte, error) {
	if _, err := p.exec.ExecutePlan(user, nil, &domain.ExecutionPlan{}); !errors.Is(err, ErrReentrancy) {
		return nil, errors.New("nested entry was not rejected")
	}
	return nil, nil
}

func TestReentrancyGuard(t *testing.T) {
	exec, _ := newWorld(t)
	probeAddr := common.HexToAddress("0x00000000000000000000000000000000000000F2")
	exec.Deploy(probeAddr, &reentrantProbe{exec: exec})

	plan := &domain.ExecutionPlan{
		Calls: []domain.Call{{Target: probeAddr, Payload: []byte{0x01}}},
	}
	_, err := exec.ExecutePlan(user, nil, plan)
	require.NoError(t, err)
}

func TestRescueRestrictedToOwner(t *testing.T) {
	exec, ledger := newWorld(t)
	ledger.Mint(tokenB, executorAddr, big.NewInt(77))

	require.ErrorIs(t, exec.Rescue(user, tokenB, user, big.NewInt(77)), ErrNotOwner)
	require.NoError(t, exec.Rescue(owner, tokenB, owner, big.NewInt(77)))
	require.Equal(t, big.NewInt(77), ledger.BalanceOf(tokenB, owner))
}
