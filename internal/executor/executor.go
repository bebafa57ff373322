// Package executor is the reference implementation of the on-chain plan
// runner's contract: five strictly sequential states executed atomically,
// with full unwinding on any failure.
package executor

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	swapcommon "github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/domain"
)

var (
	ErrPaused            = errors.New("executor is paused")
	ErrReentrancy        = errors.New("reentrant call rejected")
	ErrNotOwner          = errors.New("caller is not the owner")
	ErrZeroInjectBalance = errors.New("injection token balance is zero")
	ErrInjectOutOfBounds = errors.New("injection offset past payload end")
	ErrInjectOverflow    = errors.New("injection balance exceeds 256 bits")
	ErrUnknownCallTarget = errors.New("call target is not deployed")
)

// StepError names the failing plan step when the callee gave no reason of
// its own.
type StepError struct {
	Step  string
	Index int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s[%d]: %v", e.Step, e.Index, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// CallTarget receives a dispatched plan call. Implementations mutate the
// ledger the way the real contract at that address would.
type CallTarget interface {
	Call(ledger *Ledger, caller common.Address, value *big.Int, payload []byte) ([]byte, error)
}

// Executor runs ExecutionPlans against a ledger. One instance models one
// deployed contract: it has an address, an owner, a pause switch, and a
// reentrancy guard around its single entry point.
type Executor struct {
	Address common.Address

	owner   common.Address
	ledger  *Ledger
	targets map[common.Address]CallTarget

	paused  bool
	entered bool
}

func New(address, owner common.Address, ledger *Ledger) *Executor {
	return &Executor{
		Address: address,
		owner:   owner,
		ledger:  ledger,
		targets: make(map[common.Address]CallTarget),
	}
}

// Deploy registers the contract behavior at an address.
func (e *Executor) Deploy(addr common.Address, target CallTarget) {
	e.targets[addr] = target
}

func (e *Executor) Pause(caller common.Address) error {
	if caller != e.owner {
		return ErrNotOwner
	}
	e.paused = true
	return nil
}

func (e *Executor) Unpause(caller common.Address) error {
	if caller != e.owner {
		return ErrNotOwner
	}
	e.paused = false
	return nil
}

// Rescue moves stranded assets out of executor custody. Owner only, never
// part of a normal swap.
func (e *Executor) Rescue(caller, token, to common.Address, amount *big.Int) error {
	if caller != e.owner {
		return ErrNotOwner
	}
	return e.ledger.Transfer(token, e.Address, to, amount)
}

// ExecutePlan runs the five states in order: PullFunds, SetApprovals,
// PerformCalls, RevokeApprovals, FlushDeltas. Any failure restores the
// pre-call ledger exactly. Returns each call's raw return data in order.
func (e *Executor) ExecutePlan(caller common.Address, value *big.Int, plan *domain.ExecutionPlan) ([][]byte, error) {
	if e.paused {
		return nil, ErrPaused
	}
	if e.entered {
		return nil, ErrReentrancy
	}
	e.entered = true
	defer func() { e.entered = false }()

	if value == nil {
		value = big.NewInt(0)
	}

	// Snapshots come before the attached value is credited, so leftover
	// value shows up as a flushable delta.
	revert := e.ledger.Snapshot()
	nativeBefore := e.ledger.NativeBalanceOf(e.Address)
	tokenBefore := make(map[common.Address]*big.Int, len(plan.TokensToFlush))
	for _, token := range plan.TokensToFlush {
		tokenBefore[token] = e.ledger.BalanceOf(token, e.Address)
	}

	if value.Sign() > 0 {
		if err := e.ledger.TransferNative(caller, e.Address, value); err != nil {
			return nil, &StepError{Step: "attachValue", Err: err}
		}
	}

	results, err := e.run(caller, plan, nativeBefore, tokenBefore)
	if err != nil {
		e.ledger.Restore(revert)
		return nil, err
	}
	return results, nil
}

func (e *Executor) run(caller common.Address, plan *domain.ExecutionPlan, nativeBefore *big.Int, tokenBefore map[common.Address]*big.Int) ([][]byte, error) {
	// PullFunds
	for i, pull := range plan.Pulls {
		if err := e.ledger.TransferFrom(pull.Token, caller, e.Address, e.Address, pull.Amount); err != nil {
			return nil, &StepError{Step: "pull", Index: i, Err: err}
		}
	}

	// SetApprovals
	for _, approval := range plan.Approvals {
		e.ledger.Approve(approval.Token, e.Address, approval.Spender, approval.Amount)
	}

	// PerformCalls
	results := make([][]byte, 0, len(plan.Calls))
	for i := range plan.Calls {
		ret, err := e.performCall(i, &plan.Calls[i])
		if err != nil {
			return nil, err
		}
		results = append(results, ret)
	}

	// RevokeApprovals
	zero := big.NewInt(0)
	for _, approval := range plan.Approvals {
		e.ledger.Approve(approval.Token, e.Address, approval.Spender, zero)
	}

	// FlushDeltas
	for _, token := range plan.TokensToFlush {
		delta := new(big.Int).Sub(e.ledger.BalanceOf(token, e.Address), tokenBefore[token])
		if delta.Sign() > 0 {
			if err := e.ledger.Transfer(token, e.Address, caller, delta); err != nil {
				return nil, &StepError{Step: "flush", Err: err}
			}
		}
	}
	nativeDelta := new(big.Int).Sub(e.ledger.NativeBalanceOf(e.Address), nativeBefore)
	if nativeDelta.Sign() > 0 {
		if err := e.ledger.TransferNative(e.Address, caller, nativeDelta); err != nil {
			return nil, &StepError{Step: "flushNative", Err: err}
		}
	}

	return results, nil
}

func (e *Executor) performCall(index int, call *domain.Call) ([]byte, error) {
	payload := make([]byte, len(call.Payload))
	copy(payload, call.Payload)

	if call.Injects() {
		balance := e.ledger.BalanceOf(call.InjectToken, e.Address)
		if balance.Sign() == 0 {
			return nil, &StepError{Step: "inject", Index: index, Err: ErrZeroInjectBalance}
		}
		end := int(call.InjectOffset) + swapcommon.WordSize
		if end > len(payload) {
			return nil, &StepError{Step: "inject", Index: index, Err: ErrInjectOutOfBounds}
		}
		word, overflow := uint256.FromBig(balance)
		if overflow {
			return nil, &StepError{Step: "inject", Index: index, Err: ErrInjectOverflow}
		}
		word.WriteToSlice(payload[call.InjectOffset:end])
	}

	target, ok := e.targets[call.Target]
	if !ok {
		return nil, &StepError{Step: "call", Index: index, Err: ErrUnknownCallTarget}
	}

	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}
	if value.Sign() > 0 {
		if err := e.ledger.TransferNative(e.Address, call.Target, value); err != nil {
			return nil, &StepError{Step: "call", Index: index, Err: err}
		}
	}

	ret, err := target.Call(e.ledger, e.Address, value, payload)
	if err != nil {
		// Re-raise the callee's own reason, tagged with the failing step.
		return nil, &StepError{Step: "call", Index: index, Err: err}
	}
	return ret, nil
}
