package executor

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	swapcommon "github.com/hxuan190/swap-engine/internal/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

type allowanceKey struct {
	token, owner, spender common.Address
}

// Ledger is the in-memory token and native-currency state the executor
// machine runs against. It mirrors ERC-20 semantics closely enough to
// exercise the executor contract: force-set approvals, allowance-checked
// transferFrom, and max-approval that never decrements.
type Ledger struct {
	balances   map[common.Address]map[common.Address]*big.Int
	native     map[common.Address]*big.Int
	allowances map[allowanceKey]*big.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		native:     make(map[common.Address]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

func (l *Ledger) BalanceOf(token, holder common.Address) *big.Int {
	if holders, ok := l.balances[token]; ok {
		if bal, ok := holders[holder]; ok {
			return new(big.Int).Set(bal)
		}
	}
	return big.NewInt(0)
}

func (l *Ledger) NativeBalanceOf(holder common.Address) *big.Int {
	if bal, ok := l.native[holder]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (l *Ledger) Allowance(token, owner, spender common.Address) *big.Int {
	if a, ok := l.allowances[allowanceKey{token, owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return big.NewInt(0)
}

// Mint credits a token balance out of thin air. Test and pool setup only.
func (l *Ledger) Mint(token, holder common.Address, amount *big.Int) {
	holders, ok := l.balances[token]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		l.balances[token] = holders
	}
	bal, ok := holders[holder]
	if !ok {
		bal = big.NewInt(0)
		holders[holder] = bal
	}
	bal.Add(bal, amount)
}

func (l *Ledger) MintNative(holder common.Address, amount *big.Int) {
	bal, ok := l.native[holder]
	if !ok {
		bal = big.NewInt(0)
		l.native[holder] = bal
	}
	bal.Add(bal, amount)
}

func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative transfer of %s", token.Hex())
	}
	holders := l.balances[token]
	bal := holders[from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds less than %s of %s", ErrInsufficientBalance, from.Hex(), amount, token.Hex())
	}
	bal.Sub(bal, amount)
	l.Mint(token, to, amount)
	return nil
}

// TransferFrom moves tokens on behalf of spender, consuming allowance
// unless the grant is the max value.
func (l *Ledger) TransferFrom(token, owner, to, spender common.Address, amount *big.Int) error {
	key := allowanceKey{token, owner, spender}
	granted := l.allowances[key]
	if granted == nil || granted.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s -> %s for %s", ErrInsufficientAllowance, owner.Hex(), spender.Hex(), token.Hex())
	}
	if err := l.Transfer(token, owner, to, amount); err != nil {
		return err
	}
	if granted.Cmp(swapcommon.MaxUint256) < 0 {
		granted.Sub(granted, amount)
	}
	return nil
}

// Approve force-sets the allowance, overwriting any prior grant.
func (l *Ledger) Approve(token, owner, spender common.Address, amount *big.Int) {
	l.allowances[allowanceKey{token, owner, spender}] = new(big.Int).Set(amount)
}

func (l *Ledger) TransferNative(from, to common.Address, amount *big.Int) error {
	bal := l.native[from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: native from %s", ErrInsufficientBalance, from.Hex())
	}
	bal.Sub(bal, amount)
	l.MintNative(to, amount)
	return nil
}

// Snapshot deep-copies the whole ledger so a failed plan can unwind every
// effect, matching a transaction revert.
func (l *Ledger) Snapshot() *Ledger {
	snap := NewLedger()
	for token, holders := range l.balances {
		dst := make(map[common.Address]*big.Int, len(holders))
		for holder, bal := range holders {
			dst[holder] = new(big.Int).Set(bal)
		}
		snap.balances[token] = dst
	}
	for holder, bal := range l.native {
		snap.native[holder] = new(big.Int).Set(bal)
	}
	for key, granted := range l.allowances {
		snap.allowances[key] = new(big.Int).Set(granted)
	}
	return snap
}

// Restore replaces the ledger's state with a snapshot's.
func (l *Ledger) Restore(snap *Ledger) {
	l.balances = snap.balances
	l.native = snap.native
	l.allowances = snap.allowances
}
