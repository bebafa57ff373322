package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenPull moves funds from the caller into executor custody.
type TokenPull struct {
	Token  common.Address `json:"token"`
	Amount *big.Int       `json:"amount"`
}

// Approval is a scoped spending grant. The executor force-sets the
// allowance to exactly Amount and revokes every approval it set before
// the transaction ends, so no per-entry revoke flag exists.
type Approval struct {
	Token   common.Address `json:"token"`
	Spender common.Address `json:"spender"`
	Amount  *big.Int       `json:"amount"`
}

// Call is one external call the executor dispatches. When InjectToken is
// non-zero the executor overwrites the 32-byte word at
// Payload[InjectOffset:InjectOffset+32] with its live balance of
// InjectToken immediately before dispatch.
type Call struct {
	Target       common.Address `json:"target"`
	Value        *big.Int       `json:"value"`
	Payload      []byte         `json:"payload"`
	InjectToken  common.Address `json:"injectToken"`
	InjectOffset uint32         `json:"injectOffset"`
}

// Injects reports whether the call carries a dynamic balance injection.
func (c *Call) Injects() bool {
	return c.InjectToken != (common.Address{})
}

// ExecutionPlan is the atomic, single-use input to the executor entry
// point. Plans are built fresh per request and never persisted.
type ExecutionPlan struct {
	Pulls         []TokenPull      `json:"pulls"`
	Approvals     []Approval       `json:"approvals"`
	Calls         []Call           `json:"calls"`
	TokensToFlush []common.Address `json:"tokensToFlush"`
}

// FlushSet is the builder-side accumulator behind TokensToFlush. Order of
// first insertion is preserved so repeated builds serialize identically.
type FlushSet struct {
	seen  map[common.Address]struct{}
	order []common.Address
}

func NewFlushSet() *FlushSet {
	return &FlushSet{seen: make(map[common.Address]struct{}, 4)}
}

func (s *FlushSet) Add(token common.Address) {
	if _, ok := s.seen[token]; ok {
		return
	}
	s.seen[token] = struct{}{}
	s.order = append(s.order, token)
}

func (s *FlushSet) Contains(token common.Address) bool {
	_, ok := s.seen[token]
	return ok
}

func (s *FlushSet) Tokens() []common.Address {
	out := make([]common.Address, len(s.order))
	copy(out, s.order)
	return out
}
