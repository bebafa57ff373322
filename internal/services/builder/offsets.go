package builder

import "github.com/hxuan190/swap-engine/internal/domain"

// Injection offsets are the byte positions of the amount-in word inside
// each router call shape. The executor overwrites exactly 32 bytes at the
// offset, so planner and executor must agree on these to the byte. Each
// constant is selector (4 bytes) plus the field's word index times 32.
const (
	// swapExactTokensForTokens: amountIn is the first argument.
	offsetV2AmountIn uint32 = 4

	// exactInputSingle with the params struct that embeds a deadline
	// (original SwapRouter): tokenIn, tokenOut, fee, recipient, deadline,
	// amountIn puts the amount in the sixth word.
	offsetV3AmountInWithDeadline uint32 = 4 + 5*32

	// exactInputSingle without the deadline field (SwapRouter02):
	// tokenIn, tokenOut, fee, recipient, amountIn.
	offsetV3AmountInNoDeadline uint32 = 4 + 4*32

	// withdraw(uint256) on the wrapped-native contract.
	offsetWithdrawAmount uint32 = 4
)

// injectOffsetFor is the single lookup both the planner and the offset
// conformance tests consult.
func injectOffsetFor(version domain.VenueVersion, embedsDeadline bool) uint32 {
	if version == domain.VenueV3 {
		if embedsDeadline {
			return offsetV3AmountInWithDeadline
		}
		return offsetV3AmountInNoDeadline
	}
	return offsetV2AmountIn
}
