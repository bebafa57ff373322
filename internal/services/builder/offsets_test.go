package builder

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	swapcommon "github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/domain"
)

// Conformance: pack a reference call of every shape and assert the
// declared offset lands exactly on the amount word. Offset drift between
// planner and executor corrupts calldata silently, so these must hold to
// the byte.

func amountWord(amount *big.Int) []byte {
	return common.LeftPadBytes(amount.Bytes(), swapcommon.WordSize)
}

func wordAt(t *testing.T, payload []byte, offset uint32) []byte {
	t.Helper()
	require.LessOrEqual(t, int(offset)+swapcommon.WordSize, len(payload))
	return payload[offset : offset+swapcommon.WordSize]
}

func TestV2SwapOffsetLandsOnAmountIn(t *testing.T) {
	codec, err := newCallCodec()
	require.NoError(t, err)

	amount := big.NewInt(0x1234_5678_9ABC)
	payload, err := codec.v2Swap(
		amount, big.NewInt(1),
		[]common.Address{tokenIn, tokenOut},
		recipient, big.NewInt(1_700_000_000))
	require.NoError(t, err)

	require.Equal(t, amountWord(amount), wordAt(t, payload, offsetV2AmountIn))
}

func TestV3OffsetWithDeadlineLandsOnAmountIn(t *testing.T) {
	codec, err := newCallCodec()
	require.NoError(t, err)

	amount := big.NewInt(0xF00D_CAFE)
	payload, err := codec.v3ExactInputSingle(
		true, tokenIn, tokenOut, 3000, recipient,
		big.NewInt(1_700_000_000), amount, big.NewInt(1))
	require.NoError(t, err)

	require.Equal(t, amountWord(amount), wordAt(t, payload, offsetV3AmountInWithDeadline))
}

func TestV3OffsetWithoutDeadlineLandsOnAmountIn(t *testing.T) {
	codec, err := newCallCodec()
	require.NoError(t, err)

	amount := big.NewInt(0xF00D_CAFE)
	payload, err := codec.v3ExactInputSingle(
		false, tokenIn, tokenOut, 3000, recipient,
		big.NewInt(1_700_000_000), amount, big.NewInt(1))
	require.NoError(t, err)

	require.Equal(t, amountWord(amount), wordAt(t, payload, offsetV3AmountInNoDeadline))
}

func TestWithdrawOffsetLandsOnAmount(t *testing.T) {
	codec, err := newCallCodec()
	require.NoError(t, err)

	amount := big.NewInt(42)
	payload, err := codec.wrapWithdraw(amount)
	require.NoError(t, err)

	require.Equal(t, amountWord(amount), wordAt(t, payload, offsetWithdrawAmount))
}

func TestInjectOffsetTable(t *testing.T) {
	require.Equal(t, offsetV2AmountIn, injectOffsetFor(domain.VenueV2, false))
	require.Equal(t, offsetV2AmountIn, injectOffsetFor(domain.VenueV2, true))
	require.Equal(t, offsetV3AmountInWithDeadline, injectOffsetFor(domain.VenueV3, true))
	require.Equal(t, offsetV3AmountInNoDeadline, injectOffsetFor(domain.VenueV3, false))
}
