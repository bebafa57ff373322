package builder

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	swapcommon "github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/domain"
)

var (
	tokenIn   = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	tokenMid  = common.HexToAddress("0x00000000000000000000000000000000000000A2")
	tokenOut  = common.HexToAddress("0x00000000000000000000000000000000000000A3")
	recipient = common.HexToAddress("0x00000000000000000000000000000000000000D1")

	executorAddr  = common.HexToAddress("0x00000000000000000000000000000000000000E1")
	wrappedNative = common.HexToAddress("0x00000000000000000000000000000000000000E2")
	v2Router      = common.HexToAddress("0x00000000000000000000000000000000000000E3")
	v3Router      = common.HexToAddress("0x00000000000000000000000000000000000000E4")

	testDeadline = big.NewInt(1_700_000_000)
)

func builderDEXConfig() *config.DEXConfig {
	return &config.DEXConfig{
		ChainID:       1,
		Executor:      executorAddr,
		WrappedNative: wrappedNative,
		Venues: []config.VenueConfig{
			{Name: "v2-venue", Family: "v2", Factory: "0x0000000000000000000000000000000000000001", Router: v2Router.Hex(), FeeBps: 30},
			{Name: "v3-venue", Family: "v3", Factory: "0x0000000000000000000000000000000000000002", Router: v3Router.Hex(), FeeTiers: []uint32{3000}, RouterEmbedsDeadline: true},
		},
		DeadlineSeconds: 120,
	}
}

func newBuilder(t *testing.T, cfg *config.DEXConfig) *Service {
	t.Helper()
	codec, err := newCallCodec()
	require.NoError(t, err)
	return &Service{
		dexCfg: cfg,
		codec:  codec,
		now:    func() time.Time { return time.Unix(1_700_000_000, 0) },
	}
}

func singleHopQuote(in, out *big.Int) *domain.PriceQuote {
	return &domain.PriceQuote{
		AmountIn:  in,
		AmountOut: out,
		Path:      []common.Address{tokenIn, tokenOut},
		Pools:     []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000B1")},
		Sources: []domain.PriceSource{
			{Venue: "v2-venue", AmountIn: in, AmountOut: out},
		},
		HopVersions: []domain.VenueVersion{domain.VenueV2},
	}
}

func twoHopQuote(in, midOut, hop2In, out *big.Int) *domain.PriceQuote {
	return &domain.PriceQuote{
		AmountIn:  in,
		AmountOut: out,
		Path:      []common.Address{tokenIn, tokenMid, tokenOut},
		Pools: []common.Address{
			common.HexToAddress("0x00000000000000000000000000000000000000B1"),
			common.HexToAddress("0x00000000000000000000000000000000000000B2"),
		},
		Sources: []domain.PriceSource{
			{Venue: "v2-venue", AmountIn: in, AmountOut: midOut},
			{Venue: "v2-venue", AmountIn: hop2In, AmountOut: out},
		},
		HopVersions: []domain.VenueVersion{domain.VenueV2, domain.VenueV2},
	}
}

func TestBuildPlanSingleHop(t *testing.T) {
	svc := newBuilder(t, builderDEXConfig())

	// Constant-product reference: reserves (1,000,000 ; 2,000,000), fee
	// 0.3%, input 1,000 yields 1,992. At 0.5% slippage the bound is
	// floor(1992 * 9950 / 10000) = 1982.
	amountIn := big.NewInt(1_000)
	amountOut := big.NewInt(1_992)
	minOut := big.NewInt(1_982)

	plan, err := svc.BuildPlan(BuildParams{
		Quote:        singleHopQuote(amountIn, amountOut),
		Recipient:    recipient,
		MinAmountOut: minOut,
		Deadline:     testDeadline,
	})
	require.NoError(t, err)

	require.Len(t, plan.Pulls, 1)
	require.Equal(t, tokenIn, plan.Pulls[0].Token)
	require.Equal(t, amountIn, plan.Pulls[0].Amount)

	require.Len(t, plan.Approvals, 1)
	require.Equal(t, tokenIn, plan.Approvals[0].Token)
	require.Equal(t, v2Router, plan.Approvals[0].Spender)
	require.Equal(t, amountIn, plan.Approvals[0].Amount)

	require.Len(t, plan.Calls, 1)
	call := plan.Calls[0]
	require.Equal(t, v2Router, call.Target)
	require.False(t, call.Injects())
	require.Equal(t, amountWord(amountIn), wordAt(t, call.Payload, offsetV2AmountIn))

	// The single hop carries the overall bound exactly, in the word right
	// after amountIn.
	require.Equal(t, amountWord(minOut), wordAt(t, call.Payload, offsetV2AmountIn+32))

	// Final-hop output goes straight to the recipient, so only the input
	// token is flushed.
	require.Equal(t, []common.Address{tokenIn}, plan.TokensToFlush)
}

func TestBuildPlanIdempotent(t *testing.T) {
	svc := newBuilder(t, builderDEXConfig())
	params := BuildParams{
		Quote:        twoHopQuote(big.NewInt(1_000), big.NewInt(480), big.NewInt(480), big.NewInt(900)),
		Recipient:    recipient,
		MinAmountOut: big.NewInt(890),
		Deadline:     testDeadline,
	}

	first, err := svc.BuildPlan(params)
	require.NoError(t, err)
	second, err := svc.BuildPlan(params)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestBuildPlanTwoHopClampAndInjection(t *testing.T) {
	svc := newBuilder(t, builderDEXConfig())

	// Hop 2 was quoted for 500 in, but hop 1 only produces 480. The plan
	// must consume 480 and patch the true amount in at execution time.
	quote := twoHopQuote(big.NewInt(1_000), big.NewInt(480), big.NewInt(500), big.NewInt(900))
	minOut := big.NewInt(890)

	plan, err := svc.BuildPlan(BuildParams{
		Quote:        quote,
		Recipient:    recipient,
		MinAmountOut: minOut,
		Deadline:     testDeadline,
	})
	require.NoError(t, err)

	require.Len(t, plan.Calls, 2)
	hop2 := plan.Calls[1]
	require.Equal(t, tokenMid, hop2.InjectToken)
	require.True(t, hop2.Injects())
	require.Equal(t, offsetV2AmountIn, hop2.InjectOffset)
	require.Equal(t, amountWord(big.NewInt(480)), wordAt(t, hop2.Payload, offsetV2AmountIn))

	// First hop approves exactly, the injected hop approves max.
	require.Equal(t, big.NewInt(1_000), plan.Approvals[0].Amount)
	require.Equal(t, swapcommon.MaxUint256, plan.Approvals[1].Amount)

	// Intermediate hop's bound is its share of the total expected output:
	// floor(480 * 890 / 900) = 474.
	hop1 := plan.Calls[0]
	require.False(t, hop1.Injects())
	require.Equal(t, amountWord(big.NewInt(474)), wordAt(t, hop1.Payload, offsetV2AmountIn+32))
	require.Equal(t, amountWord(minOut), wordAt(t, hop2.Payload, offsetV2AmountIn+32))

	// Every token that passes through executor custody is flushed.
	require.Equal(t, []common.Address{tokenIn, tokenMid}, plan.TokensToFlush)
}

func TestBuildPlanInterHopBuffer(t *testing.T) {
	cfg := builderDEXConfig()
	cfg.InterHopBufferBps = 100 // 1%
	svc := newBuilder(t, cfg)

	quote := twoHopQuote(big.NewInt(1_000), big.NewInt(500), big.NewInt(500), big.NewInt(900))
	plan, err := svc.BuildPlan(BuildParams{
		Quote:        quote,
		Recipient:    recipient,
		MinAmountOut: big.NewInt(0),
		Deadline:     testDeadline,
	})
	require.NoError(t, err)

	// 500 minus the 1% buffer.
	require.Equal(t, amountWord(big.NewInt(495)), wordAt(t, plan.Calls[1].Payload, offsetV2AmountIn))
}

func TestBuildPlanV3InjectionOffset(t *testing.T) {
	svc := newBuilder(t, builderDEXConfig())

	quote := &domain.PriceQuote{
		AmountIn:  big.NewInt(1_000),
		AmountOut: big.NewInt(900),
		Path:      []common.Address{tokenIn, tokenMid, tokenOut},
		Pools: []common.Address{
			common.HexToAddress("0x00000000000000000000000000000000000000B1"),
			common.HexToAddress("0x00000000000000000000000000000000000000B3"),
		},
		Sources: []domain.PriceSource{
			{Venue: "v2-venue", AmountIn: big.NewInt(1_000), AmountOut: big.NewInt(480)},
			{Venue: "v3-venue", FeeTier: 3000, AmountIn: big.NewInt(480), AmountOut: big.NewInt(900)},
		},
		HopVersions: []domain.VenueVersion{domain.VenueV2, domain.VenueV3},
	}

	plan, err := svc.BuildPlan(BuildParams{
		Quote:        quote,
		Recipient:    recipient,
		MinAmountOut: big.NewInt(0),
		Deadline:     testDeadline,
	})
	require.NoError(t, err)

	hop2 := plan.Calls[1]
	require.Equal(t, v3Router, hop2.Target)
	require.Equal(t, offsetV3AmountInWithDeadline, hop2.InjectOffset)
	require.Equal(t, amountWord(big.NewInt(480)), wordAt(t, hop2.Payload, offsetV3AmountInWithDeadline))
}

func TestBuildPlanNativeIn(t *testing.T) {
	svc := newBuilder(t, builderDEXConfig())

	amountIn := big.NewInt(5_000)
	quote := &domain.PriceQuote{
		AmountIn:  amountIn,
		AmountOut: big.NewInt(4_900),
		Path:      []common.Address{wrappedNative, tokenOut},
		Pools:     []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000B1")},
		Sources: []domain.PriceSource{
			{Venue: "v2-venue", AmountIn: amountIn, AmountOut: big.NewInt(4_900)},
		},
		HopVersions: []domain.VenueVersion{domain.VenueV2},
	}

	plan, err := svc.BuildPlan(BuildParams{
		Quote:        quote,
		Recipient:    recipient,
		MinAmountOut: big.NewInt(0),
		Deadline:     testDeadline,
		NativeIn:     true,
	})
	require.NoError(t, err)

	require.Empty(t, plan.Pulls)
	wrap := plan.Calls[0]
	require.Equal(t, wrappedNative, wrap.Target)
	require.Equal(t, amountIn, wrap.Value)
	require.False(t, wrap.Injects())
	require.Contains(t, plan.TokensToFlush, wrappedNative)
}

func TestBuildPlanNativeOut(t *testing.T) {
	svc := newBuilder(t, builderDEXConfig())

	quote := &domain.PriceQuote{
		AmountIn:  big.NewInt(1_000),
		AmountOut: big.NewInt(990),
		Path:      []common.Address{tokenIn, wrappedNative},
		Pools:     []common.Address{common.HexToAddress("0x00000000000000000000000000000000000000B1")},
		Sources: []domain.PriceSource{
			{Venue: "v2-venue", AmountIn: big.NewInt(1_000), AmountOut: big.NewInt(990)},
		},
		HopVersions: []domain.VenueVersion{domain.VenueV2},
	}

	plan, err := svc.BuildPlan(BuildParams{
		Quote:        quote,
		Recipient:    recipient,
		MinAmountOut: big.NewInt(0),
		Deadline:     testDeadline,
		NativeOut:    true,
	})
	require.NoError(t, err)

	require.Len(t, plan.Calls, 2)
	unwrap := plan.Calls[1]
	require.Equal(t, wrappedNative, unwrap.Target)
	require.Equal(t, wrappedNative, unwrap.InjectToken)
	require.Equal(t, offsetWithdrawAmount, unwrap.InjectOffset)
	require.Contains(t, plan.TokensToFlush, wrappedNative)
}

func TestBuildPlanErrors(t *testing.T) {
	svc := newBuilder(t, builderDEXConfig())
	base := BuildParams{Recipient: recipient, MinAmountOut: big.NewInt(0), Deadline: testDeadline}

	t.Run("empty route", func(t *testing.T) {
		params := base
		params.Quote = &domain.PriceQuote{}
		_, err := svc.BuildPlan(params)
		require.ErrorIs(t, err, ErrEmptyRoute)
	})

	t.Run("unknown venue", func(t *testing.T) {
		params := base
		q := singleHopQuote(big.NewInt(1_000), big.NewInt(900))
		q.Sources[0].Venue = "nowhere"
		params.Quote = q
		_, err := svc.BuildPlan(params)
		require.ErrorIs(t, err, ErrUnknownVenue)
	})

	t.Run("missing fee tier", func(t *testing.T) {
		params := base
		q := singleHopQuote(big.NewInt(1_000), big.NewInt(900))
		q.Sources[0].Venue = "v3-venue"
		q.HopVersions[0] = domain.VenueV3
		params.Quote = q
		_, err := svc.BuildPlan(params)
		require.ErrorIs(t, err, ErrMissingFeeTier)
	})

	t.Run("input exhausted", func(t *testing.T) {
		params := base
		params.Quote = twoHopQuote(big.NewInt(1_000), big.NewInt(0), big.NewInt(500), big.NewInt(900))
		_, err := svc.BuildPlan(params)
		require.ErrorIs(t, err, ErrInputExhausted)
	})

	t.Run("buffer swallows hop", func(t *testing.T) {
		cfg := builderDEXConfig()
		cfg.InterHopBufferBps = 10_000
		svcFull := newBuilder(t, cfg)
		params := base
		params.Quote = twoHopQuote(big.NewInt(1_000), big.NewInt(480), big.NewInt(480), big.NewInt(900))
		_, err := svcFull.BuildPlan(params)
		require.ErrorIs(t, err, ErrNonPositiveHopAmount)
	})
}

func TestExecutorCalldataEncodes(t *testing.T) {
	svc := newBuilder(t, builderDEXConfig())
	plan, err := svc.BuildPlan(BuildParams{
		Quote:        singleHopQuote(big.NewInt(1_000), big.NewInt(1_992)),
		Recipient:    recipient,
		MinAmountOut: big.NewInt(1_982),
		Deadline:     testDeadline,
	})
	require.NoError(t, err)

	data, err := svc.ExecutorCalldata(plan)
	require.NoError(t, err)
	require.Greater(t, len(data), 4)
	require.Equal(t, svc.codec.executor.Methods["executePlan"].ID, data[:4])
}
