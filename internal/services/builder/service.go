// Package builder turns a selected quote into the ordered pulls,
// approvals, calls, and flush set the executor runs atomically.
package builder

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	swapcommon "github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/config"
	"github.com/hxuan190/swap-engine/internal/domain"
)

const BUILDER_SERVICE = "builder-service"

var (
	ErrEmptyRoute           = errors.New("quote has no sources")
	ErrInvalidRoute         = errors.New("route data is structurally inconsistent")
	ErrUnknownVenue         = errors.New("no venue configuration for quoted source")
	ErrMissingFeeTier       = errors.New("concentrated-liquidity hop is missing a fee tier")
	ErrNonPositiveHopAmount = errors.New("hop amount is non-positive after buffer")
	ErrInputExhausted       = errors.New("available amount exhausted before all hops")
)

// BuildParams carries everything BuildPlan needs beyond static chain
// configuration. A nil Deadline means "now plus the configured window".
type BuildParams struct {
	Quote        *domain.PriceQuote
	Recipient    common.Address
	MinAmountOut *big.Int
	Deadline     *big.Int
	NativeIn     bool
	NativeOut    bool
}

type Service struct {
	container.BaseDIInstance

	dexCfg *config.DEXConfig
	codec  *callCodec

	now func() time.Time
}

func (svc *Service) ID() string {
	return BUILDER_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.dexCfg = c.GetConfig(config.DEX_CONFIG_KEY).(*config.DEXConfig)
	codec, err := newCallCodec()
	if err != nil {
		return err
	}
	svc.codec = codec
	svc.now = time.Now
	return nil
}

func (svc *Service) Start() error {
	log.Info().
		Str("executor", svc.dexCfg.Executor.Hex()).
		Uint32("interHopBufferBps", svc.dexCfg.InterHopBufferBps).
		Msg("[builderService] started")
	return nil
}

func (svc *Service) Stop() error {
	return nil
}

// ExecutorCalldata encodes a finished plan as the executor entry-point
// transaction data.
func (svc *Service) ExecutorCalldata(plan *domain.ExecutionPlan) ([]byte, error) {
	return svc.codec.ExecutePlanCalldata(plan)
}

// BuildPlan converts the selected quote into an ExecutionPlan. Hop 0 uses
// the amount the planner already knows; every later hop injects the
// executor's live input-token balance at the venue's fixed payload offset,
// so stale hop estimates degrade to on-chain truth instead of failing.
func (svc *Service) BuildPlan(params BuildParams) (*domain.ExecutionPlan, error) {
	q := params.Quote
	if q == nil || len(q.Sources) == 0 {
		return nil, ErrEmptyRoute
	}
	if !q.Validate() {
		return nil, ErrInvalidRoute
	}

	deadline := params.Deadline
	if deadline == nil {
		deadline = big.NewInt(svc.now().Unix() + int64(svc.dexCfg.DeadlineSeconds))
	}
	minOut := params.MinAmountOut
	if minOut == nil {
		minOut = big.NewInt(0)
	}

	plan := &domain.ExecutionPlan{}
	flush := domain.NewFlushSet()
	wrapped := svc.dexCfg.WrappedNative

	if params.NativeIn {
		depositData, err := svc.codec.wrapDeposit()
		if err != nil {
			return nil, err
		}
		plan.Calls = append(plan.Calls, domain.Call{
			Target:  wrapped,
			Value:   new(big.Int).Set(q.AmountIn),
			Payload: depositData,
		})
		flush.Add(wrapped)
	} else {
		plan.Pulls = append(plan.Pulls, domain.TokenPull{
			Token:  q.Path[0],
			Amount: new(big.Int).Set(q.AmountIn),
		})
		flush.Add(q.Path[0])
	}

	available := new(big.Int).Set(q.AmountIn)
	lastHop := len(q.Sources) - 1

	for i, src := range q.Sources {
		venue := svc.dexCfg.VenueByName(src.Venue)
		if venue == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, src.Venue)
		}
		if venue.Version() == domain.VenueV3 && src.FeeTier == 0 {
			return nil, fmt.Errorf("%w: hop %d on %s", ErrMissingFeeTier, i, src.Venue)
		}
		if available.Sign() <= 0 {
			return nil, fmt.Errorf("%w: hop %d", ErrInputExhausted, i)
		}

		hopAmount := new(big.Int).Set(src.AmountIn)
		if available.Cmp(hopAmount) < 0 {
			hopAmount.Set(available)
		}
		if i > 0 && svc.dexCfg.InterHopBufferBps > 0 {
			buffer := new(big.Int).Mul(hopAmount, big.NewInt(int64(svc.dexCfg.InterHopBufferBps)))
			buffer.Div(buffer, swapcommon.BpsDenom)
			hopAmount.Sub(hopAmount, buffer)
		}
		if hopAmount.Sign() <= 0 {
			return nil, fmt.Errorf("%w: hop %d", ErrNonPositiveHopAmount, i)
		}

		tokenIn := q.Path[i]
		tokenOut := q.Path[i+1]

		// Hop 0 gets the tightest possible grant; later hops approve max
		// because their true amount arrives only via injection.
		approvalAmount := new(big.Int).Set(hopAmount)
		if i > 0 {
			approvalAmount = new(big.Int).Set(swapcommon.MaxUint256)
		}
		plan.Approvals = append(plan.Approvals, domain.Approval{
			Token:   tokenIn,
			Spender: venue.RouterAddress(),
			Amount:  approvalAmount,
		})
		flush.Add(tokenIn)

		hopMinOut := svc.hopMinOut(q, minOut, i, lastHop)

		hopRecipient := svc.dexCfg.Executor
		if i == lastHop && !params.NativeOut {
			hopRecipient = params.Recipient
		} else {
			flush.Add(tokenOut)
		}

		var (
			payload []byte
			err     error
		)
		switch venue.Version() {
		case domain.VenueV3:
			payload, err = svc.codec.v3ExactInputSingle(
				venue.RouterEmbedsDeadline, tokenIn, tokenOut, src.FeeTier,
				hopRecipient, deadline, hopAmount, hopMinOut)
		default:
			payload, err = svc.codec.v2Swap(
				hopAmount, hopMinOut, []common.Address{tokenIn, tokenOut},
				hopRecipient, deadline)
		}
		if err != nil {
			return nil, fmt.Errorf("encode hop %d: %w", i, err)
		}

		call := domain.Call{Target: venue.RouterAddress(), Payload: payload}
		if i > 0 {
			call.InjectToken = tokenIn
			call.InjectOffset = injectOffsetFor(venue.Version(), venue.RouterEmbedsDeadline)
		}
		plan.Calls = append(plan.Calls, call)

		// The next hop can consume at most what this one was quoted to
		// produce.
		available.Set(src.AmountOut)
	}

	if params.NativeOut {
		withdrawData, err := svc.codec.wrapWithdraw(big.NewInt(0))
		if err != nil {
			return nil, err
		}
		plan.Calls = append(plan.Calls, domain.Call{
			Target:       wrapped,
			Payload:      withdrawData,
			InjectToken:  wrapped,
			InjectOffset: offsetWithdrawAmount,
		})
		flush.Add(wrapped)
	}

	plan.TokensToFlush = flush.Tokens()
	return plan, nil
}

// hopMinOut scales the overall bound by the hop's share of expected
// output. The final hop carries the exact overall bound so the single-hop
// path loses nothing to rounding.
func (svc *Service) hopMinOut(q *domain.PriceQuote, totalMinOut *big.Int, hop, lastHop int) *big.Int {
	if hop == lastHop {
		return new(big.Int).Set(totalMinOut)
	}
	if q.AmountOut.Sign() <= 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(q.Sources[hop].AmountOut, totalMinOut)
	return scaled.Div(scaled, q.AmountOut)
}
