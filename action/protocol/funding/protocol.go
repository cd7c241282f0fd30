// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package funding implements the multi-phase fundraising protocol: the
// evaluation bonding round, the bucketed price-discovery auction, the
// community and remainder rounds, the per-record settlement and the
// scheduled phase advances.
package funding

import (
	"context"

	fsm "github.com/iotexproject/go-fsm"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/polimec/polimec-core/action"
	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/pkg/log"
	"github.com/polimec/polimec-core/state"
)

const (
	// _protocolID is the id this protocol registers under
	_protocolID = "funding"
)

var _fundingActionMtc = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "polimec_funding_actions",
		Help: "number of funding actions handled",
	},
	[]string{"type", "status"},
)

func init() {
	prometheus.MustRegister(_fundingActionMtc)
}

// Protocol is the funding protocol
type Protocol struct {
	cfg    Config
	oracle PriceOracle
	fsm    fsm.FSM
}

// NewProtocol creates a funding protocol from the policy config and a price
// oracle
func NewProtocol(cfg Config, oracle PriceOracle) (*Protocol, error) {
	if oracle == nil {
		return nil, errors.New("no price oracle")
	}
	machine, err := newPhaseFSM()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build the phase machine")
	}
	return &Protocol{cfg: cfg, oracle: oracle, fsm: machine}, nil
}

// ProtocolID returns the id this protocol registers under
func (p *Protocol) ProtocolID() string { return _protocolID }

// Register registers the protocol
func (p *Protocol) Register(r *protocol.Registry) error {
	return r.Register(_protocolID, p)
}

// ForceRegister registers the protocol with overwrite
func (p *Protocol) ForceRegister(r *protocol.Registry) error {
	return r.ForceRegister(_protocolID, p)
}

// Validate validates a funding action
func (p *Protocol) Validate(_ context.Context, act action.Action) error {
	switch act.(type) {
	case *action.CreateProject, *action.StartEvaluation, *action.BondEvaluation,
		*action.EndEvaluation, *action.StartAuction, *action.Bid,
		*action.EndAuctionClosing, *action.Contribute, *action.DecideFunding,
		*action.StartSettlement, *action.SettleEvaluation, *action.SettleBid,
		*action.SettleContribution, *action.MarkSettled, *action.ClaimVested:
		return act.SanityCheck()
	}
	return nil
}

// CreatePreStates runs the scheduled phase advances due at the block height
func (p *Protocol) CreatePreStates(ctx context.Context, sm protocol.StateManager) error {
	return p.advanceDue(ctx, sm)
}

// Handle handles a funding action
func (p *Protocol) Handle(ctx context.Context, act action.Action, sm protocol.StateManager) (*action.Receipt, error) {
	actType, handler := p.dispatch(act)
	if handler == nil {
		// not a funding action
		return nil, nil
	}
	snapshot := sm.Snapshot()
	if err := handler(ctx, sm); err != nil {
		if !isHandlerError(err) {
			return nil, err
		}
		log.L().Debug("funding action failed",
			zap.String("type", actType),
			zap.Error(err))
		if revertErr := sm.Revert(snapshot); revertErr != nil {
			return nil, revertErr
		}
		_fundingActionMtc.WithLabelValues(actType, "failure").Inc()
		return p.settleAction(ctx, action.FailureReceiptStatus), nil
	}
	_fundingActionMtc.WithLabelValues(actType, "success").Inc()
	return p.settleAction(ctx, action.SuccessReceiptStatus), nil
}

func (p *Protocol) dispatch(act action.Action) (string, func(context.Context, protocol.StateManager) error) {
	switch act := act.(type) {
	case *action.CreateProject:
		return "createProject", func(ctx context.Context, sm protocol.StateManager) error {
			return p.createProject(ctx, act, sm)
		}
	case *action.StartEvaluation:
		return "startEvaluation", func(ctx context.Context, sm protocol.StateManager) error {
			return p.startEvaluation(ctx, act, sm)
		}
	case *action.BondEvaluation:
		return "bondEvaluation", func(ctx context.Context, sm protocol.StateManager) error {
			return p.bondEvaluation(ctx, act, sm)
		}
	case *action.EndEvaluation:
		return "endEvaluation", func(ctx context.Context, sm protocol.StateManager) error {
			return p.endEvaluation(ctx, act, sm)
		}
	case *action.StartAuction:
		return "startAuction", func(ctx context.Context, sm protocol.StateManager) error {
			return p.startAuction(ctx, act, sm)
		}
	case *action.Bid:
		return "bid", func(ctx context.Context, sm protocol.StateManager) error {
			return p.placeBid(ctx, act, sm)
		}
	case *action.EndAuctionClosing:
		return "endAuctionClosing", func(ctx context.Context, sm protocol.StateManager) error {
			return p.endAuctionClosing(ctx, act, sm)
		}
	case *action.Contribute:
		return "contribute", func(ctx context.Context, sm protocol.StateManager) error {
			return p.contribute(ctx, act, sm)
		}
	case *action.DecideFunding:
		return "decideFunding", func(ctx context.Context, sm protocol.StateManager) error {
			return p.decideFunding(ctx, act, sm)
		}
	case *action.StartSettlement:
		return "startSettlement", func(ctx context.Context, sm protocol.StateManager) error {
			return p.startSettlement(ctx, act, sm)
		}
	case *action.SettleEvaluation:
		return "settleEvaluation", func(ctx context.Context, sm protocol.StateManager) error {
			return p.settleEvaluation(ctx, act, sm)
		}
	case *action.SettleBid:
		return "settleBid", func(ctx context.Context, sm protocol.StateManager) error {
			return p.settleBid(ctx, act, sm)
		}
	case *action.SettleContribution:
		return "settleContribution", func(ctx context.Context, sm protocol.StateManager) error {
			return p.settleContribution(ctx, act, sm)
		}
	case *action.MarkSettled:
		return "markSettled", func(ctx context.Context, sm protocol.StateManager) error {
			return p.markSettled(ctx, act, sm)
		}
	case *action.ClaimVested:
		return "claimVested", func(ctx context.Context, sm protocol.StateManager) error {
			return p.claimVested(ctx, act, sm)
		}
	}
	return "", nil
}

func (p *Protocol) settleAction(ctx context.Context, status uint64) *action.Receipt {
	actCtx := protocol.MustGetActionCtx(ctx)
	blkCtx := protocol.MustGetBlockCtx(ctx)
	return &action.Receipt{
		Status:      status,
		BlockHeight: blkCtx.BlockHeight,
		ActionHash:  actCtx.ActionHash,
	}
}

// isHandlerError separates expected validation failures, which produce a
// failure receipt, from storage faults, which abort the block
func isHandlerError(err error) bool {
	switch errors.Cause(err) {
	case ErrProjectNotFound, ErrRecordNotFound, ErrBucketNotFound,
		ErrIncorrectRound, ErrTooEarly, ErrTooLate,
		ErrNotIssuer, ErrIssuerParticipation, ErrNotAccredited,
		ErrBelowMinimum, ErrTicketSize, ErrMultiplier, ErrTooManyParticipations,
		ErrUnsupportedAsset, ErrMissingPrice, ErrArithmetic,
		ErrScheduleFull, ErrAllocationExhausted, ErrSettlementPending, ErrFrozen,
		ErrNotBeneficiary,
		state.ErrNotEnoughBalance, state.ErrNotEnoughHeld, state.ErrInvalidAmount:
		return true
	}
	return false
}
