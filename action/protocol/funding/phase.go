// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"context"
	"math/big"

	fsm "github.com/iotexproject/go-fsm"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/polimec/polimec-core/action"
	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/pkg/log"
)

const (
	sApplication       fsm.State = "S_APPLICATION"
	sEvaluation        fsm.State = "S_EVALUATION"
	sAuctionInitialize fsm.State = "S_AUCTION_INITIALIZE"
	sAuctionOpening    fsm.State = "S_AUCTION_OPENING"
	sAuctionClosing    fsm.State = "S_AUCTION_CLOSING"
	sPriceCalculated   fsm.State = "S_PRICE_CALCULATED"
	sCommunity         fsm.State = "S_COMMUNITY"
	sRemainder         fsm.State = "S_REMAINDER"
	sDecision          fsm.State = "S_DECISION"
	sFundingSuccessful fsm.State = "S_FUNDING_SUCCESSFUL"
	sFundingFailed     fsm.State = "S_FUNDING_FAILED"
	sSettlementStarted fsm.State = "S_SETTLEMENT_STARTED"
	sSettled           fsm.State = "S_SETTLED"
	sMigrationStarted  fsm.State = "S_MIGRATION_STARTED"
	sMigrationFinished fsm.State = "S_MIGRATION_FINISHED"

	eventEvaluationStarted  fsm.EventType = "E_EVALUATION_STARTED"
	eventAuctionInitialized fsm.EventType = "E_AUCTION_INITIALIZED"
	eventAuctionOpened      fsm.EventType = "E_AUCTION_OPENED"
	eventClosingStarted     fsm.EventType = "E_CLOSING_STARTED"
	eventPriceCalculated    fsm.EventType = "E_PRICE_CALCULATED"
	eventCommunityStarted   fsm.EventType = "E_COMMUNITY_STARTED"
	eventRemainderStarted   fsm.EventType = "E_REMAINDER_STARTED"
	eventDecisionStarted    fsm.EventType = "E_DECISION_STARTED"
	eventFundingSucceeded   fsm.EventType = "E_FUNDING_SUCCEEDED"
	eventFundingFailed      fsm.EventType = "E_FUNDING_FAILED"
	eventSettlementStarted  fsm.EventType = "E_SETTLEMENT_STARTED"
	eventSettled            fsm.EventType = "E_SETTLED"
	eventMigrationStarted   fsm.EventType = "E_MIGRATION_STARTED"
	eventMigrationFinished  fsm.EventType = "E_MIGRATION_FINISHED"

	// backdoorEvent positions the machine onto a project's persisted phase
	// before a transition is validated
	backdoorEvent fsm.EventType = "E_BACKDOOR"
)

var (
	projectStates = []fsm.State{
		sApplication,
		sEvaluation,
		sAuctionInitialize,
		sAuctionOpening,
		sAuctionClosing,
		sPriceCalculated,
		sCommunity,
		sRemainder,
		sDecision,
		sFundingSuccessful,
		sFundingFailed,
		sSettlementStarted,
		sSettled,
		sMigrationStarted,
		sMigrationFinished,
	}

	phaseToState = map[Phase]fsm.State{
		PhaseApplication:       sApplication,
		PhaseEvaluation:        sEvaluation,
		PhaseAuctionInitialize: sAuctionInitialize,
		PhaseAuctionOpening:    sAuctionOpening,
		PhaseAuctionClosing:    sAuctionClosing,
		PhasePriceCalculated:   sPriceCalculated,
		PhaseCommunity:         sCommunity,
		PhaseRemainder:         sRemainder,
		PhaseDecision:          sDecision,
		PhaseFundingSuccessful: sFundingSuccessful,
		PhaseFundingFailed:     sFundingFailed,
		PhaseSettlementStarted: sSettlementStarted,
		PhaseSettled:           sSettled,
		PhaseMigrationStarted:  sMigrationStarted,
		PhaseMigrationFinished: sMigrationFinished,
	}
)

type phaseEvent struct {
	typ fsm.EventType
	dst fsm.State
}

func (e *phaseEvent) Type() fsm.EventType { return e.typ }

// newPhaseFSM builds the legal-transition machine of the project lifecycle.
// The machine itself is stateless across projects: a backdoor transition
// first positions it onto the project's persisted phase, then the lifecycle
// event is handled and an unmatched pair surfaces as an incorrect-round
// error.
func newPhaseFSM() (fsm.FSM, error) {
	to := func(dst fsm.State) func(fsm.Event) (fsm.State, error) {
		return func(fsm.Event) (fsm.State, error) { return dst, nil }
	}
	b := fsm.NewBuilder().
		AddInitialState(sApplication).
		AddStates(projectStates[1:]...).
		AddTransition(sApplication, eventEvaluationStarted, to(sEvaluation), []fsm.State{sEvaluation}).
		AddTransition(sEvaluation, eventAuctionInitialized, to(sAuctionInitialize), []fsm.State{sAuctionInitialize}).
		AddTransition(sEvaluation, eventFundingFailed, to(sFundingFailed), []fsm.State{sFundingFailed}).
		AddTransition(sAuctionInitialize, eventAuctionOpened, to(sAuctionOpening), []fsm.State{sAuctionOpening}).
		AddTransition(sAuctionOpening, eventClosingStarted, to(sAuctionClosing), []fsm.State{sAuctionClosing}).
		AddTransition(sAuctionClosing, eventPriceCalculated, to(sPriceCalculated), []fsm.State{sPriceCalculated}).
		AddTransition(sPriceCalculated, eventCommunityStarted, to(sCommunity), []fsm.State{sCommunity}).
		AddTransition(sCommunity, eventRemainderStarted, to(sRemainder), []fsm.State{sRemainder}).
		AddTransition(sCommunity, eventFundingSucceeded, to(sFundingSuccessful), []fsm.State{sFundingSuccessful}).
		AddTransition(sCommunity, eventFundingFailed, to(sFundingFailed), []fsm.State{sFundingFailed}).
		AddTransition(sCommunity, eventDecisionStarted, to(sDecision), []fsm.State{sDecision}).
		AddTransition(sRemainder, eventDecisionStarted, to(sDecision), []fsm.State{sDecision}).
		AddTransition(sRemainder, eventFundingSucceeded, to(sFundingSuccessful), []fsm.State{sFundingSuccessful}).
		AddTransition(sRemainder, eventFundingFailed, to(sFundingFailed), []fsm.State{sFundingFailed}).
		AddTransition(sDecision, eventFundingSucceeded, to(sFundingSuccessful), []fsm.State{sFundingSuccessful}).
		AddTransition(sDecision, eventFundingFailed, to(sFundingFailed), []fsm.State{sFundingFailed}).
		AddTransition(sFundingSuccessful, eventSettlementStarted, to(sSettlementStarted), []fsm.State{sSettlementStarted}).
		AddTransition(sFundingFailed, eventSettlementStarted, to(sSettlementStarted), []fsm.State{sSettlementStarted}).
		AddTransition(sSettlementStarted, eventSettled, to(sSettled), []fsm.State{sSettled}).
		AddTransition(sSettled, eventMigrationStarted, to(sMigrationStarted), []fsm.State{sMigrationStarted}).
		AddTransition(sMigrationStarted, eventMigrationFinished, to(sMigrationFinished), []fsm.State{sMigrationFinished})
	for _, state := range projectStates {
		b = b.AddTransition(state, backdoorEvent, func(evt fsm.Event) (fsm.State, error) {
			pe, ok := evt.(*phaseEvent)
			if !ok {
				return sApplication, errors.New("not a backdoor event")
			}
			return pe.dst, nil
		}, projectStates)
	}
	return b.Build()
}

// transition validates and applies a lifecycle event on the project
func (p *Protocol) transition(details *ProjectDetails, evt fsm.EventType, want Phase) error {
	if err := p.fsm.Handle(&phaseEvent{typ: backdoorEvent, dst: phaseToState[details.Phase]}); err != nil {
		return errors.Wrapf(err, "failed to position phase machine at %s", details.Phase)
	}
	if err := p.fsm.Handle(&phaseEvent{typ: evt}); err != nil {
		if errors.Cause(err) == fsm.ErrTransitionNotFound {
			return errors.Wrapf(ErrIncorrectRound, "no transition %s from %s", evt, details.Phase)
		}
		return err
	}
	if got := p.fsm.CurrentState(); got != phaseToState[want] {
		return errors.Wrapf(ErrIncorrectRound, "phase machine landed on %s", got)
	}
	details.Phase = want
	return nil
}

func (p *Protocol) createProject(ctx context.Context, act *action.CreateProject, sm protocol.StateManager) error {
	actCtx := protocol.MustGetActionCtx(ctx)
	projectID, err := nextProjectID(sm)
	if err != nil {
		return err
	}
	issuer := actCtx.Caller.String()
	meta := &ProjectMetadata{
		ProjectID:       projectID,
		Issuer:          issuer,
		TokenDecimals:   act.TokenDecimals,
		TotalAllocation: new(big.Int).Set(act.TotalAllocation),
		AuctionAlloc:    new(big.Int).Set(act.AuctionAllocation),
		MinPrice:        new(big.Int).Set(act.MinPrice),
		TargetUSD:       new(big.Int).Set(act.TargetUSD),
		AcceptedAssets:  append([]string(nil), act.AcceptedAssets...),
		PolicyHash:      append([]byte(nil), act.PolicyHash...),
		// the ticket policy in force at registration freezes with the project
		Tickets: map[uint8]TicketRange{
			uint8(action.Retail):        ticketRange(p.cfg.TierPolicy(action.Retail)),
			uint8(action.Professional):  ticketRange(p.cfg.TierPolicy(action.Professional)),
			uint8(action.Institutional): ticketRange(p.cfg.TierPolicy(action.Institutional)),
		},
	}
	for _, asset := range meta.AcceptedAssets {
		if _, ok := p.cfg.AssetDecimals[asset]; !ok {
			return errors.Wrapf(ErrUnsupportedAsset, "asset %s", asset)
		}
	}
	if err := putMetadata(sm, meta); err != nil {
		return err
	}
	details := &ProjectDetails{
		ProjectID:      projectID,
		Issuer:         issuer,
		Phase:          PhaseApplication,
		BondedUSD:      big.NewInt(0),
		EarlyBondedUSD: big.NewInt(0),
		WAP:            big.NewInt(0),
		SoldAuction:    big.NewInt(0),
		SoldTotal:      big.NewInt(0),
		RaisedUSD:      big.NewInt(0),
	}
	return putDetails(sm, details)
}

func (p *Protocol) startEvaluation(ctx context.Context, act *action.StartEvaluation, sm protocol.StateManager) error {
	actCtx := protocol.MustGetActionCtx(ctx)
	blkCtx := protocol.MustGetBlockCtx(ctx)
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if actCtx.Caller.String() != details.Issuer {
		return errors.Wrap(ErrNotIssuer, "only the issuer starts evaluation")
	}
	if details.Frozen {
		return errors.Wrapf(ErrFrozen, "project %d", act.ProjectID)
	}
	if err := p.transition(details, eventEvaluationStarted, PhaseEvaluation); err != nil {
		return err
	}
	details.Frozen = true
	details.EvaluationEnd = blkCtx.BlockHeight + p.cfg.EvaluationDuration
	if err := scheduleUpdate(sm, &p.cfg, details.EvaluationEnd, act.ProjectID); err != nil {
		return err
	}
	return putDetails(sm, details)
}

func (p *Protocol) startAuction(ctx context.Context, act *action.StartAuction, sm protocol.StateManager) error {
	blkCtx := protocol.MustGetBlockCtx(ctx)
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	return p.openAuction(sm, details, blkCtx.BlockHeight)
}

// openAuction moves the project into the opening round and seeds the bucket
func (p *Protocol) openAuction(sm protocol.StateManager, details *ProjectDetails, height uint64) error {
	if err := p.transition(details, eventAuctionOpened, PhaseAuctionOpening); err != nil {
		return err
	}
	meta, err := getMetadata(sm, details.ProjectID)
	if err != nil {
		return err
	}
	if err := putBucket(sm, NewBucket(details.ProjectID, meta.AuctionAlloc, meta.MinPrice, &p.cfg)); err != nil {
		return err
	}
	details.AuctionOpeningEnd = height + p.cfg.OpeningDuration
	details.AuctionClosingEnd = details.AuctionOpeningEnd + p.cfg.ClosingDuration
	if err := scheduleUpdate(sm, &p.cfg, details.AuctionOpeningEnd, details.ProjectID); err != nil {
		return err
	}
	return putDetails(sm, details)
}

func (p *Protocol) endEvaluation(ctx context.Context, act *action.EndEvaluation, sm protocol.StateManager) error {
	blkCtx := protocol.MustGetBlockCtx(ctx)
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if details.Phase != PhaseEvaluation {
		return errors.Wrapf(ErrIncorrectRound, "project %d is in %s", act.ProjectID, details.Phase)
	}
	if blkCtx.BlockHeight < details.EvaluationEnd {
		return errors.Wrapf(ErrTooEarly, "evaluation runs until height %d", details.EvaluationEnd)
	}
	meta, err := getMetadata(sm, act.ProjectID)
	if err != nil {
		return err
	}
	return p.closeEvaluation(sm, meta, details, blkCtx.BlockHeight)
}

// closeEvaluation resolves the evaluation round against the bonded target
func (p *Protocol) closeEvaluation(sm protocol.StateManager, meta *ProjectMetadata, details *ProjectDetails, height uint64) error {
	if evaluationPassed(&p.cfg, meta, details) {
		if err := p.transition(details, eventAuctionInitialized, PhaseAuctionInitialize); err != nil {
			return err
		}
		if err := scheduleUpdate(sm, &p.cfg, height+p.cfg.AuctionInitDuration, details.ProjectID); err != nil {
			return err
		}
	} else {
		if err := p.transition(details, eventFundingFailed, PhaseFundingFailed); err != nil {
			return err
		}
		details.Outcome = OutcomeUnchanged
		details.FundingEnd = height
		if err := scheduleUpdate(sm, &p.cfg, height+p.cfg.SettlementDelay, details.ProjectID); err != nil {
			return err
		}
	}
	return putDetails(sm, details)
}

func (p *Protocol) decideFunding(ctx context.Context, act *action.DecideFunding, sm protocol.StateManager) error {
	actCtx := protocol.MustGetActionCtx(ctx)
	blkCtx := protocol.MustGetBlockCtx(ctx)
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if actCtx.Caller.String() != details.Issuer {
		return errors.Wrap(ErrNotIssuer, "only the issuer decides the outcome")
	}
	if details.Phase != PhaseDecision {
		return errors.Wrapf(ErrIncorrectRound, "project %d is in %s", act.ProjectID, details.Phase)
	}
	if blkCtx.BlockHeight >= details.DecisionDeadline {
		return errors.Wrapf(ErrTooLate, "decision window closed at height %d", details.DecisionDeadline)
	}
	evt, phase := eventFundingSucceeded, PhaseFundingSuccessful
	if !act.Accept {
		evt, phase = eventFundingFailed, PhaseFundingFailed
	}
	if err := p.transition(details, evt, phase); err != nil {
		return err
	}
	details.Successful = act.Accept
	details.Outcome = OutcomeUnchanged
	details.DecisionPending = false
	details.FundingEnd = blkCtx.BlockHeight
	if err := scheduleUpdate(sm, &p.cfg, blkCtx.BlockHeight+p.cfg.SettlementDelay, act.ProjectID); err != nil {
		return err
	}
	return putDetails(sm, details)
}

func (p *Protocol) startSettlement(ctx context.Context, act *action.StartSettlement, sm protocol.StateManager) error {
	blkCtx := protocol.MustGetBlockCtx(ctx)
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if blkCtx.BlockHeight < details.FundingEnd+p.cfg.SettlementDelay {
		return errors.Wrapf(ErrTooEarly, "settlement opens at height %d", details.FundingEnd+p.cfg.SettlementDelay)
	}
	if err := p.transition(details, eventSettlementStarted, PhaseSettlementStarted); err != nil {
		return err
	}
	return putDetails(sm, details)
}

func (p *Protocol) markSettled(_ context.Context, act *action.MarkSettled, sm protocol.StateManager) error {
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if details.OutstandingCount > 0 {
		return errors.Wrapf(ErrSettlementPending, "%d records outstanding", details.OutstandingCount)
	}
	if err := p.transition(details, eventSettled, PhaseSettled); err != nil {
		return err
	}
	return putDetails(sm, details)
}

// StartMigration applies the settled-to-migration transition; the migration
// coordinator calls it once both readiness checks pass
func (p *Protocol) StartMigration(details *ProjectDetails) error {
	return p.transition(details, eventMigrationStarted, PhaseMigrationStarted)
}

// FinishMigration closes the migration round once every participant confirmed
func (p *Protocol) FinishMigration(details *ProjectDetails) error {
	return p.transition(details, eventMigrationFinished, PhaseMigrationFinished)
}

// advanceDue pops every scheduled update due at the block height and applies
// the automatic phase advance it stands for. Stale entries whose project
// moved on through an explicit action are dropped.
func (p *Protocol) advanceDue(ctx context.Context, sm protocol.StateManager) error {
	blkCtx := protocol.MustGetBlockCtx(ctx)
	due, err := dueUpdates(sm, blkCtx.BlockHeight)
	if err != nil {
		return err
	}
	for _, upd := range due {
		if err := p.advanceProject(sm, upd.ProjectID, blkCtx.BlockHeight); err != nil {
			return errors.Wrapf(err, "failed to advance project %d", upd.ProjectID)
		}
	}
	return nil
}

func (p *Protocol) advanceProject(sm protocol.StateManager, projectID, height uint64) error {
	details, err := getDetails(sm, projectID)
	if err != nil {
		return err
	}
	meta, err := getMetadata(sm, projectID)
	if err != nil {
		return err
	}
	switch details.Phase {
	case PhaseEvaluation:
		if height < details.EvaluationEnd {
			return nil
		}
		return p.closeEvaluation(sm, meta, details, height)
	case PhaseAuctionInitialize:
		return p.openAuction(sm, details, height)
	case PhaseAuctionOpening:
		if height < details.AuctionOpeningEnd {
			return nil
		}
		// closing ends through an explicit close carrying the entropy draw
		if err := p.transition(details, eventClosingStarted, PhaseAuctionClosing); err != nil {
			return err
		}
	case PhasePriceCalculated:
		if err := p.transition(details, eventCommunityStarted, PhaseCommunity); err != nil {
			return err
		}
		details.CommunityEnd = height + p.cfg.CommunityDuration
		if err := scheduleUpdate(sm, &p.cfg, details.CommunityEnd, projectID); err != nil {
			return err
		}
	case PhaseCommunity:
		if height < details.CommunityEnd {
			return nil
		}
		if err := p.transition(details, eventRemainderStarted, PhaseRemainder); err != nil {
			return err
		}
		details.RemainderEnd = height + p.cfg.RemainderDuration
		if err := scheduleUpdate(sm, &p.cfg, details.RemainderEnd, projectID); err != nil {
			return err
		}
	case PhaseRemainder:
		if height < details.RemainderEnd {
			return nil
		}
		return p.finishFunding(sm, meta, details, height)
	case PhaseDecision:
		if height < details.DecisionDeadline {
			return nil
		}
		// an absent issuer decision defaults to acceptance
		if err := p.transition(details, eventFundingSucceeded, PhaseFundingSuccessful); err != nil {
			return err
		}
		details.Successful = true
		details.Outcome = OutcomeUnchanged
		details.DecisionPending = false
		details.FundingEnd = height
		if err := scheduleUpdate(sm, &p.cfg, height+p.cfg.SettlementDelay, projectID); err != nil {
			return err
		}
	case PhaseFundingSuccessful, PhaseFundingFailed:
		if height < details.FundingEnd+p.cfg.SettlementDelay {
			return nil
		}
		if err := p.transition(details, eventSettlementStarted, PhaseSettlementStarted); err != nil {
			return err
		}
	default:
		log.L().Debug("stale scheduled update",
			zap.Uint64("projectID", projectID),
			zap.String("phase", details.Phase.String()))
		return nil
	}
	return putDetails(sm, details)
}

// finishFunding resolves the funding outcome against the slash and reward
// thresholds once no more contributions can arrive
func (p *Protocol) finishFunding(sm protocol.StateManager, meta *ProjectMetadata, details *ProjectDetails, height uint64) error {
	ratio := details.FundingRatioPercent(meta)
	switch {
	case ratio < p.cfg.SlashThresholdPercent:
		if err := p.transition(details, eventFundingFailed, PhaseFundingFailed); err != nil {
			return err
		}
		details.Outcome = OutcomeSlashed
		details.FundingEnd = height
		if err := scheduleUpdate(sm, &p.cfg, height+p.cfg.SettlementDelay, details.ProjectID); err != nil {
			return err
		}
	case ratio >= p.cfg.RewardThresholdPercent:
		if err := p.transition(details, eventFundingSucceeded, PhaseFundingSuccessful); err != nil {
			return err
		}
		details.Successful = true
		details.Outcome = OutcomeRewarded
		details.FundingEnd = height
		if err := scheduleUpdate(sm, &p.cfg, height+p.cfg.SettlementDelay, details.ProjectID); err != nil {
			return err
		}
	default:
		if err := p.transition(details, eventDecisionStarted, PhaseDecision); err != nil {
			return err
		}
		details.DecisionPending = true
		details.DecisionDeadline = height + p.cfg.DecisionDuration
		if err := scheduleUpdate(sm, &p.cfg, details.DecisionDeadline, details.ProjectID); err != nil {
			return err
		}
	}
	return putDetails(sm, details)
}
