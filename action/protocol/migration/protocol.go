// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package migration coordinates moving settled contribution tokens to the
// project's destination chain: the channel handshake, the readiness checks
// and the per-participant dispatch with correlated confirmations.
package migration

import (
	"context"
	"math/big"
	"sync"

	"github.com/facebookgo/clock"
	"github.com/iotexproject/go-pkgs/hash"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/polimec/polimec-core/action"
	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/action/protocol/funding"
	"github.com/polimec/polimec-core/pkg/log"
	"github.com/polimec/polimec-core/pkg/util/byteutil"
	"github.com/polimec/polimec-core/state"
)

const _protocolID = "migration"

var _migrationMsgMtc = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "polimec_migration_messages",
		Help: "number of cross-chain messages sent",
	},
	[]string{"kind"},
)

func init() {
	prometheus.MustRegister(_migrationMsgMtc)
}

type (
	// ChannelOpenResponse answers a channel handshake request
	ChannelOpenResponse struct {
		CorrelationID hash.Hash256
		Accepted      bool
	}

	// HoldingResponse answers a holding readiness query
	HoldingResponse struct {
		CorrelationID hash.Hash256
		Origin        uint32
		Amount        *big.Int
	}

	// PresenceResponse answers a receiving-component readiness query
	PresenceResponse struct {
		CorrelationID hash.Hash256
		Origin        uint32
		Components    uint32
	}

	// MigrationResponse confirms or rejects one participant dispatch; a zero
	// error code is success
	MigrationResponse struct {
		CorrelationID hash.Hash256
		ErrorCode     uint32
	}

	// Protocol is the migration coordinator
	Protocol struct {
		cfg       Config
		funding   *funding.Protocol
		transport Transport
		clock     clock.Clock
		pending   *pendingTable
		close     chan struct{}
		wg        sync.WaitGroup
	}
)

// NewProtocol creates a migration coordinator atop the funding protocol
func NewProtocol(cfg Config, fp *funding.Protocol, transport Transport, c clock.Clock) (*Protocol, error) {
	if fp == nil {
		return nil, errors.New("no funding protocol")
	}
	if transport == nil {
		return nil, errors.New("no transport")
	}
	if c == nil {
		c = clock.New()
	}
	return &Protocol{
		cfg:       cfg,
		funding:   fp,
		transport: transport,
		clock:     c,
		pending:   newPendingTable(c, cfg.QueryTimeout),
		close:     make(chan struct{}),
	}, nil
}

// Start launches the abandoned-query sweep
func (p *Protocol) Start(_ context.Context) error {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.close:
				return
			case <-p.clock.After(p.cfg.SweepInterval):
				p.pending.sweep()
			}
		}
	}()
	return nil
}

// Stop stops the sweep
func (p *Protocol) Stop(_ context.Context) error {
	close(p.close)
	p.wg.Wait()
	return nil
}

// Register registers the protocol
func (p *Protocol) Register(r *protocol.Registry) error {
	return r.Register(_protocolID, p)
}

// Validate validates a migration action
func (p *Protocol) Validate(_ context.Context, act action.Action) error {
	switch act.(type) {
	case *action.SetDestinationChain, *action.StartMigrationReadinessCheck,
		*action.MigrateParticipant, *action.FinishMigration:
		return act.SanityCheck()
	}
	return nil
}

// Handle handles a migration action
func (p *Protocol) Handle(ctx context.Context, act action.Action, sm protocol.StateManager) (*action.Receipt, error) {
	var (
		name    string
		handler func(context.Context, protocol.StateManager) error
	)
	switch act := act.(type) {
	case *action.SetDestinationChain:
		name, handler = "setDestinationChain", func(ctx context.Context, sm protocol.StateManager) error {
			return p.setDestinationChain(ctx, act, sm)
		}
	case *action.StartMigrationReadinessCheck:
		name, handler = "startReadinessCheck", func(ctx context.Context, sm protocol.StateManager) error {
			return p.startReadinessCheck(ctx, act, sm)
		}
	case *action.MigrateParticipant:
		name, handler = "migrateParticipant", func(ctx context.Context, sm protocol.StateManager) error {
			return p.migrateParticipant(ctx, act, sm)
		}
	case *action.FinishMigration:
		name, handler = "finishMigration", func(ctx context.Context, sm protocol.StateManager) error {
			return p.finishMigration(ctx, act, sm)
		}
	default:
		return nil, nil
	}
	snapshot := sm.Snapshot()
	actCtx := protocol.MustGetActionCtx(ctx)
	blkCtx := protocol.MustGetBlockCtx(ctx)
	if err := handler(ctx, sm); err != nil {
		if !isHandlerError(err) {
			return nil, err
		}
		log.L().Debug("migration action failed", zap.String("type", name), zap.Error(err))
		if revertErr := sm.Revert(snapshot); revertErr != nil {
			return nil, revertErr
		}
		return &action.Receipt{
			Status:      action.FailureReceiptStatus,
			BlockHeight: blkCtx.BlockHeight,
			ActionHash:  actCtx.ActionHash,
		}, nil
	}
	return &action.Receipt{
		Status:      action.SuccessReceiptStatus,
		BlockHeight: blkCtx.BlockHeight,
		ActionHash:  actCtx.ActionHash,
	}, nil
}

// ReadState reads the state of the migration coordinator
func (p *Protocol) ReadState(_ context.Context, sr protocol.StateReader, method []byte, args ...[]byte) ([]byte, error) {
	switch string(method) {
	case "Channel":
		if len(args) < 1 || len(args[0]) != 8 {
			return nil, errors.New("missing or malformed project id argument")
		}
		c, err := getChannel(sr, byteutil.BytesToUint64BigEndian(args[0]))
		if err != nil {
			return nil, err
		}
		return state.Serialize(c)
	default:
		return nil, errors.Errorf("invalid read method %s", string(method))
	}
}

func (p *Protocol) setDestinationChain(ctx context.Context, act *action.SetDestinationChain, sm protocol.StateManager) error {
	actCtx := protocol.MustGetActionCtx(ctx)
	details, err := funding.GetProjectDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if actCtx.Caller.String() != details.Issuer {
		return errors.Wrap(funding.ErrNotIssuer, "only the issuer sets the destination")
	}
	if details.Phase != funding.PhaseSettled {
		return errors.Wrapf(funding.ErrIncorrectRound, "project %d is in %s", act.ProjectID, details.Phase)
	}
	if c, err := getChannel(sm, act.ProjectID); err == nil && c.Outbound != ChannelClosed {
		return errors.Wrapf(ErrChannelState, "outbound channel already %d", c.Outbound)
	}
	corrID := correlationID(actCtx.ActionHash, KindChannelOpen, "")
	channel := &Channel{
		ProjectID:   act.ProjectID,
		Destination: act.Destination,
		Outbound:    ChannelAwaitingAcceptance,
		Inbound:     ChannelClosed,
		OpenCorrID:  corrID[:],
	}
	if err := putChannel(sm, channel); err != nil {
		return err
	}
	details.DestinationChain = act.Destination
	if err := funding.PutProjectDetails(sm, details); err != nil {
		return err
	}
	return p.send(ctx, &Message{
		CorrelationID: corrID,
		Kind:          KindChannelOpen,
		Destination:   act.Destination,
		ProjectID:     act.ProjectID,
	})
}

func (p *Protocol) startReadinessCheck(ctx context.Context, act *action.StartMigrationReadinessCheck, sm protocol.StateManager) error {
	actCtx := protocol.MustGetActionCtx(ctx)
	channel, err := getChannel(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if channel.Outbound != ChannelOpen {
		return errors.Wrapf(ErrChannelState, "outbound channel is %d", channel.Outbound)
	}
	expected, err := expectedIssuance(sm, act.ProjectID)
	if err != nil {
		return err
	}
	holdingID := correlationID(actCtx.ActionHash, KindHoldingQuery, "")
	presenceID := correlationID(actCtx.ActionHash, KindPresenceQuery, "")
	channel.HoldingCorrID = holdingID[:]
	channel.HoldingStatus = CheckPending
	channel.PresenceCorrID = presenceID[:]
	channel.PresenceStatus = CheckPending
	if err := putChannel(sm, channel); err != nil {
		return err
	}
	if err := p.send(ctx, &Message{
		CorrelationID: holdingID,
		Kind:          KindHoldingQuery,
		Destination:   channel.Destination,
		ProjectID:     act.ProjectID,
		Amount:        expected,
	}); err != nil {
		return err
	}
	return p.send(ctx, &Message{
		CorrelationID: presenceID,
		Kind:          KindPresenceQuery,
		Destination:   channel.Destination,
		ProjectID:     act.ProjectID,
	})
}

func (p *Protocol) migrateParticipant(ctx context.Context, act *action.MigrateParticipant, sm protocol.StateManager) error {
	actCtx := protocol.MustGetActionCtx(ctx)
	details, err := funding.GetProjectDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if details.Phase != funding.PhaseMigrationStarted {
		return errors.Wrapf(funding.ErrIncorrectRound, "project %d is in %s", act.ProjectID, details.Phase)
	}
	rec, err := funding.GetMigrationRecord(sm, act.ProjectID, act.Participant)
	if err != nil {
		return err
	}
	switch rec.Status {
	case funding.MigrationConfirmed:
		return errors.Wrapf(funding.ErrRecordNotFound, "participant %s already confirmed", act.Participant)
	case funding.MigrationSent:
		// a swept dispatch may be re-issued, an in-flight one may not
		var corrID hash.Hash256
		copy(corrID[:], rec.CorrelationID)
		if p.pending.inFlight(corrID) {
			return errors.Wrapf(ErrMigrationPending, "participant %s", act.Participant)
		}
	}
	channel, err := getChannel(sm, act.ProjectID)
	if err != nil {
		return err
	}
	corrID := correlationID(actCtx.ActionHash, KindMigration, act.Participant)
	rec.Status = funding.MigrationSent
	rec.CorrelationID = corrID[:]
	if err := funding.PutMigrationRecord(sm, rec); err != nil {
		return err
	}
	return p.send(ctx, &Message{
		CorrelationID: corrID,
		Kind:          KindMigration,
		Destination:   channel.Destination,
		ProjectID:     act.ProjectID,
		Participant:   act.Participant,
		Amount:        rec.Amount,
		VestingBlocks: rec.VestingBlocks,
	})
}

func (p *Protocol) finishMigration(_ context.Context, act *action.FinishMigration, sm protocol.StateManager) error {
	details, err := funding.GetProjectDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	recs, err := funding.ListMigrationRecords(sm, act.ProjectID)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if rec.Status != funding.MigrationConfirmed {
			return errors.Wrapf(ErrUnconfirmed, "participant %s is %d", rec.Participant, rec.Status)
		}
	}
	if err := p.funding.FinishMigration(details); err != nil {
		return err
	}
	return funding.PutProjectDetails(sm, details)
}

// resolvePending pops the in-flight query a response answers, telling a late
// answer to an abandoned query apart from a correlation id never issued
func (p *Protocol) resolvePending(corrID hash.Hash256) (*Message, error) {
	msg, ok := p.pending.resolve(corrID)
	if ok {
		return msg, nil
	}
	if p.pending.Failed(corrID) {
		return nil, errors.Wrapf(ErrCorrelation, "late response to abandoned query %x", corrID)
	}
	return nil, errors.Wrapf(ErrCorrelation, "%x", corrID)
}

// HandleChannelOpenResponse resolves the channel handshake
func (p *Protocol) HandleChannelOpenResponse(_ context.Context, resp *ChannelOpenResponse, sm protocol.StateManager) error {
	msg, err := p.resolvePending(resp.CorrelationID)
	if err != nil {
		return err
	}
	channel, err := getChannel(sm, msg.ProjectID)
	if err != nil {
		return err
	}
	if !hashEqual(channel.OpenCorrID, resp.CorrelationID) {
		return errors.Wrapf(ErrCorrelation, "stale handshake response for project %d", msg.ProjectID)
	}
	if resp.Accepted {
		channel.Outbound = ChannelOpen
		channel.Inbound = ChannelOpen
	} else {
		channel.Outbound = ChannelClosed
	}
	return putChannel(sm, channel)
}

// HandleHoldingResponse resolves the issuance holding check. It passes only
// when the response originates from the destination chain and reports at
// least the expected issuance.
func (p *Protocol) HandleHoldingResponse(_ context.Context, resp *HoldingResponse, sm protocol.StateManager) error {
	msg, err := p.resolvePending(resp.CorrelationID)
	if err != nil {
		return err
	}
	channel, err := getChannel(sm, msg.ProjectID)
	if err != nil {
		return err
	}
	if !hashEqual(channel.HoldingCorrID, resp.CorrelationID) {
		return errors.Wrapf(ErrCorrelation, "stale holding response for project %d", msg.ProjectID)
	}
	if resp.Origin == channel.Destination && resp.Amount != nil && resp.Amount.Cmp(msg.Amount) >= 0 {
		channel.HoldingStatus = CheckPassed
	} else {
		channel.HoldingStatus = CheckFailed
	}
	if err := putChannel(sm, channel); err != nil {
		return err
	}
	return p.startIfReady(sm, channel)
}

// HandlePresenceResponse resolves the receiving-component check. It passes
// only on exactly one matching component.
func (p *Protocol) HandlePresenceResponse(_ context.Context, resp *PresenceResponse, sm protocol.StateManager) error {
	msg, err := p.resolvePending(resp.CorrelationID)
	if err != nil {
		return err
	}
	channel, err := getChannel(sm, msg.ProjectID)
	if err != nil {
		return err
	}
	if !hashEqual(channel.PresenceCorrID, resp.CorrelationID) {
		return errors.Wrapf(ErrCorrelation, "stale presence response for project %d", msg.ProjectID)
	}
	if resp.Origin == channel.Destination && resp.Components == 1 {
		channel.PresenceStatus = CheckPassed
	} else {
		channel.PresenceStatus = CheckFailed
	}
	if err := putChannel(sm, channel); err != nil {
		return err
	}
	return p.startIfReady(sm, channel)
}

// HandleMigrationResponse resolves one participant dispatch
func (p *Protocol) HandleMigrationResponse(_ context.Context, resp *MigrationResponse, sm protocol.StateManager) error {
	msg, err := p.resolvePending(resp.CorrelationID)
	if err != nil {
		return err
	}
	rec, err := funding.GetMigrationRecord(sm, msg.ProjectID, msg.Participant)
	if err != nil {
		return err
	}
	if !hashEqual(rec.CorrelationID, resp.CorrelationID) {
		return errors.Wrapf(ErrCorrelation, "stale migration response for %s", msg.Participant)
	}
	if resp.ErrorCode == 0 {
		rec.Status = funding.MigrationConfirmed
	} else {
		rec.Status = funding.MigrationFailed
		log.L().Warn("participant migration rejected",
			zap.Uint64("projectID", msg.ProjectID),
			zap.String("participant", msg.Participant),
			zap.Uint32("errorCode", resp.ErrorCode))
	}
	return funding.PutMigrationRecord(sm, rec)
}

func (p *Protocol) startIfReady(sm protocol.StateManager, channel *Channel) error {
	if !channel.Ready() {
		return nil
	}
	details, err := funding.GetProjectDetails(sm, channel.ProjectID)
	if err != nil {
		return err
	}
	if details.Phase != funding.PhaseSettled {
		return nil
	}
	if err := p.funding.StartMigration(details); err != nil {
		return err
	}
	return funding.PutProjectDetails(sm, details)
}

func (p *Protocol) send(ctx context.Context, msg *Message) error {
	if err := p.transport.Send(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to send %s message", msg.Kind)
	}
	p.pending.track(msg)
	_migrationMsgMtc.WithLabelValues(msg.Kind.String()).Inc()
	return nil
}

// expectedIssuance sums the contribution tokens every participant takes over
func expectedIssuance(sr protocol.StateReader, projectID uint64) (*big.Int, error) {
	recs, err := funding.ListMigrationRecords(sr, projectID)
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, rec := range recs {
		total.Add(total, rec.Amount)
	}
	return total, nil
}

func correlationID(actionHash hash.Hash256, kind MessageKind, participant string) hash.Hash256 {
	seed := make([]byte, 0, len(actionHash)+1+len(participant))
	seed = append(seed, actionHash[:]...)
	seed = append(seed, byte(kind))
	seed = append(seed, participant...)
	return hash.Hash256b(seed)
}

func hashEqual(stored []byte, h hash.Hash256) bool {
	if len(stored) != len(h) {
		return false
	}
	for i := range stored {
		if stored[i] != h[i] {
			return false
		}
	}
	return true
}

func isHandlerError(err error) bool {
	switch errors.Cause(err) {
	case ErrChannelNotFound, ErrChannelState, ErrNotReady, ErrCorrelation,
		ErrMigrationPending, ErrUnconfirmed,
		funding.ErrProjectNotFound, funding.ErrRecordNotFound,
		funding.ErrIncorrectRound, funding.ErrNotIssuer:
		return true
	}
	return false
}
