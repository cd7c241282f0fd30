// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package migration

import (
	"context"
	"math/big"
	"testing"

	"github.com/facebookgo/clock"
	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/polimec/polimec-core/action"
	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/action/protocol/funding"
	"github.com/polimec/polimec-core/db"
	"github.com/polimec/polimec-core/state/factory"
	"github.com/polimec/polimec-core/test/identityset"
)

type mockOracle struct{}

func (mockOracle) Price(string) (*big.Int, error) {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), nil
}

type mockTransport struct {
	msgs []*Message
	err  error
}

func (t *mockTransport) Send(_ context.Context, msg *Message) error {
	if t.err != nil {
		return t.err
	}
	t.msgs = append(t.msgs, msg)
	return nil
}

func (t *mockTransport) last() *Message {
	return t.msgs[len(t.msgs)-1]
}

var _hashNonce uint64

func testCtx(caller address.Address) context.Context {
	_hashNonce++
	ctx := protocol.WithBlockCtx(context.Background(), protocol.BlockCtx{BlockHeight: 1000 + _hashNonce})
	return protocol.WithActionCtx(ctx, protocol.ActionCtx{
		Caller:     caller,
		ActionHash: hash.Hash256b([]byte{byte(_hashNonce), byte(_hashNonce >> 8)}),
		Nonce:      _hashNonce,
	})
}

type testEnv struct {
	p         *Protocol
	transport *mockTransport
	mclock    *clock.Mock
	ws        factory.WorkingSet
	issuer    address.Address
}

// newTestEnv positions a settled project with two migration records behind a
// fresh coordinator
func newTestEnv(t *testing.T) *testEnv {
	r := require.New(t)
	fp, err := funding.NewProtocol(funding.DefaultConfig, mockOracle{})
	r.NoError(err)
	transport := &mockTransport{}
	mclock := clock.NewMock()
	p, err := NewProtocol(DefaultConfig, fp, transport, mclock)
	r.NoError(err)

	ws := factory.NewWorkingSet(1, db.NewMemKVStore())
	issuer := identityset.Address(0)
	r.NoError(funding.PutProjectDetails(ws, &funding.ProjectDetails{
		ProjectID:      1,
		Issuer:         issuer.String(),
		Phase:          funding.PhaseSettled,
		BondedUSD:      big.NewInt(0),
		EarlyBondedUSD: big.NewInt(0),
		WAP:            big.NewInt(0),
		SoldAuction:    big.NewInt(0),
		SoldTotal:      big.NewInt(0),
		RaisedUSD:      big.NewInt(0),
	}))
	for i, amount := range []int64{4000, 6000} {
		r.NoError(funding.PutMigrationRecord(ws, &funding.MigrationRecord{
			ProjectID:     1,
			Participant:   identityset.Address(10 + i).String(),
			Amount:        big.NewInt(amount),
			VestingBlocks: 100,
			Status:        funding.MigrationNotStarted,
		}))
	}
	return &testEnv{p: p, transport: transport, mclock: mclock, ws: ws, issuer: issuer}
}

func (e *testEnv) handle(t *testing.T, caller address.Address, act action.Action) *action.Receipt {
	receipt, err := e.p.Handle(testCtx(caller), act, e.ws)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	return receipt
}

func (e *testEnv) handleOK(t *testing.T, caller address.Address, act action.Action) {
	require.Equal(t, action.SuccessReceiptStatus, e.handle(t, caller, act).Status)
}

func (e *testEnv) handleFail(t *testing.T, caller address.Address, act action.Action) {
	require.Equal(t, action.FailureReceiptStatus, e.handle(t, caller, act).Status)
}

// openChannel walks the handshake through acceptance
func (e *testEnv) openChannel(t *testing.T) {
	e.handleOK(t, e.issuer, &action.SetDestinationChain{ProjectID: 1, Destination: 7})
	require.NoError(t, e.p.HandleChannelOpenResponse(context.Background(), &ChannelOpenResponse{
		CorrelationID: e.transport.last().CorrelationID,
		Accepted:      true,
	}, e.ws))
}

// passChecks walks both readiness queries through positive answers
func (e *testEnv) passChecks(t *testing.T) {
	e.handleOK(t, e.issuer, &action.StartMigrationReadinessCheck{ProjectID: 1})
	holding := e.transport.msgs[len(e.transport.msgs)-2]
	presence := e.transport.last()
	require.NoError(t, e.p.HandleHoldingResponse(context.Background(), &HoldingResponse{
		CorrelationID: holding.CorrelationID,
		Origin:        7,
		Amount:        big.NewInt(10000),
	}, e.ws))
	require.NoError(t, e.p.HandlePresenceResponse(context.Background(), &PresenceResponse{
		CorrelationID: presence.CorrelationID,
		Origin:        7,
		Components:    1,
	}, e.ws))
}

func TestSetDestinationChain(t *testing.T) {
	r := require.New(t)
	e := newTestEnv(t)

	// only the issuer opens the channel
	e.handleFail(t, identityset.Address(5), &action.SetDestinationChain{ProjectID: 1, Destination: 7})

	e.handleOK(t, e.issuer, &action.SetDestinationChain{ProjectID: 1, Destination: 7})
	c, err := getChannel(e.ws, 1)
	r.NoError(err)
	r.Equal(ChannelAwaitingAcceptance, c.Outbound)
	r.Equal(ChannelClosed, c.Inbound)
	r.Equal(KindChannelOpen, e.transport.last().Kind)
	r.Equal(uint32(7), e.transport.last().Destination)

	details, err := funding.GetProjectDetails(e.ws, 1)
	r.NoError(err)
	r.Equal(uint32(7), details.DestinationChain)

	// a pending handshake cannot be restarted
	e.handleFail(t, e.issuer, &action.SetDestinationChain{ProjectID: 1, Destination: 8})
}

func TestChannelHandshake(t *testing.T) {
	r := require.New(t)

	t.Run("accepted", func(t *testing.T) {
		e := newTestEnv(t)
		e.openChannel(t)
		c, err := getChannel(e.ws, 1)
		r.NoError(err)
		r.Equal(ChannelOpen, c.Outbound)
		r.Equal(ChannelOpen, c.Inbound)
	})

	t.Run("rejected", func(t *testing.T) {
		e := newTestEnv(t)
		e.handleOK(t, e.issuer, &action.SetDestinationChain{ProjectID: 1, Destination: 7})
		r.NoError(e.p.HandleChannelOpenResponse(context.Background(), &ChannelOpenResponse{
			CorrelationID: e.transport.last().CorrelationID,
			Accepted:      false,
		}, e.ws))
		c, err := getChannel(e.ws, 1)
		r.NoError(err)
		r.Equal(ChannelClosed, c.Outbound)
	})

	t.Run("unknown correlation id", func(t *testing.T) {
		e := newTestEnv(t)
		err := e.p.HandleChannelOpenResponse(context.Background(), &ChannelOpenResponse{
			CorrelationID: hash.Hash256b([]byte("bogus")),
			Accepted:      true,
		}, e.ws)
		r.Equal(ErrCorrelation, errors.Cause(err))
	})
}

func TestReadinessChecks(t *testing.T) {
	r := require.New(t)

	t.Run("requires an open channel", func(t *testing.T) {
		e := newTestEnv(t)
		e.handleFail(t, e.issuer, &action.StartMigrationReadinessCheck{ProjectID: 1})
	})

	t.Run("queries carry the expected issuance", func(t *testing.T) {
		e := newTestEnv(t)
		e.openChannel(t)
		e.handleOK(t, e.issuer, &action.StartMigrationReadinessCheck{ProjectID: 1})
		holding := e.transport.msgs[len(e.transport.msgs)-2]
		r.Equal(KindHoldingQuery, holding.Kind)
		r.Equal(big.NewInt(10000), holding.Amount)
		r.Equal(KindPresenceQuery, e.transport.last().Kind)
		c, err := getChannel(e.ws, 1)
		r.NoError(err)
		r.Equal(CheckPending, c.HoldingStatus)
		r.Equal(CheckPending, c.PresenceStatus)
	})

	t.Run("insufficient holding fails the check", func(t *testing.T) {
		e := newTestEnv(t)
		e.openChannel(t)
		e.handleOK(t, e.issuer, &action.StartMigrationReadinessCheck{ProjectID: 1})
		holding := e.transport.msgs[len(e.transport.msgs)-2]
		r.NoError(e.p.HandleHoldingResponse(context.Background(), &HoldingResponse{
			CorrelationID: holding.CorrelationID,
			Origin:        7,
			Amount:        big.NewInt(9999),
		}, e.ws))
		c, err := getChannel(e.ws, 1)
		r.NoError(err)
		r.Equal(CheckFailed, c.HoldingStatus)
	})

	t.Run("foreign origin fails the check", func(t *testing.T) {
		e := newTestEnv(t)
		e.openChannel(t)
		e.handleOK(t, e.issuer, &action.StartMigrationReadinessCheck{ProjectID: 1})
		r.NoError(e.p.HandlePresenceResponse(context.Background(), &PresenceResponse{
			CorrelationID: e.transport.last().CorrelationID,
			Origin:        9,
			Components:    1,
		}, e.ws))
		c, err := getChannel(e.ws, 1)
		r.NoError(err)
		r.Equal(CheckFailed, c.PresenceStatus)
	})

	t.Run("two components fail the check", func(t *testing.T) {
		e := newTestEnv(t)
		e.openChannel(t)
		e.handleOK(t, e.issuer, &action.StartMigrationReadinessCheck{ProjectID: 1})
		r.NoError(e.p.HandlePresenceResponse(context.Background(), &PresenceResponse{
			CorrelationID: e.transport.last().CorrelationID,
			Origin:        7,
			Components:    2,
		}, e.ws))
		c, err := getChannel(e.ws, 1)
		r.NoError(err)
		r.Equal(CheckFailed, c.PresenceStatus)
	})

	t.Run("both passing starts the migration", func(t *testing.T) {
		e := newTestEnv(t)
		e.openChannel(t)
		e.passChecks(t)
		details, err := funding.GetProjectDetails(e.ws, 1)
		r.NoError(err)
		r.Equal(funding.PhaseMigrationStarted, details.Phase)
	})
}

func TestMigrateParticipant(t *testing.T) {
	r := require.New(t)
	participant := identityset.Address(10).String()

	t.Run("requires the migration round", func(t *testing.T) {
		e := newTestEnv(t)
		e.handleFail(t, e.issuer, &action.MigrateParticipant{ProjectID: 1, Participant: participant})
	})

	t.Run("dispatch and confirmation", func(t *testing.T) {
		e := newTestEnv(t)
		e.openChannel(t)
		e.passChecks(t)
		e.handleOK(t, e.issuer, &action.MigrateParticipant{ProjectID: 1, Participant: participant})

		msg := e.transport.last()
		r.Equal(KindMigration, msg.Kind)
		r.Equal(big.NewInt(4000), msg.Amount)
		r.Equal(uint64(100), msg.VestingBlocks)
		rec, err := funding.GetMigrationRecord(e.ws, 1, participant)
		r.NoError(err)
		r.Equal(funding.MigrationSent, rec.Status)

		// a second dispatch is blocked while the first is in flight
		e.handleFail(t, e.issuer, &action.MigrateParticipant{ProjectID: 1, Participant: participant})

		r.NoError(e.p.HandleMigrationResponse(context.Background(), &MigrationResponse{
			CorrelationID: msg.CorrelationID,
		}, e.ws))
		rec, err = funding.GetMigrationRecord(e.ws, 1, participant)
		r.NoError(err)
		r.Equal(funding.MigrationConfirmed, rec.Status)

		// a confirmed participant cannot migrate again
		e.handleFail(t, e.issuer, &action.MigrateParticipant{ProjectID: 1, Participant: participant})
	})

	t.Run("rejection marks the record failed", func(t *testing.T) {
		e := newTestEnv(t)
		e.openChannel(t)
		e.passChecks(t)
		e.handleOK(t, e.issuer, &action.MigrateParticipant{ProjectID: 1, Participant: participant})
		r.NoError(e.p.HandleMigrationResponse(context.Background(), &MigrationResponse{
			CorrelationID: e.transport.last().CorrelationID,
			ErrorCode:     3,
		}, e.ws))
		rec, err := funding.GetMigrationRecord(e.ws, 1, participant)
		r.NoError(err)
		r.Equal(funding.MigrationFailed, rec.Status)
	})

	t.Run("an abandoned dispatch may be re-issued", func(t *testing.T) {
		e := newTestEnv(t)
		e.openChannel(t)
		e.passChecks(t)
		e.handleOK(t, e.issuer, &action.MigrateParticipant{ProjectID: 1, Participant: participant})
		first := e.transport.last().CorrelationID

		e.mclock.Add(DefaultConfig.QueryTimeout * 2)
		abandoned := e.p.pending.sweep()
		r.NotEmpty(abandoned)
		r.True(e.p.pending.Failed(first))

		// a response to the swept query arriving late is refused outright
		err := e.p.HandleMigrationResponse(context.Background(), &MigrationResponse{
			CorrelationID: first,
		}, e.ws)
		r.Equal(ErrCorrelation, errors.Cause(err))

		e.handleOK(t, e.issuer, &action.MigrateParticipant{ProjectID: 1, Participant: participant})
		r.NotEqual(first, e.transport.last().CorrelationID)
	})
}

func TestFinishMigration(t *testing.T) {
	r := require.New(t)
	e := newTestEnv(t)
	e.openChannel(t)
	e.passChecks(t)

	// one record still unconfirmed
	e.handleOK(t, e.issuer, &action.MigrateParticipant{ProjectID: 1, Participant: identityset.Address(10).String()})
	r.NoError(e.p.HandleMigrationResponse(context.Background(), &MigrationResponse{
		CorrelationID: e.transport.last().CorrelationID,
	}, e.ws))
	e.handleFail(t, e.issuer, &action.FinishMigration{ProjectID: 1})

	e.handleOK(t, e.issuer, &action.MigrateParticipant{ProjectID: 1, Participant: identityset.Address(11).String()})
	r.NoError(e.p.HandleMigrationResponse(context.Background(), &MigrationResponse{
		CorrelationID: e.transport.last().CorrelationID,
	}, e.ws))
	e.handleOK(t, e.issuer, &action.FinishMigration{ProjectID: 1})

	details, err := funding.GetProjectDetails(e.ws, 1)
	r.NoError(err)
	r.Equal(funding.PhaseMigrationFinished, details.Phase)
}

func TestPendingTableSweep(t *testing.T) {
	r := require.New(t)
	mclock := clock.NewMock()
	table := newPendingTable(mclock, DefaultConfig.QueryTimeout)
	corrID := hash.Hash256b([]byte("q"))
	table.track(&Message{CorrelationID: corrID, Kind: KindHoldingQuery})
	r.True(table.inFlight(corrID))

	// nothing expires before the deadline
	r.Empty(table.sweep())
	r.True(table.inFlight(corrID))

	mclock.Add(DefaultConfig.QueryTimeout)
	r.Len(table.sweep(), 1)
	r.False(table.inFlight(corrID))
	r.True(table.Failed(corrID))

	// a resolved query never fails
	table.track(&Message{CorrelationID: corrID, Kind: KindHoldingQuery})
	r.False(table.Failed(corrID))
	_, ok := table.resolve(corrID)
	r.True(ok)
	mclock.Add(DefaultConfig.QueryTimeout)
	r.Empty(table.sweep())
}
