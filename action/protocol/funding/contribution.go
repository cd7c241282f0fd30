// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"context"
	"math/big"

	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action"
	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/action/protocol/account"
	"github.com/polimec/polimec-core/state"
)

// Contribution is one community or remainder round purchase, priced at the
// auction's weighted average price
type Contribution struct {
	ProjectID   uint64
	ID          uint64
	Contributor string
	Amount      *big.Int
	Price       *big.Int
	TicketUSD   *big.Int
	Multiplier  uint8
	Asset       string
	Bond        *big.Int
	Locked      *big.Int
	Height      uint64
}

func (p *Protocol) contribute(ctx context.Context, act *action.Contribute, sm protocol.StateManager) error {
	actCtx := protocol.MustGetActionCtx(ctx)
	blkCtx := protocol.MustGetBlockCtx(ctx)
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	switch details.Phase {
	case PhaseCommunity:
		if blkCtx.BlockHeight >= details.CommunityEnd {
			return errors.Wrapf(ErrTooLate, "community round ended at height %d", details.CommunityEnd)
		}
	case PhaseRemainder:
		if blkCtx.BlockHeight >= details.RemainderEnd {
			return errors.Wrapf(ErrTooLate, "remainder round ended at height %d", details.RemainderEnd)
		}
	default:
		return errors.Wrapf(ErrIncorrectRound, "project %d is in %s", act.ProjectID, details.Phase)
	}
	contributor := actCtx.Caller.String()
	if contributor == details.Issuer {
		return errors.Wrap(ErrIssuerParticipation, "issuer contributing to own project")
	}
	meta, err := getMetadata(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if !meta.AcceptsAsset(act.Asset) {
		return errors.Wrapf(ErrUnsupportedAsset, "asset %s", act.Asset)
	}
	assetDecimals, ok := p.cfg.AssetDecimals[act.Asset]
	if !ok {
		return errors.Wrapf(ErrUnsupportedAsset, "no decimals for asset %s", act.Asset)
	}
	ticket, ok := meta.Tickets[uint8(act.Tier)]
	if !ok {
		return errors.Wrapf(ErrNotAccredited, "no ticket policy for tier %s", act.Tier)
	}
	if act.Multiplier > ticket.MaxMul {
		return errors.Wrapf(ErrMultiplier, "%d exceeds the %s cap %d", act.Multiplier, act.Tier, ticket.MaxMul)
	}
	remaining := saturatingSub(meta.TotalAllocation, details.SoldTotal)
	if remaining.Sign() == 0 {
		return errors.Wrapf(ErrAllocationExhausted, "project %d sold out", act.ProjectID)
	}
	// a contribution larger than what is left buys out the remainder
	amount := new(big.Int).Set(minBig(act.Amount, remaining))
	ticketUSD, err := usdFromAsset(amount, details.WAP, meta.TokenDecimals)
	if err != nil {
		return err
	}
	if err := checkTicket(ticketUSD, ticket); err != nil {
		return err
	}
	nativePrice, err := oraclePrice(p.oracle, p.cfg.NativeAsset)
	if err != nil {
		return err
	}
	assetPrice, err := oraclePrice(p.oracle, act.Asset)
	if err != nil {
		return err
	}
	bondUSD := new(big.Int).Div(ticketUSD, new(big.Int).SetUint64(uint64(act.Multiplier)))
	bond, err := assetFromUSD(bondUSD, nativePrice, p.cfg.NativeDecimals)
	if err != nil {
		return err
	}
	locked, err := assetFromUSD(ticketUSD, assetPrice, assetDecimals)
	if err != nil {
		return err
	}
	if err := account.Hold(sm, contributor, p.cfg.NativeAsset, bond); err != nil {
		return err
	}
	if err := account.Hold(sm, contributor, act.Asset, locked); err != nil {
		return err
	}
	contribution := &Contribution{
		ProjectID:   act.ProjectID,
		ID:          details.NextContributionID,
		Contributor: contributor,
		Amount:      amount,
		Price:       new(big.Int).Set(details.WAP),
		TicketUSD:   ticketUSD,
		Multiplier:  act.Multiplier,
		Asset:       act.Asset,
		Bond:        bond,
		Locked:      locked,
		Height:      blkCtx.BlockHeight,
	}
	if err := putContribution(sm, contribution); err != nil {
		return err
	}
	details.NextContributionID++
	details.OutstandingCount++
	details.SoldTotal = new(big.Int).Add(details.SoldTotal, amount)
	details.RaisedUSD = new(big.Int).Add(details.RaisedUSD, ticketUSD)
	// a sold-out project skips straight to its funding outcome
	if details.SoldTotal.Cmp(meta.TotalAllocation) >= 0 {
		return p.finishFunding(sm, meta, details, blkCtx.BlockHeight)
	}
	return putDetails(sm, details)
}

func getContribution(sr protocol.StateReader, projectID, contributionID uint64) (*Contribution, error) {
	var c Contribution
	err := sr.State(&c, protocol.NamespaceOption(Namespace), protocol.KeyOption(recordKey(_contributionPrefix, projectID, contributionID)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, errors.Wrapf(ErrRecordNotFound, "contribution %d of project %d", contributionID, projectID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func putContribution(sm protocol.StateManager, c *Contribution) error {
	return sm.PutState(c, protocol.NamespaceOption(Namespace), protocol.KeyOption(recordKey(_contributionPrefix, c.ProjectID, c.ID)))
}

func delContribution(sm protocol.StateManager, projectID, contributionID uint64) error {
	return sm.DelState(protocol.NamespaceOption(Namespace), protocol.KeyOption(recordKey(_contributionPrefix, projectID, contributionID)))
}
