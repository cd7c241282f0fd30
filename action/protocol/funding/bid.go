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

// BidStatus is the acceptance state of a bid, assigned at auction close
type BidStatus uint8

// bid statuses
const (
	// BidUnknown marks a bid the auction has not closed over yet
	BidUnknown BidStatus = iota
	// BidAccepted marks a fully accepted bid
	BidAccepted
	// BidPartiallyAccepted marks the overflow bid accepted only up to the cap
	BidPartiallyAccepted
	// BidRejected marks a bid that received no allocation
	BidRejected
)

// Bid is one auction bid fragment, filled at a single bucket rung price
type Bid struct {
	ProjectID  uint64
	ID         uint64
	Bidder     string
	Amount     *big.Int
	Price      *big.Int
	TicketUSD  *big.Int
	Multiplier uint8
	Asset      string
	Bond       *big.Int
	Locked     *big.Int
	Height     uint64
	Status     BidStatus
	Accepted   *big.Int
}

func (p *Protocol) placeBid(ctx context.Context, act *action.Bid, sm protocol.StateManager) error {
	actCtx := protocol.MustGetActionCtx(ctx)
	blkCtx := protocol.MustGetBlockCtx(ctx)
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if details.Phase != PhaseAuctionOpening && details.Phase != PhaseAuctionClosing {
		return errors.Wrapf(ErrIncorrectRound, "project %d is in %s", act.ProjectID, details.Phase)
	}
	if blkCtx.BlockHeight >= details.AuctionClosingEnd {
		return errors.Wrapf(ErrTooLate, "auction ended at height %d", details.AuctionClosingEnd)
	}
	// the declared tier is attested off-chain under the policy the project
	// registered; on chain it only selects the frozen ticket bounds to enforce
	if !act.Tier.Accredited() {
		return errors.Wrapf(ErrNotAccredited, "%s tier cannot bid", act.Tier)
	}
	bidder := actCtx.Caller.String()
	if bidder == details.Issuer {
		return errors.Wrap(ErrIssuerParticipation, "issuer bidding on own project")
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
	bucket, err := getBucket(sm, act.ProjectID)
	if err != nil {
		return err
	}
	frags, err := bucket.Take(act.Amount)
	if err != nil {
		return err
	}
	if err := putBucket(sm, bucket); err != nil {
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
	totalUSD := big.NewInt(0)
	bids := make([]*Bid, 0, len(frags))
	for _, frag := range frags {
		ticketUSD, err := usdFromAsset(frag.Amount, frag.Price, meta.TokenDecimals)
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
		totalUSD.Add(totalUSD, ticketUSD)
		bids = append(bids, &Bid{
			ProjectID:  act.ProjectID,
			ID:         details.NextBidID,
			Bidder:     bidder,
			Amount:     frag.Amount,
			Price:      frag.Price,
			TicketUSD:  ticketUSD,
			Multiplier: act.Multiplier,
			Asset:      act.Asset,
			Bond:       bond,
			Locked:     locked,
			Height:     blkCtx.BlockHeight,
			Status:     BidUnknown,
			Accepted:   big.NewInt(0),
		})
		details.NextBidID++
	}
	if err := checkTicket(totalUSD, ticket); err != nil {
		return err
	}
	for _, b := range bids {
		if err := account.Hold(sm, bidder, p.cfg.NativeAsset, b.Bond); err != nil {
			return err
		}
		if err := account.Hold(sm, bidder, b.Asset, b.Locked); err != nil {
			return err
		}
		if err := putBid(sm, b); err != nil {
			return err
		}
		details.OutstandingCount++
	}
	return putDetails(sm, details)
}

// checkTicket validates a total ticket USD value against the ticket bounds
// frozen on the project
func checkTicket(ticketUSD *big.Int, ticket TicketRange) error {
	if ticketUSD.Cmp(ticket.MinUSD) < 0 {
		return errors.Wrapf(ErrTicketSize, "ticket below %s", ticket.MinUSD)
	}
	if ticket.MaxUSD.Sign() > 0 && ticketUSD.Cmp(ticket.MaxUSD) > 0 {
		return errors.Wrapf(ErrTicketSize, "ticket above %s", ticket.MaxUSD)
	}
	return nil
}

func getBid(sr protocol.StateReader, projectID, bidID uint64) (*Bid, error) {
	var b Bid
	err := sr.State(&b, protocol.NamespaceOption(Namespace), protocol.KeyOption(recordKey(_bidPrefix, projectID, bidID)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, errors.Wrapf(ErrRecordNotFound, "bid %d of project %d", bidID, projectID)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func putBid(sm protocol.StateManager, b *Bid) error {
	return sm.PutState(b, protocol.NamespaceOption(Namespace), protocol.KeyOption(recordKey(_bidPrefix, b.ProjectID, b.ID)))
}

func delBid(sm protocol.StateManager, projectID, bidID uint64) error {
	return sm.DelState(protocol.NamespaceOption(Namespace), protocol.KeyOption(recordKey(_bidPrefix, projectID, bidID)))
}

// listBids returns the live bid records of a project in id order
func listBids(sr protocol.StateReader, projectID uint64) ([]*Bid, error) {
	iter, err := sr.States(protocol.NamespaceOption(Namespace), protocol.PrefixOption(projectKey(_bidPrefix, projectID)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	bids := make([]*Bid, 0, iter.Size())
	for i := 0; i < iter.Size(); i++ {
		b := &Bid{}
		if _, err := iter.Next(b); err != nil {
			return nil, errors.Wrap(err, "failed to deserialize bid")
		}
		bids = append(bids, b)
	}
	return bids, nil
}
