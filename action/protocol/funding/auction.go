// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"context"
	"math/big"
	"sort"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action"
	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/pkg/util/byteutil"
)

// drawCloseHeight maps the entropy seed onto a height in
// [closingStart, closingEnd]. The draw is deterministic in the seed and the
// project id so concurrent auctions close at independent heights.
func drawCloseHeight(entropy []byte, projectID, closingStart, closingEnd uint64) uint64 {
	if closingEnd <= closingStart {
		return closingStart
	}
	seed := make([]byte, 0, len(entropy)+8)
	seed = append(seed, entropy...)
	seed = append(seed, byteutil.Uint64ToBytesBigEndian(projectID)...)
	h := hash.Hash256b(seed)
	span := closingEnd - closingStart + 1
	return closingStart + byteutil.BytesToUint64BigEndian(h[:8])%span
}

func (p *Protocol) endAuctionClosing(ctx context.Context, act *action.EndAuctionClosing, sm protocol.StateManager) error {
	blkCtx := protocol.MustGetBlockCtx(ctx)
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if details.Phase != PhaseAuctionClosing {
		return errors.Wrapf(ErrIncorrectRound, "project %d is in %s", act.ProjectID, details.Phase)
	}
	if blkCtx.BlockHeight < details.AuctionClosingEnd {
		return errors.Wrapf(ErrTooEarly, "closing runs until height %d", details.AuctionClosingEnd)
	}
	meta, err := getMetadata(sm, act.ProjectID)
	if err != nil {
		return err
	}
	closeHeight := drawCloseHeight(act.Entropy, act.ProjectID, details.AuctionOpeningEnd, details.AuctionClosingEnd)
	details.CloseHeight = closeHeight

	bids, err := listBids(sm, act.ProjectID)
	if err != nil {
		return err
	}
	// acceptance order is (height, id) among the bids placed at or before the
	// drawn close height; everything later is rejected outright
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].Height != bids[j].Height {
			return bids[i].Height < bids[j].Height
		}
		return bids[i].ID < bids[j].ID
	})
	var (
		remaining  = new(big.Int).Set(meta.AuctionAlloc)
		soldAmount = big.NewInt(0)
		soldUSD    = big.NewInt(0)
	)
	for _, b := range bids {
		switch {
		case b.Height > closeHeight || remaining.Sign() == 0:
			b.Status = BidRejected
			b.Accepted = big.NewInt(0)
		case b.Amount.Cmp(remaining) <= 0:
			b.Status = BidAccepted
			b.Accepted = new(big.Int).Set(b.Amount)
		default:
			b.Status = BidPartiallyAccepted
			b.Accepted = new(big.Int).Set(remaining)
		}
		if b.Accepted.Sign() > 0 {
			remaining = saturatingSub(remaining, b.Accepted)
			soldAmount.Add(soldAmount, b.Accepted)
			usd, err := usdFromAsset(b.Accepted, b.Price, meta.TokenDecimals)
			if err != nil {
				return err
			}
			soldUSD.Add(soldUSD, usd)
		}
		if err := putBid(sm, b); err != nil {
			return err
		}
	}

	// weighted average price over the accepted fragments, in USD18 per whole
	// token; an empty auction falls back to the minimum price
	wap := new(big.Int).Set(meta.MinPrice)
	if soldAmount.Sign() > 0 {
		wap, err = assetPriceFromTotals(soldUSD, soldAmount, meta.TokenDecimals)
		if err != nil {
			return err
		}
		if wap.Cmp(meta.MinPrice) < 0 {
			wap = new(big.Int).Set(meta.MinPrice)
		}
	}
	details.WAP = wap
	details.SoldAuction = soldAmount
	details.SoldTotal = new(big.Int).Set(soldAmount)

	// funds raised count each fragment at its final price, never above the
	// price the bidder committed to
	raised := big.NewInt(0)
	for _, b := range bids {
		if b.Accepted.Sign() == 0 {
			continue
		}
		usd, err := usdFromAsset(b.Accepted, minBig(b.Price, wap), meta.TokenDecimals)
		if err != nil {
			return err
		}
		raised.Add(raised, usd)
	}
	details.RaisedUSD = new(big.Int).Add(details.RaisedUSD, raised)

	if err := p.transition(details, eventPriceCalculated, PhasePriceCalculated); err != nil {
		return err
	}
	// the community round opens on the next scheduled tick
	if err := scheduleUpdate(sm, &p.cfg, blkCtx.BlockHeight+1, act.ProjectID); err != nil {
		return err
	}
	return putDetails(sm, details)
}

// assetPriceFromTotals converts (total USD, total token amount) into a USD18
// price per whole token
func assetPriceFromTotals(totalUSD, totalAmount *big.Int, decimals uint8) (*big.Int, error) {
	if totalAmount.Sign() <= 0 {
		return nil, errors.Wrap(ErrArithmetic, "zero accepted amount")
	}
	price := new(big.Int).Mul(totalUSD, pow10(decimals))
	return price.Div(price, totalAmount), nil
}
