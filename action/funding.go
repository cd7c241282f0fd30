// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package action

import (
	"math/big"

	"github.com/pkg/errors"
)

type (
	// CreateProject registers a new project in the Application round
	CreateProject struct {
		TokenDecimals     uint8
		TotalAllocation   *big.Int
		AuctionAllocation *big.Int
		MinPrice          *big.Int
		TargetUSD         *big.Int
		AcceptedAssets    []string
		PolicyHash        []byte
	}

	// StartEvaluation freezes the project metadata and opens the evaluation round
	StartEvaluation struct {
		ProjectID uint64
	}

	// BondEvaluation bonds a USD-denominated amount of the native asset on a project
	BondEvaluation struct {
		ProjectID uint64
		USDAmount *big.Int
	}

	// EndEvaluation closes the evaluation round once its window elapsed; the
	// scheduled scan closes it automatically, the action forces an early scan
	EndEvaluation struct {
		ProjectID uint64
	}

	// StartAuction opens the auction rounds after a successful evaluation
	StartAuction struct {
		ProjectID uint64
	}

	// Bid places an auction bid for a contribution-token amount
	Bid struct {
		ProjectID  uint64
		Amount     *big.Int
		Multiplier uint8
		Asset      string
		Tier       InvestorTier
	}

	// EndAuctionClosing closes the auction; Entropy is the protocol-supplied
	// randomness used to draw the effective close height
	EndAuctionClosing struct {
		ProjectID uint64
		Entropy   []byte
	}

	// Contribute buys tokens at the weighted average price during the
	// community and remainder rounds
	Contribute struct {
		ProjectID  uint64
		Amount     *big.Int
		Multiplier uint8
		Asset      string
		Tier       InvestorTier
	}

	// DecideFunding records the issuer's accept/reject decision when the raise
	// landed between the slash and reward thresholds
	DecideFunding struct {
		ProjectID uint64
		Accept    bool
	}

	// StartSettlement opens the settlement round after funding ended
	StartSettlement struct {
		ProjectID uint64
	}

	// SettleEvaluation settles a single evaluation record
	SettleEvaluation struct {
		ProjectID    uint64
		EvaluationID uint64
	}

	// SettleBid settles a single bid record
	SettleBid struct {
		ProjectID uint64
		BidID     uint64
	}

	// SettleContribution settles a single contribution record
	SettleContribution struct {
		ProjectID      uint64
		ContributionID uint64
	}

	// MarkSettled closes the settlement round once every record is gone
	MarkSettled struct {
		ProjectID uint64
	}

	// ClaimVested releases the vested portion of a bonded participation
	ClaimVested struct {
		ProjectID uint64
		ReleaseID uint64
	}
)

// SanityCheck validates the intrinsic integrity of the action
func (act *CreateProject) SanityCheck() error {
	if err := checkPositive(act.TotalAllocation); err != nil {
		return errors.Wrap(err, "total allocation")
	}
	if err := checkPositive(act.AuctionAllocation); err != nil {
		return errors.Wrap(err, "auction allocation")
	}
	if act.AuctionAllocation.Cmp(act.TotalAllocation) > 0 {
		return errors.Wrap(ErrInvalidAmount, "auction allocation exceeds total allocation")
	}
	if err := checkPositive(act.MinPrice); err != nil {
		return errors.Wrap(err, "minimum price")
	}
	if err := checkPositive(act.TargetUSD); err != nil {
		return errors.Wrap(err, "fundraising target")
	}
	if len(act.AcceptedAssets) == 0 {
		return errors.Wrap(ErrMissingField, "no accepted funding asset")
	}
	return nil
}

// SanityCheck validates the intrinsic integrity of the action
func (act *StartEvaluation) SanityCheck() error { return nil }

// SanityCheck validates the intrinsic integrity of the action
func (act *BondEvaluation) SanityCheck() error {
	return checkPositive(act.USDAmount)
}

// SanityCheck validates the intrinsic integrity of the action
func (act *EndEvaluation) SanityCheck() error { return nil }

// SanityCheck validates the intrinsic integrity of the action
func (act *StartAuction) SanityCheck() error { return nil }

// SanityCheck validates the intrinsic integrity of the action
func (act *Bid) SanityCheck() error {
	if err := checkPositive(act.Amount); err != nil {
		return err
	}
	if act.Multiplier == 0 {
		return errors.Wrap(ErrMissingField, "zero multiplier")
	}
	if act.Asset == "" {
		return errors.Wrap(ErrMissingField, "no funding asset")
	}
	return nil
}

// SanityCheck validates the intrinsic integrity of the action
func (act *EndAuctionClosing) SanityCheck() error {
	if len(act.Entropy) == 0 {
		return errors.Wrap(ErrMissingField, "no entropy input")
	}
	return nil
}

// SanityCheck validates the intrinsic integrity of the action
func (act *Contribute) SanityCheck() error {
	if err := checkPositive(act.Amount); err != nil {
		return err
	}
	if act.Multiplier == 0 {
		return errors.Wrap(ErrMissingField, "zero multiplier")
	}
	if act.Asset == "" {
		return errors.Wrap(ErrMissingField, "no funding asset")
	}
	return nil
}

// SanityCheck validates the intrinsic integrity of the action
func (act *DecideFunding) SanityCheck() error { return nil }

// SanityCheck validates the intrinsic integrity of the action
func (act *StartSettlement) SanityCheck() error { return nil }

// SanityCheck validates the intrinsic integrity of the action
func (act *SettleEvaluation) SanityCheck() error { return nil }

// SanityCheck validates the intrinsic integrity of the action
func (act *SettleBid) SanityCheck() error { return nil }

// SanityCheck validates the intrinsic integrity of the action
func (act *SettleContribution) SanityCheck() error { return nil }

// SanityCheck validates the intrinsic integrity of the action
func (act *MarkSettled) SanityCheck() error { return nil }

// SanityCheck validates the intrinsic integrity of the action
func (act *ClaimVested) SanityCheck() error { return nil }
