// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"context"
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action"
	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/action/protocol/account"
)

// ContributionTokenAsset is the asset name of a project's contribution token
func ContributionTokenAsset(projectID uint64) string {
	return fmt.Sprintf("CT-%d", projectID)
}

// scaleBy returns part × num / den, rounding down
func scaleBy(part, num, den *big.Int) *big.Int {
	if den.Sign() == 0 {
		return big.NewInt(0)
	}
	v := new(big.Int).Mul(part, num)
	return v.Div(v, den)
}

func (p *Protocol) settleEvaluation(_ context.Context, act *action.SettleEvaluation, sm protocol.StateManager) error {
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if details.Phase != PhaseSettlementStarted {
		return errors.Wrapf(ErrIncorrectRound, "project %d is in %s", act.ProjectID, details.Phase)
	}
	eval, err := getEvaluation(sm, act.ProjectID, act.EvaluationID)
	if err != nil {
		// settling twice lands here
		return err
	}
	switch details.Outcome {
	case OutcomeSlashed:
		slash := percentOf(eval.Bond, p.cfg.SlashPercent)
		if err := account.TransferOnHold(sm, eval.Evaluator, p.cfg.Treasury, p.cfg.NativeAsset, slash); err != nil {
			return err
		}
		if err := account.Release(sm, eval.Evaluator, p.cfg.NativeAsset, saturatingSub(eval.Bond, slash)); err != nil {
			return err
		}
	case OutcomeRewarded:
		meta, err := getMetadata(sm, act.ProjectID)
		if err != nil {
			return err
		}
		reward := p.evaluatorReward(meta, details, eval)
		if reward.Sign() > 0 {
			if err := account.Mint(sm, eval.Evaluator, ContributionTokenAsset(act.ProjectID), reward); err != nil {
				return err
			}
			if err := appendMigration(sm, act.ProjectID, eval.Evaluator, reward, p.cfg.VestingBlocksPerMultiplier); err != nil {
				return err
			}
		}
		if err := account.Release(sm, eval.Evaluator, p.cfg.NativeAsset, eval.Bond); err != nil {
			return err
		}
	default:
		if err := account.Release(sm, eval.Evaluator, p.cfg.NativeAsset, eval.Bond); err != nil {
			return err
		}
	}
	if err := delEvaluation(sm, act.ProjectID, act.EvaluationID); err != nil {
		return err
	}
	details.OutstandingCount--
	details.SettledCount++
	return putDetails(sm, details)
}

// evaluatorReward splits the reward pool between the early and the normal
// buckets, each weighted by the evaluator's USD share
func (p *Protocol) evaluatorReward(meta *ProjectMetadata, details *ProjectDetails, eval *Evaluation) *big.Int {
	pool := percentOf(meta.TotalAllocation, p.cfg.RewardFeePercent)
	earlyPool := percentOf(pool, p.cfg.EarlyEvaluatorPoolPercent)
	normalPool := saturatingSub(pool, earlyPool)
	reward := scaleBy(earlyPool, eval.EarlyUSD, details.EarlyBondedUSD)
	return reward.Add(reward, scaleBy(normalPool, eval.USDAmount, details.BondedUSD))
}

func (p *Protocol) settleBid(ctx context.Context, act *action.SettleBid, sm protocol.StateManager) error {
	blkCtx := protocol.MustGetBlockCtx(ctx)
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if details.Phase != PhaseSettlementStarted {
		return errors.Wrapf(ErrIncorrectRound, "project %d is in %s", act.ProjectID, details.Phase)
	}
	bid, err := getBid(sm, act.ProjectID, act.BidID)
	if err != nil {
		return err
	}
	meta, err := getMetadata(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if !details.Successful || bid.Accepted.Sign() == 0 {
		if err := account.Release(sm, bid.Bidder, p.cfg.NativeAsset, bid.Bond); err != nil {
			return err
		}
		if err := account.Release(sm, bid.Bidder, bid.Asset, bid.Locked); err != nil {
			return err
		}
	} else {
		finalPrice := minBig(bid.Price, details.WAP)
		finalUSD, err := usdFromAsset(bid.Accepted, finalPrice, meta.TokenDecimals)
		if err != nil {
			return err
		}
		if err := p.settleParticipation(sm, details, bid.Bidder, bid.Asset,
			bid.Bond, bid.Locked, bid.TicketUSD, finalUSD, bid.Accepted, bid.Multiplier, blkCtx.BlockHeight); err != nil {
			return err
		}
	}
	if err := delBid(sm, act.ProjectID, act.BidID); err != nil {
		return err
	}
	details.OutstandingCount--
	details.SettledCount++
	return putDetails(sm, details)
}

func (p *Protocol) settleContribution(ctx context.Context, act *action.SettleContribution, sm protocol.StateManager) error {
	blkCtx := protocol.MustGetBlockCtx(ctx)
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if details.Phase != PhaseSettlementStarted {
		return errors.Wrapf(ErrIncorrectRound, "project %d is in %s", act.ProjectID, details.Phase)
	}
	c, err := getContribution(sm, act.ProjectID, act.ContributionID)
	if err != nil {
		return err
	}
	if !details.Successful {
		if err := account.Release(sm, c.Contributor, p.cfg.NativeAsset, c.Bond); err != nil {
			return err
		}
		if err := account.Release(sm, c.Contributor, c.Asset, c.Locked); err != nil {
			return err
		}
	} else {
		// contributions settle at their full recorded terms
		if err := p.settleParticipation(sm, details, c.Contributor, c.Asset,
			c.Bond, c.Locked, c.TicketUSD, c.TicketUSD, c.Amount, c.Multiplier, blkCtx.BlockHeight); err != nil {
			return err
		}
	}
	if err := delContribution(sm, act.ProjectID, act.ContributionID); err != nil {
		return err
	}
	details.OutstandingCount--
	details.SettledCount++
	return putDetails(sm, details)
}

// settleParticipation finalizes one accepted bid or contribution of a funded
// project: the funding-asset lock is consumed pro rata to the final USD value
// and forwarded to the issuer, the excess bond and lock are refunded, the
// remaining bond vests, and the contribution tokens are minted and queued
// for migration.
func (p *Protocol) settleParticipation(sm protocol.StateManager, details *ProjectDetails,
	participant, asset string, bond, locked, ticketUSD, finalUSD, mintAmount *big.Int,
	multiplier uint8, height uint64) error {
	consumedLock := scaleBy(locked, finalUSD, ticketUSD)
	if err := account.TransferOnHold(sm, participant, details.Issuer, asset, consumedLock); err != nil {
		return err
	}
	if err := account.Release(sm, participant, asset, saturatingSub(locked, consumedLock)); err != nil {
		return err
	}
	dueBond := scaleBy(bond, finalUSD, ticketUSD)
	if err := account.Release(sm, participant, p.cfg.NativeAsset, saturatingSub(bond, dueBond)); err != nil {
		return err
	}
	vesting := vestingBlocks(&p.cfg, multiplier)
	if dueBond.Sign() > 0 {
		if err := putReleaseSchedule(sm, newReleaseSchedule(details, participant, dueBond, height, vesting)); err != nil {
			return err
		}
	}
	if err := account.Mint(sm, participant, ContributionTokenAsset(details.ProjectID), mintAmount); err != nil {
		return err
	}
	return appendMigration(sm, details.ProjectID, participant, mintAmount, vesting)
}
