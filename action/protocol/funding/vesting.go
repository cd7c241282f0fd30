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

// ReleaseSchedule vests a held native bond linearly between Start and End.
// Higher multipliers bought more allocation per bonded unit and pay for it
// with a proportionally longer vesting run.
type ReleaseSchedule struct {
	ProjectID   uint64
	ID          uint64
	Beneficiary string
	Amount      *big.Int
	Released    *big.Int
	Start       uint64
	End         uint64
}

// Vested returns the amount unlocked at the given height
func (rs *ReleaseSchedule) Vested(height uint64) *big.Int {
	if height >= rs.End {
		return new(big.Int).Set(rs.Amount)
	}
	if height <= rs.Start || rs.End <= rs.Start {
		return big.NewInt(0)
	}
	vested := new(big.Int).Mul(rs.Amount, new(big.Int).SetUint64(height-rs.Start))
	return vested.Div(vested, new(big.Int).SetUint64(rs.End-rs.Start))
}

// Claimable returns the vested amount not yet released
func (rs *ReleaseSchedule) Claimable(height uint64) *big.Int {
	return saturatingSub(rs.Vested(height), rs.Released)
}

// vestingBlocks is the vesting duration bought by a multiplier
func vestingBlocks(cfg *Config, multiplier uint8) uint64 {
	return uint64(multiplier) * cfg.VestingBlocksPerMultiplier
}

func newReleaseSchedule(details *ProjectDetails, beneficiary string, amount *big.Int, start, duration uint64) *ReleaseSchedule {
	rs := &ReleaseSchedule{
		ProjectID:   details.ProjectID,
		ID:          details.NextReleaseID,
		Beneficiary: beneficiary,
		Amount:      new(big.Int).Set(amount),
		Released:    big.NewInt(0),
		Start:       start,
		End:         start + duration,
	}
	details.NextReleaseID++
	return rs
}

func (p *Protocol) claimVested(ctx context.Context, act *action.ClaimVested, sm protocol.StateManager) error {
	actCtx := protocol.MustGetActionCtx(ctx)
	blkCtx := protocol.MustGetBlockCtx(ctx)
	rs, err := getReleaseSchedule(sm, act.ProjectID, act.ReleaseID)
	if err != nil {
		return err
	}
	if actCtx.Caller.String() != rs.Beneficiary {
		return errors.Wrapf(ErrNotBeneficiary, "schedule %d of project %d", act.ReleaseID, act.ProjectID)
	}
	claimable := rs.Claimable(blkCtx.BlockHeight)
	if claimable.Sign() == 0 {
		return errors.Wrapf(ErrTooEarly, "nothing claimable at height %d", blkCtx.BlockHeight)
	}
	if err := account.Release(sm, rs.Beneficiary, p.cfg.NativeAsset, claimable); err != nil {
		return err
	}
	rs.Released = new(big.Int).Add(rs.Released, claimable)
	return putReleaseSchedule(sm, rs)
}

func getReleaseSchedule(sr protocol.StateReader, projectID, releaseID uint64) (*ReleaseSchedule, error) {
	var rs ReleaseSchedule
	err := sr.State(&rs, protocol.NamespaceOption(Namespace), protocol.KeyOption(recordKey(_releasePrefix, projectID, releaseID)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, errors.Wrapf(ErrRecordNotFound, "release schedule %d of project %d", releaseID, projectID)
	}
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

func putReleaseSchedule(sm protocol.StateManager, rs *ReleaseSchedule) error {
	return sm.PutState(rs, protocol.NamespaceOption(Namespace), protocol.KeyOption(recordKey(_releasePrefix, rs.ProjectID, rs.ID)))
}
