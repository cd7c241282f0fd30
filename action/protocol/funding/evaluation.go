// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"context"
	"math/big"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action"
	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/action/protocol/account"
	"github.com/polimec/polimec-core/state"
)

// Evaluation is one bonded evaluation. EarlyUSD is the portion bonded while
// the project was still below its evaluation target; it earns the early
// share of the reward pool.
type Evaluation struct {
	ProjectID uint64
	ID        uint64
	Evaluator string
	USDAmount *big.Int
	EarlyUSD  *big.Int
	Bond      *big.Int
	Height    uint64
}

func (p *Protocol) bondEvaluation(ctx context.Context, act *action.BondEvaluation, sm protocol.StateManager) error {
	actCtx := protocol.MustGetActionCtx(ctx)
	blkCtx := protocol.MustGetBlockCtx(ctx)
	details, err := getDetails(sm, act.ProjectID)
	if err != nil {
		return err
	}
	if details.Phase != PhaseEvaluation {
		return errors.Wrapf(ErrIncorrectRound, "project %d is in %s", act.ProjectID, details.Phase)
	}
	if blkCtx.BlockHeight >= details.EvaluationEnd {
		return errors.Wrapf(ErrTooLate, "evaluation ended at height %d", details.EvaluationEnd)
	}
	evaluator := actCtx.Caller.String()
	if evaluator == details.Issuer {
		return errors.Wrap(ErrIssuerParticipation, "issuer bonding on own project")
	}
	if act.USDAmount.Cmp(WholeUSD(p.cfg.MinEvaluationUSD)) < 0 {
		return errors.Wrapf(ErrBelowMinimum, "minimum evaluation is %d USD", p.cfg.MinEvaluationUSD)
	}
	if uint64(details.EvaluationCnt) >= p.cfg.MaxEvaluationsPerProject {
		return errors.Wrapf(ErrTooManyParticipations, "project %d holds %d evaluations", act.ProjectID, details.EvaluationCnt)
	}
	userCnt, err := evaluationCount(sm, act.ProjectID, evaluator)
	if err != nil {
		return err
	}
	if userCnt >= p.cfg.MaxEvaluationsPerUser {
		return errors.Wrapf(ErrTooManyParticipations, "%s holds %d evaluations", evaluator, userCnt)
	}
	nativePrice, err := oraclePrice(p.oracle, p.cfg.NativeAsset)
	if err != nil {
		return err
	}
	bond, err := assetFromUSD(act.USDAmount, nativePrice, p.cfg.NativeDecimals)
	if err != nil {
		return err
	}
	if err := account.Hold(sm, evaluator, p.cfg.NativeAsset, bond); err != nil {
		return err
	}
	meta, err := getMetadata(sm, act.ProjectID)
	if err != nil {
		return err
	}
	// the USD bonded before the target is reached counts as early
	gap := saturatingSub(percentOf(meta.TargetUSD, p.cfg.EvaluationThresholdPercent), details.BondedUSD)
	early := new(big.Int).Set(minBig(act.USDAmount, gap))
	eval := &Evaluation{
		ProjectID: act.ProjectID,
		ID:        details.NextEvaluationID,
		Evaluator: evaluator,
		USDAmount: new(big.Int).Set(act.USDAmount),
		EarlyUSD:  early,
		Bond:      bond,
		Height:    blkCtx.BlockHeight,
	}
	if err := putEvaluation(sm, eval); err != nil {
		return err
	}
	if err := putEvaluationCount(sm, act.ProjectID, evaluator, userCnt+1); err != nil {
		return err
	}
	details.NextEvaluationID++
	details.EvaluationCnt++
	details.OutstandingCount++
	details.BondedUSD = new(big.Int).Add(details.BondedUSD, act.USDAmount)
	details.EarlyBondedUSD = new(big.Int).Add(details.EarlyBondedUSD, early)
	return putDetails(sm, details)
}

// evaluationPassed reports whether the bonded USD reached the evaluation
// target; landing exactly on the target counts as a pass
func evaluationPassed(cfg *Config, meta *ProjectMetadata, details *ProjectDetails) bool {
	return details.BondedUSD.Cmp(percentOf(meta.TargetUSD, cfg.EvaluationThresholdPercent)) >= 0
}

func evaluationCountKey(projectID uint64, evaluator string) []byte {
	h := hash.Hash160b([]byte(evaluator))
	return append(projectKey(_evalIndexPrefix, projectID), h[:]...)
}

func evaluationCount(sr protocol.StateReader, projectID uint64, evaluator string) (uint64, error) {
	var cnt uint64
	err := sr.State(&cnt, protocol.NamespaceOption(Namespace), protocol.KeyOption(evaluationCountKey(projectID, evaluator)))
	switch errors.Cause(err) {
	case nil, state.ErrStateNotExist:
		return cnt, nil
	default:
		return 0, err
	}
}

func putEvaluationCount(sm protocol.StateManager, projectID uint64, evaluator string, cnt uint64) error {
	return sm.PutState(cnt, protocol.NamespaceOption(Namespace), protocol.KeyOption(evaluationCountKey(projectID, evaluator)))
}

func getEvaluation(sr protocol.StateReader, projectID, evalID uint64) (*Evaluation, error) {
	var eval Evaluation
	err := sr.State(&eval, protocol.NamespaceOption(Namespace), protocol.KeyOption(recordKey(_evaluationPrefix, projectID, evalID)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, errors.Wrapf(ErrRecordNotFound, "evaluation %d of project %d", evalID, projectID)
	}
	if err != nil {
		return nil, err
	}
	return &eval, nil
}

func putEvaluation(sm protocol.StateManager, eval *Evaluation) error {
	return sm.PutState(eval, protocol.NamespaceOption(Namespace), protocol.KeyOption(recordKey(_evaluationPrefix, eval.ProjectID, eval.ID)))
}

func delEvaluation(sm protocol.StateManager, projectID, evalID uint64) error {
	return sm.DelState(protocol.NamespaceOption(Namespace), protocol.KeyOption(recordKey(_evaluationPrefix, projectID, evalID)))
}

// listEvaluations returns the live evaluation records of a project
func listEvaluations(sr protocol.StateReader, projectID uint64) ([]*Evaluation, error) {
	iter, err := sr.States(protocol.NamespaceOption(Namespace), protocol.PrefixOption(projectKey(_evaluationPrefix, projectID)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	evals := make([]*Evaluation, 0, iter.Size())
	for i := 0; i < iter.Size(); i++ {
		eval := &Evaluation{}
		if _, err := iter.Next(eval); err != nil {
			return nil, errors.Wrap(err, "failed to deserialize evaluation")
		}
		evals = append(evals, eval)
	}
	return evals, nil
}
