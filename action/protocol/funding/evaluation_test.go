// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polimec/polimec-core/action"
	"github.com/polimec/polimec-core/test/identityset"
)

func TestBondEvaluationGuards(t *testing.T) {
	r := require.New(t)
	p, ws := newTestProtocol(t)
	issuer := identityset.Address(24)
	evaluator := identityset.Address(25)
	projectID := createTestProject(t, p, ws, issuer)
	mintNative(t, ws, evaluator, tokens(1000000))
	mintNative(t, ws, issuer, tokens(1000000))

	// bonding is exclusive to the evaluation round
	requireFailure(t, handle(t, p, ws, 2, evaluator, &action.BondEvaluation{ProjectID: projectID, USDAmount: usd(1000)}))

	requireSuccess(t, handle(t, p, ws, 2, issuer, &action.StartEvaluation{ProjectID: projectID}))

	// below the participation floor
	requireFailure(t, handle(t, p, ws, 3, evaluator, &action.BondEvaluation{ProjectID: projectID, USDAmount: usd(99)}))
	// the issuer cannot evaluate its own project
	requireFailure(t, handle(t, p, ws, 3, issuer, &action.BondEvaluation{ProjectID: projectID, USDAmount: usd(1000)}))
	// unknown project
	requireFailure(t, handle(t, p, ws, 3, evaluator, &action.BondEvaluation{ProjectID: 99, USDAmount: usd(1000)}))

	for i := uint64(0); i < p.cfg.MaxEvaluationsPerUser; i++ {
		requireSuccess(t, handle(t, p, ws, 4+i, evaluator, &action.BondEvaluation{ProjectID: projectID, USDAmount: usd(1000)}))
	}
	requireFailure(t, handle(t, p, ws, 10, evaluator, &action.BondEvaluation{ProjectID: projectID, USDAmount: usd(1000)}))

	// the bond stays on hold after the round closes
	details, err := getDetails(ws, projectID)
	r.NoError(err)
	requireFailure(t, handle(t, p, ws, details.EvaluationEnd, evaluator, &action.BondEvaluation{ProjectID: projectID, USDAmount: usd(1000)}))
}

func TestEvaluationThresholdBoundary(t *testing.T) {
	r := require.New(t)
	cfg := DefaultConfig
	meta := &ProjectMetadata{TargetUSD: usd(1000000)}

	r.False(evaluationPassed(&cfg, meta, &ProjectDetails{BondedUSD: usd(99999)}))
	// landing exactly on the threshold counts as success
	r.True(evaluationPassed(&cfg, meta, &ProjectDetails{BondedUSD: usd(100000)}))
	r.True(evaluationPassed(&cfg, meta, &ProjectDetails{BondedUSD: usd(100001)}))
}

func TestEarlyBondSplit(t *testing.T) {
	r := require.New(t)
	p, ws := newTestProtocol(t)
	issuer := identityset.Address(26)
	evaluator := identityset.Address(27)
	projectID := createTestProject(t, p, ws, issuer)
	requireSuccess(t, handle(t, p, ws, 2, issuer, &action.StartEvaluation{ProjectID: projectID}))
	mintNative(t, ws, evaluator, tokens(500000))

	// a single bond past the 100k early ceiling is split at the boundary
	requireSuccess(t, handle(t, p, ws, 3, evaluator, &action.BondEvaluation{ProjectID: projectID, USDAmount: usd(130000)}))
	eval, err := getEvaluation(ws, projectID, 0)
	r.NoError(err)
	r.Equal(usd(130000), eval.USDAmount)
	r.Equal(usd(100000), eval.EarlyUSD)

	// later bonds carry no early weight at all
	mintNative(t, ws, identityset.Address(28), tokens(500000))
	requireSuccess(t, handle(t, p, ws, 4, identityset.Address(28), &action.BondEvaluation{ProjectID: projectID, USDAmount: usd(20000)}))
	late, err := getEvaluation(ws, projectID, 1)
	r.NoError(err)
	r.Equal(int64(0), late.EarlyUSD.Int64())

	details, err := getDetails(ws, projectID)
	r.NoError(err)
	r.Equal(usd(150000), details.BondedUSD)
	r.Equal(usd(100000), details.EarlyBondedUSD)
}
