// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/pkg/util/byteutil"
	"github.com/polimec/polimec-core/state"
)

// Namespace is the state namespace of the funding protocol
const Namespace = "Funding"

// record key prefixes within the funding namespace
const (
	_metadataPrefix     = byte('M')
	_detailsPrefix      = byte('D')
	_bucketPrefix       = byte('B')
	_evaluationPrefix   = byte('E')
	_evalIndexPrefix    = byte('I')
	_bidPrefix          = byte('A')
	_contributionPrefix = byte('C')
	_schedulePrefix     = byte('S')
	_releasePrefix      = byte('R')
	_migrationPrefix    = byte('G')
	_nextProjectKey     = byte('N')
)

// Phase is the lifecycle stage of a project
type Phase uint8

// project lifecycle phases, in legal order
const (
	PhaseApplication Phase = iota
	PhaseEvaluation
	PhaseAuctionInitialize
	PhaseAuctionOpening
	PhaseAuctionClosing
	PhasePriceCalculated
	PhaseCommunity
	PhaseRemainder
	PhaseDecision
	PhaseFundingSuccessful
	PhaseFundingFailed
	PhaseSettlementStarted
	PhaseSettled
	PhaseMigrationStarted
	PhaseMigrationFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseApplication:
		return "Application"
	case PhaseEvaluation:
		return "Evaluation"
	case PhaseAuctionInitialize:
		return "AuctionInitialize"
	case PhaseAuctionOpening:
		return "AuctionOpening"
	case PhaseAuctionClosing:
		return "AuctionClosing"
	case PhasePriceCalculated:
		return "PriceCalculated"
	case PhaseCommunity:
		return "Community"
	case PhaseRemainder:
		return "Remainder"
	case PhaseDecision:
		return "Decision"
	case PhaseFundingSuccessful:
		return "FundingSuccessful"
	case PhaseFundingFailed:
		return "FundingFailed"
	case PhaseSettlementStarted:
		return "SettlementStarted"
	case PhaseSettled:
		return "Settled"
	case PhaseMigrationStarted:
		return "MigrationStarted"
	case PhaseMigrationFinished:
		return "MigrationFinished"
	default:
		return "Unknown"
	}
}

// Outcome is the evaluator settlement outcome of a project
type Outcome uint8

// evaluator outcomes
const (
	OutcomeUnknown Outcome = iota
	OutcomeSlashed
	OutcomeRewarded
	OutcomeUnchanged
)

// TicketRange bounds participation ticket sizes of one investor tier,
// USD18 denominated. A zero Max means unbounded.
type TicketRange struct {
	MinUSD *big.Int
	MaxUSD *big.Int
	MaxMul uint8
}

// ProjectMetadata is the immutable application record of a project
type ProjectMetadata struct {
	ProjectID       uint64
	Issuer          string
	TokenDecimals   uint8
	TotalAllocation *big.Int
	AuctionAlloc    *big.Int
	MinPrice        *big.Int
	TargetUSD       *big.Int
	AcceptedAssets  []string
	PolicyHash      []byte
	Tickets         map[uint8]TicketRange
}

// AcceptsAsset reports whether the project accepts the given funding asset
func (m *ProjectMetadata) AcceptsAsset(asset string) bool {
	for _, a := range m.AcceptedAssets {
		if a == asset {
			return true
		}
	}
	return false
}

// ProjectDetails is the mutable lifecycle record of a project
type ProjectDetails struct {
	ProjectID uint64
	Issuer    string
	Phase     Phase
	Frozen    bool

	EvaluationEnd     uint64
	AuctionOpeningEnd uint64
	AuctionClosingEnd uint64
	CloseHeight       uint64
	CommunityEnd      uint64
	RemainderEnd      uint64
	DecisionDeadline  uint64
	FundingEnd        uint64
	DecisionPending   bool

	BondedUSD      *big.Int
	EarlyBondedUSD *big.Int
	EvaluationCnt  uint32

	WAP         *big.Int
	SoldAuction *big.Int
	SoldTotal   *big.Int
	RaisedUSD   *big.Int

	NextEvaluationID   uint64
	NextBidID          uint64
	NextContributionID uint64
	NextReleaseID      uint64

	Successful bool

	Outcome          Outcome
	SettledCount     uint32
	OutstandingCount uint32

	DestinationChain uint32
}

// EvaluationTarget is the bonded USD needed to pass evaluation
func (d *ProjectDetails) EvaluationTarget(meta *ProjectMetadata, thresholdPct uint64) *big.Int {
	return percentOf(meta.TargetUSD, thresholdPct)
}

// FundingRatioPercent returns raised/target in whole percent, rounded down
func (d *ProjectDetails) FundingRatioPercent(meta *ProjectMetadata) uint64 {
	if meta.TargetUSD.Sign() <= 0 {
		return 0
	}
	r := new(big.Int).Mul(d.RaisedUSD, big.NewInt(100))
	r.Div(r, meta.TargetUSD)
	if !r.IsUint64() {
		return 100
	}
	return r.Uint64()
}

func projectKey(prefix byte, projectID uint64) []byte {
	return append([]byte{prefix}, byteutil.Uint64ToBytesBigEndian(projectID)...)
}

func recordKey(prefix byte, projectID, recordID uint64) []byte {
	k := projectKey(prefix, projectID)
	return append(k, byteutil.Uint64ToBytesBigEndian(recordID)...)
}

func nextProjectID(sm protocol.StateManager) (uint64, error) {
	var next uint64
	err := sm.State(&next, protocol.NamespaceOption(Namespace), protocol.KeyOption([]byte{_nextProjectKey}))
	switch errors.Cause(err) {
	case nil:
	case state.ErrStateNotExist:
		next = 1
	default:
		return 0, err
	}
	if err := sm.PutState(next+1, protocol.NamespaceOption(Namespace), protocol.KeyOption([]byte{_nextProjectKey})); err != nil {
		return 0, err
	}
	return next, nil
}

func getMetadata(sr protocol.StateReader, projectID uint64) (*ProjectMetadata, error) {
	var meta ProjectMetadata
	err := sr.State(&meta, protocol.NamespaceOption(Namespace), protocol.KeyOption(projectKey(_metadataPrefix, projectID)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, errors.Wrapf(ErrProjectNotFound, "project %d", projectID)
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func putMetadata(sm protocol.StateManager, meta *ProjectMetadata) error {
	return sm.PutState(meta, protocol.NamespaceOption(Namespace), protocol.KeyOption(projectKey(_metadataPrefix, meta.ProjectID)))
}

func getDetails(sr protocol.StateReader, projectID uint64) (*ProjectDetails, error) {
	var details ProjectDetails
	err := sr.State(&details, protocol.NamespaceOption(Namespace), protocol.KeyOption(projectKey(_detailsPrefix, projectID)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, errors.Wrapf(ErrProjectNotFound, "project %d", projectID)
	}
	if err != nil {
		return nil, err
	}
	return &details, nil
}

func putDetails(sm protocol.StateManager, details *ProjectDetails) error {
	return sm.PutState(details, protocol.NamespaceOption(Namespace), protocol.KeyOption(projectKey(_detailsPrefix, details.ProjectID)))
}

// GetProjectDetails loads a project's lifecycle record
func GetProjectDetails(sr protocol.StateReader, projectID uint64) (*ProjectDetails, error) {
	return getDetails(sr, projectID)
}

// PutProjectDetails stores a project's lifecycle record
func PutProjectDetails(sm protocol.StateManager, details *ProjectDetails) error {
	return putDetails(sm, details)
}

// GetProjectMetadata loads a project's application record
func GetProjectMetadata(sr protocol.StateReader, projectID uint64) (*ProjectMetadata, error) {
	return getMetadata(sr, projectID)
}
