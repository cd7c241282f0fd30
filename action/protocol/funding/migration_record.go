// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"math/big"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/state"
)

// MigrationStatus is the cross-chain dispatch state of one participant's
// contribution tokens
type MigrationStatus uint8

// migration statuses
const (
	// MigrationNotStarted marks tokens not dispatched yet
	MigrationNotStarted MigrationStatus = iota
	// MigrationSent marks an in-flight dispatch awaiting confirmation
	MigrationSent
	// MigrationConfirmed marks tokens confirmed on the destination chain
	MigrationConfirmed
	// MigrationFailed marks a dispatch rejected or timed out
	MigrationFailed
)

// MigrationRecord accumulates the contribution tokens one participant takes
// to the destination chain. Settlement appends to it; the migration
// coordinator drains it.
type MigrationRecord struct {
	ProjectID     uint64
	Participant   string
	Amount        *big.Int
	VestingBlocks uint64
	Status        MigrationStatus
	CorrelationID []byte
}

func migrationRecordKey(projectID uint64, participant string) []byte {
	h := hash.Hash160b([]byte(participant))
	return append(projectKey(_migrationPrefix, projectID), h[:]...)
}

// appendMigration credits migrated-to-be tokens onto the participant's record
func appendMigration(sm protocol.StateManager, projectID uint64, participant string, amount *big.Int, vesting uint64) error {
	if amount.Sign() == 0 {
		return nil
	}
	rec, err := GetMigrationRecord(sm, projectID, participant)
	switch errors.Cause(err) {
	case nil:
	case ErrRecordNotFound:
		rec = &MigrationRecord{
			ProjectID:   projectID,
			Participant: participant,
			Amount:      big.NewInt(0),
			Status:      MigrationNotStarted,
		}
	default:
		return err
	}
	rec.Amount = new(big.Int).Add(rec.Amount, amount)
	if vesting > rec.VestingBlocks {
		rec.VestingBlocks = vesting
	}
	return PutMigrationRecord(sm, rec)
}

// GetMigrationRecord loads one participant's migration record
func GetMigrationRecord(sr protocol.StateReader, projectID uint64, participant string) (*MigrationRecord, error) {
	var rec MigrationRecord
	err := sr.State(&rec, protocol.NamespaceOption(Namespace), protocol.KeyOption(migrationRecordKey(projectID, participant)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, errors.Wrapf(ErrRecordNotFound, "no migration record of %s in project %d", participant, projectID)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutMigrationRecord stores one participant's migration record
func PutMigrationRecord(sm protocol.StateManager, rec *MigrationRecord) error {
	return sm.PutState(rec, protocol.NamespaceOption(Namespace), protocol.KeyOption(migrationRecordKey(rec.ProjectID, rec.Participant)))
}

// ListMigrationRecords returns every participant migration record of a project
func ListMigrationRecords(sr protocol.StateReader, projectID uint64) ([]*MigrationRecord, error) {
	iter, err := sr.States(protocol.NamespaceOption(Namespace), protocol.PrefixOption(projectKey(_migrationPrefix, projectID)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	recs := make([]*MigrationRecord, 0, iter.Size())
	for i := 0; i < iter.Size(); i++ {
		rec := &MigrationRecord{}
		if _, err := iter.Next(rec); err != nil {
			return nil, errors.Wrap(err, "failed to deserialize migration record")
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
