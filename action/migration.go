// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package action

import "github.com/pkg/errors"

type (
	// SetDestinationChain assigns the destination chain of a funded project and
	// opens the bidirectional channel handshake
	SetDestinationChain struct {
		ProjectID   uint64
		Destination uint32
	}

	// StartMigrationReadinessCheck issues the correlated readiness queries to
	// the destination chain
	StartMigrationReadinessCheck struct {
		ProjectID uint64
	}

	// MigrateParticipant dispatches the accumulated migration records of one
	// participant to the destination chain
	MigrateParticipant struct {
		ProjectID   uint64
		Participant string
	}

	// FinishMigration closes the migration round once every participant is confirmed
	FinishMigration struct {
		ProjectID uint64
	}
)

// SanityCheck validates the intrinsic integrity of the action
func (act *SetDestinationChain) SanityCheck() error {
	if act.Destination == 0 {
		return errors.Wrap(ErrMissingField, "no destination chain")
	}
	return nil
}

// SanityCheck validates the intrinsic integrity of the action
func (act *StartMigrationReadinessCheck) SanityCheck() error { return nil }

// SanityCheck validates the intrinsic integrity of the action
func (act *MigrateParticipant) SanityCheck() error {
	if act.Participant == "" {
		return errors.Wrap(ErrMissingField, "no participant")
	}
	return nil
}

// SanityCheck validates the intrinsic integrity of the action
func (act *FinishMigration) SanityCheck() error { return nil }
