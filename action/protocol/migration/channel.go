// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package migration

import (
	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/pkg/util/byteutil"
	"github.com/polimec/polimec-core/state"
)

// Namespace is the state namespace of the migration coordinator
const Namespace = "Migration"

// Errors
var (
	// ErrChannelNotFound indicates no channel exists for the project
	ErrChannelNotFound = errors.New("migration channel not found")
	// ErrChannelState indicates the channel is in the wrong state for the operation
	ErrChannelState = errors.New("invalid migration channel state")
	// ErrNotReady indicates the readiness checks have not both passed
	ErrNotReady = errors.New("destination chain not ready")
	// ErrCorrelation indicates a response carries an unknown correlation id
	ErrCorrelation = errors.New("unknown correlation id")
	// ErrMigrationPending indicates a participant still has an in-flight dispatch
	ErrMigrationPending = errors.New("participant migration in flight")
	// ErrUnconfirmed indicates not every participant has been confirmed yet
	ErrUnconfirmed = errors.New("participants not all confirmed")
)

// ChannelState is the handshake state of one channel direction
type ChannelState uint8

// channel direction states
const (
	// ChannelClosed is the initial state of a direction
	ChannelClosed ChannelState = iota
	// ChannelAwaitingAcceptance marks an open request sent and unanswered
	ChannelAwaitingAcceptance
	// ChannelOpen marks an accepted direction
	ChannelOpen
)

// CheckStatus is the outcome of one readiness query
type CheckStatus uint8

// readiness query outcomes
const (
	// CheckNotSent is the initial state of a readiness query
	CheckNotSent CheckStatus = iota
	// CheckPending marks a query sent and unanswered
	CheckPending
	// CheckPassed marks a query answered positively
	CheckPassed
	// CheckFailed marks a query answered negatively or abandoned
	CheckFailed
)

// Channel is the per-project migration channel: the bidirectional handshake
// state plus the two readiness queries against the destination chain
type Channel struct {
	ProjectID   uint64
	Destination uint32
	Outbound    ChannelState
	Inbound     ChannelState

	OpenCorrID     []byte
	HoldingCorrID  []byte
	HoldingStatus  CheckStatus
	PresenceCorrID []byte
	PresenceStatus CheckStatus
}

// Ready reports whether both readiness checks passed
func (c *Channel) Ready() bool {
	return c.HoldingStatus == CheckPassed && c.PresenceStatus == CheckPassed
}

func channelKey(projectID uint64) []byte {
	return append([]byte{'C'}, byteutil.Uint64ToBytesBigEndian(projectID)...)
}

func getChannel(sr protocol.StateReader, projectID uint64) (*Channel, error) {
	var c Channel
	err := sr.State(&c, protocol.NamespaceOption(Namespace), protocol.KeyOption(channelKey(projectID)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, errors.Wrapf(ErrChannelNotFound, "project %d", projectID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func putChannel(sm protocol.StateManager, c *Channel) error {
	return sm.PutState(c, protocol.NamespaceOption(Namespace), protocol.KeyOption(channelKey(c.ProjectID)))
}
