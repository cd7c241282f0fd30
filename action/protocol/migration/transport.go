// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package migration

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/iotexproject/go-pkgs/hash"
	"go.uber.org/zap"

	"github.com/polimec/polimec-core/pkg/log"
)

// MessageKind tags an outbound cross-chain message
type MessageKind uint8

// message kinds
const (
	// KindChannelOpen requests the bidirectional channel handshake
	KindChannelOpen MessageKind = iota + 1
	// KindHoldingQuery asks the destination for the issuance it holds
	KindHoldingQuery
	// KindPresenceQuery asks the destination for its receiving component
	KindPresenceQuery
	// KindMigration carries one participant's contribution tokens
	KindMigration
)

func (k MessageKind) String() string {
	switch k {
	case KindChannelOpen:
		return "channelOpen"
	case KindHoldingQuery:
		return "holdingQuery"
	case KindPresenceQuery:
		return "presenceQuery"
	case KindMigration:
		return "migration"
	default:
		return "unknown"
	}
}

type (
	// Message is one outbound message to a destination chain
	Message struct {
		CorrelationID hash.Hash256
		Kind          MessageKind
		Destination   uint32
		ProjectID     uint64
		Participant   string
		Amount        *big.Int
		VestingBlocks uint64
	}

	// Transport delivers messages to a destination chain. Responses come back
	// asynchronously and are injected as independent events.
	Transport interface {
		Send(context.Context, *Message) error
	}

	pendingQuery struct {
		msg      *Message
		deadline time.Time
	}

	// pendingTable tracks in-flight queries by correlation id and fails the
	// abandoned ones on a clock-driven sweep. It is coordinator-local
	// bookkeeping, never chain state.
	pendingTable struct {
		mu      sync.Mutex
		clock   clock.Clock
		timeout time.Duration
		queries map[hash.Hash256]*pendingQuery
		failed  map[hash.Hash256]*Message
	}
)

func newPendingTable(c clock.Clock, timeout time.Duration) *pendingTable {
	return &pendingTable{
		clock:   c,
		timeout: timeout,
		queries: make(map[hash.Hash256]*pendingQuery),
		failed:  make(map[hash.Hash256]*Message),
	}
}

func (t *pendingTable) track(msg *Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failed, msg.CorrelationID)
	t.queries[msg.CorrelationID] = &pendingQuery{
		msg:      msg,
		deadline: t.clock.Now().Add(t.timeout),
	}
}

// resolve pops an in-flight query; false means the id is unknown or already
// swept
func (t *pendingTable) resolve(corrID hash.Hash256) (*Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pq, ok := t.queries[corrID]
	if !ok {
		return nil, false
	}
	delete(t.queries, corrID)
	return pq.msg, true
}

func (t *pendingTable) inFlight(corrID hash.Hash256) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.queries[corrID]
	return ok
}

// sweep fails every query past its deadline and returns them
func (t *pendingTable) sweep() []*Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	var abandoned []*Message
	for id, pq := range t.queries {
		if now.Before(pq.deadline) {
			continue
		}
		delete(t.queries, id)
		t.failed[id] = pq.msg
		abandoned = append(abandoned, pq.msg)
		log.L().Warn("abandoned cross-chain query",
			zap.String("kind", pq.msg.Kind.String()),
			zap.Uint64("projectID", pq.msg.ProjectID),
			zap.String("participant", pq.msg.Participant))
	}
	return abandoned
}

// Failed reports whether the query was abandoned by the sweep
func (t *pendingTable) Failed(corrID hash.Hash256) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.failed[corrID]
	return ok
}
