// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/pkg/util/byteutil"
	"github.com/polimec/polimec-core/state"
)

// ScheduledUpdate is one pending automatic phase advance. Entries sort by
// (height, project id) through their storage keys, which makes the prefix
// scan a ready-made priority queue.
type ScheduledUpdate struct {
	ProjectID uint64
	Height    uint64
}

func scheduleKey(height, projectID uint64) []byte {
	k := append([]byte{_schedulePrefix}, byteutil.Uint64ToBytesBigEndian(height)...)
	return append(k, byteutil.Uint64ToBytesBigEndian(projectID)...)
}

func scheduleHeightPrefix(height uint64) []byte {
	return append([]byte{_schedulePrefix}, byteutil.Uint64ToBytesBigEndian(height)...)
}

// scheduleUpdate inserts a pending advance at the target height, spilling
// into later heights when a block's slots are full. Exhausting the bounded
// retries is an error, never a silent drop.
func scheduleUpdate(sm protocol.StateManager, cfg *Config, height, projectID uint64) error {
	for try := uint64(0); try <= cfg.MaxScheduleRetries; try++ {
		h := height + try
		cnt, err := scheduledAt(sm, h)
		if err != nil {
			return err
		}
		if uint64(cnt) >= cfg.MaxUpdatesPerBlock {
			continue
		}
		upd := &ScheduledUpdate{ProjectID: projectID, Height: h}
		return sm.PutState(upd, protocol.NamespaceOption(Namespace), protocol.KeyOption(scheduleKey(h, projectID)))
	}
	return errors.Wrapf(ErrScheduleFull, "no slot within %d blocks of height %d", cfg.MaxScheduleRetries, height)
}

func scheduledAt(sr protocol.StateReader, height uint64) (int, error) {
	iter, err := sr.States(protocol.NamespaceOption(Namespace), protocol.PrefixOption(scheduleHeightPrefix(height)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return iter.Size(), nil
}

// dueUpdates pops every entry scheduled at or before the given height
func dueUpdates(sm protocol.StateManager, height uint64) ([]*ScheduledUpdate, error) {
	iter, err := sm.States(protocol.NamespaceOption(Namespace), protocol.PrefixOption([]byte{_schedulePrefix}))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var due []*ScheduledUpdate
	for i := 0; i < iter.Size(); i++ {
		upd := &ScheduledUpdate{}
		key, err := iter.Next(upd)
		if err != nil {
			return nil, errors.Wrap(err, "failed to deserialize scheduled update")
		}
		if upd.Height > height {
			break
		}
		if err := sm.DelState(protocol.NamespaceOption(Namespace), protocol.KeyOption(key)); err != nil {
			return nil, err
		}
		due = append(due, upd)
	}
	return due, nil
}
