// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package factory hands out per-block working sets over the chain state.
package factory

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/db"
	"github.com/polimec/polimec-core/pkg/lifecycle"
)

// ErrNotSupported indicates an operation the factory does not support
var ErrNotSupported = errors.New("operation not supported")

// Factory manages the chain state and hands out working sets
type Factory interface {
	lifecycle.StartStopper

	// Height returns the height of the last committed working set
	Height() uint64
	// NewWorkingSet creates a working set at the next height
	NewWorkingSet() WorkingSet
	// CommitWorkingSet commits a working set and advances the height
	CommitWorkingSet(WorkingSet) error
}

type factory struct {
	mutex  sync.Mutex
	height uint64
	store  db.KVStore
}

// NewFactory creates a state factory atop the given KV store
func NewFactory(store db.KVStore) Factory {
	return &factory{store: store}
}

func (sf *factory) Start(ctx context.Context) error { return sf.store.Start(ctx) }

func (sf *factory) Stop(ctx context.Context) error { return sf.store.Stop(ctx) }

func (sf *factory) Height() uint64 {
	sf.mutex.Lock()
	defer sf.mutex.Unlock()
	return sf.height
}

func (sf *factory) NewWorkingSet() WorkingSet {
	sf.mutex.Lock()
	defer sf.mutex.Unlock()
	return NewWorkingSet(sf.height+1, sf.store)
}

func (sf *factory) CommitWorkingSet(ws WorkingSet) error {
	sf.mutex.Lock()
	defer sf.mutex.Unlock()
	if ws.Height() != sf.height+1 {
		return errors.Errorf("cannot commit working set at height %d, current height is %d", ws.Height(), sf.height)
	}
	if err := ws.Commit(); err != nil {
		return err
	}
	sf.height = ws.Height()
	return nil
}
