// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package factory

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/db"
	"github.com/polimec/polimec-core/state"
)

type (
	// WorkingSet is a single-block unit of work: every mutation is buffered
	// and becomes visible in the underlying store only on Commit. Snapshot and
	// Revert give per-action atomicity within the block.
	WorkingSet interface {
		protocol.StateManager
		// Commit flushes the buffered mutations into the underlying store
		Commit() error
	}

	entry struct {
		value   []byte
		deleted bool
	}

	buffer map[string]map[string]*entry

	workingSet struct {
		height    uint64
		store     db.KVStore
		dirty     buffer
		snapshots []buffer
	}
)

// NewWorkingSet creates a working set at the given height atop a KV store
func NewWorkingSet(height uint64, store db.KVStore) WorkingSet {
	return &workingSet{
		height: height,
		store:  store,
		dirty:  make(buffer),
	}
}

func (b buffer) clone() buffer {
	c := make(buffer, len(b))
	for ns, kvs := range b {
		m := make(map[string]*entry, len(kvs))
		for k, e := range kvs {
			m[k] = &entry{value: e.value, deleted: e.deleted}
		}
		c[ns] = m
	}
	return c
}

func (b buffer) put(ns string, key []byte, e *entry) {
	kvs, ok := b[ns]
	if !ok {
		kvs = make(map[string]*entry)
		b[ns] = kvs
	}
	kvs[string(key)] = e
}

func (b buffer) get(ns string, key []byte) (*entry, bool) {
	kvs, ok := b[ns]
	if !ok {
		return nil, false
	}
	e, ok := kvs[string(key)]
	return e, ok
}

func (ws *workingSet) Height() uint64 { return ws.height }

func (ws *workingSet) State(s interface{}, opts ...protocol.StateOption) error {
	cfg, err := protocol.CreateStateConfig(opts...)
	if err != nil {
		return err
	}
	if e, ok := ws.dirty.get(cfg.Namespace, cfg.Key); ok {
		if e.deleted {
			return errors.Wrapf(state.ErrStateNotExist, "key = %x was deleted", cfg.Key)
		}
		return state.Deserialize(s, e.value)
	}
	value, err := ws.store.Get(cfg.Namespace, cfg.Key)
	if err != nil {
		if errors.Cause(err) == db.ErrNotExist || errors.Cause(err) == db.ErrBucketNotExist {
			return errors.Wrapf(state.ErrStateNotExist, "key = %x", cfg.Key)
		}
		return err
	}
	return state.Deserialize(s, value)
}

func (ws *workingSet) States(opts ...protocol.StateOption) (state.Iterator, error) {
	cfg, err := protocol.CreateStateConfig(opts...)
	if err != nil {
		return nil, err
	}
	merged := make(map[string][]byte)

	minKey := cfg.Prefix
	maxKey := prefixUpperBound(cfg.Prefix)
	keys, values, err := ws.store.Filter(cfg.Namespace, func(k, v []byte) bool {
		return bytes.HasPrefix(k, cfg.Prefix)
	}, minKey, maxKey)
	switch errors.Cause(err) {
	case nil:
		for i, k := range keys {
			merged[string(k)] = values[i]
		}
	case db.ErrNotExist, db.ErrBucketNotExist:
		// fall through to the buffered entries
	default:
		return nil, err
	}

	for k, e := range ws.dirty[cfg.Namespace] {
		if !bytes.HasPrefix([]byte(k), cfg.Prefix) {
			continue
		}
		if e.deleted {
			delete(merged, k)
			continue
		}
		merged[k] = e.value
	}

	sorted := make([]string, 0, len(merged))
	for k := range merged {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	fk := make([][]byte, 0, len(sorted))
	fv := make([][]byte, 0, len(sorted))
	for _, k := range sorted {
		fk = append(fk, []byte(k))
		fv = append(fv, merged[k])
	}
	return state.NewIterator(fk, fv)
}

func (ws *workingSet) PutState(s interface{}, opts ...protocol.StateOption) error {
	cfg, err := protocol.CreateStateConfig(opts...)
	if err != nil {
		return err
	}
	value, err := state.Serialize(s)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize state %T", s)
	}
	ws.dirty.put(cfg.Namespace, cfg.Key, &entry{value: value})
	return nil
}

func (ws *workingSet) DelState(opts ...protocol.StateOption) error {
	cfg, err := protocol.CreateStateConfig(opts...)
	if err != nil {
		return err
	}
	ws.dirty.put(cfg.Namespace, cfg.Key, &entry{deleted: true})
	return nil
}

func (ws *workingSet) Snapshot() int {
	ws.snapshots = append(ws.snapshots, ws.dirty.clone())
	return len(ws.snapshots) - 1
}

func (ws *workingSet) Revert(snapshot int) error {
	if snapshot < 0 || snapshot >= len(ws.snapshots) {
		return errors.Errorf("invalid state snapshot number = %d", snapshot)
	}
	ws.dirty = ws.snapshots[snapshot]
	ws.snapshots = ws.snapshots[:snapshot]
	return nil
}

func (ws *workingSet) Commit() error {
	for ns, kvs := range ws.dirty {
		// deterministic write order
		keys := make([]string, 0, len(kvs))
		for k := range kvs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e := kvs[k]
			if e.deleted {
				if err := ws.store.Delete(ns, []byte(k)); err != nil {
					return errors.Wrapf(err, "failed to delete key %x in namespace %s", []byte(k), ns)
				}
				continue
			}
			if err := ws.store.Put(ns, []byte(k), e.value); err != nil {
				return errors.Wrapf(err, "failed to put key %x in namespace %s", []byte(k), ns)
			}
		}
	}
	ws.dirty = make(buffer)
	ws.snapshots = nil
	return nil
}

// prefixUpperBound returns the smallest key strictly above every key that
// carries the prefix, or nil if the prefix is all 0xff
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
