// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package factory

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/db"
	"github.com/polimec/polimec-core/state"
)

type testState struct {
	Value uint64
}

const _testNS = "test"

func put(t *testing.T, ws WorkingSet, key string, value uint64) {
	require.NoError(t, ws.PutState(&testState{Value: value},
		protocol.NamespaceOption(_testNS), protocol.KeyOption([]byte(key))))
}

func get(ws WorkingSet, key string) (uint64, error) {
	var s testState
	err := ws.State(&s, protocol.NamespaceOption(_testNS), protocol.KeyOption([]byte(key)))
	return s.Value, err
}

func TestWorkingSetStateRoundTrip(t *testing.T) {
	r := require.New(t)
	ws := NewWorkingSet(5, db.NewMemKVStore())
	r.Equal(uint64(5), ws.Height())

	_, err := get(ws, "missing")
	r.Equal(state.ErrStateNotExist, errors.Cause(err))

	put(t, ws, "a", 1)
	v, err := get(ws, "a")
	r.NoError(err)
	r.Equal(uint64(1), v)

	// a buffered delete shadows both the buffer and the store
	r.NoError(ws.DelState(protocol.NamespaceOption(_testNS), protocol.KeyOption([]byte("a"))))
	_, err = get(ws, "a")
	r.Equal(state.ErrStateNotExist, errors.Cause(err))
}

func TestWorkingSetSnapshotRevert(t *testing.T) {
	r := require.New(t)
	ws := NewWorkingSet(1, db.NewMemKVStore())

	put(t, ws, "a", 1)
	s0 := ws.Snapshot()
	put(t, ws, "a", 2)
	put(t, ws, "b", 3)
	s1 := ws.Snapshot()
	r.NoError(ws.DelState(protocol.NamespaceOption(_testNS), protocol.KeyOption([]byte("a"))))

	r.NoError(ws.Revert(s1))
	v, err := get(ws, "a")
	r.NoError(err)
	r.Equal(uint64(2), v)

	r.NoError(ws.Revert(s0))
	v, err = get(ws, "a")
	r.NoError(err)
	r.Equal(uint64(1), v)
	_, err = get(ws, "b")
	r.Equal(state.ErrStateNotExist, errors.Cause(err))

	// a popped snapshot cannot be reverted to again
	r.Error(ws.Revert(s1))
	r.Error(ws.Revert(-1))
}

func TestWorkingSetCommit(t *testing.T) {
	r := require.New(t)
	store := db.NewMemKVStore()
	ws := NewWorkingSet(1, store)
	put(t, ws, "a", 1)
	put(t, ws, "b", 2)
	r.NoError(ws.Commit())

	// a fresh working set over the same store sees the committed states
	ws2 := NewWorkingSet(2, store)
	v, err := get(ws2, "a")
	r.NoError(err)
	r.Equal(uint64(1), v)

	r.NoError(ws2.DelState(protocol.NamespaceOption(_testNS), protocol.KeyOption([]byte("a"))))
	put(t, ws2, "b", 20)
	r.NoError(ws2.Commit())

	ws3 := NewWorkingSet(3, store)
	_, err = get(ws3, "a")
	r.Equal(state.ErrStateNotExist, errors.Cause(err))
	v, err = get(ws3, "b")
	r.NoError(err)
	r.Equal(uint64(20), v)
}

func TestWorkingSetStatesMergesBuffer(t *testing.T) {
	r := require.New(t)
	store := db.NewMemKVStore()
	ws := NewWorkingSet(1, store)
	put(t, ws, "p-1", 1)
	put(t, ws, "p-3", 3)
	r.NoError(ws.Commit())

	ws = NewWorkingSet(2, store)
	put(t, ws, "p-2", 2)
	put(t, ws, "q-9", 9)
	r.NoError(ws.DelState(protocol.NamespaceOption(_testNS), protocol.KeyOption([]byte("p-3"))))

	it, err := ws.States(protocol.NamespaceOption(_testNS), protocol.PrefixOption([]byte("p-")))
	r.NoError(err)
	r.Equal(2, it.Size())

	// committed and buffered entries come back merged in key order
	var s testState
	key, err := it.Next(&s)
	r.NoError(err)
	r.Equal([]byte("p-1"), key)
	r.Equal(uint64(1), s.Value)
	key, err = it.Next(&s)
	r.NoError(err)
	r.Equal([]byte("p-2"), key)
	r.Equal(uint64(2), s.Value)
	_, err = it.Next(&s)
	r.Equal(state.ErrOutOfBoundary, err)
}

func TestWorkingSetStatesEmpty(t *testing.T) {
	r := require.New(t)
	ws := NewWorkingSet(1, db.NewMemKVStore())
	it, err := ws.States(protocol.NamespaceOption(_testNS), protocol.PrefixOption([]byte("p-")))
	r.NoError(err)
	r.Equal(0, it.Size())
}
