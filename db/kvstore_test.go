// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func testKVStorePutGet(t *testing.T, store KVStore) {
	r := require.New(t)
	ctx := context.Background()
	r.NoError(store.Start(ctx))
	defer func() { r.NoError(store.Stop(ctx)) }()

	_, err := store.Get("ns", []byte("k"))
	r.Error(err)

	r.NoError(store.Put("ns", []byte("k"), []byte("v1")))
	v, err := store.Get("ns", []byte("k"))
	r.NoError(err)
	r.Equal([]byte("v1"), v)

	// namespaces are isolated
	_, err = store.Get("other", []byte("k"))
	r.Error(err)

	r.NoError(store.Put("ns", []byte("k"), []byte("v2")))
	v, err = store.Get("ns", []byte("k"))
	r.NoError(err)
	r.Equal([]byte("v2"), v)

	r.NoError(store.Delete("ns", []byte("k")))
	_, err = store.Get("ns", []byte("k"))
	r.Equal(ErrNotExist, errors.Cause(err))

	// deleting a missing key is not an error
	r.NoError(store.Delete("ns", []byte("k")))
}

func testKVStoreFilter(t *testing.T, store KVStore) {
	r := require.New(t)
	ctx := context.Background()
	r.NoError(store.Start(ctx))
	defer func() { r.NoError(store.Stop(ctx)) }()

	for _, k := range []string{"p-1", "p-2", "p-3", "q-1"} {
		r.NoError(store.Put("ns", []byte(k), []byte(k)))
	}
	prefix := []byte("p-")
	keys, values, err := store.Filter("ns", func(k, v []byte) bool {
		return bytes.HasPrefix(k, prefix)
	}, prefix, []byte("p."))
	r.NoError(err)
	r.Len(keys, 3)
	r.Len(values, 3)
	for i, k := range keys {
		r.True(bytes.HasPrefix(k, prefix))
		r.Equal(k, values[i])
	}
}

func TestMemKVStore(t *testing.T) {
	t.Run("put get delete", func(t *testing.T) {
		testKVStorePutGet(t, NewMemKVStore())
	})
	t.Run("filter", func(t *testing.T) {
		testKVStoreFilter(t, NewMemKVStore())
	})
}

func TestBoltDB(t *testing.T) {
	newStore := func(t *testing.T) KVStore {
		cfg := DefaultConfig
		cfg.DbPath = filepath.Join(t.TempDir(), "test.db")
		return NewBoltDB(cfg)
	}
	t.Run("put get delete", func(t *testing.T) {
		testKVStorePutGet(t, newStore(t))
	})
	t.Run("filter", func(t *testing.T) {
		testKVStoreFilter(t, newStore(t))
	})
	t.Run("persists across restarts", func(t *testing.T) {
		r := require.New(t)
		cfg := DefaultConfig
		cfg.DbPath = filepath.Join(t.TempDir(), "test.db")
		ctx := context.Background()

		store := NewBoltDB(cfg)
		r.NoError(store.Start(ctx))
		r.NoError(store.Put("ns", []byte("k"), []byte("v")))
		r.NoError(store.Stop(ctx))

		store = NewBoltDB(cfg)
		r.NoError(store.Start(ctx))
		v, err := store.Get("ns", []byte("k"))
		r.NoError(err)
		r.Equal([]byte("v"), v)
		r.NoError(store.Stop(ctx))
	})
}
