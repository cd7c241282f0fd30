// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/pkg/lifecycle"
)

var (
	// ErrBucketNotExist indicates certain bucket does not exist in db
	ErrBucketNotExist = errors.New("bucket not exist in DB")
	// ErrNotExist indicates certain item does not exist in the database
	ErrNotExist = errors.New("not exist in DB")
	// ErrIO indicates the generic error of DB I/O operation
	ErrIO = errors.New("DB I/O operation error")
)

type (
	// Condition is a filter predicate over a <key, value> record
	Condition func(k, v []byte) bool

	// KVStore is the interface of KV store.
	KVStore interface {
		lifecycle.StartStopper

		// Put inserts or updates a record identified by (namespace, key)
		Put(string, []byte, []byte) error
		// Get gets a record by (namespace, key)
		Get(string, []byte) ([]byte, error)
		// Delete deletes a record by (namespace, key)
		Delete(string, []byte) error
		// Filter returns <k, v> pairs in a namespace that match the condition,
		// in ascending key order
		Filter(string, Condition, []byte, []byte) ([][]byte, [][]byte, error)
	}
)

// memKVStore is the in-memory implementation of KVStore for testing purpose
type memKVStore struct {
	mutex  sync.RWMutex
	data   map[string]map[string][]byte
	bucket map[string]struct{}
}

// NewMemKVStore instantiates an in-memory KV store
func NewMemKVStore() KVStore {
	return &memKVStore{
		data:   make(map[string]map[string][]byte),
		bucket: make(map[string]struct{}),
	}
}

func (m *memKVStore) Start(_ context.Context) error { return nil }

func (m *memKVStore) Stop(_ context.Context) error { return nil }

func (m *memKVStore) Put(namespace string, key, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.bucket[namespace]; !ok {
		m.bucket[namespace] = struct{}{}
		m.data[namespace] = make(map[string][]byte)
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[namespace][string(key)] = v
	return nil
}

func (m *memKVStore) Get(namespace string, key []byte) ([]byte, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if _, ok := m.bucket[namespace]; !ok {
		return nil, errors.Wrapf(ErrBucketNotExist, "namespace = %x doesn't exist", []byte(namespace))
	}
	value, ok := m.data[namespace][string(key)]
	if !ok {
		return nil, errors.Wrapf(ErrNotExist, "key = %x doesn't exist", key)
	}
	return value, nil
}

func (m *memKVStore) Delete(namespace string, key []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.bucket[namespace]; !ok {
		return nil
	}
	delete(m.data[namespace], string(key))
	return nil
}

func (m *memKVStore) Filter(namespace string, c Condition, minKey, maxKey []byte) ([][]byte, [][]byte, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if _, ok := m.bucket[namespace]; !ok {
		return nil, nil, errors.Wrapf(ErrBucketNotExist, "namespace = %x doesn't exist", []byte(namespace))
	}
	keys := make([]string, 0, len(m.data[namespace]))
	for k := range m.data[namespace] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fk, fv [][]byte
	for _, k := range keys {
		key := []byte(k)
		if len(minKey) > 0 && bytes.Compare(key, minKey) < 0 {
			continue
		}
		if len(maxKey) > 0 && bytes.Compare(key, maxKey) > 0 {
			continue
		}
		v := m.data[namespace][k]
		if c(key, v) {
			fk = append(fk, key)
			fv = append(fv, v)
		}
	}
	if fk == nil {
		return nil, nil, errors.Wrap(ErrNotExist, "filter returns no match")
	}
	return fk, fv, nil
}
