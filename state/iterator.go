// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package state

import "github.com/pkg/errors"

// ErrOutOfBoundary defines an error when the index in the iterator is out of boundary
var ErrOutOfBoundary = errors.New("index is out of boundary")

// Iterator walks a list of states fetched from the working set
type Iterator interface {
	// Size returns the number of states in the iterator
	Size() int
	// Next deserializes the next state into x and returns its storage key
	Next(x interface{}) ([]byte, error)
}

type iterator struct {
	keys   [][]byte
	states [][]byte
	index  int
}

// NewIterator returns an iterator over serialized states and their keys
func NewIterator(keys, states [][]byte) (Iterator, error) {
	if len(keys) != len(states) {
		return nil, errors.New("keys and states do not match in size")
	}
	return &iterator{keys: keys, states: states}, nil
}

func (it *iterator) Size() int { return len(it.states) }

func (it *iterator) Next(x interface{}) ([]byte, error) {
	if it.index >= len(it.states) {
		return nil, ErrOutOfBoundary
	}
	key := it.keys[it.index]
	data := it.states[it.index]
	it.index++
	if err := Deserialize(x, data); err != nil {
		return nil, err
	}
	return key, nil
}
