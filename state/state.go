// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package state defines how protocol states are serialized into and out of
// the underlying KV store.
package state

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"
)

var (
	// ErrStateSerialization indicates the failure to serialize the state
	ErrStateSerialization = errors.New("failed to serialize state")
	// ErrStateDeserialization indicates the failure to deserialize the state
	ErrStateDeserialization = errors.New("failed to deserialize state")
	// ErrStateNotExist indicates the state does not exist
	ErrStateNotExist = errors.New("state does not exist")
)

type (
	// Serializer writes the state into bytes
	Serializer interface {
		Serialize() ([]byte, error)
	}

	// Deserializer loads the state from bytes
	Deserializer interface {
		Deserialize(data []byte) error
	}
)

// Serialize serializes a state into bytes. A state that implements Serializer
// controls its own encoding; anything else goes through gob.
func Serialize(d interface{}) ([]byte, error) {
	if s, ok := d.(Serializer); ok {
		return s.Serialize()
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d); err != nil {
		return nil, errors.Wrapf(ErrStateSerialization, "error when serializing %T state: %v", d, err)
	}
	return buf.Bytes(), nil
}

// Deserialize deserializes bytes into a state
func Deserialize(x interface{}, data []byte) error {
	if d, ok := x.(Deserializer); ok {
		return d.Deserialize(data)
	}
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(x); err != nil {
		return errors.Wrapf(ErrStateDeserialization, "error when deserializing %T state: %v", x, err)
	}
	return nil
}
