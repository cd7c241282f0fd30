// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package protocol

import (
	"github.com/iotexproject/go-pkgs/hash"
	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/state"
)

type (
	// StateConfig is the config for accessing the state DB
	StateConfig struct {
		Namespace string
		Key       []byte
		Prefix    []byte
	}

	// StateOption sets a parameter for a state access
	StateOption func(*StateConfig) error

	// StateReader defines an interface to read the state DB
	StateReader interface {
		Height() uint64
		State(interface{}, ...StateOption) error
		States(...StateOption) (state.Iterator, error)
	}

	// StateManager defines the state DB interface the protocols mutate
	StateManager interface {
		StateReader
		Snapshot() int
		Revert(int) error
		PutState(interface{}, ...StateOption) error
		DelState(...StateOption) error
	}
)

// NamespaceOption creates an option for the given namespace
func NamespaceOption(ns string) StateOption {
	return func(cfg *StateConfig) error {
		cfg.Namespace = ns
		return nil
	}
}

// KeyOption sets the key for the state access
func KeyOption(key []byte) StateOption {
	return func(cfg *StateConfig) error {
		cfg.Key = make([]byte, len(key))
		copy(cfg.Key, key)
		return nil
	}
}

// LegacyKeyOption sets the key from a 160-bit hash
func LegacyKeyOption(key hash.Hash160) StateOption {
	return func(cfg *StateConfig) error {
		cfg.Key = make([]byte, len(key[:]))
		copy(cfg.Key, key[:])
		return nil
	}
}

// PrefixOption sets a key prefix for listing states
func PrefixOption(prefix []byte) StateOption {
	return func(cfg *StateConfig) error {
		cfg.Prefix = make([]byte, len(prefix))
		copy(cfg.Prefix, prefix)
		return nil
	}
}

// CreateStateConfig creates a config for accessing the state DB
func CreateStateConfig(opts ...StateOption) (*StateConfig, error) {
	cfg := StateConfig{}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, errors.Wrap(err, "failed to execute state option")
		}
	}
	return &cfg, nil
}
