// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package protocol defines the interfaces every state-mutating protocol of
// the chain implements, and the contexts those protocols execute in.
package protocol

import (
	"context"

	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action"
)

// ErrUnimplemented indicates a method is not implemented yet
var ErrUnimplemented = errors.New("method is unimplemented")

type (
	// Protocol is the interface of a state-mutating protocol
	Protocol interface {
		ActionValidator
		ActionHandler
		// ReadState reads the state on the chain via the protocol
		ReadState(context.Context, StateReader, []byte, ...[]byte) ([]byte, error)
		// Register registers the protocol with a unique ID into the registry
		Register(*Registry) error
	}

	// ActionValidator is the interface of validating an action
	ActionValidator interface {
		Validate(context.Context, action.Action) error
	}

	// ActionHandler is the interface of handling an action. The implementation
	// is supposed to parse the sub-type of the action to decide whether it
	// wants to handle the action or not (returning a nil receipt if not).
	ActionHandler interface {
		Handle(context.Context, action.Action, StateManager) (*action.Receipt, error)
	}

	// PreStatesCreator runs a protocol's per-block work before any action in
	// the block is handled
	PreStatesCreator interface {
		CreatePreStates(context.Context, StateManager) error
	}
)
