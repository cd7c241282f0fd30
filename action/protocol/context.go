// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package protocol

import (
	"context"
	"time"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"

	"github.com/polimec/polimec-core/pkg/log"
)

type blockContextKey struct{}

type actionContextKey struct{}

type (
	// BlockCtx provides the protocols with block-scoped auxiliary information
	BlockCtx struct {
		// BlockHeight is the height of the block containing the actions
		BlockHeight uint64
		// BlockTimeStamp is the timestamp of the block
		BlockTimeStamp time.Time
	}

	// ActionCtx provides the protocols with action-scoped auxiliary information
	ActionCtx struct {
		// Caller is the source account of the action
		Caller address.Address
		// ActionHash is the hash of the action
		ActionHash hash.Hash256
		// Nonce is the nonce of the action
		Nonce uint64
	}
)

// WithBlockCtx adds BlockCtx into context
func WithBlockCtx(ctx context.Context, blkCtx BlockCtx) context.Context {
	return context.WithValue(ctx, blockContextKey{}, blkCtx)
}

// GetBlockCtx gets BlockCtx
func GetBlockCtx(ctx context.Context) (BlockCtx, bool) {
	blkCtx, ok := ctx.Value(blockContextKey{}).(BlockCtx)
	return blkCtx, ok
}

// MustGetBlockCtx must get BlockCtx, panics if not exist
func MustGetBlockCtx(ctx context.Context) BlockCtx {
	blkCtx, ok := ctx.Value(blockContextKey{}).(BlockCtx)
	if !ok {
		log.S().Panic("Miss block context")
	}
	return blkCtx
}

// WithActionCtx adds ActionCtx into context
func WithActionCtx(ctx context.Context, actCtx ActionCtx) context.Context {
	return context.WithValue(ctx, actionContextKey{}, actCtx)
}

// GetActionCtx gets ActionCtx
func GetActionCtx(ctx context.Context) (ActionCtx, bool) {
	actCtx, ok := ctx.Value(actionContextKey{}).(ActionCtx)
	return actCtx, ok
}

// MustGetActionCtx must get ActionCtx, panics if not exist
func MustGetActionCtx(ctx context.Context) ActionCtx {
	actCtx, ok := ctx.Value(actionContextKey{}).(ActionCtx)
	if !ok {
		log.S().Panic("Miss action context")
	}
	return actCtx
}
