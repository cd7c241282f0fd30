// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/state"
)

type (
	// Bucket is the price-discovery ladder of one auction. The first rung
	// holds the entire auction allocation at the minimum price; every later
	// rung holds DeltaAmount tokens at the previous rung's price plus
	// DeltaPrice.
	Bucket struct {
		ProjectID    uint64
		CurrentPrice *big.Int
		AmountLeft   *big.Int
		DeltaPrice   *big.Int
		DeltaAmount  *big.Int
	}

	// Fragment is one slice of a bid, filled at a single rung price
	Fragment struct {
		Price  *big.Int
		Amount *big.Int
	}
)

// NewBucket builds the initial rung from the auction allocation and minimum
// price, with rung geometry taken from the policy percentages
func NewBucket(projectID uint64, allocation, minPrice *big.Int, cfg *Config) *Bucket {
	return &Bucket{
		ProjectID:    projectID,
		CurrentPrice: new(big.Int).Set(minPrice),
		AmountLeft:   new(big.Int).Set(allocation),
		DeltaPrice:   percentOf(minPrice, cfg.BucketDeltaPricePercent),
		DeltaAmount:  percentOf(allocation, cfg.BucketDeltaAmountPercent),
	}
}

// Take fills the requested token amount across as many rungs as needed and
// returns the per-rung fragments. The bucket never runs dry: once a rung
// empties the price steps up and a fresh DeltaAmount rung opens.
func (b *Bucket) Take(amount *big.Int) ([]Fragment, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.Wrap(ErrArithmetic, "non-positive take amount")
	}
	if b.DeltaAmount.Sign() <= 0 || b.DeltaPrice.Sign() <= 0 {
		return nil, errors.Wrap(ErrArithmetic, "degenerate bucket geometry")
	}
	var (
		frags   []Fragment
		pending = new(big.Int).Set(amount)
	)
	for pending.Sign() > 0 {
		fill := minBig(pending, b.AmountLeft)
		if fill.Sign() > 0 {
			frags = append(frags, Fragment{
				Price:  new(big.Int).Set(b.CurrentPrice),
				Amount: new(big.Int).Set(fill),
			})
			pending = saturatingSub(pending, fill)
			b.AmountLeft = saturatingSub(b.AmountLeft, fill)
		}
		if b.AmountLeft.Sign() == 0 {
			b.CurrentPrice = new(big.Int).Add(b.CurrentPrice, b.DeltaPrice)
			b.AmountLeft = new(big.Int).Set(b.DeltaAmount)
		}
	}
	return frags, nil
}

func getBucket(sr protocol.StateReader, projectID uint64) (*Bucket, error) {
	var b Bucket
	err := sr.State(&b, protocol.NamespaceOption(Namespace), protocol.KeyOption(projectKey(_bucketPrefix, projectID)))
	if errors.Cause(err) == state.ErrStateNotExist {
		return nil, errors.Wrapf(ErrBucketNotFound, "project %d", projectID)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func putBucket(sm protocol.StateManager, b *Bucket) error {
	return sm.PutState(b, protocol.NamespaceOption(Namespace), protocol.KeyOption(projectKey(_bucketPrefix, b.ProjectID)))
}
