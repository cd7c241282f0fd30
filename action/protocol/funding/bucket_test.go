// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBucketTake(t *testing.T) {
	r := require.New(t)
	cfg := DefaultConfig

	t.Run("single rung", func(t *testing.T) {
		b := NewBucket(1, tokens(40000), price(10), &cfg)
		frags, err := b.Take(tokens(1000))
		r.NoError(err)
		r.Len(frags, 1)
		r.Equal(price(10), frags[0].Price)
		r.Equal(tokens(1000), frags[0].Amount)
		r.Equal(tokens(39000), b.AmountLeft)
		r.Equal(price(10), b.CurrentPrice)
	})

	t.Run("spanning three rungs", func(t *testing.T) {
		b := NewBucket(1, tokens(40000), price(10), &cfg)
		_, err := b.Take(tokens(39300))
		r.NoError(err)
		// 700 left at the base price, then a fresh 4000 rung per step
		frags, err := b.Take(tokens(7700))
		r.NoError(err)
		r.Len(frags, 3)
		r.Equal(tokens(700), frags[0].Amount)
		r.Equal(price(10), frags[0].Price)
		r.Equal(tokens(4000), frags[1].Amount)
		r.Equal(price(11), frags[1].Price)
		r.Equal(tokens(3000), frags[2].Amount)
		r.Equal(price(12), frags[2].Price)
		r.Equal(tokens(1000), b.AmountLeft)
		r.Equal(price(12), b.CurrentPrice)
	})

	t.Run("price only climbs", func(t *testing.T) {
		b := NewBucket(1, tokens(40000), price(10), &cfg)
		last := new(big.Int).Set(b.CurrentPrice)
		for i := 0; i < 20; i++ {
			frags, err := b.Take(tokens(5000))
			r.NoError(err)
			for _, f := range frags {
				r.True(f.Price.Cmp(last) >= 0)
				last.Set(f.Price)
			}
			r.True(b.AmountLeft.Sign() >= 0)
		}
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		b := NewBucket(1, tokens(40000), price(10), &cfg)
		_, err := b.Take(big.NewInt(0))
		r.Error(err)
		_, err = b.Take(nil)
		r.Error(err)
	})
}
