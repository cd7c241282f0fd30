// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"math/big"

	"github.com/pkg/errors"
)

// PriceOracle provides spot prices of the accepted assets, denominated in
// USD18 (USD scaled by 1e18) per whole token.
type PriceOracle interface {
	Price(asset string) (*big.Int, error)
}

// usdScale is the fixed-point scale of USD amounts and prices
var usdScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// WholeUSD converts whole dollars into USD18
func WholeUSD(n uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(n), usdScale)
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// usdFromAsset values an asset amount (native minimal units) at the given
// USD18 price per whole token
func usdFromAsset(amount, price *big.Int, decimals uint8) (*big.Int, error) {
	if amount == nil || price == nil {
		return nil, errors.Wrap(ErrArithmetic, "nil operand in USD conversion")
	}
	usd := new(big.Int).Mul(amount, price)
	return usd.Div(usd, pow10(decimals)), nil
}

// assetFromUSD converts a USD18 value into asset native minimal units at the
// given USD18 price per whole token, rounding down
func assetFromUSD(usd, price *big.Int, decimals uint8) (*big.Int, error) {
	if usd == nil || price == nil {
		return nil, errors.Wrap(ErrArithmetic, "nil operand in USD conversion")
	}
	if price.Sign() <= 0 {
		return nil, errors.Wrap(ErrArithmetic, "non-positive price")
	}
	amount := new(big.Int).Mul(usd, pow10(decimals))
	return amount.Div(amount, price), nil
}

// oraclePrice fetches and validates the oracle price of an asset
func oraclePrice(oracle PriceOracle, asset string) (*big.Int, error) {
	price, err := oracle.Price(asset)
	if err != nil {
		return nil, errors.Wrapf(ErrMissingPrice, "asset %s: %v", asset, err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, errors.Wrapf(ErrMissingPrice, "asset %s: empty price", asset)
	}
	return price, nil
}

// percentOf returns x * pct / 100
func percentOf(x *big.Int, pct uint64) *big.Int {
	v := new(big.Int).Mul(x, new(big.Int).SetUint64(pct))
	return v.Div(v, big.NewInt(100))
}

// saturatingSub returns max(a - b, 0)
func saturatingSub(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Sub(a, b)
}

// minBig returns the smaller of a and b
func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}
