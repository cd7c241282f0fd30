// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package account

import (
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/polimec/polimec-core/db"
	"github.com/polimec/polimec-core/state"
	"github.com/polimec/polimec-core/state/factory"
	"github.com/polimec/polimec-core/test/identityset"
)

func TestAccountAssetIsolation(t *testing.T) {
	r := require.New(t)
	ws := factory.NewWorkingSet(1, db.NewMemKVStore())
	addr := identityset.Address(1).String()

	// an account never seen before is empty, not an error
	acct, err := LoadAccount(ws, addr, "PLMC")
	r.NoError(err)
	r.Equal(int64(0), acct.Balance.Int64())

	r.NoError(Mint(ws, addr, "PLMC", big.NewInt(100)))
	r.NoError(Mint(ws, addr, "USDT", big.NewInt(7)))

	acct, err = LoadAccount(ws, addr, "PLMC")
	r.NoError(err)
	r.Equal(int64(100), acct.Balance.Int64())
	acct, err = LoadAccount(ws, addr, "USDT")
	r.NoError(err)
	r.Equal(int64(7), acct.Balance.Int64())
}

func TestTransfer(t *testing.T) {
	r := require.New(t)
	ws := factory.NewWorkingSet(1, db.NewMemKVStore())
	alice := identityset.Address(1).String()
	bob := identityset.Address(2).String()

	r.NoError(Mint(ws, alice, "PLMC", big.NewInt(100)))
	r.NoError(Transfer(ws, alice, bob, "PLMC", big.NewInt(30)))

	a, err := LoadAccount(ws, alice, "PLMC")
	r.NoError(err)
	r.Equal(int64(70), a.Balance.Int64())
	b, err := LoadAccount(ws, bob, "PLMC")
	r.NoError(err)
	r.Equal(int64(30), b.Balance.Int64())

	err = Transfer(ws, alice, bob, "PLMC", big.NewInt(71))
	r.Equal(state.ErrNotEnoughBalance, errors.Cause(err))
}

func TestHoldAndSettle(t *testing.T) {
	r := require.New(t)
	ws := factory.NewWorkingSet(1, db.NewMemKVStore())
	alice := identityset.Address(1).String()
	bob := identityset.Address(2).String()

	r.NoError(Mint(ws, alice, "PLMC", big.NewInt(100)))
	r.NoError(Hold(ws, alice, "PLMC", big.NewInt(60)))

	a, err := LoadAccount(ws, alice, "PLMC")
	r.NoError(err)
	r.Equal(int64(40), a.Balance.Int64())
	r.Equal(int64(60), a.Held.Int64())

	// held funds cannot be transferred away
	err = Transfer(ws, alice, bob, "PLMC", big.NewInt(41))
	r.Equal(state.ErrNotEnoughBalance, errors.Cause(err))

	// settlement consumes part of the hold and releases the rest
	r.NoError(TransferOnHold(ws, alice, bob, "PLMC", big.NewInt(25)))
	r.NoError(Release(ws, alice, "PLMC", big.NewInt(35)))

	a, err = LoadAccount(ws, alice, "PLMC")
	r.NoError(err)
	r.Equal(int64(75), a.Balance.Int64())
	r.Equal(int64(0), a.Held.Int64())
	b, err := LoadAccount(ws, bob, "PLMC")
	r.NoError(err)
	r.Equal(int64(25), b.Balance.Int64())

	err = Release(ws, alice, "PLMC", big.NewInt(1))
	r.Equal(state.ErrNotEnoughHeld, errors.Cause(err))
}
