// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccountBalance(t *testing.T) {
	r := require.New(t)
	acct := EmptyAccount()

	r.NoError(acct.AddBalance(big.NewInt(100)))
	r.Equal(int64(100), acct.Balance.Int64())
	r.Equal(ErrInvalidAmount, acct.AddBalance(nil))
	r.Equal(ErrInvalidAmount, acct.AddBalance(big.NewInt(-1)))

	r.NoError(acct.SubBalance(big.NewInt(40)))
	r.Equal(int64(60), acct.Balance.Int64())
	r.Equal(ErrNotEnoughBalance, acct.SubBalance(big.NewInt(61)))
}

func TestAccountHold(t *testing.T) {
	r := require.New(t)
	acct := EmptyAccount()
	r.NoError(acct.AddBalance(big.NewInt(100)))

	r.NoError(acct.Hold(big.NewInt(70)))
	r.Equal(int64(30), acct.Balance.Int64())
	r.Equal(int64(70), acct.Held.Int64())

	// held funds are not spendable
	r.Equal(ErrNotEnoughBalance, acct.SubBalance(big.NewInt(31)))
	r.Equal(ErrNotEnoughBalance, acct.Hold(big.NewInt(31)))

	r.NoError(acct.Release(big.NewInt(20)))
	r.Equal(int64(50), acct.Balance.Int64())
	r.Equal(int64(50), acct.Held.Int64())

	r.NoError(acct.ConsumeHeld(big.NewInt(50)))
	r.Equal(int64(0), acct.Held.Int64())
	r.Equal(int64(50), acct.Balance.Int64())
	r.Equal(ErrNotEnoughHeld, acct.ConsumeHeld(big.NewInt(1)))
	r.Equal(ErrNotEnoughHeld, acct.Release(big.NewInt(1)))
}

func TestAccountClone(t *testing.T) {
	r := require.New(t)
	acct := EmptyAccount()
	r.NoError(acct.AddBalance(big.NewInt(5)))

	clone := acct.Clone()
	r.NoError(clone.AddBalance(big.NewInt(10)))
	r.Equal(int64(5), acct.Balance.Int64())
	r.Equal(int64(15), clone.Balance.Int64())
}

func TestAccountSerialization(t *testing.T) {
	r := require.New(t)
	acct := EmptyAccount()
	r.NoError(acct.AddBalance(big.NewInt(123456)))
	r.NoError(acct.Hold(big.NewInt(456)))

	data, err := Serialize(acct)
	r.NoError(err)
	loaded := EmptyAccount()
	r.NoError(Deserialize(loaded, data))
	r.Equal(acct.Balance, loaded.Balance)
	r.Equal(acct.Held, loaded.Held)
}
