// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package account keeps the per-(address, asset) balances and the holds the
// funding protocol places on them.
package account

import (
	"math/big"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/pkg/errors"

	"github.com/polimec/polimec-core/action/protocol"
	"github.com/polimec/polimec-core/state"
)

// Namespace is the state namespace of accounts
const Namespace = "Account"

func accountKey(addr, asset string) hash.Hash160 {
	return hash.Hash160b([]byte(addr + "." + asset))
}

// LoadAccount loads the (address, asset) account; a missing account comes
// back empty rather than as an error
func LoadAccount(sr protocol.StateReader, addr, asset string) (*state.Account, error) {
	acct := state.EmptyAccount()
	err := sr.State(acct, protocol.NamespaceOption(Namespace), protocol.LegacyKeyOption(accountKey(addr, asset)))
	switch errors.Cause(err) {
	case nil, state.ErrStateNotExist:
		return acct, nil
	default:
		return nil, err
	}
}

// StoreAccount puts the (address, asset) account into the working set
func StoreAccount(sm protocol.StateManager, addr, asset string, acct *state.Account) error {
	return sm.PutState(acct, protocol.NamespaceOption(Namespace), protocol.LegacyKeyOption(accountKey(addr, asset)))
}

// Mint credits freshly issued units to the address
func Mint(sm protocol.StateManager, addr, asset string, amount *big.Int) error {
	acct, err := LoadAccount(sm, addr, asset)
	if err != nil {
		return err
	}
	if err := acct.AddBalance(amount); err != nil {
		return errors.Wrapf(err, "failed to mint %s to %s", asset, addr)
	}
	return StoreAccount(sm, addr, asset, acct)
}

// Transfer moves spendable units between two addresses
func Transfer(sm protocol.StateManager, from, to, asset string, amount *big.Int) error {
	src, err := LoadAccount(sm, from, asset)
	if err != nil {
		return err
	}
	if err := src.SubBalance(amount); err != nil {
		return errors.Wrapf(err, "failed to debit %s from %s", asset, from)
	}
	if err := StoreAccount(sm, from, asset, src); err != nil {
		return err
	}
	dst, err := LoadAccount(sm, to, asset)
	if err != nil {
		return err
	}
	if err := dst.AddBalance(amount); err != nil {
		return errors.Wrapf(err, "failed to credit %s to %s", asset, to)
	}
	return StoreAccount(sm, to, asset, dst)
}

// Hold locks an amount of the address' spendable balance
func Hold(sm protocol.StateManager, addr, asset string, amount *big.Int) error {
	acct, err := LoadAccount(sm, addr, asset)
	if err != nil {
		return err
	}
	if err := acct.Hold(amount); err != nil {
		return errors.Wrapf(err, "failed to hold %s of %s", asset, addr)
	}
	return StoreAccount(sm, addr, asset, acct)
}

// Release unlocks a previously held amount back into the spendable balance
func Release(sm protocol.StateManager, addr, asset string, amount *big.Int) error {
	acct, err := LoadAccount(sm, addr, asset)
	if err != nil {
		return err
	}
	if err := acct.Release(amount); err != nil {
		return errors.Wrapf(err, "failed to release %s of %s", asset, addr)
	}
	return StoreAccount(sm, addr, asset, acct)
}

// TransferOnHold consumes a held amount of `from` and credits it to `to`
func TransferOnHold(sm protocol.StateManager, from, to, asset string, amount *big.Int) error {
	src, err := LoadAccount(sm, from, asset)
	if err != nil {
		return err
	}
	if err := src.ConsumeHeld(amount); err != nil {
		return errors.Wrapf(err, "failed to consume held %s of %s", asset, from)
	}
	if err := StoreAccount(sm, from, asset, src); err != nil {
		return err
	}
	dst, err := LoadAccount(sm, to, asset)
	if err != nil {
		return err
	}
	if err := dst.AddBalance(amount); err != nil {
		return errors.Wrapf(err, "failed to credit %s to %s", asset, to)
	}
	return StoreAccount(sm, to, asset, dst)
}
