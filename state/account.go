// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package state

import (
	"math/big"

	"github.com/pkg/errors"
)

var (
	// ErrNotEnoughBalance indicates the account balance is too low for the operation
	ErrNotEnoughBalance = errors.New("not enough balance")
	// ErrNotEnoughHeld indicates the held amount is too low for the operation
	ErrNotEnoughHeld = errors.New("not enough held balance")
	// ErrInvalidAmount indicates the amount is nil or negative
	ErrInvalidAmount = errors.New("invalid amount")
)

// Account is the canonical representation of one (address, asset) balance.
// Held is the portion of the balance locked by an active participation; it is
// not spendable until released or consumed by settlement.
type Account struct {
	Balance *big.Int
	Held    *big.Int
}

// EmptyAccount returns an account with zero balances
func EmptyAccount() *Account {
	return &Account{
		Balance: big.NewInt(0),
		Held:    big.NewInt(0),
	}
}

// AddBalance adds to the spendable balance
func (ac *Account) AddBalance(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	ac.Balance.Add(ac.Balance, amount)
	return nil
}

// SubBalance subtracts from the spendable balance
func (ac *Account) SubBalance(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Cmp(ac.Balance) > 0 {
		return ErrNotEnoughBalance
	}
	ac.Balance.Sub(ac.Balance, amount)
	return nil
}

// Hold moves an amount from the spendable balance into the held pool
func (ac *Account) Hold(amount *big.Int) error {
	if err := ac.SubBalance(amount); err != nil {
		return err
	}
	ac.Held.Add(ac.Held, amount)
	return nil
}

// Release moves an amount from the held pool back to the spendable balance
func (ac *Account) Release(amount *big.Int) error {
	if err := ac.subHeld(amount); err != nil {
		return err
	}
	ac.Balance.Add(ac.Balance, amount)
	return nil
}

// ConsumeHeld burns an amount out of the held pool; the caller credits the
// counterparty account
func (ac *Account) ConsumeHeld(amount *big.Int) error {
	return ac.subHeld(amount)
}

func (ac *Account) subHeld(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Cmp(ac.Held) > 0 {
		return ErrNotEnoughHeld
	}
	ac.Held.Sub(ac.Held, amount)
	return nil
}

// Clone returns a deep copy of the account
func (ac *Account) Clone() *Account {
	return &Account{
		Balance: new(big.Int).Set(ac.Balance),
		Held:    new(big.Int).Set(ac.Held),
	}
}
