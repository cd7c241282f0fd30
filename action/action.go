// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package action defines the dispatchable operations of the funding protocol
// and the receipts they produce.
package action

import (
	"math/big"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/pkg/errors"
)

// Receipt status
const (
	// FailureReceiptStatus is the status of a failed action
	FailureReceiptStatus = uint64(0)
	// SuccessReceiptStatus is the status of a successful action
	SuccessReceiptStatus = uint64(1)
)

var (
	// ErrInvalidAmount indicates the amount is nil, zero or negative
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrMissingField indicates a required action field is missing
	ErrMissingField = errors.New("missing data field")
)

type (
	// Action is the generic interface of a dispatchable protocol operation
	Action interface {
		SanityCheck() error
	}

	// Receipt represents the result of an executed action
	Receipt struct {
		Status      uint64
		BlockHeight uint64
		ActionHash  hash.Hash256
	}
)

// InvestorTier is the closed set of participant accreditation kinds
type InvestorTier uint8

// Investor tiers
const (
	// Retail may only participate in the community and remainder rounds
	Retail InvestorTier = iota
	// Professional is an accredited participant
	Professional
	// Institutional is an accredited participant
	Institutional
)

// String returns the tier name
func (t InvestorTier) String() string {
	switch t {
	case Retail:
		return "retail"
	case Professional:
		return "professional"
	case Institutional:
		return "institutional"
	default:
		return "unknown"
	}
}

// Accredited returns whether the tier may bid in the auction rounds
func (t InvestorTier) Accredited() bool {
	return t == Professional || t == Institutional
}

func checkPositive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
