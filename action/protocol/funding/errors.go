// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import "github.com/pkg/errors"

// Errors
var (
	// ErrProjectNotFound indicates the project does not exist
	ErrProjectNotFound = errors.New("project not found")
	// ErrRecordNotFound indicates an evaluation/bid/contribution record does not exist
	ErrRecordNotFound = errors.New("participation record not found")
	// ErrBucketNotFound indicates the auction bucket does not exist
	ErrBucketNotFound = errors.New("auction bucket not found")
	// ErrIncorrectRound indicates the operation is invalid for the project's current round
	ErrIncorrectRound = errors.New("incorrect round for the operation")
	// ErrTooEarly indicates the operation arrived before the round allows it
	ErrTooEarly = errors.New("too early for the operation")
	// ErrTooLate indicates the operation arrived after the round allows it
	ErrTooLate = errors.New("too late for the operation")
	// ErrNotIssuer indicates the caller is not the project issuer
	ErrNotIssuer = errors.New("caller is not the project issuer")
	// ErrIssuerParticipation indicates the issuer tried to participate in its own raise
	ErrIssuerParticipation = errors.New("issuer cannot participate in its own project")
	// ErrNotAccredited indicates the tier is not allowed to bid in the auction
	ErrNotAccredited = errors.New("tier is not accredited for the auction rounds")
	// ErrBelowMinimum indicates the amount is below the configured minimum
	ErrBelowMinimum = errors.New("amount below the configured minimum")
	// ErrTicketSize indicates the ticket violates the tier's ticket-size bounds
	ErrTicketSize = errors.New("ticket size out of the tier's bounds")
	// ErrMultiplier indicates the multiplier is out of the tier's bounds
	ErrMultiplier = errors.New("multiplier out of the tier's bounds")
	// ErrTooManyParticipations indicates a participation cap was exceeded
	ErrTooManyParticipations = errors.New("too many participations")
	// ErrUnsupportedAsset indicates the funding asset is not accepted by the project
	ErrUnsupportedAsset = errors.New("unsupported funding asset")
	// ErrMissingPrice indicates the oracle has no price for the asset
	ErrMissingPrice = errors.New("missing oracle price")
	// ErrArithmetic indicates an overflow, division by zero or similar numeric failure
	ErrArithmetic = errors.New("arithmetic failure")
	// ErrScheduleFull indicates the scheduled-update queue insertion retries were exhausted
	ErrScheduleFull = errors.New("scheduled-update queue insertion retries exhausted")
	// ErrAllocationExhausted indicates no token allocation is left in the round
	ErrAllocationExhausted = errors.New("token allocation exhausted")
	// ErrSettlementPending indicates settlement records are still outstanding
	ErrSettlementPending = errors.New("settlement records still outstanding")
	// ErrFrozen indicates the project metadata is already frozen
	ErrFrozen = errors.New("project metadata is frozen")
	// ErrNotBeneficiary indicates the caller does not own the release schedule
	ErrNotBeneficiary = errors.New("caller is not the schedule beneficiary")
)
