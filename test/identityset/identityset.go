// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package identityset provides a deterministic set of test identities.
package identityset

import (
	"fmt"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"go.uber.org/zap"

	"github.com/polimec/polimec-core/pkg/log"
)

const _size = 32

// Size returns the number of identities in the set
func Size() int { return _size }

// Address returns the i-th identity's address
func Address(i int) address.Address {
	if i < 0 || i >= _size {
		log.L().Panic("identity index out of range", zap.Int("index", i))
	}
	h := hash.Hash160b([]byte(fmt.Sprintf("polimec.identity.%d", i)))
	addr, err := address.FromBytes(h[:])
	if err != nil {
		log.L().Panic("failed to construct the address", zap.Error(err))
	}
	return addr
}
