// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package migration

import "time"

// Config carries the migration coordinator policy
type Config struct {
	// QueryTimeout is how long a cross-chain query may stay unanswered
	QueryTimeout time.Duration `yaml:"queryTimeout"`
	// SweepInterval is how often abandoned queries are collected
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// DefaultConfig is the default migration coordinator policy
var DefaultConfig = Config{
	QueryTimeout:  2 * time.Minute,
	SweepInterval: 15 * time.Second,
}
