// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

// Config is the configuration of the KV store
type Config struct {
	// DbPath is the path of the database file
	DbPath string `yaml:"dbPath"`
	// NumRetries is the number of retries for a failed db operation
	NumRetries uint8 `yaml:"numRetries"`
}

// DefaultConfig returns the default config of the KV store
var DefaultConfig = Config{
	DbPath:     "./chain.db",
	NumRetries: 3,
}
