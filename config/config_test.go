// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	r := require.New(t)
	cfg, err := New()
	r.NoError(err)
	r.Equal(Default.Funding.MinEvaluationUSD, cfg.Funding.MinEvaluationUSD)
	r.Equal(Default.Funding.NativeAsset, cfg.Funding.NativeAsset)
	r.Equal(Default.Migration.QueryTimeout, cfg.Migration.QueryTimeout)
}

func TestNewConfigWithOverride(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	r.NoError(os.WriteFile(path, []byte(`
db:
  dbPath: /tmp/polimec.db
funding:
  minEvaluationUSD: 250
  slashPercent: 10
migration:
  queryTimeout: 5m
`), 0600))

	cfg, err := New(path)
	r.NoError(err)
	r.Equal("/tmp/polimec.db", cfg.DB.DbPath)
	r.Equal(uint64(250), cfg.Funding.MinEvaluationUSD)
	r.Equal(uint64(10), cfg.Funding.SlashPercent)
	r.Equal("5m0s", cfg.Migration.QueryTimeout.String())
	// untouched values keep their defaults
	r.Equal(Default.Funding.RewardThresholdPercent, cfg.Funding.RewardThresholdPercent)
}

func TestNewConfigExpandsEnv(t *testing.T) {
	r := require.New(t)
	t.Setenv("POLIMEC_TEST_DB", "/var/data/plmc.db")
	path := filepath.Join(t.TempDir(), "config.yaml")
	r.NoError(os.WriteFile(path, []byte("db:\n  dbPath: ${POLIMEC_TEST_DB}\n"), 0600))

	cfg, err := New(path)
	r.NoError(err)
	r.Equal("/var/data/plmc.db", cfg.DB.DbPath)
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
