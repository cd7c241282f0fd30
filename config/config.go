// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package config aggregates the configuration of every component behind a
// single YAML document. Values layer in order: defaults, then the config
// file, with ${ENV} expansion applied to the file.
package config

import (
	"os"

	"github.com/pkg/errors"
	uconfig "go.uber.org/config"

	"github.com/polimec/polimec-core/action/protocol/funding"
	"github.com/polimec/polimec-core/action/protocol/migration"
	"github.com/polimec/polimec-core/db"
	"github.com/polimec/polimec-core/pkg/log"
)

// Config is the root configuration
type Config struct {
	DB        db.Config        `yaml:"db"`
	Log       log.GlobalConfig `yaml:"log"`
	Funding   funding.Config   `yaml:"funding"`
	Migration migration.Config `yaml:"migration"`
}

// Default is the default config
var Default = Config{
	DB:        db.DefaultConfig,
	Funding:   funding.DefaultConfig,
	Migration: migration.DefaultConfig,
}

// New creates a config, layering the given YAML files over the defaults
func New(paths ...string) (Config, error) {
	opts := []uconfig.YAMLOption{
		uconfig.Static(Default),
		uconfig.Expand(os.LookupEnv),
	}
	for _, path := range paths {
		opts = append(opts, uconfig.File(path))
	}
	yaml, err := uconfig.NewYAML(opts...)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to init config")
	}
	var cfg Config
	if err := yaml.Get(uconfig.Root).Populate(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal YAML config to struct")
	}
	return cfg, nil
}
