// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package log provides the global loggers used across the node. Callers grab
// the structured logger with L() or the sugared one with S(); sub-loggers can
// be registered per subsystem and fetched by name.
package log

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GlobalConfig defines the global logger configurations.
type GlobalConfig struct {
	Zap         *zap.Config       `json:"zap" yaml:"zap"`
	SubLogs     map[string]string `json:"subLogs" yaml:"subLogs"`
	RedirectStd bool              `json:"stdLogRedirect" yaml:"stdLogRedirect"`
}

var (
	_globalMu     sync.RWMutex
	_globalLogger *zap.Logger
	_subLoggers   map[string]*zap.Logger
)

func init() {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zapCfg.Level.SetLevel(zap.InfoLevel)
	l, err := zapCfg.Build()
	if err != nil {
		panic("failed to initialize the fallback logger")
	}
	_globalLogger = l
	_subLoggers = make(map[string]*zap.Logger)
}

// L wraps the global logger.
func L() *zap.Logger {
	_globalMu.RLock()
	defer _globalMu.RUnlock()
	return _globalLogger
}

// S wraps the sugared global logger.
func S() *zap.SugaredLogger { return L().Sugar() }

// Logger returns the logger of the given sub-system, falling back to the
// global logger if the name was never registered.
func Logger(name string) *zap.Logger {
	_globalMu.RLock()
	defer _globalMu.RUnlock()
	if l, ok := _subLoggers[name]; ok {
		return l
	}
	return _globalLogger
}

// InitLoggers initializes the global and the sub-system loggers from config.
func InitLoggers(cfg GlobalConfig, opts ...zap.Option) error {
	zapCfg := cfg.Zap
	if zapCfg == nil {
		c := zap.NewProductionConfig()
		zapCfg = &c
	}
	l, err := zapCfg.Build(opts...)
	if err != nil {
		return errors.Wrap(err, "failed to build the global logger")
	}

	subs := make(map[string]*zap.Logger, len(cfg.SubLogs))
	for name, level := range cfg.SubLogs {
		subCfg := *zapCfg
		var lv zapcore.Level
		if err := lv.Set(level); err != nil {
			return errors.Wrapf(err, "invalid log level %s for sub-logger %s", level, name)
		}
		subCfg.Level = zap.NewAtomicLevelAt(lv)
		sub, err := subCfg.Build(opts...)
		if err != nil {
			return errors.Wrapf(err, "failed to build sub-logger %s", name)
		}
		subs[name] = sub.With(zap.String("subsystem", name))
	}

	_globalMu.Lock()
	_globalLogger = l
	_subLoggers = subs
	if cfg.RedirectStd {
		zap.RedirectStdLog(l)
	}
	_globalMu.Unlock()
	return nil
}
