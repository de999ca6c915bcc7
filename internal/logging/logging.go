/*
Copyright 2025 The htsgetd Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging builds the process-wide zap logger from a small,
// config-driven set of output styles.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Style selects the logger's output encoding.
type Style string

const (
	StyleTerminal Style = "terminal"
	StyleJSON     Style = "json"
	StyleNoop     Style = "noop"
)

// Config controls logger construction; the zero value yields a
// terminal-style, info-level logger.
type Config struct {
	Style Style
	Level string
}

// New builds a zap logger per cfg. An unrecognized Level defaults to
// info rather than failing startup over a typo in a log setting.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if lvl, err := zapcore.ParseLevel(cfg.Level); err == nil {
			level = lvl
		}
	}

	switch cfg.Style {
	case StyleNoop:
		return zap.NewNop(), nil

	case StyleJSON:
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		logger, err := zcfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
		if err != nil {
			return nil, fmt.Errorf("building json logger: %w", err)
		}
		return logger, nil

	case StyleTerminal, "":
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		logger, err := zcfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
		if err != nil {
			return nil, fmt.Errorf("building terminal logger: %w", err)
		}
		return logger, nil

	default:
		return nil, fmt.Errorf("invalid logging style %q: must be one of terminal, json, noop", cfg.Style)
	}
}
