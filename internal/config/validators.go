// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"path/filepath"
	"strings"

	"github.com/dotandev/hesvm/internal/werrors"
)

// Validator validates a specific aspect of the configuration.
type Validator interface {
	Validate(cfg *Config) error
}

// LogLevelValidator checks that the log level is a known value.
type LogLevelValidator struct{}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func (v LogLevelValidator) Validate(cfg *Config) error {
	if cfg.LogLevel == "" {
		return nil
	}
	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return werrors.Wrapf(werrors.ErrInvalidConfig, "log_level must be one of: trace, debug, info, warn, error")
	}
	return nil
}

// ResourceLimitsValidator checks that the engine's resource limits are
// sane: a negative call depth or a memory cap above wasm's own hard limit
// can never be satisfied.
type ResourceLimitsValidator struct{}

const wasmMaxPages = 65536 // 4GiB / 64KiB

func (v ResourceLimitsValidator) Validate(cfg *Config) error {
	if cfg.MaxCallDepth < 0 {
		return werrors.Wrapf(werrors.ErrInvalidConfig, "max_call_depth cannot be negative")
	}
	if cfg.MaxMemoryPages > wasmMaxPages {
		return werrors.Wrapf(werrors.ErrInvalidConfig, "max_memory_pages cannot exceed %d", wasmMaxPages)
	}
	return nil
}

// ModuleCacheValidator checks that an enabled module cache has a path.
type ModuleCacheValidator struct{}

func (v ModuleCacheValidator) Validate(cfg *Config) error {
	if !cfg.ModuleCacheEnabled {
		return nil
	}
	if cfg.ModuleCachePath == "" {
		return werrors.Wrapf(werrors.ErrInvalidConfig, "module_cache_path cannot be empty when the cache is enabled")
	}
	if !filepath.IsAbs(cfg.ModuleCachePath) {
		return werrors.Wrapf(werrors.ErrInvalidConfig, "module_cache_path must be an absolute path")
	}
	return nil
}

// DefaultValidators returns the standard set of validators.
func DefaultValidators() []Validator {
	return []Validator{
		LogLevelValidator{},
		ResourceLimitsValidator{},
		ModuleCacheValidator{},
	}
}

// RunValidators executes each validator against the config, returning the
// first error encountered.
func RunValidators(cfg *Config, validators []Validator) error {
	for _, v := range validators {
		if err := v.Validate(cfg); err != nil {
			return err
		}
	}
	return nil
}
