// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package config holds the engine-wide knobs that are not part of any one
// wasm module: resource limits enforced by the interpreter, and whether
// validated modules are cached on disk between runs.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dotandev/hesvm/internal/werrors"
)

// Config is the engine's resolved configuration: limits the interpreter
// enforces at runtime, plus the module cache's on/off switch and location.
type Config struct {
	LogLevel string `json:"log_level,omitempty"`

	// MaxMemoryPages bounds how many 64KiB pages a single instance's linear
	// memory may start with; memory does not grow after instantiation. Zero
	// means unbounded (up to wasm's own 4GiB cap).
	MaxMemoryPages uint32 `json:"max_memory_pages,omitempty"`

	// MaxCallDepth bounds the activation-frame stack. Exceeding it traps
	// with werrors.ErrCallStackOverflow instead of exhausting the host stack.
	MaxCallDepth int `json:"max_call_depth,omitempty"`

	ModuleCacheEnabled bool   `json:"module_cache_enabled,omitempty"`
	ModuleCachePath    string `json:"module_cache_path,omitempty"`
}

var defaultConfig = &Config{
	LogLevel:           "info",
	MaxMemoryPages:      0,
	MaxCallDepth:        1024,
	ModuleCacheEnabled:  true,
	ModuleCachePath:     filepath.Join(os.ExpandEnv("$HOME"), ".hesvm", "modcache.db"),
}

// DefaultConfig returns a copy of the engine's built-in defaults.
func DefaultConfig() *Config {
	cfg := *defaultConfig
	return &cfg
}

// GetConfigPath returns the path to the hesvm configuration directory.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", werrors.Wrapf(err, "resolve home directory")
	}
	return filepath.Join(home, ".hesvm"), nil
}

// GetGeneralConfigPath returns the path to the JSON configuration file.
func GetGeneralConfigPath() (string, error) {
	configDir, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// LoadConfig loads the configuration from disk (JSON), falling back to the
// built-in defaults when no config file exists yet.
func LoadConfig() (*Config, error) {
	configPath, err := GetGeneralConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, werrors.Wrapf(err, "read config file %s", configPath)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, werrors.Wrapf(err, "parse config file %s", configPath)
	}

	return cfg, nil
}

// Load resolves the configuration from, in increasing priority: the
// JSON config file, then environment variables. The result is validated
// before being returned.
func Load() (*Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("HESVM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HESVM_MAX_MEMORY_PAGES"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.MaxMemoryPages = uint32(n)
		}
	}
	if v := os.Getenv("HESVM_MAX_CALL_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxCallDepth = n
		}
	}
	if v := os.Getenv("HESVM_MODULE_CACHE_PATH"); v != "" {
		cfg.ModuleCachePath = v
	}
	switch strings.ToLower(os.Getenv("HESVM_MODULE_CACHE_ENABLED")) {
	case "1", "true", "yes":
		cfg.ModuleCacheEnabled = true
	case "0", "false", "no":
		cfg.ModuleCacheEnabled = false
	}

	if err := RunValidators(cfg, DefaultValidators()); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig persists the configuration to disk as JSON.
func SaveConfig(cfg *Config) error {
	configPath, err := GetGeneralConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return werrors.Wrapf(err, "create config directory %s", configDir)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return werrors.Wrapf(err, "marshal config")
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return werrors.Wrapf(err, "write config file %s", configPath)
	}

	return nil
}

func (c *Config) String() string {
	return "Config{LogLevel: " + c.LogLevel +
		", MaxMemoryPages: " + strconv.FormatUint(uint64(c.MaxMemoryPages), 10) +
		", MaxCallDepth: " + strconv.Itoa(c.MaxCallDepth) +
		", ModuleCachePath: " + c.ModuleCachePath + "}"
}
