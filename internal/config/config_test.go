// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	original := os.Getenv("HOME")
	t.Cleanup(func() { os.Setenv("HOME", original) })
	os.Setenv("HOME", tmp)
	return tmp
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1024, cfg.MaxCallDepth)
	assert.True(t, cfg.ModuleCacheEnabled)
}

func TestLoadConfig_MissingFileReturnsDefault(t *testing.T) {
	withHome(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	withHome(t)
	cfg := DefaultConfig()
	cfg.MaxCallDepth = 42
	cfg.MaxMemoryPages = 16

	require.NoError(t, SaveConfig(cfg))

	loaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.MaxCallDepth)
	assert.Equal(t, uint32(16), loaded.MaxMemoryPages)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := withHome(t)

	configDir := filepath.Join(home, ".hesvm")
	require.NoError(t, os.MkdirAll(configDir, 0700))
	configFile := filepath.Join(configDir, "config.json")
	require.NoError(t, os.WriteFile(configFile, []byte(`{"max_call_depth": 10}`), 0600))

	original := os.Getenv("HESVM_MAX_CALL_DEPTH")
	t.Cleanup(func() { os.Setenv("HESVM_MAX_CALL_DEPTH", original) })
	os.Setenv("HESVM_MAX_CALL_DEPTH", "99")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.MaxCallDepth)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	withHome(t)

	original := os.Getenv("HESVM_MAX_CALL_DEPTH")
	t.Cleanup(func() { os.Setenv("HESVM_MAX_CALL_DEPTH", original) })
	os.Setenv("HESVM_MAX_CALL_DEPTH", "-1")

	_, err := Load()
	require.Error(t, err)
}
