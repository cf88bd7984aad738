// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package modcache is a content-addressed cache of validated modules,
// backed by SQLite, so engine.CompileCached can skip re-parsing and
// re-validating bytes it has already seen.
package modcache

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/gob"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/dotandev/hesvm/internal/wasmvm/validator"
	"github.com/dotandev/hesvm/internal/werrors"

	_ "modernc.org/sqlite"
)

// Cache is a handle to the on-disk SQLite cache.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, werrors.Wrapf(err, "create module cache directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, werrors.Wrapf(err, "open module cache %s", path)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS modules (
		hash TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`)
	if err != nil {
		return werrors.Wrapf(err, "init module cache schema")
	}
	return nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Hash returns the cache key for a module's raw bytes.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached ValidatedModule for hash, and whether it was
// found.
func (c *Cache) Lookup(hash string) (*validator.ValidatedModule, bool, error) {
	var payload []byte
	err := c.db.QueryRow(`SELECT payload FROM modules WHERE hash = ?`, hash).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, werrors.Wrapf(err, "query module cache")
	}

	var vm validator.ValidatedModule
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&vm); err != nil {
		return nil, false, werrors.Wrapf(err, "decode cached module")
	}
	return &vm, true, nil
}

// Store persists vm under hash, replacing any prior entry.
func (c *Cache) Store(hash string, vm *validator.ValidatedModule) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vm); err != nil {
		return werrors.Wrapf(err, "encode module for cache")
	}

	_, err := c.db.Exec(
		`INSERT INTO modules (hash, payload) VALUES (?, ?)
		 ON CONFLICT(hash) DO UPDATE SET payload = excluded.payload`,
		hash, buf.Bytes(),
	)
	if err != nil {
		return werrors.Wrapf(err, "store module in cache")
	}
	return nil
}
