// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package wasmver checks a module's 4-byte version field against the set
// of versions this core actually implements, using a real constraint
// instead of a bare equality check, so supporting a future version is a
// constraint edit rather than a new code path.
package wasmver

import (
	"fmt"

	hversion "github.com/hashicorp/go-version"

	"github.com/dotandev/hesvm/internal/werrors"
)

// CoreConstraint is the set of wasm versions this engine's parser,
// validator, and interpreter support. The binary format's version field is
// a little-endian uint32; this core only understands version 1.
const CoreConstraint = "= 1.0"

// Check parses raw (the module header's four version bytes) as a dotted
// major.minor version -- byte 0 is major, byte 1 is minor, bytes 2-3 are
// reserved and must be zero -- and verifies it satisfies CoreConstraint.
func Check(raw [4]byte) error {
	if raw[2] != 0 || raw[3] != 0 {
		return werrors.Wrapf(werrors.ErrInvalidVersion, "reserved version bytes must be zero, got %v", raw[2:4])
	}

	v, err := hversion.NewVersion(fmt.Sprintf("%d.%d", raw[0], raw[1]))
	if err != nil {
		return werrors.Wrapf(werrors.ErrInvalidVersion, "parse version bytes %v: %v", raw, err)
	}

	c, err := hversion.NewConstraint(CoreConstraint)
	if err != nil {
		return werrors.Wrapf(werrors.ErrInvalidVersion, "internal constraint %q: %v", CoreConstraint, err)
	}

	if !c.Check(v) {
		return werrors.Wrapf(werrors.ErrInvalidVersion, "version %s does not satisfy %s", v, CoreConstraint)
	}
	return nil
}
