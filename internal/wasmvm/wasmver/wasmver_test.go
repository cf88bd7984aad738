// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package wasmver

import (
	"testing"

	"github.com/dotandev/hesvm/internal/werrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_Accepts1_0(t *testing.T) {
	require.NoError(t, Check([4]byte{1, 0, 0, 0}))
}

func TestCheck_RejectsOtherMajor(t *testing.T) {
	err := Check([4]byte{2, 0, 0, 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, werrors.ErrInvalidVersion)
}

func TestCheck_RejectsNonZeroReserved(t *testing.T) {
	err := Check([4]byte{1, 0, 0, 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, werrors.ErrInvalidVersion)
}
