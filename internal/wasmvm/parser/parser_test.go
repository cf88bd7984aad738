// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"testing"

	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/wasmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RejectsBadMagic(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x61, 0x73, 0x00, 0x01, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestParse_RejectsBadVersion(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00})
	require.Error(t, err)
}

func TestParse_EmptyModule(t *testing.T) {
	mod, err := Parse(wasmtest.New().Bytes())
	require.NoError(t, err)
	assert.Empty(t, mod.Types)
	assert.Empty(t, mod.Code)
}

// TestParse_ArithmeticIdentity builds scenario 1 from the spec: a single
// function "(result i32) i32.const 5 i32.const 1 i32.add", declared as the
// module's start function.
func TestParse_ArithmeticIdentity(t *testing.T) {
	b := wasmtest.New()

	typeSec := wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{wasmtest.KindI32}))
	b.Section(1, typeSec)

	funcSec := wasmtest.Vec(1, wasmtest.AppendU32(nil, 0))
	b.Section(3, funcSec)

	ops := []byte{
		wasmtest.OpI32Const, 5,
		wasmtest.OpI32Const, 1,
		wasmtest.OpI32Add,
		wasmtest.OpEnd,
	}
	codeSec := wasmtest.Vec(1, wasmtest.CodeBody(nil, ops))
	b.Section(10, codeSec)

	startSec := wasmtest.AppendU32(nil, 0)
	b.Section(8, startSec)

	mod, err := Parse(b.Bytes())
	require.NoError(t, err)
	require.Len(t, mod.Types, 1)
	assert.Equal(t, []ast.ValueKind{ast.I32}, mod.Types[0].Results)
	require.Len(t, mod.Code, 1)
	require.Len(t, mod.Code[0].Ops, 4) // const, const, add, end
	assert.Equal(t, ast.OpI32Const, mod.Code[0].Ops[0].Op.Kind)
	assert.Equal(t, int32(5), mod.Code[0].Ops[0].Op.I32)
	assert.Equal(t, ast.OpI32Add, mod.Code[0].Ops[2].Op.Kind)
	require.NotNil(t, mod.Start)
	assert.Equal(t, uint32(0), *mod.Start)
}

func TestParse_CustomSection(t *testing.T) {
	b := wasmtest.New()
	content := wasmtest.AppendName(nil, "hello")
	content = append(content, []byte("payload")...)
	b.Section(0, content)

	mod, err := Parse(b.Bytes())
	require.NoError(t, err)
	require.Len(t, mod.Customs, 1)
	assert.Equal(t, "hello", mod.Customs[0].Name)
	assert.Equal(t, []byte("payload"), mod.Customs[0].Payload)
}

func TestParse_Import(t *testing.T) {
	b := wasmtest.New()
	typeSec := wasmtest.Vec(1, wasmtest.FuncType([]byte{wasmtest.KindI32}, nil))
	b.Section(1, typeSec)

	var importContent []byte
	importContent = wasmtest.AppendName(importContent, "env")
	importContent = wasmtest.AppendName(importContent, "dbg_fail")
	importContent = append(importContent, 0x00) // func import
	importContent = wasmtest.AppendU32(importContent, 0)
	importSec := wasmtest.Vec(1, importContent)
	b.Section(2, importSec)

	mod, err := Parse(b.Bytes())
	require.NoError(t, err)
	require.Len(t, mod.Imports, 1)
	assert.Equal(t, "env", mod.Imports[0].Module)
	assert.Equal(t, "dbg_fail", mod.Imports[0].Name)
	assert.Equal(t, ast.ImportFunc, mod.Imports[0].Desc.Kind)
}

func TestParse_Memory(t *testing.T) {
	b := wasmtest.New()
	memContent := wasmtest.Vec(1, append([]byte{0x00}, wasmtest.AppendU32(nil, 1)...))
	b.Section(5, memContent)

	mod, err := Parse(b.Bytes())
	require.NoError(t, err)
	require.Len(t, mod.Memories, 1)
	assert.Equal(t, uint32(1), mod.Memories[0].Min)
	assert.False(t, mod.Memories[0].HasMax)
}

func TestParse_DataPassive(t *testing.T) {
	b := wasmtest.New()
	var dataContent []byte
	dataContent = wasmtest.AppendU32(dataContent, 1) // mode = passive
	bytesVal := []byte{1, 2, 3, 4}
	dataContent = wasmtest.AppendU32(dataContent, uint32(len(bytesVal)))
	dataContent = append(dataContent, bytesVal...)
	dataSec := wasmtest.Vec(1, dataContent)
	b.Section(11, dataSec)

	mod, err := Parse(b.Bytes())
	require.NoError(t, err)
	require.Len(t, mod.Data, 1)
	assert.Equal(t, ast.DataPassive, mod.Data[0].Mode)
	assert.Equal(t, bytesVal, mod.Data[0].Bytes)
}

func TestParse_RejectsUnsupportedOpcode(t *testing.T) {
	b := wasmtest.New()
	typeSec := wasmtest.Vec(1, wasmtest.FuncType(nil, nil))
	b.Section(1, typeSec)
	funcSec := wasmtest.Vec(1, wasmtest.AppendU32(nil, 0))
	b.Section(3, funcSec)
	ops := []byte{0xd2, wasmtest.OpEnd} // ref.func, not supported
	codeSec := wasmtest.Vec(1, wasmtest.CodeBody(nil, ops))
	b.Section(10, codeSec)

	_, err := Parse(b.Bytes())
	require.Error(t, err)
}
