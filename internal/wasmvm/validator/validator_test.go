// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"testing"

	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/bytecode"
	"github.com/dotandev/hesvm/internal/wasmvm/parser"
	"github.com/dotandev/hesvm/internal/wasmvm/wasmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, b *wasmtest.Builder) *ast.Module {
	t.Helper()
	mod, err := parser.Parse(b.Bytes())
	require.NoError(t, err)
	return mod
}

func simpleFunc(resultKind byte, ops []byte) *wasmtest.Builder {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{resultKind})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, ops)))
	return b
}

func TestValidate_ArithmeticIdentity(t *testing.T) {
	ops := []byte{
		wasmtest.OpI32Const, 5,
		wasmtest.OpI32Const, 1,
		wasmtest.OpI32Add,
		wasmtest.OpEnd,
	}
	mod := mustParse(t, simpleFunc(wasmtest.KindI32, ops))
	info := bytecode.Build(mod)
	vm, err := Validate(mod, info)
	require.NoError(t, err)
	assert.Len(t, vm.JumpTables, 1)
}

func TestValidate_StackUnderflow(t *testing.T) {
	ops := []byte{wasmtest.OpI32Add, wasmtest.OpEnd}
	mod := mustParse(t, simpleFunc(wasmtest.KindI32, ops))
	info := bytecode.Build(mod)
	_, err := Validate(mod, info)
	require.Error(t, err)
}

func TestValidate_TypeMismatch(t *testing.T) {
	// push i64 const where i32 is required by add
	ops := []byte{
		wasmtest.OpI32Const, 1,
		wasmtest.OpI64Const, 2,
		wasmtest.OpI32Add,
		wasmtest.OpEnd,
	}
	mod := mustParse(t, simpleFunc(wasmtest.KindI32, ops))
	info := bytecode.Build(mod)
	_, err := Validate(mod, info)
	require.Error(t, err)
}

func TestValidate_UnbalancedResult(t *testing.T) {
	// function declares i32 result but leaves nothing on the stack
	ops := []byte{wasmtest.OpEnd}
	mod := mustParse(t, simpleFunc(wasmtest.KindI32, ops))
	info := bytecode.Build(mod)
	_, err := Validate(mod, info)
	require.Error(t, err)
}

// TestValidate_BlockBrIf builds scenario 2 from the spec: local 0 <- 99,
// a block that br_ifs out when 1+2==3 (always true here), with a
// fall-through reset to 0 that must be skipped.
func TestValidate_BlockBrIf(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))

	locals := []wasmtest.LocalsGroup{{Count: 1, Kind: wasmtest.KindI32}}
	ops := []byte{
		wasmtest.OpI32Const, 99,
		wasmtest.OpLocalSet, 0,
		wasmtest.OpBlock, wasmtest.BlockTypeVoid,
		wasmtest.OpI32Const, 1,
		wasmtest.OpI32Const, 2,
		wasmtest.OpI32Add,
		wasmtest.OpI32Const, 3,
		0x46, // i32.eq
		wasmtest.OpBrIf, 0,
		wasmtest.OpI32Const, 0,
		wasmtest.OpLocalSet, 0,
		wasmtest.OpEnd,
		wasmtest.OpLocalGet, 0,
		wasmtest.OpEnd,
	}
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(locals, ops)))

	mod := mustParse(t, b)
	info := bytecode.Build(mod)
	vm, err := Validate(mod, info)
	require.NoError(t, err)
	require.Len(t, vm.JumpTables, 1)
	require.Len(t, vm.JumpTables[0], 1)
	entry := vm.JumpTables[0][0]
	assert.Positive(t, entry.DeltaIP)
}

// TestValidate_IfElseJumpTable checks both branches of an if/else resolve
// to sane deltas: the If entry must skip past the then-arm to the first
// else-arm instruction, and the Else op's own entry must skip past the
// else-arm to one past the End.
func TestValidate_IfElseJumpTable(t *testing.T) {
	ops := []byte{
		wasmtest.OpI32Const, 1,
		wasmtest.OpIf, wasmtest.BlockTypeI32,
		wasmtest.OpI32Const, 10,
		wasmtest.OpElse,
		wasmtest.OpI32Const, 20,
		wasmtest.OpEnd,
		wasmtest.OpEnd,
	}
	mod := mustParse(t, simpleFunc(wasmtest.KindI32, ops))
	info := bytecode.Build(mod)
	vm, err := Validate(mod, info)
	require.NoError(t, err)
	require.Len(t, vm.JumpTables, 1)
	require.Len(t, vm.JumpTables[0], 2)

	ifEntry := vm.JumpTables[0][0]
	elseEntry := vm.JumpTables[0][1]
	assert.Positive(t, ifEntry.DeltaIP)
	assert.Positive(t, elseEntry.DeltaIP)

	// decoded op stream: 0=I32Const 1=If 2=I32Const 3=Else 4=I32Const
	// 5=End(if) 6=End(func)
	ifOpIdx, elseOpIdx, ifEndOpIdx := 1, 3, 5
	assert.Equal(t, elseOpIdx+1, ifOpIdx+ifEntry.DeltaIP) // lands on first else-arm op
	assert.Equal(t, ifEndOpIdx+1, elseOpIdx+elseEntry.DeltaIP) // lands one past the if's End
}

func TestValidate_ElseWithoutIf(t *testing.T) {
	ops := []byte{wasmtest.OpElse, wasmtest.OpEnd}
	mod := mustParse(t, simpleFunc(wasmtest.KindI32, ops))
	info := bytecode.Build(mod)
	_, err := Validate(mod, info)
	require.Error(t, err)
}

func TestValidate_ImmutableGlobalWrite(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, nil)))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))

	var globalContent []byte
	globalContent = append(globalContent, wasmtest.KindI32, 0x00) // immutable
	globalContent = append(globalContent, wasmtest.OpI32Const, 0, wasmtest.OpEnd)
	b.Section(6, wasmtest.Vec(1, globalContent))

	ops := []byte{
		wasmtest.OpI32Const, 1,
		wasmtest.OpGlobalSet, 0,
		wasmtest.OpEnd,
	}
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, ops)))

	mod := mustParse(t, b)
	info := bytecode.Build(mod)
	_, err := Validate(mod, info)
	require.Error(t, err)
}

func TestValidate_CallSignature(t *testing.T) {
	b := wasmtest.New()
	// type 0: (i32)->i32 ; type 1: ()->i32
	typeSec := wasmtest.FuncType([]byte{wasmtest.KindI32}, []byte{wasmtest.KindI32})
	typeSec = append(typeSec, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})...)
	b.Section(1, wasmtest.Vec(2, typeSec))

	funcSec := wasmtest.AppendU32(nil, 0)
	funcSec = wasmtest.AppendU32(funcSec, 1)
	b.Section(3, wasmtest.Vec(2, funcSec))

	// func 0: (i32)->i32, just returns the param
	fn0 := wasmtest.CodeBody(nil, []byte{wasmtest.OpLocalGet, 0, wasmtest.OpEnd})
	// func 1: ()->i32, calls func 0 with const 7
	fn1 := wasmtest.CodeBody(nil, []byte{wasmtest.OpI32Const, 7, wasmtest.OpCall, 0, wasmtest.OpEnd})
	codeSec := append(fn0, fn1...)
	b.Section(10, wasmtest.Vec(2, codeSec))

	mod := mustParse(t, b)
	info := bytecode.Build(mod)
	_, err := Validate(mod, info)
	require.NoError(t, err)
}
