// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package interp

import (
	"testing"

	"github.com/dotandev/hesvm/internal/wasmvm/bytecode"
	"github.com/dotandev/hesvm/internal/wasmvm/instance"
	"github.com/dotandev/hesvm/internal/wasmvm/parser"
	"github.com/dotandev/hesvm/internal/wasmvm/validator"
	"github.com/dotandev/hesvm/internal/wasmvm/wasmtest"
	"github.com/dotandev/hesvm/internal/werrors"
	"github.com/stretchr/testify/require"
)

func buildMachine(t *testing.T, b *wasmtest.Builder, env instance.Environment) *Machine {
	t.Helper()
	mod, err := parser.Parse(b.Bytes())
	require.NoError(t, err)
	info := bytecode.Build(mod)
	vm, err := validator.Validate(mod, info)
	require.NoError(t, err)
	inst, err := instance.Build(vm, env, instance.Limits{MaxCallDepth: 32})
	require.NoError(t, err)
	return New(inst)
}

// TestMachine_ArithmeticIdentity covers scenario 1 from the spec: (i32.add
// (i32.const 5) (i32.const 1)) must evaluate to 6.
func TestMachine_ArithmeticIdentity(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	ops := []byte{
		wasmtest.OpI32Const, 5,
		wasmtest.OpI32Const, 1,
		wasmtest.OpI32Add,
		wasmtest.OpEnd,
	}
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, ops)))

	m := buildMachine(t, b, instance.Environment{})
	results, err := m.RunFunc(0, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, int32(6), results[0].AsI32())
}

// TestMachine_BlockBrIf covers scenario 2: local 0 is set to 99, then a
// block's br_if(always true here) skips the reset-to-0 fallthrough, so the
// function returns 99.
func TestMachine_BlockBrIf(t *testing.T) {
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
		wasmtest.OpI32Eq,
		wasmtest.OpBrIf, 0,
		wasmtest.OpI32Const, 0,
		wasmtest.OpLocalSet, 0,
		wasmtest.OpEnd,
		wasmtest.OpLocalGet, 0,
		wasmtest.OpEnd,
	}
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(locals, ops)))

	m := buildMachine(t, b, instance.Environment{})
	results, err := m.RunFunc(0, nil)
	require.NoError(t, err)
	require.Equal(t, int32(99), results[0].AsI32())
}

// TestMachine_IfElse covers scenario 3: a param-driven if/else picks
// between two constants.
func TestMachine_IfElse(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType([]byte{wasmtest.KindI32}, []byte{wasmtest.KindI32})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	ops := []byte{
		wasmtest.OpLocalGet, 0,
		wasmtest.OpIf, wasmtest.BlockTypeI32,
		wasmtest.OpI32Const, 10,
		wasmtest.OpElse,
		wasmtest.OpI32Const, 20,
		wasmtest.OpEnd,
		wasmtest.OpEnd,
	}
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, ops)))

	m := buildMachine(t, b, instance.Environment{})

	results, err := m.RunFunc(0, []instance.Value{instance.I32(1)})
	require.NoError(t, err)
	require.Equal(t, int32(10), results[0].AsI32())

	results, err = m.RunFunc(0, []instance.Value{instance.I32(0)})
	require.NoError(t, err)
	require.Equal(t, int32(20), results[0].AsI32())
}

// TestMachine_HostCallTrap covers scenario 4: a host function returning an
// error traps the calling run_func invocation.
func TestMachine_HostCallTrap(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(2, append(
		wasmtest.FuncType(nil, nil),
		wasmtest.FuncType(nil, nil)...,
	)))

	imp := wasmtest.AppendName(nil, "env")
	imp = append(imp, wasmtest.AppendName(nil, "fail")...)
	imp = append(imp, 0x00)
	imp = append(imp, wasmtest.AppendU32(nil, 0)...)
	b.Section(2, wasmtest.Vec(1, imp))

	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 1)))

	ops := []byte{
		wasmtest.OpCall, 0, // call the imported "fail" at flat index 0
		wasmtest.OpEnd,
	}
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, ops)))

	env := instance.Environment{
		Funcs: map[string]map[string]instance.HostFunction{
			"env": {
				"fail": {
					Handler: func(eng instance.HostEngine, params, results []instance.Value) error {
						return werrors.NewNativeFuncCallError(1)
					},
				},
			},
		},
	}

	m := buildMachine(t, b, env)
	_, err := m.RunFunc(1, nil)
	require.Error(t, err)
}

// TestMachine_MemoryStoreLoad covers scenario 5: a stored i32 round-trips
// through an i32.load at the same address.
func TestMachine_MemoryStoreLoad(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType([]byte{wasmtest.KindI32, wasmtest.KindI32}, []byte{wasmtest.KindI32})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	b.Section(5, wasmtest.Vec(1, append([]byte{0x00}, wasmtest.AppendU32(nil, 1)...)))

	ops := []byte{
		wasmtest.OpLocalGet, 0,
		wasmtest.OpLocalGet, 1,
	}
	ops = append(ops, wasmtest.OpI32Store)
	ops = append(ops, wasmtest.Memarg(2, 0)...)
	ops = append(ops,
		wasmtest.OpLocalGet, 0,
	)
	ops = append(ops, wasmtest.OpI32Load)
	ops = append(ops, wasmtest.Memarg(2, 0)...)
	ops = append(ops, wasmtest.OpEnd)

	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, ops)))

	m := buildMachine(t, b, instance.Environment{})
	results, err := m.RunFunc(0, []instance.Value{instance.I32(8), instance.I32(1234)})
	require.NoError(t, err)
	require.Equal(t, int32(1234), results[0].AsI32())
}

// TestMachine_LoopCounter covers scenario 6: a loop incrementing local 0
// from 0 to 5, driven by a br_if back-edge.
func TestMachine_LoopCounter(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))

	locals := []wasmtest.LocalsGroup{{Count: 1, Kind: wasmtest.KindI32}}
	ops := []byte{
		wasmtest.OpLoop, wasmtest.BlockTypeVoid,
		wasmtest.OpLocalGet, 0,
		wasmtest.OpI32Const, 1,
		wasmtest.OpI32Add,
		wasmtest.OpLocalSet, 0,
		wasmtest.OpLocalGet, 0,
		wasmtest.OpI32Const, 5,
		wasmtest.OpI32LtS,
		wasmtest.OpBrIf, 0,
		wasmtest.OpEnd,
		wasmtest.OpLocalGet, 0,
		wasmtest.OpEnd,
	}
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(locals, ops)))

	m := buildMachine(t, b, instance.Environment{})
	results, err := m.RunFunc(0, nil)
	require.NoError(t, err)
	require.Equal(t, int32(5), results[0].AsI32())
}

// TestMachine_MemoryInit covers scenario 7: memory.init copies a passive
// segment's bytes into memory, where they can then be read back.
func TestMachine_MemoryInit(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	b.Section(5, wasmtest.Vec(1, append([]byte{0x00}, wasmtest.AppendU32(nil, 1)...)))

	payload := []byte{4, 3, 2, 1} // little-endian 0x01020304
	dataEntry := append([]byte{0x01}, wasmtest.Vec(uint32(len(payload)), payload)...)
	b.Section(11, wasmtest.Vec(1, dataEntry))

	ops := []byte{
		wasmtest.OpI32Const, 0, // dest
		wasmtest.OpI32Const, 0, // src
		wasmtest.OpI32Const, 4, // size
		wasmtest.MemBulkPrefix, wasmtest.MemBulkInit, 0x00, 0x00,
		wasmtest.OpI32Const, 0,
	}
	ops = append(ops, wasmtest.OpI32Load)
	ops = append(ops, wasmtest.Memarg(2, 0)...)
	ops = append(ops, wasmtest.OpEnd)

	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, ops)))

	m := buildMachine(t, b, instance.Environment{})
	results, err := m.RunFunc(0, nil)
	require.NoError(t, err)
	require.Equal(t, int32(0x01020304), results[0].AsI32())
}

// TestMachine_CallStackOverflow covers the configured activation-depth
// guard: a function that unconditionally calls itself must trap rather
// than exhaust the host stack.
func TestMachine_CallStackOverflow(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, nil)))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))

	ops := []byte{
		wasmtest.OpCall, 0,
		wasmtest.OpEnd,
	}
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, ops)))

	m := buildMachine(t, b, instance.Environment{})
	_, err := m.RunFunc(0, nil)
	require.ErrorIs(t, err, werrors.ErrCallStackOverflow)
}

// TestMachine_TopLevelBr covers a bare "br 0"/"br_if 0" with no enclosing
// block, i.e. a branch whose label targets the function's own synthetic
// outermost frame. A second function is declared after the one under
// test so that, were the branch to mistakenly follow an ordinary
// intra-function jump computed over the flattened instruction buffer, it
// would run straight into fn1's unrelated body instead of returning.
func TestMachine_TopLevelBr(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})))
	funcSec := wasmtest.AppendU32(nil, 0)
	funcSec = wasmtest.AppendU32(funcSec, 0)
	b.Section(3, wasmtest.Vec(2, funcSec))

	fn0 := wasmtest.CodeBody(nil, []byte{
		wasmtest.OpI32Const, 42,
		wasmtest.OpBr, 0,
		wasmtest.OpI32Const, 99, // unreachable, but present so fn0 isn't trivially empty
		wasmtest.OpEnd,
	})
	fn1 := wasmtest.CodeBody(nil, []byte{
		wasmtest.OpI32Const, 7,
		wasmtest.OpEnd,
	})
	b.Section(10, wasmtest.Vec(2, append(fn0, fn1...)))

	m := buildMachine(t, b, instance.Environment{})
	results, err := m.RunFunc(0, nil)
	require.NoError(t, err)
	require.Equal(t, int32(42), results[0].AsI32())
}

// TestMachine_TopLevelBrIf covers the conditional form of the same case,
// both taken and not taken.
func TestMachine_TopLevelBrIf(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType([]byte{wasmtest.KindI32}, []byte{wasmtest.KindI32})))
	funcSec := wasmtest.AppendU32(nil, 0)
	funcSec = wasmtest.AppendU32(funcSec, 0)
	b.Section(3, wasmtest.Vec(2, funcSec))

	fn0 := wasmtest.CodeBody(nil, []byte{
		wasmtest.OpI32Const, 42,
		wasmtest.OpLocalGet, 0,
		wasmtest.OpBrIf, 0,
		wasmtest.OpDrop,
		wasmtest.OpI32Const, 7,
		wasmtest.OpEnd,
	})
	fn1 := wasmtest.CodeBody(nil, []byte{
		wasmtest.OpI32Const, 13,
		wasmtest.OpEnd,
	})
	b.Section(10, wasmtest.Vec(2, append(fn0, fn1...)))

	m := buildMachine(t, b, instance.Environment{})

	results, err := m.RunFunc(0, []instance.Value{instance.I32(1)})
	require.NoError(t, err)
	require.Equal(t, int32(42), results[0].AsI32())

	results, err = m.RunFunc(0, []instance.Value{instance.I32(0)})
	require.NoError(t, err)
	require.Equal(t, int32(7), results[0].AsI32())
}

func TestMachine_CallInternal(t *testing.T) {
	b := wasmtest.New()
	typeSec := wasmtest.FuncType([]byte{wasmtest.KindI32}, []byte{wasmtest.KindI32})
	typeSec = append(typeSec, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})...)
	b.Section(1, wasmtest.Vec(2, typeSec))

	funcSec := wasmtest.AppendU32(nil, 0)
	funcSec = wasmtest.AppendU32(funcSec, 1)
	b.Section(3, wasmtest.Vec(2, funcSec))

	fn0 := wasmtest.CodeBody(nil, []byte{
		wasmtest.OpLocalGet, 0,
		wasmtest.OpI32Const, 1,
		wasmtest.OpI32Add,
		wasmtest.OpEnd,
	})
	fn1 := wasmtest.CodeBody(nil, []byte{
		wasmtest.OpI32Const, 7,
		wasmtest.OpCall, 0,
		wasmtest.OpEnd,
	})
	b.Section(10, wasmtest.Vec(2, append(fn0, fn1...)))

	m := buildMachine(t, b, instance.Environment{})
	results, err := m.RunFunc(1, nil)
	require.NoError(t, err)
	require.Equal(t, int32(8), results[0].AsI32())
}
