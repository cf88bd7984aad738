// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"testing"

	"github.com/dotandev/hesvm/internal/config"
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/instance"
	"github.com/dotandev/hesvm/internal/wasmvm/wasmtest"
	"github.com/dotandev/hesvm/internal/werrors"
	"github.com/stretchr/testify/require"
)

func exportFunc(idx uint32, name string) []byte {
	exp := wasmtest.AppendName(nil, name)
	exp = append(exp, 0x00) // export kind: func
	exp = append(exp, wasmtest.AppendU32(nil, idx)...)
	return exp
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ModuleCacheEnabled = false
	cfg.MaxCallDepth = 64
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })
	return e
}

// TestEngine_ArithmeticIdentity covers spec scenario 1: 5 + 1 == 6, invoked
// through the full Parse->Validate->Instantiate->Run pipeline.
func TestEngine_ArithmeticIdentity(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	b.Section(7, wasmtest.Vec(1, exportFunc(0, "main")))
	ops := []byte{
		wasmtest.OpI32Const, 5,
		wasmtest.OpI32Const, 1,
		wasmtest.OpI32Add,
		wasmtest.OpEnd,
	}
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, ops)))

	e := newTestEngine(t)
	results, err := e.Run(context.Background(), b.Bytes(), instance.Environment{}, "main", nil)
	require.NoError(t, err)
	require.Equal(t, int32(6), results[0].AsI32())
}

// TestEngine_BlockBrIf covers spec scenario 2: a br_if taken out of a block
// skips the fallthrough reset, leaving the local at 99.
func TestEngine_BlockBrIf(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	b.Section(7, wasmtest.Vec(1, exportFunc(0, "main")))

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

	e := newTestEngine(t)
	results, err := e.Run(context.Background(), b.Bytes(), instance.Environment{}, "main", nil)
	require.NoError(t, err)
	require.Equal(t, int32(99), results[0].AsI32())
}

// TestEngine_CallIfElse covers spec scenario 3: $a computes 1 + $b(2), then
// calls $c on the result, which either traps or stores/returns 99.
func TestEngine_CallIfElse(t *testing.T) {
	b := wasmtest.New()
	i32ToI32 := wasmtest.FuncType([]byte{wasmtest.KindI32}, []byte{wasmtest.KindI32})
	noneToI32 := wasmtest.FuncType(nil, []byte{wasmtest.KindI32})
	b.Section(1, wasmtest.Vec(2, append(append([]byte{}, i32ToI32...), noneToI32...)))

	funcSec := wasmtest.AppendU32(nil, 0) // $b: i32ToI32
	funcSec = wasmtest.AppendU32(funcSec, 0) // $c: i32ToI32
	funcSec = wasmtest.AppendU32(funcSec, 1) // $a: noneToI32
	b.Section(3, wasmtest.Vec(3, funcSec))
	b.Section(7, wasmtest.Vec(1, exportFunc(2, "main")))

	fnB := wasmtest.CodeBody(nil, []byte{
		wasmtest.OpLocalGet, 0,
		wasmtest.OpI32Const, 1,
		wasmtest.OpI32Add,
		wasmtest.OpEnd,
	})
	locals := []wasmtest.LocalsGroup{{Count: 1, Kind: wasmtest.KindI32}}
	fnC := wasmtest.CodeBody(locals, []byte{
		wasmtest.OpLocalGet, 0,
		wasmtest.OpI32Const, 4,
		wasmtest.OpI32Eq,
		wasmtest.OpIf, wasmtest.BlockTypeVoid,
		wasmtest.OpI32Const, 99,
		wasmtest.OpLocalSet, 1,
		wasmtest.OpElse,
		wasmtest.OpUnreachable,
		wasmtest.OpEnd,
		wasmtest.OpLocalGet, 1,
		wasmtest.OpEnd,
	})
	fnA := wasmtest.CodeBody(nil, []byte{
		wasmtest.OpI32Const, 1,
		wasmtest.OpI32Const, 2,
		wasmtest.OpCall, 0,
		wasmtest.OpI32Add,
		wasmtest.OpCall, 1,
		wasmtest.OpEnd,
	})
	b.Section(10, wasmtest.Vec(3, append(append(append([]byte{}, fnB...), fnC...), fnA...)))

	e := newTestEngine(t)
	results, err := e.Run(context.Background(), b.Bytes(), instance.Environment{}, "main", nil)
	require.NoError(t, err)
	require.Equal(t, int32(99), results[0].AsI32())
}

// TestEngine_HostCallTrap covers spec scenario 4: a host handler returning
// an error code traps the calling RunFunc with NativeFuncCallError(100).
func TestEngine_HostCallTrap(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(2, append(
		wasmtest.FuncType([]byte{wasmtest.KindI32}, nil),
		wasmtest.FuncType(nil, nil)...,
	)))

	imp := wasmtest.AppendName(nil, "env")
	imp = append(imp, wasmtest.AppendName(nil, "dbg_fail")...)
	imp = append(imp, 0x00)
	imp = append(imp, wasmtest.AppendU32(nil, 0)...)
	b.Section(2, wasmtest.Vec(1, imp))

	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 1)))
	b.Section(7, wasmtest.Vec(1, exportFunc(1, "main")))

	ops := []byte{
		wasmtest.OpI32Const, 100,
		wasmtest.OpCall, 0,
		wasmtest.OpEnd,
	}
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, ops)))

	env := instance.Environment{
		Funcs: map[string]map[string]instance.HostFunction{
			"env": {
				"dbg_fail": {
					Params: []ast.ValueKind{ast.I32},
					Handler: func(eng instance.HostEngine, params, results []instance.Value) error {
						return werrors.NewNativeFuncCallError(100)
					},
				},
			},
		},
	}

	e := newTestEngine(t)
	_, err := e.Run(context.Background(), b.Bytes(), env, "main", nil)
	require.Error(t, err)
	var nerr *werrors.NativeFuncCallError
	require.ErrorAs(t, err, &nerr)
	require.Equal(t, 100, nerr.Code)
}

// TestEngine_MemoryStoreLoad covers spec scenario 5: store 50 at address
// 10, load it, add 50, store back at 10, load and return 100. Local 0
// holds the in-flight sum so the store's (address, value) stack order
// stays simple at each step.
func TestEngine_MemoryStoreLoad(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	b.Section(5, wasmtest.Vec(1, append([]byte{0x00}, wasmtest.AppendU32(nil, 1)...)))
	b.Section(7, wasmtest.Vec(1, exportFunc(0, "main")))

	locals := []wasmtest.LocalsGroup{{Count: 1, Kind: wasmtest.KindI32}}
	ops := []byte{
		wasmtest.OpI32Const, 10,
		wasmtest.OpI32Const, 50,
	}
	ops = append(ops, wasmtest.OpI32Store)
	ops = append(ops, wasmtest.Memarg(2, 0)...)
	ops = append(ops, wasmtest.OpI32Const, 10)
	ops = append(ops, wasmtest.OpI32Load)
	ops = append(ops, wasmtest.Memarg(2, 0)...)
	ops = append(ops, wasmtest.OpI32Const, 50)
	ops = append(ops, wasmtest.OpI32Add)
	ops = append(ops, wasmtest.OpLocalSet, 0)
	ops = append(ops, wasmtest.OpI32Const, 10)
	ops = append(ops, wasmtest.OpLocalGet, 0)
	ops = append(ops, wasmtest.OpI32Store)
	ops = append(ops, wasmtest.Memarg(2, 0)...)
	ops = append(ops, wasmtest.OpI32Const, 10)
	ops = append(ops, wasmtest.OpI32Load)
	ops = append(ops, wasmtest.Memarg(2, 0)...)
	ops = append(ops, wasmtest.OpEnd)
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(locals, ops)))

	e := newTestEngine(t)
	results, err := e.Run(context.Background(), b.Bytes(), instance.Environment{}, "main", nil)
	require.NoError(t, err)
	require.Equal(t, int32(100), results[0].AsI32())
}

// TestEngine_LoopCounter covers spec scenario 6: a loop increments a local
// from 0 to 10, driven by a br_if back-edge.
func TestEngine_LoopCounter(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	b.Section(7, wasmtest.Vec(1, exportFunc(0, "main")))

	locals := []wasmtest.LocalsGroup{{Count: 1, Kind: wasmtest.KindI32}}
	ops := []byte{
		wasmtest.OpLoop, wasmtest.BlockTypeVoid,
		wasmtest.OpLocalGet, 0,
		wasmtest.OpI32Const, 1,
		wasmtest.OpI32Add,
		wasmtest.OpLocalSet, 0,
		wasmtest.OpLocalGet, 0,
		wasmtest.OpI32Const, 10,
		wasmtest.OpI32LtS,
		wasmtest.OpBrIf, 0,
		wasmtest.OpEnd,
		wasmtest.OpLocalGet, 0,
		wasmtest.OpEnd,
	}
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(locals, ops)))

	e := newTestEngine(t)
	results, err := e.Run(context.Background(), b.Bytes(), instance.Environment{}, "main", nil)
	require.NoError(t, err)
	require.Equal(t, int32(10), results[0].AsI32())
}

// TestEngine_PassiveMemoryInit covers spec scenario 7: memory.init copies a
// passive segment's four little-endian i32s into memory 0, 4, 8, 12.
func TestEngine_PassiveMemoryInit(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, []byte{wasmtest.KindI32})))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	b.Section(5, wasmtest.Vec(1, append([]byte{0x00}, wasmtest.AppendU32(nil, 1)...)))
	b.Section(7, wasmtest.Vec(1, exportFunc(0, "main")))

	payload := []byte{
		0, 0, 0, 0,
		1, 0, 0, 0,
		2, 0, 0, 0,
		3, 0, 0, 0,
	}
	dataEntry := append([]byte{0x01}, wasmtest.Vec(uint32(len(payload)), payload)...)
	b.Section(11, wasmtest.Vec(1, dataEntry))

	// local 0 accumulates a mismatch count across the four asserted loads,
	// rather than branching on each one: every load's actual-vs-expected
	// difference is added in, so the result is 0 iff every load matched.
	ops := []byte{
		wasmtest.OpI32Const, 0,
		wasmtest.OpI32Const, 0,
		wasmtest.OpI32Const, 16,
		wasmtest.MemBulkPrefix, wasmtest.MemBulkInit, 0x00, 0x00,
	}
	for _, off := range []byte{0, 4, 8, 12} {
		ops = append(ops, wasmtest.OpLocalGet, 0)
		ops = append(ops, wasmtest.OpI32Const, off)
		ops = append(ops, wasmtest.OpI32Load)
		ops = append(ops, wasmtest.Memarg(2, 0)...)
		ops = append(ops, wasmtest.OpI32Const, off/4)
		ops = append(ops, wasmtest.OpI32Sub)
		ops = append(ops, wasmtest.OpI32Add)
		ops = append(ops, wasmtest.OpLocalSet, 0)
	}
	ops = append(ops, wasmtest.OpLocalGet, 0, wasmtest.OpEnd)
	locals := []wasmtest.LocalsGroup{{Count: 1, Kind: wasmtest.KindI32}}
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(locals, ops)))

	e := newTestEngine(t)
	results, err := e.Run(context.Background(), b.Bytes(), instance.Environment{}, "main", nil)
	require.NoError(t, err)
	require.Equal(t, int32(0), results[0].AsI32())
}

// TestEngine_RunFuncMissingExport ensures an unknown export name produces a
// clear error rather than an index-out-of-range panic.
func TestEngine_RunFuncMissingExport(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, nil)))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, []byte{wasmtest.OpEnd})))

	e := newTestEngine(t)
	_, err := e.Run(context.Background(), b.Bytes(), instance.Environment{}, "nope", nil)
	require.ErrorIs(t, err, werrors.ErrHostFuncNotFound)
}

// TestEngine_CompileCached_WithSQLiteBackedCache exercises the module
// cache: a first CompileCached call stores the module, and a second call
// for identical bytes succeeds and yields the same function index space.
func TestEngine_CompileCached_WithSQLiteBackedCache(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, nil)))
	b.Section(3, wasmtest.Vec(1, wasmtest.AppendU32(nil, 0)))
	b.Section(10, wasmtest.Vec(1, wasmtest.CodeBody(nil, []byte{wasmtest.OpEnd})))

	cfg := config.DefaultConfig()
	cfg.ModuleCacheEnabled = true
	cfg.ModuleCachePath = t.TempDir() + "/modcache.db"
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, e.Close()) })

	ctx := context.Background()
	vm1, err := e.CompileCached(ctx, b.Bytes())
	require.NoError(t, err)
	vm2, err := e.CompileCached(ctx, b.Bytes())
	require.NoError(t, err)
	require.Equal(t, len(vm1.Info.Functions), len(vm2.Info.Functions))
}
