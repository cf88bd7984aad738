// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package dce

import (
	"testing"

	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/bytecode"
	"github.com/dotandev/hesvm/internal/wasmvm/parser"
	"github.com/dotandev/hesvm/internal/wasmvm/validator"
	"github.com/dotandev/hesvm/internal/wasmvm/wasmtest"
	"github.com/stretchr/testify/require"
)

// TestEliminate_DropsUnreachableKeepsCalled builds four functions: func 0
// (exported) calls func 2; funcs 1 and 3 are unreachable.
func TestEliminate_DropsUnreachableKeepsCalled(t *testing.T) {
	b := wasmtest.New()
	b.Section(1, wasmtest.Vec(1, wasmtest.FuncType(nil, nil)))
	b.Section(3, wasmtest.Vec(4,
		append(append(append(
			wasmtest.AppendU32(nil, 0),
			wasmtest.AppendU32(nil, 0)...),
			wasmtest.AppendU32(nil, 0)...),
			wasmtest.AppendU32(nil, 0)...),
	))

	exp := wasmtest.AppendName(nil, "main")
	exp = append(exp, 0x00) // export kind func
	exp = append(exp, wasmtest.AppendU32(nil, 0)...)
	b.Section(7, wasmtest.Vec(1, exp))

	fn0 := wasmtest.CodeBody(nil, []byte{wasmtest.OpCall, 2, wasmtest.OpEnd})
	fn1 := wasmtest.CodeBody(nil, []byte{wasmtest.OpEnd})
	fn2 := wasmtest.CodeBody(nil, []byte{wasmtest.OpEnd})
	fn3 := wasmtest.CodeBody(nil, []byte{wasmtest.OpEnd})
	b.Section(10, wasmtest.Vec(4, append(append(append(fn0, fn1...), fn2...), fn3...)))

	mod, err := parser.Parse(b.Bytes())
	require.NoError(t, err)
	info := bytecode.Build(mod)

	out, report, err := Eliminate(mod, info)
	require.NoError(t, err)
	require.Equal(t, 4, report.TotalInternalFunctions)
	require.Equal(t, 2, report.ReachableInternalFuncs)
	require.Equal(t, 2, report.EliminatedInternalFuncs)

	require.Equal(t, ast.OpUnreachable, out.Code[1].Ops[0].Op.Kind)
	require.Equal(t, ast.OpUnreachable, out.Code[3].Ops[0].Op.Kind)
	require.Equal(t, ast.OpCall, out.Code[0].Ops[0].Op.Kind)
	require.Equal(t, ast.OpEnd, out.Code[2].Ops[0].Op.Kind)

	// A trimmed module must still validate cleanly.
	outInfo := bytecode.Build(out)
	_, err = validator.Validate(out, outInfo)
	require.NoError(t, err)
}
