// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/bytecode"
	"github.com/dotandev/hesvm/internal/werrors"
)

// validateConstExpr checks a global initializer or active-data offset
// expression: it must be exactly one push op (a numeric const, or a
// GlobalGet of an immutable imported global) followed by End, and its
// pushed type must match want.
func validateConstExpr(mod *ast.Module, info *bytecode.Info, ops []ast.PositionedOp, want ast.ValueKind, idx int) error {
	if len(ops) != 2 || ops[1].Op.Kind != ast.OpEnd {
		return werrors.Wrapf(werrors.ErrInvalidConstOp, "entry %d", idx)
	}
	op := ops[0].Op
	var gotKind ast.ValueKind
	switch op.Kind {
	case ast.OpI32Const:
		gotKind = ast.I32
	case ast.OpI64Const:
		gotKind = ast.I64
	case ast.OpF32Const:
		gotKind = ast.F32
	case ast.OpF64Const:
		gotKind = ast.F64
	case ast.OpGlobalGet:
		if int(op.Idx) >= len(info.Globals) {
			return werrors.ErrInvalidGlobalIndex
		}
		g := info.Globals[op.Idx]
		if g.Mutable || g.Source.Internal {
			return werrors.Wrapf(werrors.ErrInvalidConstOp, "global.get must reference an immutable import")
		}
		gotKind = g.Kind
	default:
		return werrors.Wrapf(werrors.ErrInvalidConstOp, "entry %d", idx)
	}
	if gotKind != want {
		return werrors.Wrapf(werrors.ErrTypeMismatch, "const expr: expected %s, got %s", want, gotKind)
	}
	return nil
}
