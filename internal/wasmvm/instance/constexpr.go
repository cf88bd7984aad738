// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package instance

import (
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/werrors"
)

// evalConstExpr evaluates a validated constant expression (global
// initializer or active-data offset): exactly one const op or a
// GlobalGet of an already-resolved imported global, followed by End.
// Deliberately a tiny standalone routine rather than a call into the
// interpreter -- const exprs run before the instance, and its value
// stack and activation frames, exist.
func evalConstExpr(ops []ast.PositionedOp, importedGlobals []Value) (Value, error) {
	if len(ops) != 2 || ops[1].Op.Kind != ast.OpEnd {
		return Value{}, werrors.ErrInvalidConstOp
	}
	op := ops[0].Op
	switch op.Kind {
	case ast.OpI32Const:
		return I32(op.I32), nil
	case ast.OpI64Const:
		return I64(op.I64), nil
	case ast.OpF32Const:
		return F32(op.F32), nil
	case ast.OpF64Const:
		return F64(op.F64), nil
	case ast.OpGlobalGet:
		if int(op.Idx) >= len(importedGlobals) {
			return Value{}, werrors.ErrInvalidGlobalIndex
		}
		return importedGlobals[op.Idx], nil
	default:
		return Value{}, werrors.ErrInvalidConstOp
	}
}
