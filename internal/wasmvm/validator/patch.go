// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package validator

import "github.com/dotandev/hesvm/internal/wasmvm/ast"

// patch rewrites fn's control ops in place: If/Br/BrIf each receive the
// index of their jump-table entry (so the interpreter can also read
// stack_height/out_count through the table), while Else stores its
// resolved delta_ip directly since it carries no runtime stack-shape
// metadata of its own -- just a skip past the else-arm.
//
// fv.table was built with one entry per If/Br/BrIf/Else encountered, in
// encounter order, since every one of those allocates its entry from
// inside step() while fv.run walks the ops linearly; rewalking the ops
// here and counting the same four kinds in the same order reproduces
// that order exactly, so the i-th qualifying op always corresponds to
// the i-th table entry.
func (fv *funcValidator) patch(fn *ast.FunctionBody) error {
	entryIdx := 0
	for i := range fn.Ops {
		op := &fn.Ops[i].Op
		switch op.Kind {
		case ast.OpIf, ast.OpBr, ast.OpBrIf:
			op.Jmp = uint32(entryIdx)
			entryIdx++
		case ast.OpElse:
			op.Jmp = uint32(fv.table[entryIdx].DeltaIP)
			entryIdx++
		}
	}
	return nil
}
