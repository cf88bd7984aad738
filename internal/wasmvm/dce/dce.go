// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package dce eliminates dead code from an already-parsed, not yet
// validated module: internal functions unreachable from any export or the start
// function. Unlike a DCE pass over raw section bytes, this one walks the
// typed ast.Module tree the parser already produced, so it never needs to
// re-decode LEB128 integers or section framing itself.
package dce

import (
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/bytecode"
)

// Report summarizes a dead-code-elimination run.
type Report struct {
	TotalInternalFunctions   int
	ReachableInternalFuncs   int
	EliminatedInternalFuncs  int
}

// Eliminate finds every internal function unreachable from mod's exports
// or start function, and returns a copy of mod whose unreachable function
// bodies are replaced with a single `unreachable` instruction -- keeping
// the function and type index spaces exactly as they were, since this
// core's call sites address functions by flat index and renumbering them
// would require rewriting every Op.Idx that names a function.
//
// Eliminate takes mod and info straight from the parser, before
// validation: the jump table the validator builds is keyed to a function
// body's exact instruction sequence, so a trimmed body must go through
// validation fresh rather than reuse a jump table computed for the
// original one.
func Eliminate(mod *ast.Module, info *bytecode.Info) (*ast.Module, Report, error) {
	totalFuncs := len(info.Functions)
	reachable := make([]bool, totalFuncs)
	var queue []uint32

	mark := func(idx uint32) {
		if int(idx) < totalFuncs && !reachable[idx] {
			reachable[idx] = true
			queue = append(queue, idx)
		}
	}

	for _, exp := range mod.Exports {
		if exp.Kind == ast.ExportFunc {
			mark(exp.Idx)
		}
	}
	if info.Start != nil {
		mark(*info.Start)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		src := info.Functions[cur].Source
		if !src.Internal {
			continue
		}
		for _, callee := range calledFuncs(mod.Code[src.CodeIdx]) {
			mark(callee)
		}
	}

	out := *mod
	out.Code = append([]ast.FunctionBody(nil), mod.Code...)

	report := Report{}
	for i, fn := range info.Functions {
		if !fn.Source.Internal {
			continue
		}
		report.TotalInternalFunctions++
		if reachable[i] {
			report.ReachableInternalFuncs++
			continue
		}
		report.EliminatedInternalFuncs++
		out.Code[fn.Source.CodeIdx] = trapBody(mod.Code[fn.Source.CodeIdx])
	}

	return &out, report, nil
}

func calledFuncs(body ast.FunctionBody) []uint32 {
	var out []uint32
	for _, pos := range body.Ops {
		if pos.Op.Kind == ast.OpCall {
			out = append(out, pos.Op.Idx)
		}
	}
	return out
}

// trapBody replaces a function's instructions with a bare `unreachable`,
// keeping its declared locals so the function's shape (and therefore the
// index space of everything around it) is untouched.
func trapBody(body ast.FunctionBody) ast.FunctionBody {
	return ast.FunctionBody{
		Locals: body.Locals,
		Ops: []ast.PositionedOp{
			{Op: ast.Op{Kind: ast.OpUnreachable}},
			{Op: ast.Op{Kind: ast.OpEnd}},
		},
	}
}
