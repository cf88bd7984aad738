// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package validator type-checks every function body in a parsed module and
// emits a JumpTable per function, patching control ops in place to carry
// resolved jump ids. See the core engine's design notes for why jump
// resolution and type checking share a single pass.
package validator

import (
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/bytecode"
	"github.com/dotandev/hesvm/internal/werrors"
)

// ValidatedModule is the validator's output: the (now patched) module, its
// flattened index-space view, and a JumpTable per internal function,
// indexed the same way as mod.Code.
type ValidatedModule struct {
	Module     *ast.Module
	Info       *bytecode.Info
	JumpTables []JumpTable
}

// stackVal is a type-stack slot: a concrete numeric kind, or Unknown when
// pushed under an unreachable frame (freely convertible to any kind when
// popped).
type stackVal struct {
	kind    ast.ValueKind
	unknown bool
}

// ctrlFrame is one entry of the validator's control-frame stack.
type ctrlFrame struct {
	hasOp        bool // false only for the synthetic outermost function frame
	opKind       ast.OpKind
	inTypes      []ast.ValueKind
	outTypes     []ast.ValueKind
	prevStackLen int
	unreachable  bool
	ip           int // ip of the control op itself (Block/Loop/If)
	hasJump      bool
	jumpIdx      int // index into the function's jump table, valid when hasJump
}

type funcValidator struct {
	mod   *ast.Module
	info  *bytecode.Info
	locals []ast.ValueKind
	result []ast.ValueKind

	typeStack []stackVal
	ctrl      []ctrlFrame
	pending   [][]int // parallel to ctrl: jump-table indices targeting each frame's exit
	table     JumpTable
	ip        int
}

// Validate type-checks and patches every internal function body in mod,
// plus every global initializer and active-data offset expression.
func Validate(mod *ast.Module, info *bytecode.Info) (*ValidatedModule, error) {
	for i := range mod.Globals {
		if err := validateConstExpr(mod, info, mod.Globals[i].Init, mod.Globals[i].Type.Kind, i); err != nil {
			return nil, err
		}
	}
	for i := range mod.Data {
		if mod.Data[i].Mode == ast.DataPassive {
			continue
		}
		if len(mod.Memories) == 0 && countImportedMemories(mod) == 0 {
			return nil, werrors.ErrNoMemory
		}
		if err := validateConstExpr(mod, info, mod.Data[i].Offset, ast.I32, i); err != nil {
			return nil, err
		}
	}

	tables := make([]JumpTable, len(mod.Code))
	for codeIdx := range mod.Code {
		fn := &mod.Code[codeIdx]
		typeIdx := funcTypeIdxForCode(info, uint32(codeIdx))
		if int(typeIdx) >= len(mod.Types) {
			return nil, werrors.ErrInvalidTypeIndex
		}
		sig := mod.Types[typeIdx]

		fv := &funcValidator{
			mod:    mod,
			info:   info,
			locals: flattenLocals(sig.Params, fn.Locals),
			result: sig.Results,
		}
		if err := fv.run(fn); err != nil {
			return nil, err
		}
		if err := fv.patch(fn); err != nil {
			return nil, err
		}
		tables[codeIdx] = fv.table
	}

	return &ValidatedModule{Module: mod, Info: info, JumpTables: tables}, nil
}

func countImportedMemories(mod *ast.Module) int {
	n := 0
	for _, imp := range mod.Imports {
		if imp.Desc.Kind == ast.ImportMemory {
			n++
		}
	}
	return n
}

func funcTypeIdxForCode(info *bytecode.Info, codeIdx uint32) uint32 {
	for _, f := range info.Functions {
		if f.Source.Internal && f.Source.CodeIdx == codeIdx {
			return f.TypeIdx
		}
	}
	return 0
}

func flattenLocals(params []ast.ValueKind, groups []ast.Locals) []ast.ValueKind {
	out := append([]ast.ValueKind(nil), params...)
	for _, g := range groups {
		for i := uint32(0); i < g.Count; i++ {
			out = append(out, g.Kind)
		}
	}
	return out
}

// run executes the abstract machine over fn.Ops, pushing the synthetic
// outermost frame representing the function body itself.
func (fv *funcValidator) run(fn *ast.FunctionBody) error {
	fv.ctrl = append(fv.ctrl, ctrlFrame{hasOp: false, outTypes: fv.result, prevStackLen: 0})
	fv.pending = append(fv.pending, nil)

	for idx := range fn.Ops {
		fv.ip = idx
		if err := fv.step(&fn.Ops[idx].Op); err != nil {
			return err
		}
	}
	return nil
}

func (fv *funcValidator) curFrame() *ctrlFrame { return &fv.ctrl[len(fv.ctrl)-1] }

func (fv *funcValidator) push(k ast.ValueKind) {
	fv.typeStack = append(fv.typeStack, stackVal{kind: k})
}

func (fv *funcValidator) pushUnknown() {
	fv.typeStack = append(fv.typeStack, stackVal{unknown: true})
}

func (fv *funcValidator) pop() (stackVal, error) {
	f := fv.curFrame()
	if len(fv.typeStack) == f.prevStackLen {
		if f.unreachable {
			return stackVal{unknown: true}, nil
		}
		return stackVal{}, werrors.ErrStackUnderflow
	}
	v := fv.typeStack[len(fv.typeStack)-1]
	fv.typeStack = fv.typeStack[:len(fv.typeStack)-1]
	return v, nil
}

// popExpect pops one value and requires it to be k (or Unknown).
func (fv *funcValidator) popExpect(k ast.ValueKind) error {
	v, err := fv.pop()
	if err != nil {
		return err
	}
	if !v.unknown && v.kind != k {
		return werrors.Wrapf(werrors.ErrTypeMismatch, "expected %s, got %s", k, v.kind)
	}
	return nil
}

func (fv *funcValidator) popExpectMany(ks []ast.ValueKind) error {
	for i := len(ks) - 1; i >= 0; i-- {
		if err := fv.popExpect(ks[i]); err != nil {
			return err
		}
	}
	return nil
}

func (fv *funcValidator) pushMany(ks []ast.ValueKind) {
	for _, k := range ks {
		fv.push(k)
	}
}

func (fv *funcValidator) newJumpEntry() int {
	fv.table = append(fv.table, JumpEntry{IP: fv.ip})
	return len(fv.table) - 1
}
