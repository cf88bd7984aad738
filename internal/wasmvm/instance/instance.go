// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package instance

import (
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/bytecode"
	"github.com/dotandev/hesvm/internal/wasmvm/validator"
	"github.com/dotandev/hesvm/internal/werrors"
)

const wasmPageSize = 65536

// Limits carries the engine-wide resource caps a config.Config resolves to.
// This package does not import internal/config directly so the dependency
// stays one-directional (config is ambient, instance is core); the engine
// façade is the one place that converts a *config.Config into a Limits.
type Limits struct {
	// MaxMemoryPages bounds an instance's initial linear memory, in 64KiB
	// pages. Zero means unbounded.
	MaxMemoryPages uint32
	// MaxCallDepth bounds the interpreter's activation-frame stack. Zero
	// means unbounded.
	MaxCallDepth int
}

// FuncInstance is a concrete, resolved function: either backed by a range
// of the instance's flattened instruction buffer, or by a host handler.
type FuncInstance struct {
	Sig ast.FunctionType

	Internal   bool
	CodeOffset int // valid when Internal: index into Instance.Instructions
	LocalKinds []ast.ValueKind
	JumpTable  validator.JumpTable

	Handler HostHandler // valid when !Internal
}

// Instance is a module ready to run: imports resolved, memory allocated
// and initialized, globals evaluated, data segments applied.
type Instance struct {
	Functions    []FuncInstance
	Instructions []ast.Op
	Globals      []Value
	GlobalTypes  []ast.GlobalType
	Mem          []byte
	MemoryLimits ast.Limits
	HasMemory    bool
	DataSegments []ast.Data // passive segments retained verbatim for memory.init

	Start *uint32

	// MaxCallDepth is carried through from the Limits Build was called
	// with, for interp.Machine to enforce.
	MaxCallDepth int
}

// Memory returns the instance's linear memory; interp.Machine's
// HostEngine implementation delegates to it.
func (inst *Instance) Memory() []byte { return inst.Mem }

// Build resolves vm's imports against env, allocates memory, evaluates
// globals, applies data segments, and flattens every internal function
// body into a single instruction buffer. The start function, if present,
// is reported via Start for the caller (engine façade) to invoke -- this
// package never itself executes wasm, only constant expressions.
func Build(vm *validator.ValidatedModule, env Environment, limits Limits) (*Instance, error) {
	mod := vm.Module
	info := vm.Info

	inst := &Instance{
		GlobalTypes:  make([]ast.GlobalType, len(info.Globals)),
		Start:        info.Start,
		MaxCallDepth: limits.MaxCallDepth,
	}

	resolveMemory(mod, info, inst)

	if limits.MaxMemoryPages > 0 && inst.HasMemory {
		pages := uint32(len(inst.Mem)) / wasmPageSize
		if pages > limits.MaxMemoryPages {
			return nil, werrors.Wrapf(werrors.ErrMemoryLimitExceeded, "initial %d pages exceeds configured max of %d", pages, limits.MaxMemoryPages)
		}
	}

	importedGlobals, err := resolveGlobalImports(mod, env, inst)
	if err != nil {
		return nil, err
	}

	if err := evalInternalGlobals(mod, importedGlobals, inst); err != nil {
		return nil, err
	}

	if err := resolveFunctions(mod, info, vm, env, inst); err != nil {
		return nil, err
	}

	if err := applyDataSegments(mod, importedGlobals, inst); err != nil {
		return nil, err
	}

	return inst, nil
}

func resolveMemory(mod *ast.Module, info *bytecode.Info, inst *Instance) {
	switch {
	case len(mod.Memories) > 0:
		lim := mod.Memories[0]
		inst.MemoryLimits = lim
		inst.Mem = make([]byte, int(lim.Min)*wasmPageSize)
		inst.HasMemory = true
	case len(info.Memories) > 0 && !info.Memories[0].Source.Internal:
		// Imported memory: this engine keeps a single in-process buffer
		// per instance and does not support sharing a host-owned buffer,
		// so an imported memory always starts as a fresh zeroed buffer
		// sized to its declared limits.
		lim := info.Memories[0].Limits
		inst.MemoryLimits = lim
		inst.Mem = make([]byte, int(lim.Min)*wasmPageSize)
		inst.HasMemory = true
	}
}

func resolveGlobalImports(mod *ast.Module, env Environment, inst *Instance) ([]Value, error) {
	var importedGlobals []Value
	for _, imp := range mod.Imports {
		if imp.Desc.Kind != ast.ImportGlobal {
			continue
		}
		g, ok := env.lookupGlobal(imp.Module, imp.Name)
		if !ok {
			return nil, werrors.Wrapf(werrors.ErrHostFuncNotFound, "global import %s.%s", imp.Module, imp.Name)
		}
		if g.Kind != imp.Desc.Global.Kind || g.Mutable != imp.Desc.Global.Mutable {
			return nil, werrors.Wrapf(werrors.ErrImportSignatureMismatch, "global import %s.%s", imp.Module, imp.Name)
		}
		idx := len(importedGlobals)
		importedGlobals = append(importedGlobals, g.Value)
		inst.GlobalTypes[idx] = ast.GlobalType{Kind: g.Kind, Mutable: g.Mutable}
		inst.Globals = append(inst.Globals, g.Value)
	}
	return importedGlobals, nil
}

func evalInternalGlobals(mod *ast.Module, importedGlobals []Value, inst *Instance) error {
	base := len(importedGlobals)
	for i, g := range mod.Globals {
		v, err := evalConstExpr(g.Init, importedGlobals)
		if err != nil {
			return err
		}
		if v.Kind != g.Type.Kind {
			return werrors.Wrapf(werrors.ErrTypeMismatch, "global %d initializer", i)
		}
		inst.GlobalTypes[base+i] = g.Type
		inst.Globals = append(inst.Globals, v)
	}
	return nil
}

func resolveFunctions(mod *ast.Module, info *bytecode.Info, vm *validator.ValidatedModule, env Environment, inst *Instance) error {
	inst.Functions = make([]FuncInstance, len(info.Functions))

	for i, fn := range info.Functions {
		ft := mod.Types[fn.TypeIdx]
		if fn.Source.Internal {
			body := mod.Code[fn.Source.CodeIdx]
			offset := len(inst.Instructions)
			for _, pos := range body.Ops {
				inst.Instructions = append(inst.Instructions, pos.Op)
			}
			inst.Functions[i] = FuncInstance{
				Sig:        ft,
				Internal:   true,
				CodeOffset: offset,
				LocalKinds: flattenLocals(ft.Params, body.Locals),
				JumpTable:  vm.JumpTables[fn.Source.CodeIdx],
			}
			continue
		}

		imp := mod.Imports[fn.Source.ImportIdx]
		hf, ok := env.lookupFunc(imp.Module, imp.Name)
		if !ok {
			return werrors.Wrapf(werrors.ErrHostFuncNotFound, "%s.%s", imp.Module, imp.Name)
		}
		if !kindsEqual(hf.Params, ft.Params) || !kindsEqual(hf.Results, ft.Results) {
			return werrors.Wrapf(werrors.ErrImportSignatureMismatch, "%s.%s", imp.Module, imp.Name)
		}
		inst.Functions[i] = FuncInstance{
			Sig:      ft,
			Internal: false,
			Handler:  hf.Handler,
		}
	}
	return nil
}

// applyDataSegments copies every data segment verbatim into
// Instance.DataSegments, indexed exactly like mod.Data so memory.init's
// data_idx keeps working at runtime, and additionally applies the active
// ones into memory now.
func applyDataSegments(mod *ast.Module, importedGlobals []Value, inst *Instance) error {
	inst.DataSegments = append([]ast.Data(nil), mod.Data...)

	for _, d := range mod.Data {
		if d.Mode == ast.DataPassive {
			continue
		}
		if !inst.HasMemory {
			return werrors.ErrNoMemory
		}
		off, err := evalConstExpr(d.Offset, importedGlobals)
		if err != nil {
			return err
		}
		dest := int(off.AsI32())
		if dest < 0 || dest+len(d.Bytes) > len(inst.Mem) {
			return werrors.ErrMemoryOutOfBounds
		}
		copy(inst.Mem[dest:], d.Bytes)
	}
	return nil
}

func flattenLocals(params []ast.ValueKind, locals []ast.Locals) []ast.ValueKind {
	out := make([]ast.ValueKind, 0, len(params))
	out = append(out, params...)
	for _, l := range locals {
		for i := uint32(0); i < l.Count; i++ {
			out = append(out, l.Kind)
		}
	}
	return out
}

func kindsEqual(a, b []ast.ValueKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
