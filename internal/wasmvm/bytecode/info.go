// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package bytecode folds a parsed ast.Module's imports and internal
// declarations into unified function/global/memory index spaces, so every
// later reference (validator, instance builder) is a single flat index.
package bytecode

import "github.com/dotandev/hesvm/internal/wasmvm/ast"

// FuncSource tags whether a function entry is backed by an internal code
// body or an import.
type FuncSource struct {
	Internal bool
	CodeIdx  uint32 // valid when Internal
	ExportIdx *uint32
	ImportIdx uint32 // valid when !Internal
}

// FuncInfo is one entry of the flattened function index space.
type FuncInfo struct {
	TypeIdx uint32
	Source  FuncSource
}

// GlobalSource tags whether a global entry is internal or imported.
type GlobalSource struct {
	Internal  bool
	GlobalIdx uint32 // valid when Internal
	ImportIdx uint32 // valid when !Internal
}

// GlobalInfo is one entry of the flattened global index space.
type GlobalInfo struct {
	Kind    ast.ValueKind
	Mutable bool
	Source  GlobalSource
}

// MemInfo is one entry of the flattened memory index space.
type MemInfo struct {
	Limits ast.Limits
	Source GlobalSource // Internal/ImportIdx reused; GlobalIdx unused for memories
}

// Info is the post-parse unified view.
type Info struct {
	Functions []FuncInfo
	Globals   []GlobalInfo
	Memories  []MemInfo
	Start     *uint32
}

// Build flattens mod's imports and internal declarations. Imports occupy
// the lowest indices in each kind-list, as the spec requires.
func Build(mod *ast.Module) *Info {
	info := &Info{Start: mod.Start}

	for i, imp := range mod.Imports {
		switch imp.Desc.Kind {
		case ast.ImportFunc:
			info.Functions = append(info.Functions, FuncInfo{
				TypeIdx: imp.Desc.TypeIdx,
				Source:  FuncSource{Internal: false, ImportIdx: uint32(i)},
			})
		case ast.ImportGlobal:
			info.Globals = append(info.Globals, GlobalInfo{
				Kind:    imp.Desc.Global.Kind,
				Mutable: imp.Desc.Global.Mutable,
				Source:  GlobalSource{Internal: false, ImportIdx: uint32(i)},
			})
		case ast.ImportMemory:
			info.Memories = append(info.Memories, MemInfo{
				Limits: imp.Desc.Memory,
				Source: GlobalSource{Internal: false, ImportIdx: uint32(i)},
			})
		}
	}

	for codeIdx, typeIdx := range mod.FuncTypeIdx {
		info.Functions = append(info.Functions, FuncInfo{
			TypeIdx: typeIdx,
			Source:  FuncSource{Internal: true, CodeIdx: uint32(codeIdx)},
		})
	}
	for gIdx, g := range mod.Globals {
		info.Globals = append(info.Globals, GlobalInfo{
			Kind:    g.Type.Kind,
			Mutable: g.Type.Mutable,
			Source:  GlobalSource{Internal: true, GlobalIdx: uint32(gIdx)},
		})
	}
	for _, m := range mod.Memories {
		info.Memories = append(info.Memories, MemInfo{
			Limits: m,
			Source: GlobalSource{Internal: true},
		})
	}

	// Scan exports to attach export-index back-refs onto internal functions
	// (used by host loaders to look up "run"/"init"/etc. by name).
	for exportIdx, exp := range mod.Exports {
		if exp.Kind != ast.ExportFunc {
			continue
		}
		if int(exp.Idx) >= len(info.Functions) {
			continue
		}
		fn := &info.Functions[exp.Idx]
		if fn.Source.Internal {
			idx := uint32(exportIdx)
			fn.Source.ExportIdx = &idx
		}
	}

	return info
}

// FuncIndexByExportName resolves an exported function name to its flat
// function index, the convention host applications use to look up entry
// points like "init"/"run".
func FuncIndexByExportName(mod *ast.Module, name string) (uint32, bool) {
	for _, exp := range mod.Exports {
		if exp.Kind == ast.ExportFunc && exp.Name == name {
			return exp.Idx, true
		}
	}
	return 0, false
}
