// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package ast holds the shared intermediate representation produced by the
// parser, rewritten in place by the validator, and executed by the
// interpreter. Nothing in this package performs I/O or validation; it is
// pure data.
package ast

// ValueKind is a tagged discriminator over the Wasm value types. Only the
// four numeric kinds are executable by this engine; FuncRef, ExternRef and
// Vec128 are recognized during parsing/validation (so signatures that
// mention them still type-check structurally) but never appear on the
// runtime operand stack.
type ValueKind byte

const (
	I32 ValueKind = iota
	I64
	F32
	F64
	FuncRef
	ExternRef
	Vec128
)

func (k ValueKind) String() string {
	switch k {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case FuncRef:
		return "funcref"
	case ExternRef:
		return "externref"
	case Vec128:
		return "v128"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether the kind is one of the four executable numeric
// kinds (i32/i64/f32/f64).
func (k ValueKind) IsNumeric() bool {
	return k == I32 || k == I64 || k == F32 || k == F64
}

// FunctionType is identified by its position in the module's type index
// space, not by structural equality.
type FunctionType struct {
	Params  []ValueKind
	Results []ValueKind
}

// Limits describes the allowed size range of a memory or table, in units
// appropriate to the referencing section (pages for memories).
type Limits struct {
	Min uint32
	Max uint32
	HasMax bool
}

// GlobalType is the static type of a global variable slot.
type GlobalType struct {
	Kind    ValueKind
	Mutable bool
}

// ImportKind tags which of the four importable entity kinds an ImportDesc
// carries.
type ImportKind byte

const (
	ImportFunc ImportKind = iota
	ImportTable
	ImportMemory
	ImportGlobal
)

// ImportDesc is the tagged variant of what an import entry declares.
type ImportDesc struct {
	Kind     ImportKind
	TypeIdx  uint32     // valid when Kind == ImportFunc
	Table    Limits     // valid when Kind == ImportTable
	Memory   Limits     // valid when Kind == ImportMemory
	Global   GlobalType // valid when Kind == ImportGlobal
}

// Import is one entry of the import section.
type Import struct {
	Module string
	Name   string
	Desc   ImportDesc
}

// ExportKind tags which index space an export entry points into.
type ExportKind byte

const (
	ExportFunc ExportKind = iota
	ExportTable
	ExportMemory
	ExportGlobal
)

// Export is one entry of the export section.
type Export struct {
	Name string
	Kind ExportKind
	Idx  uint32
}

// Memarg is the alignment/offset pair carried by every load/store op.
type Memarg struct {
	Align  uint32 // log2 of the claimed natural alignment, in bytes
	Offset uint32
}

// BlockType is the signature of a control block: either empty, a single
// result kind, or a reference to a full function type by index.
type BlockType struct {
	Empty     bool
	SingleRes bool
	Result    ValueKind // valid when SingleRes
	TypeIdx   uint32    // valid when !Empty && !SingleRes
}

// Global is one entry of the global section: its static type plus the
// constant-expression initializer (a tiny op sequence, see §4.4.6 of the
// spec this module implements).
type Global struct {
	Type Type
	Init []PositionedOp
}

// Type is an alias kept distinct from GlobalType for readability at call
// sites that construct globals.
type Type = GlobalType

// DataMode tags how a data segment is applied.
type DataMode byte

const (
	DataActiveMem0 DataMode = iota // mode 0: active, implicit memory 0
	DataPassive                    // mode 1: passive
	DataActiveExplicit             // mode 2: active, explicit memory index
)

// Data is one entry of the data section.
type Data struct {
	Mode   DataMode
	MemIdx uint32         // valid when Mode == DataActiveExplicit
	Offset []PositionedOp // constant expression; valid when active
	Bytes  []byte
}

// Locals is one run-length-encoded group of a function's declared locals.
type Locals struct {
	Count uint32
	Kind  ValueKind
}

// FunctionBody is one entry of the code section.
type FunctionBody struct {
	Locals []Locals
	Ops    []PositionedOp
}

// Position is the half-open byte range in the source image an AST node was
// decoded from. Retained for downstream inspection tooling; never consulted
// by the validator or interpreter.
type Position struct {
	Start int
	End   int
}

// PositionedOp pairs a decoded Op with its source byte range.
type PositionedOp struct {
	Op  Op
	Pos Position
}

// Module is the parsed, unvalidated tree: sections in the standard order,
// each optional. Immutable after parsing except for the validator's
// in-place patch of control ops with resolved jump ids (see OpKind-specific
// fields on Op).
type Module struct {
	Types     []FunctionType
	Imports   []Import
	FuncTypeIdx []uint32 // function section: type index per internal function
	Tables    []Limits
	Memories  []Limits
	Globals   []Global
	Exports   []Export
	Start     *uint32
	DataCount *uint32
	Code      []FunctionBody
	Data      []Data
	Customs   []CustomSection
}

// CustomSection is a name + opaque payload, preserved verbatim.
type CustomSection struct {
	Name    string
	Payload []byte
}
