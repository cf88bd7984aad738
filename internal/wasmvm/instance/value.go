// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package instance turns a validated module into a runnable Instance:
// imports resolved, memory allocated, globals evaluated, data segments
// applied. Nothing here executes a function body past its constant
// expressions; that is the interpreter's job.
package instance

import (
	"math"

	"github.com/dotandev/hesvm/internal/wasmvm/ast"
)

// Value is a typed operand: the kind tag the validator already proved,
// paired with the raw bits. Conversions from/to the interpreter's untagged
// stack cells happen at the boundary (run_func in/out, host call in/out);
// inside the dispatch loop the stack itself stores bare uint64 cells.
type Value struct {
	Kind ast.ValueKind
	Bits uint64
}

func I32(v int32) Value  { return Value{Kind: ast.I32, Bits: uint64(uint32(v))} }
func I64(v int64) Value  { return Value{Kind: ast.I64, Bits: uint64(v)} }
func F32(v float32) Value {
	return Value{Kind: ast.F32, Bits: uint64(math.Float32bits(v))}
}
func F64(v float64) Value { return Value{Kind: ast.F64, Bits: math.Float64bits(v)} }

func (v Value) AsI32() int32   { return int32(uint32(v.Bits)) }
func (v Value) AsI64() int64   { return int64(v.Bits) }
func (v Value) AsF32() float32 { return math.Float32frombits(uint32(v.Bits)) }
func (v Value) AsF64() float64 { return math.Float64frombits(v.Bits) }
