// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package disasm renders a function body's already-parsed ast.PositionedOp
// sequence as WAT-style text, and pulls the instructions nearest a given
// byte offset for trap messages -- the same "what's around the failing
// spot" idea the teacher's source-trace viewer shows a human, fed typed
// ops here instead of re-decoding raw bytes.
package disasm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dotandev/hesvm/internal/wasmvm/ast"
)

var mnemonics = map[ast.OpKind]string{
	ast.OpUnreachable: "unreachable",
	ast.OpNop: "nop",
	ast.OpBlock: "block",
	ast.OpLoop: "loop",
	ast.OpIf: "if",
	ast.OpElse: "else",
	ast.OpEnd: "end",
	ast.OpBr: "br",
	ast.OpBrIf: "br_if",
	ast.OpReturn: "return",
	ast.OpCall: "call",
	ast.OpDrop: "drop",
	ast.OpSelect: "select",
	ast.OpLocalGet: "local.get",
	ast.OpLocalSet: "local.set",
	ast.OpLocalTee: "local.tee",
	ast.OpGlobalGet: "global.get",
	ast.OpGlobalSet: "global.set",
	ast.OpI32Load: "i32.load",
	ast.OpI64Load: "i64.load",
	ast.OpF32Load: "f32.load",
	ast.OpF64Load: "f64.load",
	ast.OpI32Store: "i32.store",
	ast.OpI64Store: "i64.store",
	ast.OpF32Store: "f32.store",
	ast.OpF64Store: "f64.store",
	ast.OpMemoryInit: "memory.init",
	ast.OpI32Const: "i32.const",
	ast.OpI64Const: "i64.const",
	ast.OpF32Const: "f32.const",
	ast.OpF64Const: "f64.const",
	ast.OpI32Eqz: "i32.eqz",
	ast.OpI32Eq: "i32.eq",
	ast.OpI32Ne: "i32.ne",
	ast.OpI32LtS: "i32.lt_s",
	ast.OpI32LtU: "i32.lt_u",
	ast.OpI32GtS: "i32.gt_s",
	ast.OpI32GtU: "i32.gt_u",
	ast.OpI32LeS: "i32.le_s",
	ast.OpI32LeU: "i32.le_u",
	ast.OpI32GeS: "i32.ge_s",
	ast.OpI32GeU: "i32.ge_u",
	ast.OpI32Clz: "i32.clz",
	ast.OpI32Ctz: "i32.ctz",
	ast.OpI32Popcnt: "i32.popcnt",
	ast.OpI32Add: "i32.add",
	ast.OpI32Sub: "i32.sub",
	ast.OpI32Mul: "i32.mul",
	ast.OpI32DivS: "i32.div_s",
	ast.OpI32DivU: "i32.div_u",
	ast.OpI32RemS: "i32.rem_s",
	ast.OpI32RemU: "i32.rem_u",
	ast.OpI32And: "i32.and",
	ast.OpI32Or: "i32.or",
	ast.OpI32Xor: "i32.xor",
	ast.OpI32Shl: "i32.shl",
	ast.OpI32ShrS: "i32.shr_s",
	ast.OpI32ShrU: "i32.shr_u",
	ast.OpI32Rotl: "i32.rotl",
	ast.OpI32Rotr: "i32.rotr",
	ast.OpI64Eqz: "i64.eqz",
	ast.OpI64Eq: "i64.eq",
	ast.OpI64Ne: "i64.ne",
	ast.OpI64LtS: "i64.lt_s",
	ast.OpI64LtU: "i64.lt_u",
	ast.OpI64GtS: "i64.gt_s",
	ast.OpI64GtU: "i64.gt_u",
	ast.OpI64LeS: "i64.le_s",
	ast.OpI64LeU: "i64.le_u",
	ast.OpI64GeS: "i64.ge_s",
	ast.OpI64GeU: "i64.ge_u",
	ast.OpI64Clz: "i64.clz",
	ast.OpI64Ctz: "i64.ctz",
	ast.OpI64Popcnt: "i64.popcnt",
	ast.OpI64Add: "i64.add",
	ast.OpI64Sub: "i64.sub",
	ast.OpI64Mul: "i64.mul",
	ast.OpI64DivS: "i64.div_s",
	ast.OpI64DivU: "i64.div_u",
	ast.OpI64RemS: "i64.rem_s",
	ast.OpI64RemU: "i64.rem_u",
	ast.OpI64And: "i64.and",
	ast.OpI64Or: "i64.or",
	ast.OpI64Xor: "i64.xor",
	ast.OpI64Shl: "i64.shl",
	ast.OpI64ShrS: "i64.shr_s",
	ast.OpI64ShrU: "i64.shr_u",
	ast.OpI64Rotl: "i64.rotl",
	ast.OpI64Rotr: "i64.rotr",
	ast.OpF32Eq: "f32.eq",
	ast.OpF32Ne: "f32.ne",
	ast.OpF32Lt: "f32.lt",
	ast.OpF32Gt: "f32.gt",
	ast.OpF32Le: "f32.le",
	ast.OpF32Ge: "f32.ge",
	ast.OpF32Abs: "f32.abs",
	ast.OpF32Neg: "f32.neg",
	ast.OpF32Ceil: "f32.ceil",
	ast.OpF32Floor: "f32.floor",
	ast.OpF32Trunc: "f32.trunc",
	ast.OpF32Nearest: "f32.nearest",
	ast.OpF32Sqrt: "f32.sqrt",
	ast.OpF32Add: "f32.add",
	ast.OpF32Sub: "f32.sub",
	ast.OpF32Mul: "f32.mul",
	ast.OpF32Div: "f32.div",
	ast.OpF32Min: "f32.min",
	ast.OpF32Max: "f32.max",
	ast.OpF32Copysign: "f32.copysign",
	ast.OpF64Eq: "f64.eq",
	ast.OpF64Ne: "f64.ne",
	ast.OpF64Lt: "f64.lt",
	ast.OpF64Gt: "f64.gt",
	ast.OpF64Le: "f64.le",
	ast.OpF64Ge: "f64.ge",
	ast.OpF64Abs: "f64.abs",
	ast.OpF64Neg: "f64.neg",
	ast.OpF64Ceil: "f64.ceil",
	ast.OpF64Floor: "f64.floor",
	ast.OpF64Trunc: "f64.trunc",
	ast.OpF64Nearest: "f64.nearest",
	ast.OpF64Sqrt: "f64.sqrt",
	ast.OpF64Add: "f64.add",
	ast.OpF64Sub: "f64.sub",
	ast.OpF64Mul: "f64.mul",
	ast.OpF64Div: "f64.div",
	ast.OpF64Min: "f64.min",
	ast.OpF64Max: "f64.max",
	ast.OpF64Copysign: "f64.copysign",
	ast.OpI32WrapI64: "i32.wrap_i64",
	ast.OpI32TruncF32S: "i32.trunc_f32_s",
	ast.OpI32TruncF32U: "i32.trunc_f32_u",
	ast.OpI32TruncF64S: "i32.trunc_f64_s",
	ast.OpI32TruncF64U: "i32.trunc_f64_u",
	ast.OpI64ExtendI32S: "i64.extend_i32_s",
	ast.OpI64ExtendI32U: "i64.extend_i32_u",
	ast.OpI64TruncF32S: "i64.trunc_f32_s",
	ast.OpI64TruncF32U: "i64.trunc_f32_u",
	ast.OpI64TruncF64S: "i64.trunc_f64_s",
	ast.OpI64TruncF64U: "i64.trunc_f64_u",
	ast.OpF32ConvertI32S: "f32.convert_i32_s",
	ast.OpF32ConvertI32U: "f32.convert_i32_u",
	ast.OpF32ConvertI64S: "f32.convert_i64_s",
	ast.OpF32ConvertI64U: "f32.convert_i64_u",
	ast.OpF32DemoteF64: "f32.demote_f64",
	ast.OpF64ConvertI32S: "f64.convert_i32_s",
	ast.OpF64ConvertI32U: "f64.convert_i32_u",
	ast.OpF64ConvertI64S: "f64.convert_i64_s",
	ast.OpF64ConvertI64U: "f64.convert_i64_u",
	ast.OpF64PromoteF32: "f64.promote_f32",
	ast.OpI32ReinterpretF32: "i32.reinterpret_f32",
	ast.OpI64ReinterpretF64: "i64.reinterpret_f64",
	ast.OpF32ReinterpretI32: "f32.reinterpret_i32",
	ast.OpF64ReinterpretI64: "f64.reinterpret_i64",
}

// Mnemonic returns op's WAT-style name, e.g. "i32.add" or "br_if".
func Mnemonic(kind ast.OpKind) string {
	if m, ok := mnemonics[kind]; ok {
		return m
	}
	return "unknown"
}

// operand formats an op's immediate, if its mnemonic takes one.
func operand(op ast.Op) string {
	switch op.Kind {
	case ast.OpBr, ast.OpBrIf:
		return strconv.FormatUint(uint64(op.Label), 10)
	case ast.OpCall, ast.OpLocalGet, ast.OpLocalSet, ast.OpLocalTee, ast.OpGlobalGet, ast.OpGlobalSet:
		return strconv.FormatUint(uint64(op.Idx), 10)
	case ast.OpI32Load, ast.OpI64Load, ast.OpF32Load, ast.OpF64Load,
		ast.OpI32Store, ast.OpI64Store, ast.OpF32Store, ast.OpF64Store:
		return fmt.Sprintf("offset=%d align=%d", op.Mem.Offset, op.Mem.Align)
	case ast.OpMemoryInit:
		return strconv.FormatUint(uint64(op.DataIdx), 10)
	case ast.OpI32Const:
		return strconv.FormatInt(int64(op.I32), 10)
	case ast.OpI64Const:
		return strconv.FormatInt(op.I64, 10)
	case ast.OpF32Const:
		return strconv.FormatFloat(float64(op.F32), 'g', -1, 32)
	case ast.OpF64Const:
		return strconv.FormatFloat(op.F64, 'g', -1, 64)
	default:
		return ""
	}
}

// Line renders one instruction as "0x<offset>: <mnemonic> <operand>".
func Line(pos ast.PositionedOp) string {
	mnem := Mnemonic(pos.Op.Kind)
	if opnd := operand(pos.Op); opnd != "" {
		return fmt.Sprintf("0x%04x: %s %s", pos.Pos.Start, mnem, opnd)
	}
	return fmt.Sprintf("0x%04x: %s", pos.Pos.Start, mnem)
}

// Function renders every instruction of body, one per line.
func Function(body ast.FunctionBody) string {
	lines := make([]string, len(body.Ops))
	for i, pos := range body.Ops {
		lines[i] = Line(pos)
	}
	return strings.Join(lines, "\n")
}

// Nearest returns up to 2*radius+1 disassembled lines centered on the
// instruction whose byte range contains offset, for trap messages of the
// form "trapped at byte 0x123, nearest instructions: ...". If no
// instruction contains offset, the search falls back to the closest one
// that starts before it.
func Nearest(body ast.FunctionBody, offset, radius int) []string {
	idx := -1
	for i, pos := range body.Ops {
		if offset >= pos.Pos.Start && offset < pos.Pos.End {
			idx = i
			break
		}
		if pos.Pos.Start <= offset {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}

	lo := idx - radius
	if lo < 0 {
		lo = 0
	}
	hi := idx + radius + 1
	if hi > len(body.Ops) {
		hi = len(body.Ops)
	}

	out := make([]string, 0, hi-lo)
	for i := lo; i < hi; i++ {
		line := Line(body.Ops[i])
		if i == idx {
			line = "-> " + line
		}
		out = append(out, line)
	}
	return out
}
