// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/werrors"
)

// step performs the pop-match-push (or control-flow) rule for a single op.
func (fv *funcValidator) step(op *ast.Op) error {
	switch op.Kind {
	case ast.OpUnreachable:
		f := fv.curFrame()
		f.unreachable = true
		fv.typeStack = fv.typeStack[:f.prevStackLen]
		return nil
	case ast.OpNop:
		return nil
	case ast.OpDrop:
		_, err := fv.pop()
		return err
	case ast.OpSelect:
		if err := fv.popExpect(ast.I32); err != nil {
			return err
		}
		b, err := fv.pop()
		if err != nil {
			return err
		}
		a, err := fv.pop()
		if err != nil {
			return err
		}
		if !a.unknown && !b.unknown && a.kind != b.kind {
			return werrors.ErrTypeMismatch
		}
		if a.unknown {
			fv.typeStack = append(fv.typeStack, b)
		} else {
			fv.typeStack = append(fv.typeStack, a)
		}
		return nil

	case ast.OpBlock, ast.OpLoop, ast.OpIf:
		return fv.enterBlock(op)
	case ast.OpElse:
		return fv.handleElse()
	case ast.OpEnd:
		return fv.handleEnd()
	case ast.OpBr:
		return fv.handleBr(op, false)
	case ast.OpBrIf:
		return fv.handleBr(op, true)
	case ast.OpReturn:
		if err := fv.popExpectMany(fv.result); err != nil {
			return err
		}
		fv.curFrame().unreachable = true
		fv.typeStack = fv.typeStack[:fv.curFrame().prevStackLen]
		return nil

	case ast.OpCall:
		return fv.handleCall(op.Idx)

	case ast.OpLocalGet:
		k, err := fv.localKind(op.Idx)
		if err != nil {
			return err
		}
		fv.push(k)
		return nil
	case ast.OpLocalSet:
		k, err := fv.localKind(op.Idx)
		if err != nil {
			return err
		}
		return fv.popExpect(k)
	case ast.OpLocalTee:
		k, err := fv.localKind(op.Idx)
		if err != nil {
			return err
		}
		if err := fv.popExpect(k); err != nil {
			return err
		}
		fv.push(k)
		return nil

	case ast.OpGlobalGet:
		g, err := fv.globalInfo(op.Idx)
		if err != nil {
			return err
		}
		fv.push(g.Kind)
		return nil
	case ast.OpGlobalSet:
		g, err := fv.globalInfo(op.Idx)
		if err != nil {
			return err
		}
		if !g.Mutable {
			return werrors.ErrImmutableGlobalWrite
		}
		return fv.popExpect(g.Kind)

	case ast.OpI32Load, ast.OpI32Store:
		return fv.memOp(op, ast.I32, 4, op.Kind == ast.OpI32Store)
	case ast.OpI64Load, ast.OpI64Store:
		return fv.memOp(op, ast.I64, 8, op.Kind == ast.OpI64Store)
	case ast.OpF32Load, ast.OpF32Store:
		return fv.memOp(op, ast.F32, 4, op.Kind == ast.OpF32Store)
	case ast.OpF64Load, ast.OpF64Store:
		return fv.memOp(op, ast.F64, 8, op.Kind == ast.OpF64Store)

	case ast.OpMemoryInit:
		return fv.handleMemoryInit(op.DataIdx)

	case ast.OpI32Const:
		fv.push(ast.I32)
		return nil
	case ast.OpI64Const:
		fv.push(ast.I64)
		return nil
	case ast.OpF32Const:
		fv.push(ast.F32)
		return nil
	case ast.OpF64Const:
		fv.push(ast.F64)
		return nil
	}

	return fv.numericOp(op.Kind)
}

func (fv *funcValidator) localKind(idx uint32) (ast.ValueKind, error) {
	if int(idx) >= len(fv.locals) {
		return 0, werrors.ErrInvalidFuncIndex
	}
	return fv.locals[idx], nil
}

func (fv *funcValidator) globalInfo(idx uint32) (ast.GlobalType, error) {
	if int(idx) >= len(fv.info.Globals) {
		return ast.GlobalType{}, werrors.ErrInvalidGlobalIndex
	}
	g := fv.info.Globals[idx]
	return ast.GlobalType{Kind: g.Kind, Mutable: g.Mutable}, nil
}

func (fv *funcValidator) handleCall(idx uint32) error {
	if int(idx) >= len(fv.info.Functions) {
		return werrors.ErrInvalidFuncIndex
	}
	typeIdx := fv.info.Functions[idx].TypeIdx
	if int(typeIdx) >= len(fv.mod.Types) {
		return werrors.ErrInvalidTypeIndex
	}
	sig := fv.mod.Types[typeIdx]
	if err := fv.popExpectMany(sig.Params); err != nil {
		return err
	}
	fv.pushMany(sig.Results)
	return nil
}

func (fv *funcValidator) memOp(op *ast.Op, kind ast.ValueKind, byteWidth int, isStore bool) error {
	if len(fv.info.Memories) == 0 {
		return werrors.ErrNoMemory
	}
	// 2^align <= byteWidth, normalizing the check to bytes per spec's
	// resolution of the source's bits-vs-bytes ambiguity.
	if (1 << op.Mem.Align) > byteWidth {
		return werrors.ErrInvalidAlignment
	}
	if isStore {
		if err := fv.popExpect(kind); err != nil {
			return err
		}
		return fv.popExpect(ast.I32)
	}
	if err := fv.popExpect(ast.I32); err != nil {
		return err
	}
	fv.push(kind)
	return nil
}

func (fv *funcValidator) handleMemoryInit(dataIdx uint32) error {
	if len(fv.info.Memories) == 0 {
		return werrors.ErrNoMemory
	}
	if int(dataIdx) >= len(fv.mod.Data) {
		return werrors.ErrInvalidDataIndex
	}
	if fv.mod.Data[dataIdx].Mode != ast.DataPassive {
		return werrors.ErrActiveDataSegment
	}
	// Operands are pushed as (dest, src, size), so stack order
	// top-to-bottom is (size, src, dest) and size is popped first
	// (see SPEC_FULL §5).
	if err := fv.popExpect(ast.I32); err != nil { // size
		return err
	}
	if err := fv.popExpect(ast.I32); err != nil { // src
		return err
	}
	return fv.popExpect(ast.I32) // dest
}

var binopKinds = map[ast.OpKind]ast.ValueKind{
	ast.OpI32Add: ast.I32, ast.OpI32Sub: ast.I32, ast.OpI32Mul: ast.I32,
	ast.OpI32DivS: ast.I32, ast.OpI32DivU: ast.I32, ast.OpI32RemS: ast.I32, ast.OpI32RemU: ast.I32,
	ast.OpI32And: ast.I32, ast.OpI32Or: ast.I32, ast.OpI32Xor: ast.I32,
	ast.OpI32Shl: ast.I32, ast.OpI32ShrS: ast.I32, ast.OpI32ShrU: ast.I32,
	ast.OpI32Rotl: ast.I32, ast.OpI32Rotr: ast.I32,

	ast.OpI64Add: ast.I64, ast.OpI64Sub: ast.I64, ast.OpI64Mul: ast.I64,
	ast.OpI64DivS: ast.I64, ast.OpI64DivU: ast.I64, ast.OpI64RemS: ast.I64, ast.OpI64RemU: ast.I64,
	ast.OpI64And: ast.I64, ast.OpI64Or: ast.I64, ast.OpI64Xor: ast.I64,
	ast.OpI64Shl: ast.I64, ast.OpI64ShrS: ast.I64, ast.OpI64ShrU: ast.I64,
	ast.OpI64Rotl: ast.I64, ast.OpI64Rotr: ast.I64,

	ast.OpF32Add: ast.F32, ast.OpF32Sub: ast.F32, ast.OpF32Mul: ast.F32, ast.OpF32Div: ast.F32,
	ast.OpF32Min: ast.F32, ast.OpF32Max: ast.F32, ast.OpF32Copysign: ast.F32,

	ast.OpF64Add: ast.F64, ast.OpF64Sub: ast.F64, ast.OpF64Mul: ast.F64, ast.OpF64Div: ast.F64,
	ast.OpF64Min: ast.F64, ast.OpF64Max: ast.F64, ast.OpF64Copysign: ast.F64,
}

var cmpKinds = map[ast.OpKind]ast.ValueKind{
	ast.OpI32Eq: ast.I32, ast.OpI32Ne: ast.I32, ast.OpI32LtS: ast.I32, ast.OpI32LtU: ast.I32,
	ast.OpI32GtS: ast.I32, ast.OpI32GtU: ast.I32, ast.OpI32LeS: ast.I32, ast.OpI32LeU: ast.I32,
	ast.OpI32GeS: ast.I32, ast.OpI32GeU: ast.I32,

	ast.OpI64Eq: ast.I64, ast.OpI64Ne: ast.I64, ast.OpI64LtS: ast.I64, ast.OpI64LtU: ast.I64,
	ast.OpI64GtS: ast.I64, ast.OpI64GtU: ast.I64, ast.OpI64LeS: ast.I64, ast.OpI64LeU: ast.I64,
	ast.OpI64GeS: ast.I64, ast.OpI64GeU: ast.I64,

	ast.OpF32Eq: ast.F32, ast.OpF32Ne: ast.F32, ast.OpF32Lt: ast.F32, ast.OpF32Gt: ast.F32,
	ast.OpF32Le: ast.F32, ast.OpF32Ge: ast.F32,

	ast.OpF64Eq: ast.F64, ast.OpF64Ne: ast.F64, ast.OpF64Lt: ast.F64, ast.OpF64Gt: ast.F64,
	ast.OpF64Le: ast.F64, ast.OpF64Ge: ast.F64,
}

var testKinds = map[ast.OpKind]ast.ValueKind{
	ast.OpI32Eqz: ast.I32,
	ast.OpI64Eqz: ast.I64,
}

var unopKinds = map[ast.OpKind]ast.ValueKind{
	ast.OpI32Clz: ast.I32, ast.OpI32Ctz: ast.I32, ast.OpI32Popcnt: ast.I32,
	ast.OpI64Clz: ast.I64, ast.OpI64Ctz: ast.I64, ast.OpI64Popcnt: ast.I64,
	ast.OpF32Abs: ast.F32, ast.OpF32Neg: ast.F32, ast.OpF32Ceil: ast.F32, ast.OpF32Floor: ast.F32,
	ast.OpF32Trunc: ast.F32, ast.OpF32Nearest: ast.F32, ast.OpF32Sqrt: ast.F32,
	ast.OpF64Abs: ast.F64, ast.OpF64Neg: ast.F64, ast.OpF64Ceil: ast.F64, ast.OpF64Floor: ast.F64,
	ast.OpF64Trunc: ast.F64, ast.OpF64Nearest: ast.F64, ast.OpF64Sqrt: ast.F64,
}

// conversion gives (fromKind, toKind) for every conversion/reinterpret op.
var conversion = map[ast.OpKind][2]ast.ValueKind{
	ast.OpI32WrapI64:   {ast.I64, ast.I32},
	ast.OpI32TruncF32S: {ast.F32, ast.I32}, ast.OpI32TruncF32U: {ast.F32, ast.I32},
	ast.OpI32TruncF64S: {ast.F64, ast.I32}, ast.OpI32TruncF64U: {ast.F64, ast.I32},
	ast.OpI64ExtendI32S: {ast.I32, ast.I64}, ast.OpI64ExtendI32U: {ast.I32, ast.I64},
	ast.OpI64TruncF32S: {ast.F32, ast.I64}, ast.OpI64TruncF32U: {ast.F32, ast.I64},
	ast.OpI64TruncF64S: {ast.F64, ast.I64}, ast.OpI64TruncF64U: {ast.F64, ast.I64},
	ast.OpF32ConvertI32S: {ast.I32, ast.F32}, ast.OpF32ConvertI32U: {ast.I32, ast.F32},
	ast.OpF32ConvertI64S: {ast.I64, ast.F32}, ast.OpF32ConvertI64U: {ast.I64, ast.F32},
	ast.OpF32DemoteF64: {ast.F64, ast.F32},
	ast.OpF64ConvertI32S: {ast.I32, ast.F64}, ast.OpF64ConvertI32U: {ast.I32, ast.F64},
	ast.OpF64ConvertI64S: {ast.I64, ast.F64}, ast.OpF64ConvertI64U: {ast.I64, ast.F64},
	ast.OpF64PromoteF32: {ast.F32, ast.F64},
	ast.OpI32ReinterpretF32: {ast.F32, ast.I32}, ast.OpI64ReinterpretF64: {ast.F64, ast.I64},
	ast.OpF32ReinterpretI32: {ast.I32, ast.F32}, ast.OpF64ReinterpretI64: {ast.I64, ast.F64},
}

func (fv *funcValidator) numericOp(kind ast.OpKind) error {
	if t, ok := binopKinds[kind]; ok {
		if err := fv.popExpect(t); err != nil {
			return err
		}
		if err := fv.popExpect(t); err != nil {
			return err
		}
		fv.push(t)
		return nil
	}
	if t, ok := cmpKinds[kind]; ok {
		if err := fv.popExpect(t); err != nil {
			return err
		}
		if err := fv.popExpect(t); err != nil {
			return err
		}
		fv.push(ast.I32)
		return nil
	}
	if t, ok := testKinds[kind]; ok {
		if err := fv.popExpect(t); err != nil {
			return err
		}
		fv.push(ast.I32)
		return nil
	}
	if t, ok := unopKinds[kind]; ok {
		if err := fv.popExpect(t); err != nil {
			return err
		}
		fv.push(t)
		return nil
	}
	if pair, ok := conversion[kind]; ok {
		if err := fv.popExpect(pair[0]); err != nil {
			return err
		}
		fv.push(pair[1])
		return nil
	}
	return werrors.Wrapf(werrors.ErrUnsupportedOpcode, "op kind %d", kind)
}
