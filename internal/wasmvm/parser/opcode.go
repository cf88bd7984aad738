// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"math"

	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/leb"
	"github.com/dotandev/hesvm/internal/werrors"
)

// Raw opcode bytes, the standard Wasm 1.0 encoding.
const (
	bUnreachable = 0x00
	bNop         = 0x01
	bBlock       = 0x02
	bLoop        = 0x03
	bIf          = 0x04
	bElse        = 0x05
	bEnd         = 0x0b
	bBr          = 0x0c
	bBrIf        = 0x0d
	bReturn      = 0x0f
	bCall        = 0x10
	bDrop        = 0x1a
	bSelect      = 0x1b
	bLocalGet    = 0x20
	bLocalSet    = 0x21
	bLocalTee    = 0x22
	bGlobalGet   = 0x23
	bGlobalSet   = 0x24
	bI32Load     = 0x28
	bI64Load     = 0x29
	bF32Load     = 0x2a
	bF64Load     = 0x2b
	bI32Store    = 0x36
	bI64Store    = 0x37
	bF32Store    = 0x38
	bF64Store    = 0x39
	bMemorySize  = 0x3f
	bMemoryGrow  = 0x40
	bI32Const    = 0x41
	bI64Const    = 0x42
	bF32Const    = 0x43
	bF64Const    = 0x44

	bI32Eqz  = 0x45
	bI32Eq   = 0x46
	bI32Ne   = 0x47
	bI32LtS  = 0x48
	bI32LtU  = 0x49
	bI32GtS  = 0x4a
	bI32GtU  = 0x4b
	bI32LeS  = 0x4c
	bI32LeU  = 0x4d
	bI32GeS  = 0x4e
	bI32GeU  = 0x4f

	bI64Eqz = 0x50
	bI64Eq  = 0x51
	bI64Ne  = 0x52
	bI64LtS = 0x53
	bI64LtU = 0x54
	bI64GtS = 0x55
	bI64GtU = 0x56
	bI64LeS = 0x57
	bI64LeU = 0x58
	bI64GeS = 0x59
	bI64GeU = 0x5a

	bF32Eq = 0x5b
	bF32Ne = 0x5c
	bF32Lt = 0x5d
	bF32Gt = 0x5e
	bF32Le = 0x5f
	bF32Ge = 0x60

	bF64Eq = 0x61
	bF64Ne = 0x62
	bF64Lt = 0x63
	bF64Gt = 0x64
	bF64Le = 0x65
	bF64Ge = 0x66

	bI32Clz    = 0x67
	bI32Ctz    = 0x68
	bI32Popcnt = 0x69
	bI32Add    = 0x6a
	bI32Sub    = 0x6b
	bI32Mul    = 0x6c
	bI32DivS   = 0x6d
	bI32DivU   = 0x6e
	bI32RemS   = 0x6f
	bI32RemU   = 0x70
	bI32And    = 0x71
	bI32Or     = 0x72
	bI32Xor    = 0x73
	bI32Shl    = 0x74
	bI32ShrS   = 0x75
	bI32ShrU   = 0x76
	bI32Rotl   = 0x77
	bI32Rotr   = 0x78

	bI64Clz    = 0x79
	bI64Ctz    = 0x7a
	bI64Popcnt = 0x7b
	bI64Add    = 0x7c
	bI64Sub    = 0x7d
	bI64Mul    = 0x7e
	bI64DivS   = 0x7f
	bI64DivU   = 0x80
	bI64RemS   = 0x81
	bI64RemU   = 0x82
	bI64And    = 0x83
	bI64Or     = 0x84
	bI64Xor    = 0x85
	bI64Shl    = 0x86
	bI64ShrS   = 0x87
	bI64ShrU   = 0x88
	bI64Rotl   = 0x89
	bI64Rotr   = 0x8a

	bF32Abs      = 0x8b
	bF32Neg      = 0x8c
	bF32Ceil     = 0x8d
	bF32Floor    = 0x8e
	bF32Trunc    = 0x8f
	bF32Nearest  = 0x90
	bF32Sqrt     = 0x91
	bF32Add      = 0x92
	bF32Sub      = 0x93
	bF32Mul      = 0x94
	bF32Div      = 0x95
	bF32Min      = 0x96
	bF32Max      = 0x97
	bF32Copysign = 0x98

	bF64Abs      = 0x99
	bF64Neg      = 0x9a
	bF64Ceil     = 0x9b
	bF64Floor    = 0x9c
	bF64Trunc    = 0x9d
	bF64Nearest  = 0x9e
	bF64Sqrt     = 0x9f
	bF64Add      = 0xa0
	bF64Sub      = 0xa1
	bF64Mul      = 0xa2
	bF64Div      = 0xa3
	bF64Min      = 0xa4
	bF64Max      = 0xa5
	bF64Copysign = 0xa6

	bI32WrapI64        = 0xa7
	bI32TruncF32S      = 0xa8
	bI32TruncF32U      = 0xa9
	bI32TruncF64S      = 0xaa
	bI32TruncF64U      = 0xab
	bI64ExtendI32S     = 0xac
	bI64ExtendI32U     = 0xad
	bI64TruncF32S      = 0xae
	bI64TruncF32U      = 0xaf
	bI64TruncF64S      = 0xb0
	bI64TruncF64U      = 0xb1
	bF32ConvertI32S    = 0xb2
	bF32ConvertI32U    = 0xb3
	bF32ConvertI64S    = 0xb4
	bF32ConvertI64U    = 0xb5
	bF32DemoteF64      = 0xb6
	bF64ConvertI32S    = 0xb7
	bF64ConvertI32U    = 0xb8
	bF64ConvertI64S    = 0xb9
	bF64ConvertI64U    = 0xba
	bF64PromoteF32     = 0xbb
	bI32ReinterpretF32 = 0xbc
	bI64ReinterpretF64 = 0xbd
	bF32ReinterpretI32 = 0xbe
	bF64ReinterpretI64 = 0xbf

	bMemoryBulkPrefix = 0xfc // memory.init and friends live under this prefix
)

// bulk memory sub-opcodes (prefix 0xfc).
const (
	bulkMemoryInit = 0x08
)

var simpleOps = map[byte]ast.OpKind{
	bUnreachable: ast.OpUnreachable,
	bNop:         ast.OpNop,
	bReturn:      ast.OpReturn,
	bDrop:        ast.OpDrop,
	bSelect:      ast.OpSelect,

	bI32Eqz: ast.OpI32Eqz, bI32Eq: ast.OpI32Eq, bI32Ne: ast.OpI32Ne,
	bI32LtS: ast.OpI32LtS, bI32LtU: ast.OpI32LtU, bI32GtS: ast.OpI32GtS, bI32GtU: ast.OpI32GtU,
	bI32LeS: ast.OpI32LeS, bI32LeU: ast.OpI32LeU, bI32GeS: ast.OpI32GeS, bI32GeU: ast.OpI32GeU,
	bI32Clz: ast.OpI32Clz, bI32Ctz: ast.OpI32Ctz, bI32Popcnt: ast.OpI32Popcnt,
	bI32Add: ast.OpI32Add, bI32Sub: ast.OpI32Sub, bI32Mul: ast.OpI32Mul,
	bI32DivS: ast.OpI32DivS, bI32DivU: ast.OpI32DivU, bI32RemS: ast.OpI32RemS, bI32RemU: ast.OpI32RemU,
	bI32And: ast.OpI32And, bI32Or: ast.OpI32Or, bI32Xor: ast.OpI32Xor,
	bI32Shl: ast.OpI32Shl, bI32ShrS: ast.OpI32ShrS, bI32ShrU: ast.OpI32ShrU,
	bI32Rotl: ast.OpI32Rotl, bI32Rotr: ast.OpI32Rotr,

	bI64Eqz: ast.OpI64Eqz, bI64Eq: ast.OpI64Eq, bI64Ne: ast.OpI64Ne,
	bI64LtS: ast.OpI64LtS, bI64LtU: ast.OpI64LtU, bI64GtS: ast.OpI64GtS, bI64GtU: ast.OpI64GtU,
	bI64LeS: ast.OpI64LeS, bI64LeU: ast.OpI64LeU, bI64GeS: ast.OpI64GeS, bI64GeU: ast.OpI64GeU,
	bI64Clz: ast.OpI64Clz, bI64Ctz: ast.OpI64Ctz, bI64Popcnt: ast.OpI64Popcnt,
	bI64Add: ast.OpI64Add, bI64Sub: ast.OpI64Sub, bI64Mul: ast.OpI64Mul,
	bI64DivS: ast.OpI64DivS, bI64DivU: ast.OpI64DivU, bI64RemS: ast.OpI64RemS, bI64RemU: ast.OpI64RemU,
	bI64And: ast.OpI64And, bI64Or: ast.OpI64Or, bI64Xor: ast.OpI64Xor,
	bI64Shl: ast.OpI64Shl, bI64ShrS: ast.OpI64ShrS, bI64ShrU: ast.OpI64ShrU,
	bI64Rotl: ast.OpI64Rotl, bI64Rotr: ast.OpI64Rotr,

	bF32Eq: ast.OpF32Eq, bF32Ne: ast.OpF32Ne, bF32Lt: ast.OpF32Lt, bF32Gt: ast.OpF32Gt, bF32Le: ast.OpF32Le, bF32Ge: ast.OpF32Ge,
	bF32Abs: ast.OpF32Abs, bF32Neg: ast.OpF32Neg, bF32Ceil: ast.OpF32Ceil, bF32Floor: ast.OpF32Floor,
	bF32Trunc: ast.OpF32Trunc, bF32Nearest: ast.OpF32Nearest, bF32Sqrt: ast.OpF32Sqrt,
	bF32Add: ast.OpF32Add, bF32Sub: ast.OpF32Sub, bF32Mul: ast.OpF32Mul, bF32Div: ast.OpF32Div,
	bF32Min: ast.OpF32Min, bF32Max: ast.OpF32Max, bF32Copysign: ast.OpF32Copysign,

	bF64Eq: ast.OpF64Eq, bF64Ne: ast.OpF64Ne, bF64Lt: ast.OpF64Lt, bF64Gt: ast.OpF64Gt, bF64Le: ast.OpF64Le, bF64Ge: ast.OpF64Ge,
	bF64Abs: ast.OpF64Abs, bF64Neg: ast.OpF64Neg, bF64Ceil: ast.OpF64Ceil, bF64Floor: ast.OpF64Floor,
	bF64Trunc: ast.OpF64Trunc, bF64Nearest: ast.OpF64Nearest, bF64Sqrt: ast.OpF64Sqrt,
	bF64Add: ast.OpF64Add, bF64Sub: ast.OpF64Sub, bF64Mul: ast.OpF64Mul, bF64Div: ast.OpF64Div,
	bF64Min: ast.OpF64Min, bF64Max: ast.OpF64Max, bF64Copysign: ast.OpF64Copysign,

	bI32WrapI64: ast.OpI32WrapI64,
	bI32TruncF32S: ast.OpI32TruncF32S, bI32TruncF32U: ast.OpI32TruncF32U,
	bI32TruncF64S: ast.OpI32TruncF64S, bI32TruncF64U: ast.OpI32TruncF64U,
	bI64ExtendI32S: ast.OpI64ExtendI32S, bI64ExtendI32U: ast.OpI64ExtendI32U,
	bI64TruncF32S: ast.OpI64TruncF32S, bI64TruncF32U: ast.OpI64TruncF32U,
	bI64TruncF64S: ast.OpI64TruncF64S, bI64TruncF64U: ast.OpI64TruncF64U,
	bF32ConvertI32S: ast.OpF32ConvertI32S, bF32ConvertI32U: ast.OpF32ConvertI32U,
	bF32ConvertI64S: ast.OpF32ConvertI64S, bF32ConvertI64U: ast.OpF32ConvertI64U,
	bF32DemoteF64: ast.OpF32DemoteF64,
	bF64ConvertI32S: ast.OpF64ConvertI32S, bF64ConvertI32U: ast.OpF64ConvertI32U,
	bF64ConvertI64S: ast.OpF64ConvertI64S, bF64ConvertI64U: ast.OpF64ConvertI64U,
	bF64PromoteF32: ast.OpF64PromoteF32,
	bI32ReinterpretF32: ast.OpI32ReinterpretF32, bI64ReinterpretF64: ast.OpI64ReinterpretF64,
	bF32ReinterpretI32: ast.OpF32ReinterpretI32, bF64ReinterpretI64: ast.OpF64ReinterpretI64,
}

var memOps = map[byte]ast.OpKind{
	bI32Load: ast.OpI32Load, bI64Load: ast.OpI64Load, bF32Load: ast.OpF32Load, bF64Load: ast.OpF64Load,
	bI32Store: ast.OpI32Store, bI64Store: ast.OpI64Store, bF32Store: ast.OpF32Store, bF64Store: ast.OpF64Store,
}

// readBlockType decodes the single-byte empty/result-kind form or the
// signed LEB128 s33 type-index form.
func readBlockType(r *leb.Reader) (ast.BlockType, error) {
	// Peek: empty/result forms are single bytes in {0x40, 0x7c..0x7f}.
	pos := r.Position()
	b, err := r.ReadU8()
	if err != nil {
		return ast.BlockType{}, err
	}
	switch b {
	case 0x40:
		return ast.BlockType{Empty: true}, nil
	case 0x7f:
		return ast.BlockType{SingleRes: true, Result: ast.I32}, nil
	case 0x7e:
		return ast.BlockType{SingleRes: true, Result: ast.I64}, nil
	case 0x7d:
		return ast.BlockType{SingleRes: true, Result: ast.F32}, nil
	case 0x7c:
		return ast.BlockType{SingleRes: true, Result: ast.F64}, nil
	}
	// Not a recognized single-byte form: re-read as a signed s33 type index.
	r.Seek(pos)
	idx, err := r.ReadVarS33()
	if err != nil {
		return ast.BlockType{}, werrors.WrapPos(werrors.ErrInvalidBlocktype, pos)
	}
	if idx < 0 {
		return ast.BlockType{}, werrors.WrapPos(werrors.ErrInvalidBlocktype, pos)
	}
	return ast.BlockType{TypeIdx: uint32(idx)}, nil
}

func readMemarg(r *leb.Reader) (ast.Memarg, error) {
	align, err := r.ReadVarU32()
	if err != nil {
		return ast.Memarg{}, err
	}
	offset, err := r.ReadVarU32()
	if err != nil {
		return ast.Memarg{}, err
	}
	return ast.Memarg{Align: align, Offset: offset}, nil
}

// readOp decodes a single instruction, including its immediates. Control
// ops carrying a branch target are left with a zero Jmp; the validator
// fills it in once it has type-checked the body.
func readOp(r *leb.Reader) (ast.Op, error) {
	opcode, err := r.ReadU8()
	if err != nil {
		return ast.Op{}, err
	}

	if kind, ok := simpleOps[opcode]; ok {
		return ast.Op{Kind: kind}, nil
	}
	if kind, ok := memOps[opcode]; ok {
		mem, err := readMemarg(r)
		if err != nil {
			return ast.Op{}, err
		}
		return ast.Op{Kind: kind, Mem: mem}, nil
	}

	switch opcode {
	case bBlock, bLoop, bIf:
		bt, err := readBlockType(r)
		if err != nil {
			return ast.Op{}, err
		}
		kind := ast.OpBlock
		if opcode == bLoop {
			kind = ast.OpLoop
		} else if opcode == bIf {
			kind = ast.OpIf
		}
		return ast.Op{Kind: kind, Block: bt}, nil
	case bElse:
		return ast.Op{Kind: ast.OpElse}, nil
	case bEnd:
		return ast.Op{Kind: ast.OpEnd}, nil
	case bBr, bBrIf:
		label, err := r.ReadVarU32()
		if err != nil {
			return ast.Op{}, err
		}
		kind := ast.OpBr
		if opcode == bBrIf {
			kind = ast.OpBrIf
		}
		return ast.Op{Kind: kind, Label: label}, nil
	case bCall:
		idx, err := r.ReadVarU32()
		if err != nil {
			return ast.Op{}, err
		}
		return ast.Op{Kind: ast.OpCall, Idx: idx}, nil
	case bLocalGet, bLocalSet, bLocalTee:
		idx, err := r.ReadVarU32()
		if err != nil {
			return ast.Op{}, err
		}
		kind := ast.OpLocalGet
		if opcode == bLocalSet {
			kind = ast.OpLocalSet
		} else if opcode == bLocalTee {
			kind = ast.OpLocalTee
		}
		return ast.Op{Kind: kind, Idx: idx}, nil
	case bGlobalGet, bGlobalSet:
		idx, err := r.ReadVarU32()
		if err != nil {
			return ast.Op{}, err
		}
		kind := ast.OpGlobalGet
		if opcode == bGlobalSet {
			kind = ast.OpGlobalSet
		}
		return ast.Op{Kind: kind, Idx: idx}, nil
	case bI32Const:
		v, err := r.ReadVarI32()
		if err != nil {
			return ast.Op{}, err
		}
		return ast.Op{Kind: ast.OpI32Const, I32: v}, nil
	case bI64Const:
		v, err := r.ReadVarI64()
		if err != nil {
			return ast.Op{}, err
		}
		return ast.Op{Kind: ast.OpI64Const, I64: v}, nil
	case bF32Const:
		bits, err := r.ReadBytes(4)
		if err != nil {
			return ast.Op{}, err
		}
		u := uint32(bits[0]) | uint32(bits[1])<<8 | uint32(bits[2])<<16 | uint32(bits[3])<<24
		return ast.Op{Kind: ast.OpF32Const, F32: math.Float32frombits(u)}, nil
	case bF64Const:
		bits, err := r.ReadBytes(8)
		if err != nil {
			return ast.Op{}, err
		}
		var u uint64
		for i := 7; i >= 0; i-- {
			u = u<<8 | uint64(bits[i])
		}
		return ast.Op{Kind: ast.OpF64Const, F64: math.Float64frombits(u)}, nil
	case bMemorySize, bMemoryGrow:
		// Growable memory isn't modeled (single fixed-size memory per
		// instance), and neither op has an Op variant carrying the right
		// [] -> [i32] / [i32] -> [i32] arity, so accepting them as a bare
		// Nop would let the validator silently miscount stack depth for
		// any code that actually consumes the pushed page count. Reject
		// them the same way as any other unsupported opcode.
		return ast.Op{}, werrors.WrapPos(werrors.ErrUnsupportedOpcode, r.Position())
	case bMemoryBulkPrefix:
		sub, err := r.ReadVarU32()
		if err != nil {
			return ast.Op{}, err
		}
		if sub != bulkMemoryInit {
			return ast.Op{}, werrors.WrapPos(werrors.ErrUnsupportedOpcode, r.Position())
		}
		dataIdx, err := r.ReadVarU32()
		if err != nil {
			return ast.Op{}, err
		}
		// memory.init also carries a memory index byte, required to be 0.
		if _, err := r.ReadVarU32(); err != nil {
			return ast.Op{}, err
		}
		return ast.Op{Kind: ast.OpMemoryInit, DataIdx: dataIdx}, nil
	default:
		return ast.Op{}, werrors.WrapPos(werrors.ErrUnsupportedOpcode, r.Position()-1)
	}
}
