// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package interp

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/instance"
	"github.com/dotandev/hesvm/internal/wasmvm/validator"
	"github.com/dotandev/hesvm/internal/werrors"
)

// step executes one instruction and advances m.ip, except where the op
// itself redirects control flow (branches, calls, returns).
func (m *Machine) step(op *ast.Op) error {
	switch op.Kind {
	case ast.OpUnreachable:
		return werrors.ErrUnreachable
	case ast.OpNop:
		m.ip++
	case ast.OpBlock, ast.OpLoop:
		m.numLabels++
		m.ip++
	case ast.OpIf:
		return m.dispatchIf(op)
	case ast.OpElse:
		// The then-arm just finished and the jump skips the matching End,
		// so the If's label is closed here instead.
		m.numLabels--
		m.ip += int(int32(op.Jmp))
	case ast.OpEnd:
		return m.dispatchEnd()
	case ast.OpBr:
		return m.dispatchBr(op)
	case ast.OpBrIf:
		return m.dispatchBrIf(op)
	case ast.OpReturn:
		return m.doReturn()
	case ast.OpCall:
		return m.dispatchCall(op)
	case ast.OpDrop:
		m.popCell()
		m.ip++
	case ast.OpSelect:
		return m.dispatchSelect()
	case ast.OpLocalGet:
		m.pushCell(m.locals[m.curFrame().localsBase+int(op.Idx)])
		m.ip++
	case ast.OpLocalSet:
		m.locals[m.curFrame().localsBase+int(op.Idx)] = m.popCell()
		m.ip++
	case ast.OpLocalTee:
		m.locals[m.curFrame().localsBase+int(op.Idx)] = m.stack[len(m.stack)-1]
		m.ip++
	case ast.OpGlobalGet:
		m.pushCell(m.inst.Globals[op.Idx].Bits)
		m.ip++
	case ast.OpGlobalSet:
		g := &m.inst.Globals[op.Idx]
		g.Bits = m.popCell()
		m.ip++
	case ast.OpI32Load, ast.OpF32Load:
		return m.dispatchLoad(op, 4)
	case ast.OpI64Load, ast.OpF64Load:
		return m.dispatchLoad(op, 8)
	case ast.OpI32Store, ast.OpF32Store:
		return m.dispatchStore(op, 4)
	case ast.OpI64Store, ast.OpF64Store:
		return m.dispatchStore(op, 8)
	case ast.OpMemoryInit:
		return m.dispatchMemoryInit(op)
	case ast.OpI32Const:
		m.pushCell(uint64(uint32(op.I32)))
		m.ip++
	case ast.OpI64Const:
		m.pushCell(uint64(op.I64))
		m.ip++
	case ast.OpF32Const:
		m.pushCell(uint64(math.Float32bits(op.F32)))
		m.ip++
	case ast.OpF64Const:
		m.pushCell(math.Float64bits(op.F64))
		m.ip++
	default:
		return m.dispatchNumeric(op)
	}
	return nil
}

func (m *Machine) dispatchIf(op *ast.Op) error {
	cond := int32(uint32(m.popCell()))
	m.numLabels++
	if cond != 0 {
		m.ip++
		return nil
	}
	e := m.jumpEntry(op.Jmp)
	m.ip += e.DeltaIP
	// Without an else-arm the jump lands one past the If's own End, which
	// then never runs to close the label opened above.
	if m.inst.Instructions[m.ip-1].Kind != ast.OpElse {
		m.numLabels--
	}
	return nil
}

// dispatchEnd closes the innermost open label, or -- when no label is
// open in the current frame -- acts exactly like an explicit return from
// the function whose body just ran off its own terminal End.
func (m *Machine) dispatchEnd() error {
	if m.numLabels > m.curFrame().labelBase {
		m.numLabels--
		m.ip++
		return nil
	}
	return m.doReturn()
}

func (m *Machine) dispatchBr(op *ast.Op) error {
	m.takeBranch(op)
	return nil
}

func (m *Machine) dispatchBrIf(op *ast.Op) error {
	cond := int32(uint32(m.popCell()))
	if cond == 0 {
		m.ip++
		return nil
	}
	m.takeBranch(op)
	return nil
}

// takeBranch applies a resolved jump-table entry: the carried result
// values are moved down to the target's own stack height, the labels the
// branch escapes are closed, and ip is redirected by the entry's delta.
//
// A branch whose target is a loop is always a continue edge (core wasm
// has no other way to name a loop's label): it lands exactly back on the
// Loop op, whose label was already pushed on first entry and must stay
// open, so only the depth labels nested inside the loop are closed and
// the header itself is skipped rather than re-run. Any other target
// lands one past the construct's own End, which has already conceptually
// closed that label too.
//
// A branch whose label names the function's own synthetic outermost
// frame (e.ExitsFunction) carries no intra-function target at all --
// DeltaIP would point one past the function's own body, which after
// flattening is just wherever the next function happens to start -- so
// it is handled as a return from the current frame instead.
func (m *Machine) takeBranch(op *ast.Op) {
	e := m.jumpEntry(op.Jmp)
	base := m.curFrame().returnStackHeight

	carried := append([]uint64(nil), m.stack[len(m.stack)-e.OutCount:]...)
	m.stack = m.stack[:base+e.StackHeight]
	m.stack = append(m.stack, carried...)

	if e.ExitsFunction {
		m.popFrame()
		return
	}

	target := m.ip + e.DeltaIP
	if m.inst.Instructions[target].Kind == ast.OpLoop {
		m.numLabels -= int(op.Label)
		m.ip = target + 1
		return
	}
	m.numLabels -= int(op.Label) + 1
	m.ip = target
}

func (m *Machine) jumpEntry(idx uint32) validator.JumpEntry {
	fn := m.inst.Functions[m.curFrame().funcIdx]
	return fn.JumpTable[idx]
}

// doReturn pops the current frame's declared result count off the value
// stack, restores the caller's stack height, and hands off to popFrame
// for the rest of the unwind.
func (m *Machine) doReturn() error {
	f := *m.curFrame()
	arity := f.arity

	results := append([]uint64(nil), m.stack[len(m.stack)-arity:]...)
	m.stack = m.stack[:f.returnStackHeight]
	m.stack = append(m.stack, results...)

	m.popFrame()
	return nil
}

// popFrame restores the caller's locals and label count and resumes at
// the caller's saved ip (or, for the outermost RunFunc call, simply lets
// run's loop condition end the invocation). The frame's result values
// must already be in place at its caller's stack height before this is
// called -- doReturn and takeBranch each do that their own way.
func (m *Machine) popFrame() {
	f := *m.curFrame()
	m.locals = m.locals[:f.localsBase]
	m.numLabels = f.labelBase
	m.frames = m.frames[:len(m.frames)-1]

	if f.returnIP >= 0 {
		m.ip = f.returnIP
	}
}

func (m *Machine) dispatchCall(op *ast.Op) error {
	if int(op.Idx) >= len(m.inst.Functions) {
		return werrors.ErrInvalidFuncIndex
	}
	callee := m.inst.Functions[op.Idx]
	nargs := len(callee.Sig.Params)

	argCells := make([]uint64, nargs)
	for i := nargs - 1; i >= 0; i-- {
		argCells[i] = m.popCell()
	}

	if !callee.Internal {
		args := make([]instance.Value, nargs)
		for i, k := range callee.Sig.Params {
			args[i] = instance.Value{Kind: k, Bits: argCells[i]}
		}
		results := make([]instance.Value, len(callee.Sig.Results))
		// A handler that re-enters via Call moves m.ip, so the return
		// point is taken before the handler runs.
		callIP := m.ip
		if err := m.callHost(callee, args, results); err != nil {
			return err
		}
		for _, r := range results {
			m.pushCell(r.Bits)
		}
		m.ip = callIP + 1
		return nil
	}

	args := make([]instance.Value, nargs)
	for i, b := range argCells {
		args[i] = instance.Value{Bits: b}
	}
	return m.pushInternalFrame(callee, args, int(op.Idx), m.ip+1, len(m.stack))
}

func (m *Machine) dispatchSelect() error {
	cond := int32(uint32(m.popCell()))
	b := m.popCell()
	a := m.popCell()
	if cond != 0 {
		m.pushCell(a)
	} else {
		m.pushCell(b)
	}
	m.ip++
	return nil
}

func (m *Machine) dispatchLoad(op *ast.Op, width int) error {
	addr := uint64(uint32(m.popCell())) + uint64(op.Mem.Offset)
	mem := m.inst.Memory()
	if addr+uint64(width) > uint64(len(mem)) {
		return werrors.ErrMemoryOutOfBounds
	}
	switch width {
	case 4:
		m.pushCell(uint64(binary.LittleEndian.Uint32(mem[addr:])))
	default:
		m.pushCell(binary.LittleEndian.Uint64(mem[addr:]))
	}
	m.ip++
	return nil
}

func (m *Machine) dispatchStore(op *ast.Op, width int) error {
	value := m.popCell()
	addr := uint64(uint32(m.popCell())) + uint64(op.Mem.Offset)
	mem := m.inst.Memory()
	if addr+uint64(width) > uint64(len(mem)) {
		return werrors.ErrMemoryOutOfBounds
	}
	switch width {
	case 4:
		binary.LittleEndian.PutUint32(mem[addr:], uint32(value))
	default:
		binary.LittleEndian.PutUint64(mem[addr:], value)
	}
	m.ip++
	return nil
}

// dispatchMemoryInit pops (dest, src, size) -- size on top, then src, then
// dest -- copying size bytes from the passive data segment named by
// op.DataIdx at offset src into memory at dest.
func (m *Machine) dispatchMemoryInit(op *ast.Op) error {
	size := uint32(m.popCell())
	src := uint32(m.popCell())
	dest := uint32(m.popCell())

	seg := m.inst.DataSegments[op.DataIdx].Bytes
	if uint64(src)+uint64(size) > uint64(len(seg)) {
		return werrors.ErrMemoryOutOfBounds
	}
	mem := m.inst.Memory()
	if uint64(dest)+uint64(size) > uint64(len(mem)) {
		return werrors.ErrMemoryOutOfBounds
	}
	copy(mem[dest:dest+size], seg[src:src+size])
	m.ip++
	return nil
}

// dispatchNumeric covers every remaining OpKind: the const-free arithmetic,
// comparison, test, and conversion ops. Each pops its operands, computes,
// and pushes exactly one untagged cell back.
func (m *Machine) dispatchNumeric(op *ast.Op) error {
	switch op.Kind {
	// i32 unary
	case ast.OpI32Eqz:
		m.unop32(func(a uint32) uint32 { return b2u32(a == 0) })
	case ast.OpI32Clz:
		m.unop32(func(a uint32) uint32 { return uint32(bits.LeadingZeros32(a)) })
	case ast.OpI32Ctz:
		m.unop32(func(a uint32) uint32 { return uint32(bits.TrailingZeros32(a)) })
	case ast.OpI32Popcnt:
		m.unop32(func(a uint32) uint32 { return uint32(bits.OnesCount32(a)) })

	// i32 binary
	case ast.OpI32Eq:
		m.binop32(func(a, b uint32) uint32 { return b2u32(a == b) })
	case ast.OpI32Ne:
		m.binop32(func(a, b uint32) uint32 { return b2u32(a != b) })
	case ast.OpI32LtS:
		m.binop32(func(a, b uint32) uint32 { return b2u32(int32(a) < int32(b)) })
	case ast.OpI32LtU:
		m.binop32(func(a, b uint32) uint32 { return b2u32(a < b) })
	case ast.OpI32GtS:
		m.binop32(func(a, b uint32) uint32 { return b2u32(int32(a) > int32(b)) })
	case ast.OpI32GtU:
		m.binop32(func(a, b uint32) uint32 { return b2u32(a > b) })
	case ast.OpI32LeS:
		m.binop32(func(a, b uint32) uint32 { return b2u32(int32(a) <= int32(b)) })
	case ast.OpI32LeU:
		m.binop32(func(a, b uint32) uint32 { return b2u32(a <= b) })
	case ast.OpI32GeS:
		m.binop32(func(a, b uint32) uint32 { return b2u32(int32(a) >= int32(b)) })
	case ast.OpI32GeU:
		m.binop32(func(a, b uint32) uint32 { return b2u32(a >= b) })
	case ast.OpI32Add:
		m.binop32(func(a, b uint32) uint32 { return a + b })
	case ast.OpI32Sub:
		m.binop32(func(a, b uint32) uint32 { return a - b })
	case ast.OpI32Mul:
		m.binop32(func(a, b uint32) uint32 { return a * b })
	case ast.OpI32DivS:
		return m.binop32Err(func(a, b uint32) (uint32, error) {
			if b == 0 {
				return 0, werrors.ErrUnreachable
			}
			return uint32(int32(a) / int32(b)), nil
		})
	case ast.OpI32DivU:
		return m.binop32Err(func(a, b uint32) (uint32, error) {
			if b == 0 {
				return 0, werrors.ErrUnreachable
			}
			return a / b, nil
		})
	case ast.OpI32RemS:
		return m.binop32Err(func(a, b uint32) (uint32, error) {
			if b == 0 {
				return 0, werrors.ErrUnreachable
			}
			return uint32(int32(a) % int32(b)), nil
		})
	case ast.OpI32RemU:
		return m.binop32Err(func(a, b uint32) (uint32, error) {
			if b == 0 {
				return 0, werrors.ErrUnreachable
			}
			return a % b, nil
		})
	case ast.OpI32And:
		m.binop32(func(a, b uint32) uint32 { return a & b })
	case ast.OpI32Or:
		m.binop32(func(a, b uint32) uint32 { return a | b })
	case ast.OpI32Xor:
		m.binop32(func(a, b uint32) uint32 { return a ^ b })
	case ast.OpI32Shl:
		m.binop32(func(a, b uint32) uint32 { return a << (b & 31) })
	case ast.OpI32ShrS:
		m.binop32(func(a, b uint32) uint32 { return uint32(int32(a) >> (b & 31)) })
	case ast.OpI32ShrU:
		m.binop32(func(a, b uint32) uint32 { return a >> (b & 31) })
	case ast.OpI32Rotl:
		m.binop32(func(a, b uint32) uint32 { return bits.RotateLeft32(a, int(b&31)) })
	case ast.OpI32Rotr:
		m.binop32(func(a, b uint32) uint32 { return bits.RotateLeft32(a, -int(b&31)) })

	// i64 unary
	case ast.OpI64Eqz:
		m.unop64To32(func(a uint64) uint32 { return b2u32(a == 0) })
	case ast.OpI64Clz:
		m.unop64(func(a uint64) uint64 { return uint64(bits.LeadingZeros64(a)) })
	case ast.OpI64Ctz:
		m.unop64(func(a uint64) uint64 { return uint64(bits.TrailingZeros64(a)) })
	case ast.OpI64Popcnt:
		m.unop64(func(a uint64) uint64 { return uint64(bits.OnesCount64(a)) })

	// i64 binary (comparisons produce i32)
	case ast.OpI64Eq:
		m.binop64To32(func(a, b uint64) uint32 { return b2u32(a == b) })
	case ast.OpI64Ne:
		m.binop64To32(func(a, b uint64) uint32 { return b2u32(a != b) })
	case ast.OpI64LtS:
		m.binop64To32(func(a, b uint64) uint32 { return b2u32(int64(a) < int64(b)) })
	case ast.OpI64LtU:
		m.binop64To32(func(a, b uint64) uint32 { return b2u32(a < b) })
	case ast.OpI64GtS:
		m.binop64To32(func(a, b uint64) uint32 { return b2u32(int64(a) > int64(b)) })
	case ast.OpI64GtU:
		m.binop64To32(func(a, b uint64) uint32 { return b2u32(a > b) })
	case ast.OpI64LeS:
		m.binop64To32(func(a, b uint64) uint32 { return b2u32(int64(a) <= int64(b)) })
	case ast.OpI64LeU:
		m.binop64To32(func(a, b uint64) uint32 { return b2u32(a <= b) })
	case ast.OpI64GeS:
		m.binop64To32(func(a, b uint64) uint32 { return b2u32(int64(a) >= int64(b)) })
	case ast.OpI64GeU:
		m.binop64To32(func(a, b uint64) uint32 { return b2u32(a >= b) })
	case ast.OpI64Add:
		m.binop64(func(a, b uint64) uint64 { return a + b })
	case ast.OpI64Sub:
		m.binop64(func(a, b uint64) uint64 { return a - b })
	case ast.OpI64Mul:
		m.binop64(func(a, b uint64) uint64 { return a * b })
	case ast.OpI64DivS:
		return m.binop64Err(func(a, b uint64) (uint64, error) {
			if b == 0 {
				return 0, werrors.ErrUnreachable
			}
			return uint64(int64(a) / int64(b)), nil
		})
	case ast.OpI64DivU:
		return m.binop64Err(func(a, b uint64) (uint64, error) {
			if b == 0 {
				return 0, werrors.ErrUnreachable
			}
			return a / b, nil
		})
	case ast.OpI64RemS:
		return m.binop64Err(func(a, b uint64) (uint64, error) {
			if b == 0 {
				return 0, werrors.ErrUnreachable
			}
			return uint64(int64(a) % int64(b)), nil
		})
	case ast.OpI64RemU:
		return m.binop64Err(func(a, b uint64) (uint64, error) {
			if b == 0 {
				return 0, werrors.ErrUnreachable
			}
			return a % b, nil
		})
	case ast.OpI64And:
		m.binop64(func(a, b uint64) uint64 { return a & b })
	case ast.OpI64Or:
		m.binop64(func(a, b uint64) uint64 { return a | b })
	case ast.OpI64Xor:
		m.binop64(func(a, b uint64) uint64 { return a ^ b })
	case ast.OpI64Shl:
		m.binop64(func(a, b uint64) uint64 { return a << (b & 63) })
	case ast.OpI64ShrS:
		m.binop64(func(a, b uint64) uint64 { return uint64(int64(a) >> (b & 63)) })
	case ast.OpI64ShrU:
		m.binop64(func(a, b uint64) uint64 { return a >> (b & 63) })
	case ast.OpI64Rotl:
		m.binop64(func(a, b uint64) uint64 { return bits.RotateLeft64(a, int(b&63)) })
	case ast.OpI64Rotr:
		m.binop64(func(a, b uint64) uint64 { return bits.RotateLeft64(a, -int(b&63)) })

	// f32
	case ast.OpF32Eq:
		m.binopF32To32(func(a, b float32) uint32 { return b2u32(a == b) })
	case ast.OpF32Ne:
		m.binopF32To32(func(a, b float32) uint32 { return b2u32(a != b) })
	case ast.OpF32Lt:
		m.binopF32To32(func(a, b float32) uint32 { return b2u32(a < b) })
	case ast.OpF32Gt:
		m.binopF32To32(func(a, b float32) uint32 { return b2u32(a > b) })
	case ast.OpF32Le:
		m.binopF32To32(func(a, b float32) uint32 { return b2u32(a <= b) })
	case ast.OpF32Ge:
		m.binopF32To32(func(a, b float32) uint32 { return b2u32(a >= b) })
	case ast.OpF32Abs:
		m.unopF32(func(a float32) float32 { return float32(math.Abs(float64(a))) })
	case ast.OpF32Neg:
		m.unopF32(func(a float32) float32 { return -a })
	case ast.OpF32Ceil:
		m.unopF32(func(a float32) float32 { return float32(math.Ceil(float64(a))) })
	case ast.OpF32Floor:
		m.unopF32(func(a float32) float32 { return float32(math.Floor(float64(a))) })
	case ast.OpF32Trunc:
		m.unopF32(func(a float32) float32 { return float32(math.Trunc(float64(a))) })
	case ast.OpF32Nearest:
		m.unopF32(func(a float32) float32 { return float32(math.RoundToEven(float64(a))) })
	case ast.OpF32Sqrt:
		m.unopF32(func(a float32) float32 { return float32(math.Sqrt(float64(a))) })
	case ast.OpF32Add:
		m.binopF32(func(a, b float32) float32 { return a + b })
	case ast.OpF32Sub:
		m.binopF32(func(a, b float32) float32 { return a - b })
	case ast.OpF32Mul:
		m.binopF32(func(a, b float32) float32 { return a * b })
	case ast.OpF32Div:
		m.binopF32(func(a, b float32) float32 { return a / b })
	case ast.OpF32Min:
		m.binopF32(func(a, b float32) float32 { return float32(math.Min(float64(a), float64(b))) })
	case ast.OpF32Max:
		m.binopF32(func(a, b float32) float32 { return float32(math.Max(float64(a), float64(b))) })
	case ast.OpF32Copysign:
		m.binopF32(func(a, b float32) float32 { return float32(math.Copysign(float64(a), float64(b))) })

	// f64
	case ast.OpF64Eq:
		m.binopF64To32(func(a, b float64) uint32 { return b2u32(a == b) })
	case ast.OpF64Ne:
		m.binopF64To32(func(a, b float64) uint32 { return b2u32(a != b) })
	case ast.OpF64Lt:
		m.binopF64To32(func(a, b float64) uint32 { return b2u32(a < b) })
	case ast.OpF64Gt:
		m.binopF64To32(func(a, b float64) uint32 { return b2u32(a > b) })
	case ast.OpF64Le:
		m.binopF64To32(func(a, b float64) uint32 { return b2u32(a <= b) })
	case ast.OpF64Ge:
		m.binopF64To32(func(a, b float64) uint32 { return b2u32(a >= b) })
	case ast.OpF64Abs:
		m.unopF64(math.Abs)
	case ast.OpF64Neg:
		m.unopF64(func(a float64) float64 { return -a })
	case ast.OpF64Ceil:
		m.unopF64(math.Ceil)
	case ast.OpF64Floor:
		m.unopF64(math.Floor)
	case ast.OpF64Trunc:
		m.unopF64(math.Trunc)
	case ast.OpF64Nearest:
		m.unopF64(math.RoundToEven)
	case ast.OpF64Sqrt:
		m.unopF64(math.Sqrt)
	case ast.OpF64Add:
		m.binopF64(func(a, b float64) float64 { return a + b })
	case ast.OpF64Sub:
		m.binopF64(func(a, b float64) float64 { return a - b })
	case ast.OpF64Mul:
		m.binopF64(func(a, b float64) float64 { return a * b })
	case ast.OpF64Div:
		m.binopF64(func(a, b float64) float64 { return a / b })
	case ast.OpF64Min:
		m.binopF64(math.Min)
	case ast.OpF64Max:
		m.binopF64(math.Max)
	case ast.OpF64Copysign:
		m.binopF64(math.Copysign)

	// conversions
	case ast.OpI32WrapI64:
		m.unop64To32(func(a uint64) uint32 { return uint32(a) })
	case ast.OpI32TruncF32S:
		m.unopF32To32(func(a float32) uint32 { return uint32(int32(a)) })
	case ast.OpI32TruncF32U:
		m.unopF32To32(func(a float32) uint32 { return uint32(a) })
	case ast.OpI32TruncF64S:
		m.unopF64To32(func(a float64) uint32 { return uint32(int32(a)) })
	case ast.OpI32TruncF64U:
		m.unopF64To32(func(a float64) uint32 { return uint32(a) })
	case ast.OpI64ExtendI32S:
		m.unop32To64(func(a uint32) uint64 { return uint64(int64(int32(a))) })
	case ast.OpI64ExtendI32U:
		m.unop32To64(func(a uint32) uint64 { return uint64(a) })
	case ast.OpI64TruncF32S:
		m.unopF32To64(func(a float32) uint64 { return uint64(int64(a)) })
	case ast.OpI64TruncF32U:
		m.unopF32To64(func(a float32) uint64 { return uint64(a) })
	case ast.OpI64TruncF64S:
		m.unopF64To64(func(a float64) uint64 { return uint64(int64(a)) })
	case ast.OpI64TruncF64U:
		m.unopF64To64(func(a float64) uint64 { return uint64(a) })
	case ast.OpF32ConvertI32S:
		m.unop32ToF32(func(a uint32) float32 { return float32(int32(a)) })
	case ast.OpF32ConvertI32U:
		m.unop32ToF32(func(a uint32) float32 { return float32(a) })
	case ast.OpF32ConvertI64S:
		m.unop64ToF32(func(a uint64) float32 { return float32(int64(a)) })
	case ast.OpF32ConvertI64U:
		m.unop64ToF32(func(a uint64) float32 { return float32(a) })
	case ast.OpF32DemoteF64:
		m.unopF64ToF32(func(a float64) float32 { return float32(a) })
	case ast.OpF64ConvertI32S:
		m.unop32ToF64(func(a uint32) float64 { return float64(int32(a)) })
	case ast.OpF64ConvertI32U:
		m.unop32ToF64(func(a uint32) float64 { return float64(a) })
	case ast.OpF64ConvertI64S:
		m.unop64ToF64(func(a uint64) float64 { return float64(int64(a)) })
	case ast.OpF64ConvertI64U:
		m.unop64ToF64(func(a uint64) float64 { return float64(a) })
	case ast.OpF64PromoteF32:
		m.unopF32ToF64(func(a float32) float64 { return float64(a) })
	case ast.OpI32ReinterpretF32, ast.OpI64ReinterpretF64, ast.OpF32ReinterpretI32, ast.OpF64ReinterpretI64:
		// same untagged cell, different tag -- nothing to do at runtime.

	default:
		return werrors.ErrUnsupportedOpcode
	}
	m.ip++
	return nil
}

func b2u32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
