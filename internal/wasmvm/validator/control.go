// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/werrors"
)

// blockSignature resolves a BlockType to its (in, out) type lists.
func (fv *funcValidator) blockSignature(bt ast.BlockType) (in, out []ast.ValueKind, err error) {
	switch {
	case bt.Empty:
		return nil, nil, nil
	case bt.SingleRes:
		return nil, []ast.ValueKind{bt.Result}, nil
	default:
		if int(bt.TypeIdx) >= len(fv.mod.Types) {
			return nil, nil, werrors.ErrInvalidTypeIndex
		}
		ft := fv.mod.Types[bt.TypeIdx]
		return ft.Params, ft.Results, nil
	}
}

func (fv *funcValidator) enterBlock(op *ast.Op) error {
	in, out, err := fv.blockSignature(op.Block)
	if err != nil {
		return err
	}

	if op.Kind == ast.OpIf {
		if err := fv.popExpect(ast.I32); err != nil {
			return err
		}
	}

	if err := fv.popExpectMany(in); err != nil {
		return err
	}

	frame := ctrlFrame{
		hasOp:        true,
		opKind:       op.Kind,
		inTypes:      in,
		outTypes:     out,
		prevStackLen: len(fv.typeStack),
		ip:           fv.ip,
	}

	if op.Kind == ast.OpIf {
		frame.hasJump = true
		frame.jumpIdx = fv.newJumpEntry()
		fv.table[frame.jumpIdx].OutCount = len(out)
	}

	fv.ctrl = append(fv.ctrl, frame)
	fv.pending = append(fv.pending, nil)

	fv.pushMany(in)
	return nil
}

func (fv *funcValidator) handleElse() error {
	f := fv.curFrame()
	if !f.hasOp || f.opKind != ast.OpIf {
		return werrors.ErrElseWithoutIf
	}
	if err := fv.popExpectMany(f.outTypes); err != nil {
		return err
	}
	if len(fv.typeStack) != f.prevStackLen {
		return werrors.ErrUnbalancedStack
	}

	if f.hasJump {
		fv.table[f.jumpIdx].DeltaIP = fv.ip - fv.table[f.jumpIdx].IP + 1
	}

	newFrame := ctrlFrame{
		hasOp:        true,
		opKind:       ast.OpElse,
		inTypes:      f.inTypes,
		outTypes:     f.outTypes,
		prevStackLen: f.prevStackLen,
		ip:           f.ip,
		// Else owns its own jump entry (distinct from the If's): its
		// delta_ip, resolved at End, carries execution from the Else op
		// past the whole else-arm to one past the matching End -- the
		// skip taken when the then-arm was the one actually executed.
		hasJump: true,
		jumpIdx: fv.newJumpEntry(),
	}
	fv.ctrl[len(fv.ctrl)-1] = newFrame
	fv.pushMany(newFrame.inTypes)
	return nil
}

func (fv *funcValidator) handleEnd() error {
	f := fv.curFrame()
	if err := fv.popExpectMany(f.outTypes); err != nil {
		return err
	}
	if len(fv.typeStack) != f.prevStackLen {
		return werrors.ErrUnbalancedStack
	}

	pendingHere := fv.pending[len(fv.pending)-1]
	fv.ctrl = fv.ctrl[:len(fv.ctrl)-1]
	fv.pending = fv.pending[:len(fv.pending)-1]

	for _, idx := range pendingHere {
		if f.opKind == ast.OpLoop {
			fv.table[idx].DeltaIP = f.ip - fv.table[idx].IP
		} else {
			fv.table[idx].DeltaIP = fv.ip - fv.table[idx].IP + 1
		}
	}
	if f.hasJump {
		fv.table[f.jumpIdx].DeltaIP = fv.ip - fv.table[f.jumpIdx].IP + 1
	}

	fv.pushMany(f.outTypes)
	return nil
}

// labelTypes returns the types a branch to ctrl[depth] carries: a Loop's
// label targets its *input* types (the loop header re-enters with them on
// the stack); any other frame's label targets its *output* types.
func (fv *funcValidator) labelTypes(depth int) []ast.ValueKind {
	frame := fv.ctrl[len(fv.ctrl)-1-depth]
	if frame.hasOp && frame.opKind == ast.OpLoop {
		return frame.inTypes
	}
	return frame.outTypes
}

func (fv *funcValidator) handleBr(op *ast.Op, conditional bool) error {
	depth := int(op.Label)
	if depth >= len(fv.ctrl) {
		return werrors.ErrBadLabel
	}

	if conditional {
		if err := fv.popExpect(ast.I32); err != nil {
			return err
		}
	}

	labelTypes := fv.labelTypes(depth)

	jumpIdx := fv.newJumpEntry()
	targetFrame := &fv.ctrl[len(fv.ctrl)-1-depth]
	fv.table[jumpIdx].OutCount = len(labelTypes)
	fv.table[jumpIdx].StackHeight = targetFrame.prevStackLen
	fv.table[jumpIdx].ExitsFunction = !targetFrame.hasOp
	targetPendingIdx := len(fv.ctrl) - 1 - depth
	fv.pending[targetPendingIdx] = append(fv.pending[targetPendingIdx], jumpIdx)

	if conditional {
		// BrIf: pop then push the label types so the stack remains
		// well-typed on fall-through.
		if err := fv.popExpectMany(labelTypes); err != nil {
			return err
		}
		fv.pushMany(labelTypes)
		return nil
	}

	if err := fv.popExpectMany(labelTypes); err != nil {
		return err
	}
	f := fv.curFrame()
	f.unreachable = true
	fv.typeStack = fv.typeStack[:f.prevStackLen]
	return nil
}
