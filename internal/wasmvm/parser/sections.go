// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"unicode/utf8"

	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/leb"
	"github.com/dotandev/hesvm/internal/werrors"
)

func isValidUTF8(b []byte) bool { return utf8.Valid(b) }

func readName(r *leb.Reader) (string, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !isValidUTF8(b) {
		return "", werrors.WrapPos(werrors.ErrInvalidUTF8, r.Position())
	}
	return string(b), nil
}

func readValueKind(r *leb.Reader) (ast.ValueKind, error) {
	pos := r.Position()
	b, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	switch b {
	case 0x7f:
		return ast.I32, nil
	case 0x7e:
		return ast.I64, nil
	case 0x7d:
		return ast.F32, nil
	case 0x7c:
		return ast.F64, nil
	case 0x7b:
		return ast.Vec128, nil
	case 0x70:
		return ast.FuncRef, nil
	case 0x6f:
		return ast.ExternRef, nil
	default:
		return 0, werrors.WrapPos(werrors.ErrInvalidValueType, pos)
	}
}

func readLimits(r *leb.Reader) (ast.Limits, error) {
	pos := r.Position()
	flag, err := r.ReadU8()
	if err != nil {
		return ast.Limits{}, err
	}
	min, err := r.ReadVarU32()
	if err != nil {
		return ast.Limits{}, err
	}
	switch flag {
	case 0x00:
		return ast.Limits{Min: min}, nil
	case 0x01:
		max, err := r.ReadVarU32()
		if err != nil {
			return ast.Limits{}, err
		}
		if max < min {
			return ast.Limits{}, werrors.WrapPos(werrors.ErrInvalidLimits, pos)
		}
		return ast.Limits{Min: min, Max: max, HasMax: true}, nil
	default:
		return ast.Limits{}, werrors.WrapPos(werrors.ErrInvalidLimits, pos)
	}
}

func parseTypeSection(r *leb.Reader) ([]ast.FunctionType, error) {
	count, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]ast.FunctionType, count)
	for i := range out {
		pos := r.Position()
		tag, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		if tag != 0x60 {
			return nil, werrors.WrapPos(werrors.ErrInvalidFuncType, pos)
		}
		params, err := readValueKindVec(r)
		if err != nil {
			return nil, err
		}
		results, err := readValueKindVec(r)
		if err != nil {
			return nil, err
		}
		out[i] = ast.FunctionType{Params: params, Results: results}
	}
	return out, nil
}

func readValueKindVec(r *leb.Reader) ([]ast.ValueKind, error) {
	n, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]ast.ValueKind, n)
	for i := range out {
		out[i], err = readValueKind(r)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseImportSection(r *leb.Reader) ([]ast.Import, error) {
	count, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]ast.Import, count)
	for i := range out {
		mod, err := readName(r)
		if err != nil {
			return nil, err
		}
		name, err := readName(r)
		if err != nil {
			return nil, err
		}
		desc, err := readImportDesc(r)
		if err != nil {
			return nil, err
		}
		out[i] = ast.Import{Module: mod, Name: name, Desc: desc}
	}
	return out, nil
}

func readImportDesc(r *leb.Reader) (ast.ImportDesc, error) {
	pos := r.Position()
	tag, err := r.ReadU8()
	if err != nil {
		return ast.ImportDesc{}, err
	}
	switch tag {
	case 0x00:
		idx, err := r.ReadVarU32()
		if err != nil {
			return ast.ImportDesc{}, err
		}
		return ast.ImportDesc{Kind: ast.ImportFunc, TypeIdx: idx}, nil
	case 0x01:
		// table: elem kind byte + limits
		if _, err := r.ReadU8(); err != nil {
			return ast.ImportDesc{}, err
		}
		lim, err := readLimits(r)
		if err != nil {
			return ast.ImportDesc{}, err
		}
		return ast.ImportDesc{Kind: ast.ImportTable, Table: lim}, nil
	case 0x02:
		lim, err := readLimits(r)
		if err != nil {
			return ast.ImportDesc{}, err
		}
		return ast.ImportDesc{Kind: ast.ImportMemory, Memory: lim}, nil
	case 0x03:
		kind, err := readValueKind(r)
		if err != nil {
			return ast.ImportDesc{}, err
		}
		mutByte, err := r.ReadU8()
		if err != nil {
			return ast.ImportDesc{}, err
		}
		return ast.ImportDesc{Kind: ast.ImportGlobal, Global: ast.GlobalType{Kind: kind, Mutable: mutByte == 1}}, nil
	default:
		return ast.ImportDesc{}, werrors.WrapPos(werrors.ErrInvalidImportType, pos)
	}
}

func parseFunctionSection(r *leb.Reader) ([]uint32, error) {
	count, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		out[i], err = r.ReadVarU32()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseTableSection(r *leb.Reader) ([]ast.Limits, error) {
	count, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]ast.Limits, count)
	for i := range out {
		if _, err := r.ReadU8(); err != nil { // elem kind
			return nil, err
		}
		out[i], err = readLimits(r)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseMemorySection(r *leb.Reader) ([]ast.Limits, error) {
	count, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]ast.Limits, count)
	for i := range out {
		out[i], err = readLimits(r)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// readConstExpr reads a sequence of PositionedOp terminated by End,
// inclusive. The validator is responsible for rejecting any non-const op
// within; the parser just decodes whatever instructions appear.
func readConstExpr(r *leb.Reader) ([]ast.PositionedOp, error) {
	var ops []ast.PositionedOp
	for {
		start := r.Position()
		op, err := readOp(r)
		if err != nil {
			return nil, err
		}
		ops = append(ops, ast.PositionedOp{Op: op, Pos: ast.Position{Start: start, End: r.Position()}})
		if op.Kind == ast.OpEnd {
			return ops, nil
		}
	}
}

func parseGlobalSection(r *leb.Reader) ([]ast.Global, error) {
	count, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]ast.Global, count)
	for i := range out {
		kind, err := readValueKind(r)
		if err != nil {
			return nil, err
		}
		mutByte, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		init, err := readConstExpr(r)
		if err != nil {
			return nil, err
		}
		out[i] = ast.Global{Type: ast.GlobalType{Kind: kind, Mutable: mutByte == 1}, Init: init}
	}
	return out, nil
}

func parseExportSection(r *leb.Reader) ([]ast.Export, error) {
	count, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]ast.Export, count)
	for i := range out {
		name, err := readName(r)
		if err != nil {
			return nil, err
		}
		pos := r.Position()
		tag, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		idx, err := r.ReadVarU32()
		if err != nil {
			return nil, err
		}
		var kind ast.ExportKind
		switch tag {
		case 0x00:
			kind = ast.ExportFunc
		case 0x01:
			kind = ast.ExportTable
		case 0x02:
			kind = ast.ExportMemory
		case 0x03:
			kind = ast.ExportGlobal
		default:
			return nil, werrors.WrapPos(werrors.ErrInvalidExportDesc, pos)
		}
		out[i] = ast.Export{Name: name, Kind: kind, Idx: idx}
	}
	return out, nil
}

func parseCodeSection(r *leb.Reader) ([]ast.FunctionBody, error) {
	count, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]ast.FunctionBody, count)
	for i := range out {
		bodySize, err := r.ReadVarU32()
		if err != nil {
			return nil, err
		}
		bodyEnd := r.Position() + int(bodySize)

		localGroups, err := r.ReadVarU32()
		if err != nil {
			return nil, err
		}
		locals := make([]ast.Locals, localGroups)
		for j := range locals {
			cnt, err := r.ReadVarU32()
			if err != nil {
				return nil, err
			}
			kind, err := readValueKind(r)
			if err != nil {
				return nil, err
			}
			locals[j] = ast.Locals{Count: cnt, Kind: kind}
		}

		ops, err := readInstructionStream(r, bodyEnd)
		if err != nil {
			return nil, err
		}
		out[i] = ast.FunctionBody{Locals: locals, Ops: ops}
		if r.Position() != bodyEnd {
			r.Seek(bodyEnd)
		}
	}
	return out, nil
}

// readInstructionStream decodes instructions, tracking nesting depth across
// Block/Loop/If...End so the function's own terminal End is recognized and
// consumed without needing a separate sentinel.
func readInstructionStream(r *leb.Reader, end int) ([]ast.PositionedOp, error) {
	var ops []ast.PositionedOp
	depth := 0
	for {
		start := r.Position()
		op, err := readOp(r)
		if err != nil {
			return nil, err
		}
		ops = append(ops, ast.PositionedOp{Op: op, Pos: ast.Position{Start: start, End: r.Position()}})
		switch op.Kind {
		case ast.OpBlock, ast.OpLoop, ast.OpIf:
			depth++
		case ast.OpEnd:
			if depth == 0 {
				return ops, nil
			}
			depth--
		}
		if r.Position() >= end && depth == 0 {
			break
		}
	}
	return ops, nil
}

func parseDataSection(r *leb.Reader) ([]ast.Data, error) {
	count, err := r.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]ast.Data, count)
	for i := range out {
		pos := r.Position()
		mode, err := r.ReadVarU32()
		if err != nil {
			return nil, err
		}
		var d ast.Data
		switch mode {
		case 0:
			d.Mode = ast.DataActiveMem0
			d.Offset, err = readConstExpr(r)
			if err != nil {
				return nil, err
			}
		case 1:
			d.Mode = ast.DataPassive
		case 2:
			d.Mode = ast.DataActiveExplicit
			d.MemIdx, err = r.ReadVarU32()
			if err != nil {
				return nil, err
			}
			d.Offset, err = readConstExpr(r)
			if err != nil {
				return nil, err
			}
		default:
			return nil, werrors.WrapPos(werrors.ErrInvalidDataMode, pos)
		}
		n, err := r.ReadVarU32()
		if err != nil {
			return nil, err
		}
		b, err := r.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		d.Bytes = append([]byte(nil), b...)
		out[i] = d
	}
	return out, nil
}
