// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package parser decodes the standard WASM binary module format into a
// typed ast.Module tree, performing no semantic validation (that is the
// validator package's job).
package parser

import (
	"github.com/dotandev/hesvm/internal/wasmvm/ast"
	"github.com/dotandev/hesvm/internal/wasmvm/leb"
	"github.com/dotandev/hesvm/internal/wasmvm/wasmver"
	"github.com/dotandev/hesvm/internal/werrors"
)

var wasmMagic = [4]byte{0x00, 0x61, 0x73, 0x6d}

const (
	secCustom byte = 0
	secType   byte = 1
	secImport byte = 2
	secFunc   byte = 3
	secTable  byte = 4
	secMemory byte = 5
	secGlobal byte = 6
	secExport byte = 7
	secStart  byte = 8
	secElem   byte = 9
	secCode   byte = 10
	secData   byte = 11
	secDataCount byte = 12
)

// Parse decodes a full WASM module image.
func Parse(data []byte) (*ast.Module, error) {
	r := leb.New(data)
	if err := parseHeader(r); err != nil {
		return nil, err
	}

	mod := &ast.Module{}
	seen := make(map[byte]bool)

	for r.Remaining() > 0 {
		id, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		size, err := r.ReadVarU32()
		if err != nil {
			return nil, err
		}
		sectionStart := r.Position()
		if sectionStart+int(size) > r.Len() {
			return nil, werrors.WrapPos(werrors.ErrUnexpectedEOF, sectionStart)
		}
		sectionEnd := sectionStart + int(size)

		if id != secCustom {
			if id > secDataCount {
				return nil, werrors.WrapPos(werrors.ErrInvalidSectionID, sectionStart)
			}
			if seen[id] {
				return nil, werrors.WrapPos(werrors.ErrDuplicateSection, sectionStart)
			}
			seen[id] = true
		}

		switch id {
		case secCustom:
			cs, err := parseCustomSection(r, sectionEnd)
			if err != nil {
				return nil, err
			}
			mod.Customs = append(mod.Customs, cs)
		case secType:
			mod.Types, err = parseTypeSection(r)
		case secImport:
			mod.Imports, err = parseImportSection(r)
		case secFunc:
			mod.FuncTypeIdx, err = parseFunctionSection(r)
		case secTable:
			mod.Tables, err = parseTableSection(r)
		case secMemory:
			mod.Memories, err = parseMemorySection(r)
		case secGlobal:
			mod.Globals, err = parseGlobalSection(r)
		case secExport:
			mod.Exports, err = parseExportSection(r)
		case secStart:
			var idx uint32
			idx, err = r.ReadVarU32()
			mod.Start = &idx
		case secElem:
			// Table element segments are out of scope beyond the type
			// checking they imply for call_indirect (itself out of scope
			// for execution); skip the bytes verbatim.
			err = r.Skip(sectionEnd - r.Position())
		case secDataCount:
			var count uint32
			count, err = r.ReadVarU32()
			mod.DataCount = &count
		case secCode:
			mod.Code, err = parseCodeSection(r)
		case secData:
			mod.Data, err = parseDataSection(r)
		default:
			err = werrors.WrapPos(werrors.ErrInvalidSectionID, sectionStart)
		}
		if err != nil {
			return nil, err
		}
		if r.Position() != sectionEnd {
			// A section reader under/over-consumed its declared bytes.
			r.Seek(sectionEnd)
		}
	}

	return mod, nil
}

func parseHeader(r *leb.Reader) error {
	magic, err := r.ReadBytes(4)
	if err != nil {
		return werrors.WrapPos(werrors.ErrInvalidHeader, 0)
	}
	for i := range wasmMagic {
		if magic[i] != wasmMagic[i] {
			return werrors.WrapPos(werrors.ErrInvalidHeader, 0)
		}
	}
	version, err := r.ReadBytes(4)
	if err != nil {
		return werrors.WrapPos(werrors.ErrInvalidVersion, 4)
	}
	if err := wasmver.Check([4]byte{version[0], version[1], version[2], version[3]}); err != nil {
		return werrors.WrapPos(err, 4)
	}
	return nil
}

func parseCustomSection(r *leb.Reader, sectionEnd int) (ast.CustomSection, error) {
	start := r.Position()
	nameLen, err := r.ReadVarU32()
	if err != nil {
		return ast.CustomSection{}, err
	}
	nameBytes, err := r.ReadBytes(int(nameLen))
	if err != nil {
		return ast.CustomSection{}, err
	}
	if !isValidUTF8(nameBytes) {
		return ast.CustomSection{}, werrors.WrapPos(werrors.ErrInvalidUTF8, start)
	}
	payloadLen := sectionEnd - r.Position()
	if payloadLen < 0 {
		return ast.CustomSection{}, werrors.WrapPos(werrors.ErrUnexpectedEOF, r.Position())
	}
	payload, err := r.ReadBytes(payloadLen)
	if err != nil {
		return ast.CustomSection{}, err
	}
	return ast.CustomSection{Name: string(nameBytes), Payload: append([]byte(nil), payload...)}, nil
}
