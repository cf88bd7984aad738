// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package wasmtest

// Raw opcode bytes mirrored from internal/wasmvm/parser/opcode.go, used to
// hand-assemble instruction streams in tests without importing the parser
// package (which would create an import cycle with parser's own tests).
const (
	OpUnreachable = 0x00
	OpNop         = 0x01
	OpBlock       = 0x02
	OpLoop        = 0x03
	OpIf          = 0x04
	OpElse        = 0x05
	OpEnd         = 0x0b
	OpBr          = 0x0c
	OpBrIf        = 0x0d
	OpReturn      = 0x0f
	OpCall        = 0x10
	OpDrop        = 0x1a
	OpSelect      = 0x1b
	OpLocalGet    = 0x20
	OpLocalSet    = 0x21
	OpLocalTee    = 0x22
	OpGlobalGet   = 0x23
	OpGlobalSet   = 0x24
	OpI32Load     = 0x28
	OpI32Store    = 0x36
	OpI32Const    = 0x41
	OpI64Const    = 0x42
	OpI32Eqz      = 0x45
	OpI32Eq       = 0x46
	OpI32LtS      = 0x48
	OpI32Add      = 0x6a
	OpI32Sub      = 0x6b

	BlockTypeVoid = 0x40
	BlockTypeI32  = 0x7f

	MemBulkPrefix  = 0xfc
	MemBulkInit    = 0x08
)

// FuncType encodes a `(func (param ...) (result ...))` type section entry.
func FuncType(params, results []byte) []byte {
	b := []byte{0x60}
	b = append(b, Vec(uint32(len(params)), params)...)
	b = append(b, Vec(uint32(len(results)), results)...)
	return b
}

// Encodings of the common value kinds.
const (
	KindI32 = 0x7f
	KindI64 = 0x7e
	KindF32 = 0x7d
	KindF64 = 0x7c
)

// Memarg encodes an (align, offset) pair.
func Memarg(align, offset uint32) []byte {
	return append(AppendU32(nil, align), AppendU32(nil, offset)...)
}

// LocalsGroup is one run-length-encoded (count, kind) pair in a function
// body's locals declaration.
type LocalsGroup struct {
	Count uint32
	Kind  byte
}

// CodeBody wraps a locals declaration + raw instruction bytes (which must
// already end in 0x0b/End) with the body's own length prefix, the encoding
// expected inside the code section's function vector.
func CodeBody(locals []LocalsGroup, ops []byte) []byte {
	var body []byte
	body = AppendU32(body, uint32(len(locals)))
	for _, l := range locals {
		body = AppendU32(body, l.Count)
		body = append(body, l.Kind)
	}
	body = append(body, ops...)
	return append(AppendU32(nil, uint32(len(body))), body...)
}
