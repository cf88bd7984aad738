// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package wasmtest builds minimal synthetic .wasm byte buffers for tests,
// the same way the teacher's internal/abi/wasm_test.go hand-assembles
// sections with a local buildWasm/appendLEB128 helper, just shared across
// this module's parser/validator/engine test packages instead of copied
// into each one.
package wasmtest

// Builder accumulates a WASM binary section by section.
type Builder struct {
	buf []byte
}

// New starts a builder with the magic + version header already written.
func New() *Builder {
	b := &Builder{}
	b.buf = append(b.buf, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00)
	return b
}

// Bytes returns the accumulated image.
func (b *Builder) Bytes() []byte { return b.buf }

// Section appends a section with the given id and raw content, prefixing
// the content with its LEB128-encoded length.
func (b *Builder) Section(id byte, content []byte) *Builder {
	b.buf = append(b.buf, id)
	b.buf = AppendU32(b.buf, uint32(len(content)))
	b.buf = append(b.buf, content...)
	return b
}

// AppendU32 appends val as unsigned LEB128.
func AppendU32(buf []byte, val uint32) []byte {
	for {
		bb := byte(val & 0x7f)
		val >>= 7
		if val != 0 {
			bb |= 0x80
		}
		buf = append(buf, bb)
		if val == 0 {
			break
		}
	}
	return buf
}

// AppendI32 appends val as signed LEB128.
func AppendI32(buf []byte, val int32) []byte {
	return appendSigned(buf, int64(val))
}

// AppendI64 appends val as signed LEB128.
func AppendI64(buf []byte, val int64) []byte {
	return appendSigned(buf, val)
}

func appendSigned(buf []byte, val int64) []byte {
	more := true
	for more {
		b := byte(val & 0x7f)
		val >>= 7
		signBitSet := b&0x40 != 0
		if (val == 0 && !signBitSet) || (val == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		buf = append(buf, b)
	}
	return buf
}

// AppendName appends a length-prefixed UTF-8 name.
func AppendName(buf []byte, name string) []byte {
	buf = AppendU32(buf, uint32(len(name)))
	return append(buf, name...)
}

// Vec prepends a LEB128 count in front of items already encoded as a
// single flat byte slice (caller concatenates items and passes the count).
func Vec(count uint32, items []byte) []byte {
	return append(AppendU32(nil, count), items...)
}
