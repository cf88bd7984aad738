// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package leb provides a positioned byte cursor over a WASM binary image
// plus canonical LEB128 decoding, the leaf dependency of the parser.
package leb

import (
	"github.com/dotandev/hesvm/internal/werrors"
)

// Reader is a random-access, forward-only cursor over a byte slice. It
// never allocates on the fast path (reads below 128 decode in one byte).
type Reader struct {
	data []byte
	pos  int
}

// New wraps data for positioned reading starting at offset 0.
func New(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the current cursor offset, used by callers that need to
// record a node's byte range.
func (r *Reader) Position() int { return r.pos }

// Len reports the total buffer length.
func (r *Reader) Len() int { return len(r.data) }

// Remaining reports the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Seek repositions the cursor to an absolute offset.
func (r *Reader) Seek(pos int) { r.pos = pos }

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, werrors.WrapPos(werrors.ErrUnexpectedEOF, r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads exactly n raw bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, werrors.WrapPos(werrors.ErrUnexpectedEOF, r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes without returning them.
func (r *Reader) Skip(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return werrors.WrapPos(werrors.ErrUnexpectedEOF, r.pos)
	}
	r.pos += n
	return nil
}

// ReadVarU32 decodes an unsigned LEB128 value into 32 bits, rejecting
// encodings whose trailing bits past bit 31 are non-zero.
func (r *Reader) ReadVarU32() (uint32, error) {
	v, err := r.readVarU64(5, 32)
	return uint32(v), err
}

// ReadVarU64 decodes an unsigned LEB128 value into 64 bits.
func (r *Reader) ReadVarU64() (uint64, error) {
	return r.readVarU64(10, 64)
}

func (r *Reader) readVarU64(maxBytes, bitWidth int) (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; i < maxBytes; i++ {
		b, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		if i == maxBytes-1 {
			// Final byte: any bits beyond bitWidth must be zero, and the
			// continuation bit must not be set (that would mean more
			// bytes than the width allows).
			usable := bitWidth - int(shift)
			if usable < 0 {
				usable = 0
			}
			mask := byte(0x7f)
			if usable < 7 {
				mask = byte(1<<uint(usable)) - 1
			}
			if b&0x80 != 0 || (b&0x7f)&^mask != 0 {
				return 0, werrors.WrapPos(werrors.ErrInvalidLeb, r.pos)
			}
		}
		result |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, werrors.WrapPos(werrors.ErrInvalidLeb, r.pos)
}

// ReadVarI32 decodes a signed LEB128 value into 32 bits.
func (r *Reader) ReadVarI32() (int32, error) {
	v, err := r.readVarI64(5, 32)
	return int32(v), err
}

// ReadVarI64 decodes a signed LEB128 value into 64 bits.
func (r *Reader) ReadVarI64() (int64, error) {
	return r.readVarI64(10, 64)
}

// ReadVarS33 decodes the sign-extended 33-bit variant used for block type
// type-index encodings (it must fit in 33 bits of useful range).
func (r *Reader) ReadVarS33() (int64, error) {
	return r.readVarI64(5, 33)
}

func (r *Reader) readVarI64(maxBytes, bitWidth int) (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	count := 0
	for {
		if count >= maxBytes {
			return 0, werrors.WrapPos(werrors.ErrInvalidLeb, r.pos)
		}
		b, err = r.ReadU8()
		if err != nil {
			return 0, err
		}
		count++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < uint(bitWidth) && b&0x40 != 0 {
		result |= -int64(1) << shift
	}
	return result, nil
}
