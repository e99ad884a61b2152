/*
  The MIT License (MIT)

  Copyright (c) 2026 the brokuene/mysql authors

  Permission is hereby granted, free of charge, to any person obtaining a copy
  of this software and associated documentation files (the "Software"), to deal
  in the Software without restriction, including without limitation the rights
  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
  copies of the Software, and to permit persons to whom the Software is
  furnished to do so, subject to the following conditions:

  The above copyright notice and this permission notice shall be included in all
  copies or substantial portions of the Software.

  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
  SOFTWARE.
*/

package mysql

import (
	"encoding/binary"
)

// This file contains the pure payload codec: length-encoded integers and
// strings, the 3-byte packet length format and the null bitmap used by
// the binary row protocol. No I/O happens here; all functions operate on
// buffers handed to them.

// nullString distinguishes a NULL column from an empty string.
type nullString struct {
	value string
	valid bool // valid is true if the string is not NULL
}

// getUint24 converts a 3-byte little-endian slice into uint32.
func getUint24(b []byte) uint32 {
	return uint32(b[0]) |
		uint32(b[1])<<8 |
		uint32(b[2])<<16
}

// putUint24 stores the given uint32 into the specified 3-byte slice in
// little-endian.
func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// getLenencInt retrieves the number stored in length-encoded integer
// format at the beginning of the buffer and returns it along with the
// number of bytes read. A 0xfb first byte is the NULL sentinel and never
// a valid integer; the caller handles it before calling.
func getLenencInt(b []byte) (v uint64, n int, err error) {
	if len(b) == 0 {
		return 0, 0, myError(ErrMalformedPacket, "length-encoded integer in empty buffer")
	}

	switch first := b[0]; {
	// 1-byte
	case first < 0xfb:
		return uint64(first), 1, nil
	// 2-byte
	case first == 0xfc:
		if len(b) < 3 {
			return 0, 0, myError(ErrMalformedPacket, "truncated 2-byte length-encoded integer")
		}
		return uint64(binary.LittleEndian.Uint16(b[1:3])), 3, nil
	// 3-byte
	case first == 0xfd:
		if len(b) < 4 {
			return 0, 0, myError(ErrMalformedPacket, "truncated 3-byte length-encoded integer")
		}
		return uint64(getUint24(b[1:4])), 4, nil
	// 8-byte
	case first == 0xfe:
		if len(b) < 9 {
			return 0, 0, myError(ErrMalformedPacket, "truncated 8-byte length-encoded integer")
		}
		return binary.LittleEndian.Uint64(b[1:9]), 9, nil
	}
	return 0, 0, myError(ErrMalformedPacket, "0xfb/0xff is not a length-encoded integer")
}

// putLenencInt stores the given number into the buffer using
// length-encoded integer format and returns the number of bytes written.
func putLenencInt(b []byte, v uint64) (n int) {
	switch {
	case v < 251:
		b[0] = byte(v)
		n = 1
	case v < 1<<16:
		b[0] = 0xfc
		binary.LittleEndian.PutUint16(b[1:3], uint16(v))
		n = 3
	case v < 1<<24:
		b[0] = 0xfd
		putUint24(b[1:4], uint32(v))
		n = 4
	default:
		b[0] = 0xfe
		binary.LittleEndian.PutUint64(b[1:9], v)
		n = 9
	}
	return
}

// lenencIntSize returns the size needed to store a number using the
// length-encoded integer format.
func lenencIntSize(v uint64) int {
	switch {
	case v < 251:
		return 1
	case v < 1<<16:
		return 3
	case v < 1<<24:
		return 4
	default:
		return 9
	}
}

// getLenencString reads a length-encoded string: a length-encoded
// integer followed by that many raw bytes. A 0xfb prefix is the NULL
// column sentinel.
func getLenencString(b []byte) (s nullString, n int, err error) {
	if len(b) == 0 {
		return s, 0, myError(ErrMalformedPacket, "length-encoded string in empty buffer")
	}

	if b[0] == 0xfb { // NULL
		s.valid = false
		return s, 1, nil
	}

	length, n, err := getLenencInt(b)
	if err != nil {
		return s, 0, err
	}
	if uint64(len(b)-n) < length {
		return s, 0, myError(ErrMalformedPacket, "length-encoded string exceeds packet bounds")
	}
	s.value = string(b[n : n+int(length)])
	s.valid = true
	n += int(length)
	return s, n, nil
}

func putLenencString(b []byte, v string) (n int) {
	n = putLenencInt(b, uint64(len(v)))
	n += copy(b[n:], v)
	return
}

func lenencStringSize(v string) int {
	return lenencIntSize(uint64(len(v))) + len(v)
}

// getNullTerminatedString reads bytes up to (but not including) the
// first 0x00 byte; n includes the terminator.
func getNullTerminatedString(b []byte) (v string, n int) {
	for n < len(b) && b[n] != 0 {
		n++
	}
	v = string(b[0:n])
	n++
	return
}

func putNullTerminatedString(b []byte, v string) (n int) {
	n = copy(b, v)
	b[n] = 0 // null terminator
	n++
	return
}

// isNull returns whether the column at the given position is NULL per
// the null bitmap; the first column's position is 0. The binary row
// protocol reserves a 2-bit offset at the start of the bitmap.
func isNull(bitmap []byte, pos, offset uint16) bool {
	pos += offset
	return bitmap[pos/8]&(1<<(pos%8)) != 0
}

// nullBitmapSize returns the bitmap size in bytes for the given column
// count and bit offset.
func nullBitmapSize(count, offset uint16) int {
	return int(count+offset+7) / 8
}

// zerofy sets all bytes of the given slice to 0.
func zerofy(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
