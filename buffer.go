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

const _INITIAL_PACKET_BUFFER_SIZE = 4 * 1024

// buffer is a reusable byte buffer for building outgoing packets and
// caching decompressed payloads; it grows but never shrinks, so a busy
// connection stops allocating once it has seen its largest packet.
type buffer struct {
	buff []byte
	cap  int
	off  int // offset from which read/write should happen
	len  int // length of useful content in the buffer
}

func (b *buffer) New(cap int) {
	b.off, b.len = 0, 0
	b.buff = make([]byte, cap)
	b.cap = cap
}

func (b *buffer) Len() int {
	return b.len
}

// Reset prepares the buffer for n bytes of fresh content and returns the
// backing slice of exactly that size.
func (b *buffer) Reset(n int) ([]byte, error) {
	b.off = 0
	b.len = n

	if n > b.cap {
		// discard the old backing array and allocate a new one
		b.buff = make([]byte, n)
		b.cap = n
	}
	return b.buff[0:n], nil
}

func (b *buffer) Seek(off int) {
	b.off = off
}

func (b *buffer) Tell() int {
	return b.off
}

// Read returns the next length bytes of content, advancing the offset.
func (b *buffer) Read(length int) []byte {
	beg := b.off
	b.off += length
	return b.buff[beg:b.off]
}

func (b *buffer) Write(p []byte) (int, error) {
	if need := b.off + len(p); need > b.cap {
		grown := make([]byte, need)
		copy(grown, b.buff[:b.len])
		b.buff = grown
		b.cap = need
	}
	n := copy(b.buff[b.off:], p)
	b.off += n
	if b.off > b.len {
		b.len = b.off
	}
	return n, nil
}
