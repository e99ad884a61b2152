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
	"bytes"
	"compress/zlib"
	"io"

	"github.com/klauspost/compress/zstd"
)

// payloads below this size ship in the envelope uncompressed; the
// envelope overhead would exceed the savings
const _COMPRESSION_THRESHOLD = 50

// compressRW implements readWriter for the compressed protocol: every
// frame travels inside an envelope of (3-byte compressed length, 1-byte
// sequence id, 3-byte uncompressed length). The packet framing above
// operates on the decompressed byte stream and never sees the envelope.
type compressRW struct {
	c         *Conn
	algorithm string
	level     int

	cbuff buffer // buffer to hold a compressed packet
	ubuff buffer // buffer to hold uncompressed packet(s)
	seqno uint8  // compressed packet sequence number

	zdec *zstd.Decoder
	zenc *zstd.Encoder
}

func newCompressRW(c *Conn, algorithm string, level int) (*compressRW, error) {
	rw := &compressRW{c: c, algorithm: algorithm, level: level}
	rw.cbuff.New(_INITIAL_PACKET_BUFFER_SIZE)
	rw.ubuff.New(_INITIAL_PACKET_BUFFER_SIZE)

	if algorithm == CompressionZstd {
		var err error
		if rw.zdec, err = zstd.NewReader(nil); err != nil {
			return nil, myError(ErrCompression, err)
		}
		opt := zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level))
		if rw.zenc, err = zstd.NewWriter(nil, opt); err != nil {
			return nil, myError(ErrCompression, err)
		}
	}
	return rw, nil
}

// read fills b with decompressed payload bytes, pulling more compressed
// packets from the network as needed.
func (rw *compressRW) read(c *Conn, b []byte) (int, error) {
	length := len(b)

	// unread bytes left over from the previous compressed packet
	unread := rw.ubuff.Len() - rw.ubuff.Tell()

	for length > unread {
		if err := rw.readCompressedPacket(unread); err != nil {
			return 0, err
		}
		unread = rw.ubuff.Len() - rw.ubuff.Tell()
	}

	n := copy(b, rw.ubuff.Read(length))
	return n, nil
}

// readCompressedPacket reads one compressed packet from the network into
// cbuff, inflates it and appends it to ubuff behind any unread bytes.
func (rw *compressRW) readCompressedPacket(unread int) error {
	var old []byte

	// save unread bytes from the buffer
	if unread > 0 {
		old = make([]byte, unread)
		copy(old, rw.ubuff.Read(unread))
	}

	cbuff, err := rw.cbuff.Reset(7)
	if err != nil {
		return err
	}
	if _, err = rw.c.netRead(cbuff[0:7]); err != nil {
		return netError(ErrRead, err, rw.c.cfg.readTimeout)
	}

	payloadLength := int(getUint24(cbuff[0:3]))

	// check for out-of-order packets
	if rw.seqno != cbuff[3] {
		return myError(ErrNetPacketsOutOfOrder, rw.seqno, cbuff[3])
	}
	rw.seqno++

	// length of payload before compression; 0 means the payload was
	// sent uncompressed
	origPayloadLength := int(getUint24(cbuff[4:7]))

	if payloadLength+7 > int(rw.c.cfg.maxPacketSize) {
		return myError(ErrNetPacketTooLarge)
	}

	if cbuff, err = rw.cbuff.Reset(payloadLength); err != nil {
		return err
	}
	if _, err = rw.c.netRead(cbuff[0:payloadLength]); err != nil {
		return netError(ErrRead, err, rw.c.cfg.readTimeout)
	}

	if origPayloadLength != 0 {
		if _, err = rw.ubuff.Reset(origPayloadLength + unread); err != nil {
			return err
		}
		if unread > 0 {
			rw.ubuff.Write(old)
		}
		if err = rw.inflate(cbuff[0:payloadLength]); err != nil {
			return err
		}
	} else {
		if _, err = rw.ubuff.Reset(payloadLength + unread); err != nil {
			return err
		}
		if unread > 0 {
			rw.ubuff.Write(old)
		}
		rw.ubuff.Write(cbuff[0:payloadLength])
	}

	// reset for reading
	rw.ubuff.Seek(0)
	return nil
}

// inflate decompresses src into ubuff at its current offset.
func (rw *compressRW) inflate(src []byte) error {
	switch rw.algorithm {
	case CompressionZstd:
		out, err := rw.zdec.DecodeAll(src, nil)
		if err != nil {
			return myError(ErrCompression, err)
		}
		rw.ubuff.Write(out)
		return nil
	default:
		r, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return myError(ErrCompression, err)
		}
		defer r.Close()
		if _, err = io.Copy(&rw.ubuff, r); err != nil {
			return myError(ErrCompression, err)
		}
		return nil
	}
}

// deflate compresses b and returns the compressed bytes.
func (rw *compressRW) deflate(b []byte) ([]byte, error) {
	switch rw.algorithm {
	case CompressionZstd:
		return rw.zenc.EncodeAll(b, nil), nil
	default:
		var z bytes.Buffer
		level := rw.level
		if level == 0 {
			level = zlib.DefaultCompression
		}
		w, err := zlib.NewWriterLevel(&z, level)
		if err != nil {
			return nil, myError(ErrCompression, err)
		}
		if _, err = w.Write(b); err != nil {
			return nil, myError(ErrCompression, err)
		}
		if err = w.Close(); err != nil {
			return nil, myError(ErrCompression, err)
		}
		return z.Bytes(), nil
	}
}

// write wraps the protocol packet b in a compression envelope and
// writes it to the network.
func (rw *compressRW) write(c *Conn, b []byte) (int, error) {
	var (
		cbuff []byte
		err   error
	)

	if len(b) > _COMPRESSION_THRESHOLD {
		if cbuff, err = rw.createCompPacket(b); err != nil {
			return 0, err
		}
	} else {
		if cbuff, err = rw.createRegPacket(b); err != nil {
			return 0, err
		}
	}

	rw.seqno++

	n, err := c.netWrite(cbuff)
	if err != nil {
		return n, netError(ErrWrite, err, c.cfg.writeTimeout)
	}
	return n, nil
}

// createCompPacket generates a compressed protocol packet after
// compressing the given payload.
func (rw *compressRW) createCompPacket(b []byte) ([]byte, error) {
	z, err := rw.deflate(b)
	if err != nil {
		return nil, err
	}

	cbuff, err := rw.cbuff.Reset(7 + len(z))
	if err != nil {
		return nil, err
	}

	// compressed header
	putUint24(cbuff[0:3], uint32(len(z))) // size of compressed payload
	cbuff[3] = rw.seqno
	putUint24(cbuff[4:7], uint32(len(b))) // size before compression
	copy(cbuff[7:], z)

	return cbuff, nil
}

// createRegPacket wraps the payload in the envelope without compressing
// it (uncompressed length field = 0).
func (rw *compressRW) createRegPacket(b []byte) ([]byte, error) {
	cbuff, err := rw.cbuff.Reset(7 + len(b))
	if err != nil {
		return nil, err
	}

	putUint24(cbuff[0:3], uint32(len(b)))
	cbuff[3] = rw.seqno
	putUint24(cbuff[4:7], 0)
	copy(cbuff[7:], b)

	return cbuff, nil
}

// reset resets the compressed packet sequence number; it is synchronized
// with the frame sequence number at each command boundary.
func (rw *compressRW) reset() {
	rw.seqno = 0
}
