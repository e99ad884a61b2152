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
	"io"
	"net"
	"os"
	"time"
)

// dial opens a connection with the server; prefer the unix socket if
// specified.
func dial(address, socket string, timeout time.Duration) (net.Conn, error) {
	var (
		addr    string
		network string
	)

	if socket != "" {
		network, addr = "unix", socket
	} else {
		network, addr = "tcp", address
	}

	c, err := net.DialTimeout(network, addr, timeout)
	if err != nil {
		return nil, myError(ErrConnection, err)
	}
	return c, nil
}

// readWriter is the byte-stream layer under the packet framing. The
// default implementation moves raw bytes; the compressed implementation
// wraps every frame in a compression envelope. Swapping one for the
// other is invisible to everything above.
type readWriter interface {
	// read fills b entirely with payload bytes from the network.
	read(c *Conn, b []byte) (n int, err error)

	// write writes the protocol packet (content of the specified
	// buffer) to the network.
	write(c *Conn, b []byte) (n int, err error)

	// reset resets any per-command sequence state.
	reset()
}

// defaultReadWriter implements readWriter for non-compressed network
// read/write.
type defaultReadWriter struct{}

func (rw *defaultReadWriter) read(c *Conn, b []byte) (int, error) {
	n, err := c.netRead(b)
	if err != nil {
		return n, netError(ErrRead, err, c.cfg.readTimeout)
	}
	return n, nil
}

func (rw *defaultReadWriter) write(c *Conn, b []byte) (int, error) {
	n, err := c.netWrite(b)
	if err != nil {
		return n, netError(ErrWrite, err, c.cfg.writeTimeout)
	}
	return n, nil
}

func (rw *defaultReadWriter) reset() {
}

// netRead fills b from the raw stream, honoring the per-command read
// timeout.
func (c *Conn) netRead(b []byte) (int, error) {
	if c.cfg.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.readTimeout)); err != nil {
			return 0, err
		}
	}
	return io.ReadFull(c.conn, b)
}

// netWrite writes b to the raw stream, honoring the write timeout.
func (c *Conn) netWrite(b []byte) (int, error) {
	if c.cfg.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.conn.Write(b)
}

// netError distinguishes a deadline expiry from other transport
// failures, so a caller can tell a command timeout apart from a peer
// close.
func netError(code uint16, err error, timeout time.Duration) *Error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		e := myError(ErrTimeout, timeout)
		e.cause = err
		return e
	}
	if err == os.ErrDeadlineExceeded {
		e := myError(ErrTimeout, timeout)
		e.cause = err
		return e
	}
	return myError(code, err)
}
