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
	"net"
)

// ConnState is the lifecycle state of a connection. A connection is
// owned by exactly one caller at a time (the pool while idle); state is
// not guarded by a lock.
type ConnState uint8

const (
	StateConnecting ConnState = iota
	StateAuthenticating
	StateReady
	StateExecuting
	StateClosed
	StateFaulted
)

// Conn is one client connection speaking the server's wire protocol. It
// is not safe for concurrent use: the protocol allows exactly one
// outstanding request/response cycle, so all operations must be
// serialized by the owner.
type Conn struct {
	cfg *Config

	conn      net.Conn
	rw        readWriter
	buff      buffer
	seqno     uint8 // packet sequence number, reset per command
	state     ConnState
	tlsActive bool

	// handshake initialization packet (from server); immutable after
	// the connection phase
	protocolVersion    uint8
	serverVersion      string
	connectionId       uint32
	serverCapabilities uint32
	serverCharset      uint8
	authPluginData     []byte
	authPluginName     string

	// negotiated capability flags (client ∩ server)
	capabilities uint32

	// session state, folded in from every OK/EOF packet
	affectedRows uint64
	lastInsertId uint64
	statusFlags  uint16
	warnings     uint16

	// the open result stream, nil when no command is in flight
	rows *Rows
}

// Connect establishes a single connection from the given configuration,
// performing the handshake and authentication exchange.
func Connect(cfg *Config) (*Conn, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	c := &Conn{cfg: cfg, state: StateConnecting}
	c.rw = &defaultReadWriter{}
	c.buff.New(_INITIAL_PACKET_BUFFER_SIZE)

	var err error
	if c.conn, err = dial(cfg.address, cfg.Socket, cfg.ConnectTimeout); err != nil {
		return nil, err
	}

	if err = c.handshake(); err != nil {
		c.conn.Close()
		c.state = StateClosed
		return nil, err
	}
	return c, nil
}

// Open is Connect for a DSN string.
func Open(dsn string) (*Conn, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return Connect(cfg)
}

// readPacket reads the next logical packet from the network and returns
// the reassembled payload. Frames of the maximum size are concatenated
// with their continuation frames; sequence numbers must increase by
// exactly one per frame or the connection is desynchronized.
func (c *Conn) readPacket() ([]byte, error) {
	var payload []byte
	header := make([]byte, _HEADER_SIZE)

	for {
		if _, err := c.rw.read(c, header); err != nil {
			return nil, c.fault(err)
		}

		length := getUint24(header[0:3])

		if header[3] != c.seqno {
			return nil, c.fault(myError(ErrNetPacketsOutOfOrder, c.seqno, header[3]))
		}
		c.seqno++

		chunk := make([]byte, length)
		if length > 0 {
			if _, err := c.rw.read(c, chunk); err != nil {
				return nil, c.fault(err)
			}
		}

		if payload == nil {
			payload = chunk
		} else {
			payload = append(payload, chunk...)
		}

		// a frame shorter than the maximum terminates the payload
		if length < _MAX_PAYLOAD_LENGTH {
			return payload, nil
		}
		if len(payload) > int(c.cfg.maxPacketSize) {
			return nil, c.fault(myError(ErrNetPacketTooLarge))
		}
	}
}

// writePacket accepts a buffer with a 4-byte header placeholder followed
// by the payload, splits it into frames of at most the maximum size and
// writes them to the network. A payload that is an exact multiple of the
// maximum is terminated by an empty frame.
func (c *Conn) writePacket(b []byte) error {
	remaining := len(b) - _HEADER_SIZE

	for {
		chunk := remaining
		if chunk > _MAX_PAYLOAD_LENGTH {
			chunk = _MAX_PAYLOAD_LENGTH
		}

		putUint24(b[0:3], uint32(chunk))
		b[3] = c.seqno

		if _, err := c.rw.write(c, b[:_HEADER_SIZE+chunk]); err != nil {
			return c.fault(err)
		}
		c.seqno++

		remaining -= chunk
		if remaining == 0 && chunk < _MAX_PAYLOAD_LENGTH {
			return nil
		}

		// the next header overwrites the last 4 bytes already sent;
		// when remaining is 0 this leaves exactly the terminating
		// empty frame
		b = b[chunk:]
	}
}

// resetSeqno resets the packet sequence number at a command boundary.
func (c *Conn) resetSeqno() {
	c.seqno = 0
	c.rw.reset()
}

// fault transitions the connection to Faulted on unrecoverable errors;
// a faulted connection must not be reused.
func (c *Conn) fault(err error) error {
	e, ok := err.(*Error)
	if ok && !e.Fatal() {
		return err
	}
	if c.state != StateClosed {
		c.state = StateFaulted
		logger.WithFields(connFields(c)).WithError(err).
			Warn("connection faulted")
	}
	return err
}

// beginCommand validates that a new command may be issued and prepares
// the per-command state. This is the only gate into the Executing state.
func (c *Conn) beginCommand() error {
	switch c.state {
	case StateClosed:
		return myError(ErrConnClosed)
	case StateFaulted:
		return myError(ErrConnFaulted)
	case StateReady:
	default:
		// a result stream is still open; the wire has exactly one
		// logical stream, so interleaving is not possible
		return myError(ErrCommandOutOfSync)
	}
	if c.rows != nil {
		return myError(ErrCommandOutOfSync)
	}

	c.state = StateExecuting
	c.resetSeqno()
	return nil
}

// endCommand returns the connection to Ready unless it faulted.
func (c *Conn) endCommand() {
	if c.state == StateExecuting {
		c.state = StateReady
	}
}

// State returns the connection lifecycle state.
func (c *Conn) State() ConnState {
	return c.state
}

// ServerVersion returns the version string the server announced in the
// greeting.
func (c *Conn) ServerVersion() string {
	return c.serverVersion
}

// ConnectionID returns the server-assigned connection identifier.
func (c *Conn) ConnectionID() uint32 {
	return c.connectionId
}

// createComQuit generates the COM_QUIT packet.
func (c *Conn) createComQuit() ([]byte, error) {
	b, err := c.buff.Reset(_HEADER_SIZE + 1)
	if err != nil {
		return nil, err
	}
	b[_HEADER_SIZE] = _COM_QUIT
	return b, nil
}

// createComInitDb generates the COM_INIT_DB packet.
func (c *Conn) createComInitDb(schema string) ([]byte, error) {
	b, err := c.buff.Reset(_HEADER_SIZE + 1 + len(schema))
	if err != nil {
		return nil, err
	}
	off := _HEADER_SIZE
	b[off] = _COM_INIT_DB
	off++
	copy(b[off:], schema)
	return b, nil
}

// createComQuery generates the COM_QUERY packet.
func (c *Conn) createComQuery(query string) ([]byte, error) {
	b, err := c.buff.Reset(_HEADER_SIZE + 1 + len(query))
	if err != nil {
		return nil, err
	}
	off := _HEADER_SIZE
	b[off] = _COM_QUERY
	off++
	copy(b[off:], query)
	return b, nil
}

// createComPing generates the COM_PING packet.
func (c *Conn) createComPing() ([]byte, error) {
	b, err := c.buff.Reset(_HEADER_SIZE + 1)
	if err != nil {
		return nil, err
	}
	b[_HEADER_SIZE] = _COM_PING
	return b, nil
}

// Exec sends a statement that produces no rows and returns its Result.
// A statement that unexpectedly produces a result set is drained and
// discarded.
func (c *Conn) Exec(query string) (*Result, error) {
	if err := c.beginCommand(); err != nil {
		return nil, err
	}
	defer c.endCommand()

	b, err := c.createComQuery(query)
	if err != nil {
		return nil, err
	}
	if err = c.writePacket(b); err != nil {
		return nil, err
	}
	return c.handleExecResponse(false)
}

// Query sends a statement and returns a lazy, forward-only stream over
// its result set(s). The stream is bound to this connection's current
// command; it must be fully consumed or closed before the next command.
func (c *Conn) Query(query string) (*Rows, error) {
	if err := c.beginCommand(); err != nil {
		return nil, err
	}

	b, err := c.createComQuery(query)
	if err != nil {
		c.endCommand()
		return nil, err
	}
	if err = c.writePacket(b); err != nil {
		c.endCommand()
		return nil, err
	}

	rows, err := c.handleQueryResponse(false)
	if err != nil {
		c.endCommand()
		return nil, err
	}
	return rows, nil
}

// SelectSchema changes the default schema for the session.
func (c *Conn) SelectSchema(schema string) error {
	if err := c.beginCommand(); err != nil {
		return err
	}
	defer c.endCommand()

	b, err := c.createComInitDb(schema)
	if err != nil {
		return err
	}
	if err = c.writePacket(b); err != nil {
		return err
	}
	_, err = c.handleExecResponse(false)
	return err
}

// Ping performs a cheap round trip to verify the connection is alive.
func (c *Conn) Ping() error {
	if err := c.beginCommand(); err != nil {
		return err
	}
	defer c.endCommand()

	b, err := c.createComPing()
	if err != nil {
		return err
	}
	if err = c.writePacket(b); err != nil {
		return err
	}
	_, err = c.handleExecResponse(false)
	return err
}

// Close sends COM_QUIT when the connection is still healthy and tears
// down the transport. Closing a closed connection is a no-op.
func (c *Conn) Close() error {
	if c.state == StateClosed {
		return nil
	}

	if c.state == StateReady {
		// best effort; the server closes its side either way
		c.resetSeqno()
		if b, err := c.createComQuit(); err == nil {
			c.writePacket(b)
		}
	}

	c.state = StateClosed
	c.rows = nil
	err := c.conn.Close()
	if err != nil {
		return myError(ErrConnection, err)
	}
	return nil
}
