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
	"io"
	"os"
)

// Result carries the outcome of a statement that produces no rows.
type Result struct {
	affectedRows uint64
	lastInsertId uint64
	statusFlags  uint16
	warnings     uint16
}

// AffectedRows returns the number of rows changed, deleted or inserted
// by the last statement.
func (r *Result) AffectedRows() uint64 {
	return r.affectedRows
}

// LastInsertId returns the value generated for an AUTO_INCREMENT column
// by the last statement.
func (r *Result) LastInsertId() uint64 {
	return r.lastInsertId
}

// Warnings returns the warning count the server reported.
func (r *Result) Warnings() uint16 {
	return r.warnings
}

// Column describes one column of a result set, as reported by the
// server's column definition packet.
type Column struct {
	Schema       string
	Table        string
	OrgTable     string
	Name         string
	OrgName      string
	Charset      uint16
	ColumnLength uint32
	Type         uint8
	Flags        uint16
	Decimals     uint8
}

// parseOkPacket parses the OK packet (or an OK packet wearing the EOF
// header under CLIENT_DEPRECATE_EOF, since the body is identical past
// the marker) and folds its session counters into the connection.
func (c *Conn) parseOkPacket(b []byte) (*Result, error) {
	var (
		off int = 1 // [00] or [fe] marker
		res Result
	)

	affectedRows, n, err := getLenencInt(b[off:])
	if err != nil {
		return nil, c.fault(err)
	}
	off += n

	lastInsertId, n, err := getLenencInt(b[off:])
	if err != nil {
		return nil, c.fault(err)
	}
	off += n

	if len(b) < off+4 {
		return nil, c.fault(myError(ErrMalformedPacket, "OK"))
	}

	res.affectedRows = affectedRows
	res.lastInsertId = lastInsertId
	res.statusFlags = binary.LittleEndian.Uint16(b[off : off+2])
	off += 2
	res.warnings = binary.LittleEndian.Uint16(b[off : off+2])
	off += 2

	// human-readable status info may follow; ignored

	c.storeResult(&res)
	return &res, nil
}

// parseErrPacket parses the ERR packet into a server-originated Error.
// The connection stays usable; only the statement failed.
func (c *Conn) parseErrPacket(b []byte) *Error {
	var off int = 1 // [ff]

	if len(b) < off+2 {
		c.fault(myError(ErrMalformedPacket, "ERR"))
		return myError(ErrMalformedPacket, "ERR")
	}

	code := binary.LittleEndian.Uint16(b[off : off+2])
	off += 2

	var sqlState string
	if off < len(b) && b[off] == '#' {
		if len(b) < off+6 {
			c.fault(myError(ErrMalformedPacket, "ERR"))
			return myError(ErrMalformedPacket, "ERR")
		}
		sqlState = string(b[off+1 : off+6])
		off += 6
	}

	return serverError(code, sqlState, string(b[off:]))
}

// parseEOFPacket parses the classic EOF packet and folds the status
// flags into the connection.
func (c *Conn) parseEOFPacket(b []byte) error {
	var res Result

	if len(b) < 5 {
		return c.fault(myError(ErrMalformedPacket, "EOF"))
	}

	// [fe] marker
	res.warnings = binary.LittleEndian.Uint16(b[1:3])
	res.statusFlags = binary.LittleEndian.Uint16(b[3:5])
	res.affectedRows = c.affectedRows
	res.lastInsertId = c.lastInsertId

	c.storeResult(&res)
	return nil
}

// storeResult folds a parsed OK/EOF into the session counters.
func (c *Conn) storeResult(res *Result) {
	c.affectedRows = res.affectedRows
	c.lastInsertId = res.lastInsertId
	c.statusFlags = res.statusFlags
	c.warnings = res.warnings
}

// isEOFPacket reports whether b terminates a stream of packets. Without
// CLIENT_DEPRECATE_EOF the terminator is a short EOF packet; with it,
// the server sends an OK packet wearing the EOF marker instead.
func (c *Conn) isEOFPacket(b []byte) bool {
	if len(b) == 0 || b[0] != _PACKET_EOF {
		return false
	}
	if c.capabilities&_CLIENT_DEPRECATE_EOF != 0 {
		return len(b) < _MAX_PAYLOAD_LENGTH
	}
	return len(b) < 9
}

// parseResultSetTerminator parses the packet that ends a column or row
// stream, in whichever dialect was negotiated.
func (c *Conn) parseResultSetTerminator(b []byte) error {
	if c.capabilities&_CLIENT_DEPRECATE_EOF != 0 {
		_, err := c.parseOkPacket(b)
		return err
	}
	return c.parseEOFPacket(b)
}

// parseColumnDefinitionPacket parses the protocol 4.1 column definition.
func (c *Conn) parseColumnDefinitionPacket(b []byte) (*Column, error) {
	var (
		off int
		col Column
	)

	// catalog (always "def"); skipped
	_, n, err := getLenencString(b[off:])
	if err != nil {
		return nil, c.fault(err)
	}
	off += n

	s, n, err := getLenencString(b[off:])
	if err != nil {
		return nil, c.fault(err)
	}
	col.Schema = s.value
	off += n

	s, n, err = getLenencString(b[off:])
	if err != nil {
		return nil, c.fault(err)
	}
	col.Table = s.value
	off += n

	s, n, err = getLenencString(b[off:])
	if err != nil {
		return nil, c.fault(err)
	}
	col.OrgTable = s.value
	off += n

	s, n, err = getLenencString(b[off:])
	if err != nil {
		return nil, c.fault(err)
	}
	col.Name = s.value
	off += n

	s, n, err = getLenencString(b[off:])
	if err != nil {
		return nil, c.fault(err)
	}
	col.OrgName = s.value
	off += n

	// length of fixed-length fields (0x0c)
	_, n, err = getLenencInt(b[off:])
	if err != nil {
		return nil, c.fault(err)
	}
	off += n

	if len(b) < off+10 {
		return nil, c.fault(myError(ErrMalformedPacket, "column definition"))
	}

	col.Charset = binary.LittleEndian.Uint16(b[off : off+2])
	off += 2
	col.ColumnLength = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	col.Type = b[off]
	off++
	col.Flags = binary.LittleEndian.Uint16(b[off : off+2])
	off += 2
	col.Decimals = b[off]

	// 2 filler bytes follow; default values only in COM_FIELD_LIST

	return &col, nil
}

// readColumns reads count column definitions, plus the EOF delimiter
// when the classic dialect is in effect.
func (c *Conn) readColumns(count uint64) ([]Column, error) {
	columns := make([]Column, 0, count)

	for i := uint64(0); i < count; i++ {
		b, err := c.readPacket()
		if err != nil {
			return nil, err
		}
		if len(b) == 0 {
			return nil, c.fault(myError(ErrMalformedPacket, "empty column definition"))
		}
		if b[0] == _PACKET_ERR {
			return nil, c.parseErrPacket(b)
		}
		col, err := c.parseColumnDefinitionPacket(b)
		if err != nil {
			return nil, err
		}
		columns = append(columns, *col)
	}

	if c.capabilities&_CLIENT_DEPRECATE_EOF == 0 {
		b, err := c.readPacket()
		if err != nil {
			return nil, err
		}
		if !c.isEOFPacket(b) {
			return nil, c.fault(myError(ErrInvalidPacket))
		}
		if err = c.parseEOFPacket(b); err != nil {
			return nil, err
		}
	}

	return columns, nil
}

// handleExecResponse reads the response to a statement that is expected
// to produce no rows. A result set that arrives anyway is drained and
// discarded.
func (c *Conn) handleExecResponse(binaryRows bool) (*Result, error) {
	b, err := c.readPacket()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, c.fault(myError(ErrMalformedPacket, "empty response"))
	}

	switch b[0] {
	case _PACKET_OK:
		res, err := c.parseOkPacket(b)
		if err != nil {
			return nil, err
		}
		if c.cfg.ReportWarnings && res.warnings > 0 {
			e := myError(ErrWarning)
			e.warnings = res.warnings
			return res, e
		}
		return res, nil

	case _PACKET_ERR:
		return nil, c.parseErrPacket(b)

	case _PACKET_INFILE_REQ:
		return c.handleInfileRequest(string(b[1:]))

	default: // result set
		rows, err := c.initRows(b, binaryRows)
		if err != nil {
			return nil, err
		}
		if err = rows.Close(); err != nil {
			return nil, err
		}
		return &Result{
			affectedRows: c.affectedRows,
			lastInsertId: c.lastInsertId,
			statusFlags:  c.statusFlags,
			warnings:     c.warnings,
		}, nil
	}
}

// handleQueryResponse reads the response to a statement executed for
// its rows. A rowless response yields a Rows that is already exhausted,
// so callers can treat every statement uniformly.
func (c *Conn) handleQueryResponse(binaryRows bool) (*Rows, error) {
	b, err := c.readPacket()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, c.fault(myError(ErrMalformedPacket, "empty response"))
	}

	switch b[0] {
	case _PACKET_ERR:
		return nil, c.parseErrPacket(b)

	case _PACKET_INFILE_REQ:
		if _, err = c.handleInfileRequest(string(b[1:])); err != nil {
			return nil, err
		}
		return c.emptyRows(), nil
	}

	return c.initRows(b, binaryRows)
}

// handleInfileRequest answers a LOCAL INFILE request from the server.
// The server must always receive the file content (possibly empty)
// followed by an empty packet, and sends OK/ERR afterwards; skipping
// that exchange would desynchronize the stream.
func (c *Conn) handleInfileRequest(filename string) (*Result, error) {
	var reqErr error

	if !c.cfg.LocalInfile {
		reqErr = myError(ErrInfileDisabled)
	} else {
		reqErr = c.sendInfile(filename)
	}

	// terminating empty packet
	b, err := c.buff.Reset(_HEADER_SIZE)
	if err != nil {
		return nil, c.fault(err)
	}
	if err = c.writePacket(b); err != nil {
		return nil, err
	}

	b, err = c.readPacket()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, c.fault(myError(ErrMalformedPacket, "empty response"))
	}

	var res *Result
	switch b[0] {
	case _PACKET_OK:
		if res, err = c.parseOkPacket(b); err != nil {
			return nil, err
		}
	case _PACKET_ERR:
		err = c.parseErrPacket(b)
	default:
		return nil, c.fault(myError(ErrInvalidPacket))
	}

	if reqErr != nil {
		return nil, reqErr
	}
	return res, err
}

// sendInfile streams the named file to the server in packets.
func (c *Conn) sendInfile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return myError(ErrFile, err)
	}
	defer f.Close()

	chunk := make([]byte, _HEADER_SIZE+_INFILE_CHUNK_SIZE)
	for {
		n, err := f.Read(chunk[_HEADER_SIZE:])
		if n > 0 {
			if werr := c.writePacket(chunk[:_HEADER_SIZE+n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return myError(ErrFile, err)
		}
	}
}
