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
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Stmt is a server-side prepared statement. It is bound to the
// connection that prepared it and shares its single-owner discipline.
type Stmt struct {
	c *Conn

	id           uint32
	paramCount   uint16
	columnCount  uint16
	params       []Column
	columns      []Column
	warningCount uint16

	// parameters streamed via SendLongData since the last execute,
	// skipped in the execute packet's value section
	longData map[uint16]bool

	closed bool
}

// Prepare sends the statement text to the server for preparation and
// returns a handle for executing it.
func (c *Conn) Prepare(query string) (*Stmt, error) {
	if err := c.beginCommand(); err != nil {
		return nil, err
	}
	defer c.endCommand()

	b, err := c.createComStmtPrepare(query)
	if err != nil {
		return nil, err
	}
	if err = c.writePacket(b); err != nil {
		return nil, err
	}
	return c.handlePrepareResponse()
}

// createComStmtPrepare generates the COM_STMT_PREPARE packet.
func (c *Conn) createComStmtPrepare(query string) ([]byte, error) {
	b, err := c.buff.Reset(_HEADER_SIZE + 1 + len(query))
	if err != nil {
		return nil, err
	}
	off := _HEADER_SIZE
	b[off] = _COM_STMT_PREPARE
	off++
	copy(b[off:], query)
	return b, nil
}

// handlePrepareResponse parses the prepare-OK packet and the parameter
// and column definition blocks that follow it.
func (c *Conn) handlePrepareResponse() (*Stmt, error) {
	b, err := c.readPacket()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, c.fault(myError(ErrMalformedPacket, "empty response"))
	}

	if b[0] == _PACKET_ERR {
		return nil, c.parseErrPacket(b)
	}
	if b[0] != _PACKET_OK || len(b) < 12 {
		return nil, c.fault(myError(ErrInvalidPacket))
	}

	s := &Stmt{c: c, longData: make(map[uint16]bool)}
	s.id = binary.LittleEndian.Uint32(b[1:5])
	s.columnCount = binary.LittleEndian.Uint16(b[5:7])
	s.paramCount = binary.LittleEndian.Uint16(b[7:9])
	// b[9] filler
	s.warningCount = binary.LittleEndian.Uint16(b[10:12])

	if s.paramCount > 0 {
		if s.params, err = c.readColumns(uint64(s.paramCount)); err != nil {
			return nil, err
		}
	}
	if s.columnCount > 0 {
		if s.columns, err = c.readColumns(uint64(s.columnCount)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ParamCount returns the number of parameter placeholders.
func (s *Stmt) ParamCount() uint16 {
	return s.paramCount
}

// ColumnCount returns the number of result columns the server predicted
// at prepare time.
func (s *Stmt) ColumnCount() uint16 {
	return s.columnCount
}

// Columns returns the column metadata reported at prepare time.
func (s *Stmt) Columns() []Column {
	return s.columns
}

// WarningCount returns the warning count from preparation.
func (s *Stmt) WarningCount() uint16 {
	return s.warningCount
}

// Exec executes the statement for its side effects. The argument count
// is validated before anything touches the wire, so a mismatch leaves
// the connection fully usable.
func (s *Stmt) Exec(args ...interface{}) (*Result, error) {
	if err := s.execute(args); err != nil {
		return nil, err
	}
	defer s.c.endCommand()
	return s.c.handleExecResponse(true)
}

// Query executes the statement and streams its result set(s) in the
// binary row encoding.
func (s *Stmt) Query(args ...interface{}) (*Rows, error) {
	if err := s.execute(args); err != nil {
		return nil, err
	}

	rows, err := s.c.handleQueryResponse(true)
	if err != nil {
		s.c.endCommand()
		return nil, err
	}
	return rows, nil
}

// execute validates the arguments, then sends COM_STMT_EXECUTE and
// leaves the connection in the Executing state for the response reader.
func (s *Stmt) execute(args []interface{}) error {
	if s.closed {
		return myError(ErrStmtClosed)
	}
	if len(args) != int(s.paramCount) {
		return myError(ErrParamCount, s.paramCount, len(args))
	}
	for i, arg := range args {
		if !s.longData[uint16(i)] {
			if _, err := paramType(arg); err != nil {
				return err
			}
		}
	}

	if err := s.c.beginCommand(); err != nil {
		return err
	}

	b, err := s.createComStmtExecute(args)
	if err != nil {
		s.c.endCommand()
		return err
	}
	if err = s.c.writePacket(b); err != nil {
		s.c.endCommand()
		return err
	}

	// long data is consumed by one execution
	s.longData = make(map[uint16]bool)
	return nil
}

// createComStmtExecute generates the COM_STMT_EXECUTE packet with the
// bound parameter values.
func (s *Stmt) createComStmtExecute(args []interface{}) ([]byte, error) {
	b := make([]byte, _HEADER_SIZE, _HEADER_SIZE+16+len(args)*12)

	b = append(b, _COM_STMT_EXECUTE)
	b = binary.LittleEndian.AppendUint32(b, s.id)
	b = append(b, 0) // flags: CURSOR_TYPE_NO_CURSOR
	b = binary.LittleEndian.AppendUint32(b, 1)

	if s.paramCount == 0 {
		return b, nil
	}

	// NULL bitmap, offset 0
	bitmapOff := len(b)
	b = append(b, make([]byte, nullBitmapSize(s.paramCount, 0))...)
	for i, arg := range args {
		if arg == nil {
			b[bitmapOff+i/8] |= 1 << (uint(i) % 8)
		}
	}

	b = append(b, 1) // new-params-bound flag

	for i, arg := range args {
		if s.longData[uint16(i)] {
			b = append(b, _TYPE_LONG_BLOB, 0)
			continue
		}
		t, err := paramType(arg)
		if err != nil {
			return nil, err
		}
		b = append(b, byte(t&0xff), byte(t>>8))
	}

	for i, arg := range args {
		if arg == nil || s.longData[uint16(i)] {
			continue
		}
		var err error
		if b, err = appendParamValue(b, arg); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// paramType maps a Go argument to its wire type; the high byte carries
// the unsigned flag.
func paramType(arg interface{}) (uint16, error) {
	switch arg.(type) {
	case nil:
		return _TYPE_NULL, nil
	case int, int8, int16, int32, int64:
		return _TYPE_LONG_LONG, nil
	case uint, uint8, uint16, uint32, uint64:
		return _TYPE_LONG_LONG | 0x8000, nil
	case bool:
		return _TYPE_TINY, nil
	case float32:
		return _TYPE_FLOAT, nil
	case float64:
		return _TYPE_DOUBLE, nil
	case string:
		return _TYPE_VARCHAR, nil
	case []byte:
		return _TYPE_BLOB, nil
	case decimal.Decimal:
		return _TYPE_NEW_DECIMAL, nil
	case Datetime, time.Time:
		return _TYPE_DATETIME, nil
	case Time:
		return _TYPE_TIME, nil
	default:
		return 0, myError(ErrParamType, arg)
	}
}

// appendParamValue appends the binary encoding of one bound value.
func appendParamValue(b []byte, arg interface{}) ([]byte, error) {
	switch v := arg.(type) {
	case int:
		return binary.LittleEndian.AppendUint64(b, uint64(int64(v))), nil
	case int8:
		return binary.LittleEndian.AppendUint64(b, uint64(int64(v))), nil
	case int16:
		return binary.LittleEndian.AppendUint64(b, uint64(int64(v))), nil
	case int32:
		return binary.LittleEndian.AppendUint64(b, uint64(int64(v))), nil
	case int64:
		return binary.LittleEndian.AppendUint64(b, uint64(v)), nil
	case uint:
		return binary.LittleEndian.AppendUint64(b, uint64(v)), nil
	case uint8:
		return binary.LittleEndian.AppendUint64(b, uint64(v)), nil
	case uint16:
		return binary.LittleEndian.AppendUint64(b, uint64(v)), nil
	case uint32:
		return binary.LittleEndian.AppendUint64(b, uint64(v)), nil
	case uint64:
		return binary.LittleEndian.AppendUint64(b, v), nil
	case bool:
		if v {
			return append(b, 1), nil
		}
		return append(b, 0), nil
	case float32:
		return binary.LittleEndian.AppendUint32(b, math.Float32bits(v)), nil
	case float64:
		return binary.LittleEndian.AppendUint64(b, math.Float64bits(v)), nil
	case string:
		return appendLenencBytes(b, []byte(v)), nil
	case []byte:
		return appendLenencBytes(b, v), nil
	case decimal.Decimal:
		return appendLenencBytes(b, []byte(v.String())), nil
	case Datetime:
		return appendDatetime(b, v), nil
	case time.Time:
		return appendDatetime(b, Datetime{
			Year:        uint16(v.Year()),
			Month:       uint8(v.Month()),
			Day:         uint8(v.Day()),
			Hour:        uint8(v.Hour()),
			Minute:      uint8(v.Minute()),
			Second:      uint8(v.Second()),
			Microsecond: uint32(v.Nanosecond() / 1000),
		}), nil
	case Time:
		return appendTime(b, v), nil
	default:
		return nil, myError(ErrParamType, arg)
	}
}

// appendLenencBytes appends a length-encoded string value.
func appendLenencBytes(b, v []byte) []byte {
	n := lenencIntSize(uint64(len(v)))
	off := len(b)
	b = append(b, make([]byte, n)...)
	putLenencInt(b[off:], uint64(len(v)))
	return append(b, v...)
}

// appendDatetime appends the shortest temporal encoding that preserves
// the value (length 0, 4, 7 or 11).
func appendDatetime(b []byte, d Datetime) []byte {
	switch {
	case d == Datetime{}:
		return append(b, 0)
	case d.Microsecond > 0:
		b = append(b, 11)
		b = binary.LittleEndian.AppendUint16(b, d.Year)
		b = append(b, d.Month, d.Day, d.Hour, d.Minute, d.Second)
		return binary.LittleEndian.AppendUint32(b, d.Microsecond)
	case d.Hour > 0 || d.Minute > 0 || d.Second > 0:
		b = append(b, 7)
		b = binary.LittleEndian.AppendUint16(b, d.Year)
		return append(b, d.Month, d.Day, d.Hour, d.Minute, d.Second)
	default:
		b = append(b, 4)
		b = binary.LittleEndian.AppendUint16(b, d.Year)
		return append(b, d.Month, d.Day)
	}
}

// appendTime appends the TIME encoding (length 0, 8 or 12).
func appendTime(b []byte, t Time) []byte {
	if t == (Time{}) {
		return append(b, 0)
	}

	var neg byte
	if t.Negative {
		neg = 1
	}

	if t.Microsecond > 0 {
		b = append(b, 12, neg)
		b = binary.LittleEndian.AppendUint32(b, t.Days)
		b = append(b, t.Hour, t.Minute, t.Second)
		return binary.LittleEndian.AppendUint32(b, t.Microsecond)
	}
	b = append(b, 8, neg)
	b = binary.LittleEndian.AppendUint32(b, t.Days)
	return append(b, t.Hour, t.Minute, t.Second)
}

// SendLongData streams a parameter value for the next execution of the
// statement, ahead of COM_STMT_EXECUTE. The server sends no reply.
func (s *Stmt) SendLongData(paramId uint16, data []byte) error {
	if s.closed {
		return myError(ErrStmtClosed)
	}
	if paramId >= s.paramCount {
		return myError(ErrParamCount, s.paramCount, paramId+1)
	}
	if err := s.c.beginCommand(); err != nil {
		return err
	}
	defer s.c.endCommand()

	b := make([]byte, _HEADER_SIZE, _HEADER_SIZE+7+len(data))
	b = append(b, _COM_STMT_SEND_LONG_DATA)
	b = binary.LittleEndian.AppendUint32(b, s.id)
	b = binary.LittleEndian.AppendUint16(b, paramId)
	b = append(b, data...)

	if err := s.c.writePacket(b); err != nil {
		return err
	}
	s.longData[paramId] = true
	return nil
}

// Reset asks the server to discard accumulated long data and cursor
// state for the statement.
func (s *Stmt) Reset() error {
	if s.closed {
		return myError(ErrStmtClosed)
	}
	if err := s.c.beginCommand(); err != nil {
		return err
	}
	defer s.c.endCommand()

	b := make([]byte, _HEADER_SIZE, _HEADER_SIZE+5)
	b = append(b, _COM_STMT_RESET)
	b = binary.LittleEndian.AppendUint32(b, s.id)

	if err := s.c.writePacket(b); err != nil {
		return err
	}
	s.longData = make(map[uint16]bool)
	_, err := s.c.handleExecResponse(true)
	return err
}

// Close deallocates the statement on the server. The server sends no
// reply; closing twice is a no-op.
func (s *Stmt) Close() error {
	if s.closed {
		return nil
	}
	if err := s.c.beginCommand(); err != nil {
		return err
	}
	defer s.c.endCommand()

	b := make([]byte, _HEADER_SIZE, _HEADER_SIZE+5)
	b = append(b, _COM_STMT_CLOSE)
	b = binary.LittleEndian.AppendUint32(b, s.id)

	if err := s.c.writePacket(b); err != nil {
		return err
	}
	s.closed = true
	return nil
}
