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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prepareOkPayload builds the first packet of a prepare response.
func prepareOkPayload(id uint32, columns, params, warnings uint16) []byte {
	return []byte{
		_PACKET_OK,
		byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24),
		byte(columns), byte(columns >> 8),
		byte(params), byte(params >> 8),
		0,
		byte(warnings), byte(warnings >> 8),
	}
}

// pipeStmt builds a statement handle directly on a pipe-backed
// connection, skipping the prepare round trip.
func pipeStmt(c *Conn, id uint32, paramCount uint16) *Stmt {
	return &Stmt{c: c, id: id, paramCount: paramCount,
		longData: make(map[uint16]bool)}
}

func TestPrepareParsesResponse(t *testing.T) {
	c, server := pipeConn(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, payload := readFrame(t, server)
		assert.Equal(t, byte(_COM_STMT_PREPARE), payload[0])
		assert.Equal(t, "SELECT name FROM users WHERE id = ? AND age > ?",
			string(payload[1:]))

		writeFrame(t, server, 1, prepareOkPayload(4, 1, 2, 0))
		writeFrame(t, server, 2, columnPayload("?", _TYPE_LONG_LONG, 63, 0))
		writeFrame(t, server, 3, columnPayload("?", _TYPE_LONG_LONG, 63, 0))
		writeFrame(t, server, 4, columnPayload("name", _TYPE_VARSTRING, 45, 0))
	}()

	s, err := c.Prepare("SELECT name FROM users WHERE id = ? AND age > ?")
	require.NoError(t, err)
	<-done

	assert.Equal(t, uint32(4), s.id)
	assert.Equal(t, uint16(2), s.ParamCount())
	assert.Equal(t, uint16(1), s.ColumnCount())
	require.Len(t, s.Columns(), 1)
	assert.Equal(t, "name", s.Columns()[0].Name)
	assert.Equal(t, uint16(0), s.WarningCount())
	assert.Equal(t, StateReady, c.State())
}

func TestPrepareServerError(t *testing.T) {
	c, server := pipeConn(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		readFrame(t, server)
		writeFrame(t, server, 1, errPayload(1146, "42S02",
			"Table 'test.missing' doesn't exist"))
	}()

	_, err := c.Prepare("SELECT * FROM missing")
	<-done
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, uint16(1146), e.Code())
	assert.Equal(t, StateReady, c.State())
}

func TestPrepareRejectsEmptyResponse(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		recvFrame(server)
		sendFrame(server, 1, nil)
	}()

	_, err := c.Prepare("SELECT 1")
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, uint16(ErrMalformedPacket), e.Code())
	assert.Equal(t, StateFaulted, c.State())
}

func TestStmtExecEncodesParams(t *testing.T) {
	c, server := pipeConn(t)
	s := pipeStmt(c, 7, 3)

	done := make(chan struct{})
	go func() {
		defer close(done)
		seq, payload := readFrame(t, server)
		assert.Equal(t, uint8(0), seq)

		want := []byte{
			_COM_STMT_EXECUTE,
			7, 0, 0, 0, // statement id
			0,          // no cursor
			1, 0, 0, 0, // iteration count
			0x02, // NULL bitmap: parameter 1
			1,    // new params bound
			_TYPE_LONG_LONG, 0,
			_TYPE_NULL, 0,
			_TYPE_VARCHAR, 0,
			5, 0, 0, 0, 0, 0, 0, 0, // int64(5)
			3, 'b', 'o', 'b', // lenenc "bob"
		}
		assert.Equal(t, want, payload)

		writeFrame(t, server, 1, okPayload(1, 9, _SERVER_STATUS_AUTOCOMMIT, 0))
	}()

	res, err := s.Exec(int64(5), nil, "bob")
	require.NoError(t, err)
	<-done

	assert.Equal(t, uint64(1), res.AffectedRows())
	assert.Equal(t, uint64(9), res.LastInsertId())
	assert.Equal(t, StateReady, c.State())
}

func TestStmtExecUnsignedTypeFlag(t *testing.T) {
	c, server := pipeConn(t)
	s := pipeStmt(c, 1, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, payload := readFrame(t, server)
		// type word carries the unsigned flag in the high byte
		types := payload[12:14]
		assert.Equal(t, []byte{_TYPE_LONG_LONG, 0x80}, types)
		writeFrame(t, server, 1, okPayload(0, 0, _SERVER_STATUS_AUTOCOMMIT, 0))
	}()

	_, err := s.Exec(uint64(1) << 63)
	require.NoError(t, err)
	<-done
}

func TestStmtExecArgCountMismatch(t *testing.T) {
	c, _ := pipeConn(t)
	s := pipeStmt(c, 1, 2)

	// rejected before the wire: nothing is written to the pipe, so a
	// blocked write would hang this test
	_, err := s.Exec(int64(1))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, uint16(ErrParamCount), e.Code())
	assert.Equal(t, StateReady, c.State())
}

func TestStmtExecUnsupportedArgType(t *testing.T) {
	c, _ := pipeConn(t)
	s := pipeStmt(c, 1, 1)

	_, err := s.Exec(struct{ x int }{1})
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, uint16(ErrParamType), e.Code())
	assert.Equal(t, StateReady, c.State())
}

func TestStmtQueryBinaryRows(t *testing.T) {
	c, server := pipeConn(t)
	s := pipeStmt(c, 3, 0)

	go func() {
		readFrame(t, server)
		writeFrame(t, server, 1, []byte{2}) // column count
		writeFrame(t, server, 2, columnPayload("id", _TYPE_LONG, 63, 0))
		writeFrame(t, server, 3, columnPayload("name", _TYPE_VARSTRING, 45, 0))

		row := []byte{0x00, 0x00} // header + NULL bitmap
		row = append(row, 42, 0, 0, 0)
		row = append(row, lenencField("alice")...)
		writeFrame(t, server, 4, row)

		row = []byte{0x00, 0x08} // second column NULL: bit 1+2
		row = append(row, 7, 0, 0, 0)
		writeFrame(t, server, 5, row)

		writeFrame(t, server, 6, eofAsOkPayload(_SERVER_STATUS_AUTOCOMMIT, 0))
	}()

	rows, err := s.Query()
	require.NoError(t, err)

	require.True(t, rows.Next())
	var id int64
	var name interface{}
	require.NoError(t, rows.Scan(&id, &name))
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "alice", name)

	require.True(t, rows.Next())
	require.NoError(t, rows.Scan(&id, &name))
	assert.Equal(t, int64(7), id)
	assert.Nil(t, name)

	require.False(t, rows.Next())
	require.NoError(t, rows.Close())
	assert.Equal(t, StateReady, c.State())
}

func TestStmtSendLongData(t *testing.T) {
	c, server := pipeConn(t)
	s := pipeStmt(c, 5, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, payload := readFrame(t, server)
		want := append([]byte{_COM_STMT_SEND_LONG_DATA, 5, 0, 0, 0, 0, 0},
			"chunk-1"...)
		assert.Equal(t, want, payload)

		// the execute packet types the parameter as a long blob and
		// carries no value for it
		_, payload = readFrame(t, server)
		want = []byte{
			_COM_STMT_EXECUTE,
			5, 0, 0, 0,
			0,
			1, 0, 0, 0,
			0x00,
			1,
			_TYPE_LONG_BLOB, 0,
		}
		assert.Equal(t, want, payload)
		writeFrame(t, server, 1, okPayload(1, 0, _SERVER_STATUS_AUTOCOMMIT, 0))
	}()

	require.NoError(t, s.SendLongData(0, []byte("chunk-1")))
	_, err := s.Exec("ignored placeholder")
	require.NoError(t, err)
	<-done

	// long data is consumed by the execution
	assert.Empty(t, s.longData)
}

func TestStmtSendLongDataBadParam(t *testing.T) {
	c, _ := pipeConn(t)
	s := pipeStmt(c, 5, 1)

	err := s.SendLongData(1, []byte("x"))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, uint16(ErrParamCount), e.Code())
	assert.Equal(t, StateReady, c.State())
}

func TestStmtReset(t *testing.T) {
	c, server := pipeConn(t)
	s := pipeStmt(c, 9, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, payload := readFrame(t, server)
		assert.Equal(t, []byte{_COM_STMT_RESET, 9, 0, 0, 0}, payload)
		writeFrame(t, server, 1, okPayload(0, 0, _SERVER_STATUS_AUTOCOMMIT, 0))
	}()

	s.longData[0] = true
	require.NoError(t, s.Reset())
	<-done
	assert.Empty(t, s.longData)
}

func TestStmtClose(t *testing.T) {
	c, server := pipeConn(t)
	s := pipeStmt(c, 11, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, payload := readFrame(t, server)
		assert.Equal(t, []byte{_COM_STMT_CLOSE, 11, 0, 0, 0}, payload)
	}()

	require.NoError(t, s.Close())
	<-done
	require.NoError(t, s.Close()) // no-op

	_, err := s.Exec()
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, uint16(ErrStmtClosed), e.Code())
}
