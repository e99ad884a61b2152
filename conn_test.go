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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeConn returns a ready connection wired to the returned server end
// of an in-memory pipe. The handshake is skipped; capabilities default
// to the client's full set (CLIENT_DEPRECATE_EOF included).
func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()

	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	cfg := &Config{MaxAllowedPacket: 64 * 1024 * 1024}
	require.NoError(t, cfg.normalize())

	c := &Conn{cfg: cfg, conn: client, rw: &defaultReadWriter{}, state: StateReady}
	c.buff.New(_INITIAL_PACKET_BUFFER_SIZE)
	c.capabilities = cfg.clientCapabilities
	return c, server
}

// writeFrame writes one raw protocol frame to the server end.
func writeFrame(t *testing.T, w io.Writer, seq uint8, payload []byte) {
	t.Helper()
	header := make([]byte, _HEADER_SIZE)
	putUint24(header[0:3], uint32(len(payload)))
	header[3] = seq
	_, err := w.Write(header)
	require.NoError(t, err)
	if len(payload) > 0 {
		_, err = w.Write(payload)
		require.NoError(t, err)
	}
}

// readFrame reads one raw protocol frame from the server end.
func readFrame(t *testing.T, r io.Reader) (uint8, []byte) {
	t.Helper()
	header := make([]byte, _HEADER_SIZE)
	_, err := io.ReadFull(r, header)
	require.NoError(t, err)
	payload := make([]byte, getUint24(header[0:3]))
	_, err = io.ReadFull(r, payload)
	require.NoError(t, err)
	return header[3], payload
}

func okPayload(affected, insertId uint64, status, warnings uint16) []byte {
	b := []byte{_PACKET_OK}
	buf := make([]byte, 9)
	b = append(b, buf[:putLenencInt(buf, affected)]...)
	b = append(b, buf[:putLenencInt(buf, insertId)]...)
	return append(b, byte(status), byte(status>>8), byte(warnings), byte(warnings>>8))
}

func eofAsOkPayload(status, warnings uint16) []byte {
	b := okPayload(0, 0, status, warnings)
	b[0] = _PACKET_EOF
	return b
}

func eofPayload(status, warnings uint16) []byte {
	return []byte{_PACKET_EOF, byte(warnings), byte(warnings >> 8),
		byte(status), byte(status >> 8)}
}

func errPayload(code uint16, sqlState, message string) []byte {
	b := []byte{_PACKET_ERR, byte(code), byte(code >> 8), '#'}
	b = append(b, sqlState...)
	return append(b, message...)
}

func columnPayload(name string, colType uint8, charset uint16, flags uint16) []byte {
	var b []byte
	for _, s := range []string{"def", "", "t", "t", name, name} {
		buf := make([]byte, lenencStringSize(s))
		putLenencString(buf, s)
		b = append(b, buf...)
	}
	b = append(b, 0x0c)
	b = append(b, byte(charset), byte(charset>>8))
	b = append(b, 11, 0, 0, 0) // display length
	b = append(b, colType)
	b = append(b, byte(flags), byte(flags>>8))
	return append(b, 0, 0, 0) // decimals + filler
}

func lenencField(s string) []byte {
	buf := make([]byte, lenencStringSize(s))
	putLenencString(buf, s)
	return buf
}

func TestWritePacketSingleFrame(t *testing.T) {
	c, server := pipeConn(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		seq, payload := readFrame(t, server)
		assert.Equal(t, uint8(0), seq)
		assert.Equal(t, []byte{_COM_PING}, payload)
	}()

	b, err := c.createComPing()
	require.NoError(t, err)
	require.NoError(t, c.writePacket(b))
	<-done
}

func TestWritePacketSplitsLargeFrames(t *testing.T) {
	c, server := pipeConn(t)

	payload := make([]byte, _MAX_PAYLOAD_LENGTH+5)
	b := make([]byte, _HEADER_SIZE+len(payload))
	copy(b[_HEADER_SIZE:], payload)

	done := make(chan struct{})
	go func() {
		defer close(done)
		seq, first := readFrame(t, server)
		assert.Equal(t, uint8(0), seq)
		assert.Len(t, first, _MAX_PAYLOAD_LENGTH)

		seq, second := readFrame(t, server)
		assert.Equal(t, uint8(1), seq)
		assert.Len(t, second, 5)
	}()

	require.NoError(t, c.writePacket(b))
	<-done
	assert.Equal(t, uint8(2), c.seqno)
}

func TestWritePacketExactMultipleSendsEmptyFrame(t *testing.T) {
	c, server := pipeConn(t)

	b := make([]byte, _HEADER_SIZE+_MAX_PAYLOAD_LENGTH)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, first := readFrame(t, server)
		assert.Len(t, first, _MAX_PAYLOAD_LENGTH)

		seq, second := readFrame(t, server)
		assert.Equal(t, uint8(1), seq)
		assert.Empty(t, second)
	}()

	require.NoError(t, c.writePacket(b))
	<-done
}

func TestReadPacketReassembles(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		writeFrame(t, server, 0, make([]byte, _MAX_PAYLOAD_LENGTH))
		writeFrame(t, server, 1, []byte{1, 2, 3})
	}()

	payload, err := c.readPacket()
	require.NoError(t, err)
	assert.Len(t, payload, _MAX_PAYLOAD_LENGTH+3)
	assert.Equal(t, []byte{1, 2, 3}, payload[_MAX_PAYLOAD_LENGTH:])
}

func TestReadPacketSequenceMismatchFaults(t *testing.T) {
	c, server := pipeConn(t)

	// the client aborts after the header, so the unread payload byte
	// must not fail the test from a goroutine once the pipe is closed
	go sendFrame(server, 5, []byte{0x00})

	_, err := c.readPacket()
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, uint16(ErrNetPacketsOutOfOrder), e.Code())
	assert.True(t, e.Fatal())
	assert.Equal(t, StateFaulted, c.State())
}

func TestExecParsesOkPacket(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		seq, payload := readFrame(t, server)
		assert.Equal(t, uint8(0), seq)
		assert.Equal(t, byte(_COM_QUERY), payload[0])
		assert.Equal(t, "DELETE FROM t", string(payload[1:]))
		writeFrame(t, server, 1, okPayload(3, 42, _SERVER_STATUS_AUTOCOMMIT, 0))
	}()

	res, err := c.Exec("DELETE FROM t")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.AffectedRows())
	assert.Equal(t, uint64(42), res.LastInsertId())
	assert.Equal(t, uint64(3), c.AffectedRows())
	assert.True(t, c.Autocommit())
	assert.False(t, c.InTransaction())
	assert.Equal(t, StateReady, c.State())
}

func TestExecRejectsEmptyResponse(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		recvFrame(server)
		sendFrame(server, 1, nil)
	}()

	_, err := c.Exec("DELETE FROM t")
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, uint16(ErrMalformedPacket), e.Code())
	assert.True(t, e.Fatal())
	assert.Equal(t, StateFaulted, c.State())
}

func TestEmptyPacketDuringRowStreamFaults(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		recvFrame(server)
		sendFrame(server, 1, []byte{1})
		sendFrame(server, 2, columnPayload("id", _TYPE_LONG, _BINARY_CHARSET, 0))
		sendFrame(server, 3, nil)
	}()

	rows, err := c.Query("SELECT id FROM t")
	require.NoError(t, err)

	require.False(t, rows.Next())
	var e *Error
	require.ErrorAs(t, rows.Err(), &e)
	assert.Equal(t, uint16(ErrMalformedPacket), e.Code())
	assert.Equal(t, StateFaulted, c.State())
}

func TestExecServerErrorKeepsConnectionUsable(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		readFrame(t, server)
		writeFrame(t, server, 1, errPayload(1064, "42000", "syntax error"))

		readFrame(t, server)
		writeFrame(t, server, 1, okPayload(0, 0, 0, 0))
	}()

	_, err := c.Exec("BOGUS")
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindSQL, e.Kind())
	assert.Equal(t, uint16(1064), e.Code())
	assert.Equal(t, "42000", e.SQLState())
	assert.False(t, e.Fatal())
	assert.Equal(t, StateReady, c.State())

	_, err = c.Exec("SELECT 1")
	require.NoError(t, err)
}

func TestQueryStreamsRowsClassicEOF(t *testing.T) {
	c, server := pipeConn(t)
	c.capabilities &^= _CLIENT_DEPRECATE_EOF

	go func() {
		readFrame(t, server)
		writeFrame(t, server, 1, []byte{2})
		writeFrame(t, server, 2, columnPayload("id", _TYPE_LONG, _BINARY_CHARSET, 0))
		writeFrame(t, server, 3, columnPayload("name", _TYPE_VARSTRING, 45, 0))
		writeFrame(t, server, 4, eofPayload(0, 0))
		writeFrame(t, server, 5, append(lenencField("1"), lenencField("ann")...))
		writeFrame(t, server, 6, append(lenencField("2"), lenencField("bob")...))
		writeFrame(t, server, 7, eofPayload(0, 0))
	}()

	rows, err := c.Query("SELECT id, name FROM t")
	require.NoError(t, err)
	require.Len(t, rows.Columns(), 2)
	assert.Equal(t, "id", rows.Columns()[0].Name)
	assert.Equal(t, StateExecuting, c.State())

	var (
		ids   []int64
		names []string
	)
	for rows.Next() {
		var id int64
		var name string
		require.NoError(t, rows.Scan(&id, &name))
		ids = append(ids, id)
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{1, 2}, ids)
	assert.Equal(t, []string{"ann", "bob"}, names)

	require.NoError(t, rows.Close())
	assert.Equal(t, StateReady, c.State())
}

func TestQueryDeprecateEofTerminator(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		readFrame(t, server)
		writeFrame(t, server, 1, []byte{1})
		writeFrame(t, server, 2, columnPayload("id", _TYPE_LONG, _BINARY_CHARSET, 0))
		// no EOF after columns in this dialect
		writeFrame(t, server, 3, lenencField("7"))
		writeFrame(t, server, 4, eofAsOkPayload(0, 0))
	}()

	rows, err := c.Query("SELECT id FROM t")
	require.NoError(t, err)

	require.True(t, rows.Next())
	var id int64
	require.NoError(t, rows.Scan(&id))
	assert.Equal(t, int64(7), id)

	assert.False(t, rows.Next())
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, StateReady, c.State())
}

func TestCommandWhileStreamOpenIsOutOfSync(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		readFrame(t, server)
		writeFrame(t, server, 1, []byte{1})
		writeFrame(t, server, 2, columnPayload("id", _TYPE_LONG, _BINARY_CHARSET, 0))
		writeFrame(t, server, 3, lenencField("1"))
		writeFrame(t, server, 4, eofAsOkPayload(0, 0))

		readFrame(t, server)
		writeFrame(t, server, 1, okPayload(0, 0, 0, 0))
	}()

	rows, err := c.Query("SELECT id FROM t")
	require.NoError(t, err)

	// a second command with the stream open is refused before any
	// bytes are sent, and the connection survives
	_, err = c.Exec("DELETE FROM t")
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, uint16(ErrCommandOutOfSync), e.Code())
	assert.False(t, e.Fatal())

	require.NoError(t, rows.Close())

	_, err = c.Exec("DELETE FROM t")
	require.NoError(t, err)
}

func TestQueryMultiResultSets(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		readFrame(t, server)
		writeFrame(t, server, 1, []byte{1})
		writeFrame(t, server, 2, columnPayload("a", _TYPE_LONG, _BINARY_CHARSET, 0))
		writeFrame(t, server, 3, lenencField("1"))
		writeFrame(t, server, 4, eofAsOkPayload(_SERVER_MORE_RESULTS_EXISTS, 0))
		writeFrame(t, server, 5, []byte{1})
		writeFrame(t, server, 6, columnPayload("b", _TYPE_LONG, _BINARY_CHARSET, 0))
		writeFrame(t, server, 7, lenencField("2"))
		writeFrame(t, server, 8, eofAsOkPayload(0, 0))
	}()

	rows, err := c.Query("SELECT 1; SELECT 2")
	require.NoError(t, err)

	require.True(t, rows.Next())
	var v int64
	require.NoError(t, rows.Scan(&v))
	assert.Equal(t, int64(1), v)
	assert.False(t, rows.Next())

	require.True(t, rows.NextResultSet())
	assert.Equal(t, "b", rows.Columns()[0].Name)
	require.True(t, rows.Next())
	require.NoError(t, rows.Scan(&v))
	assert.Equal(t, int64(2), v)
	assert.False(t, rows.Next())

	assert.False(t, rows.NextResultSet())
	require.NoError(t, rows.Err())
	assert.Equal(t, StateReady, c.State())
}

func TestRowlessQueryYieldsExhaustedStream(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		readFrame(t, server)
		writeFrame(t, server, 1, okPayload(2, 0, 0, 0))
	}()

	rows, err := c.Query("UPDATE t SET a = 1")
	require.NoError(t, err)
	assert.False(t, rows.Next())
	require.NoError(t, rows.Err())
	assert.Equal(t, uint64(2), c.AffectedRows())
	assert.Equal(t, StateReady, c.State())
}

func TestErrDuringRowStream(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		readFrame(t, server)
		writeFrame(t, server, 1, []byte{1})
		writeFrame(t, server, 2, columnPayload("id", _TYPE_LONG, _BINARY_CHARSET, 0))
		writeFrame(t, server, 3, lenencField("1"))
		writeFrame(t, server, 4, errPayload(1317, "70100", "query interrupted"))
	}()

	rows, err := c.Query("SELECT id FROM t")
	require.NoError(t, err)
	require.True(t, rows.Next())
	assert.False(t, rows.Next())

	require.Error(t, rows.Err())
	var e *Error
	require.ErrorAs(t, rows.Err(), &e)
	assert.Equal(t, uint16(1317), e.Code())

	// a statement-level failure mid-stream leaves the wire in sync
	assert.Equal(t, StateReady, c.State())
}

func TestPingAndSelectSchema(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		seq, payload := readFrame(t, server)
		assert.Equal(t, uint8(0), seq)
		assert.Equal(t, []byte{_COM_PING}, payload)
		writeFrame(t, server, 1, okPayload(0, 0, 0, 0))

		_, payload = readFrame(t, server)
		assert.Equal(t, byte(_COM_INIT_DB), payload[0])
		assert.Equal(t, "sakila", string(payload[1:]))
		writeFrame(t, server, 1, okPayload(0, 0, 0, 0))
	}()

	require.NoError(t, c.Ping())
	require.NoError(t, c.SelectSchema("sakila"))
}

func TestCloseSendsQuit(t *testing.T) {
	c, server := pipeConn(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, payload := readFrame(t, server)
		assert.Equal(t, []byte{_COM_QUIT}, payload)
	}()

	require.NoError(t, c.Close())
	<-done
	assert.Equal(t, StateClosed, c.State())

	// closing again is a no-op; commands are refused
	require.NoError(t, c.Close())
	_, err := c.Exec("SELECT 1")
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, uint16(ErrConnClosed), e.Code())
}

func TestReportWarnings(t *testing.T) {
	c, server := pipeConn(t)
	c.cfg.ReportWarnings = true

	go func() {
		readFrame(t, server)
		writeFrame(t, server, 1, okPayload(1, 0, 0, 2))
	}()

	res, err := c.Exec("INSERT IGNORE INTO t VALUES (1)")
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, uint16(ErrWarning), e.Code())
	assert.Equal(t, uint16(2), e.Warnings())
	require.NotNil(t, res)
	assert.Equal(t, uint64(1), res.AffectedRows())
}
