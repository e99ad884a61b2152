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

// Rows is a forward-only stream over the result set(s) of one command.
// Row packets are read from the wire on demand; nothing is buffered
// beyond the current row. The stream holds the connection's single
// request/response slot, so it must be exhausted or closed before the
// next command.
type Rows struct {
	c       *Conn
	binary  bool // binary protocol row encoding (prepared statements)
	columns []Column
	row     []byte // raw payload of the current row, nil before first Next
	err     error
	done    bool // current result set exhausted
	more    bool // server announced another result set
	closed  bool
}

// initRows starts a result-set stream whose column-count packet has
// already been read.
func (c *Conn) initRows(b []byte, binaryRows bool) (*Rows, error) {
	rows := &Rows{c: c, binary: binaryRows}

	if b[0] == _PACKET_OK {
		// rowless statement; the stream is born exhausted
		res, err := c.parseOkPacket(b)
		if err != nil {
			return nil, err
		}
		rows.done = true
		rows.more = res.statusFlags&_SERVER_MORE_RESULTS_EXISTS != 0
		if !rows.more {
			rows.closed = true
			c.endCommand()
			return rows, nil
		}
		c.rows = rows
		return rows, nil
	}

	count, n, err := getLenencInt(b)
	if err != nil || n != len(b) {
		return nil, c.fault(myError(ErrMalformedPacket, "column count"))
	}

	if rows.columns, err = c.readColumns(count); err != nil {
		return nil, err
	}

	c.rows = rows
	return rows, nil
}

// emptyRows returns an exhausted stream, for statements that produced
// no result set at all.
func (c *Conn) emptyRows() *Rows {
	c.endCommand()
	return &Rows{c: c, done: true, closed: true}
}

// Columns returns the column metadata of the current result set.
func (r *Rows) Columns() []Column {
	return r.columns
}

// Err returns the error, if any, that ended the stream early.
func (r *Rows) Err() error {
	return r.err
}

// Next advances to the next row of the current result set. It returns
// false when the set is exhausted or the stream failed; distinguish the
// two with Err.
func (r *Rows) Next() bool {
	if r.closed || r.done || r.err != nil {
		return false
	}

	b, err := r.c.readPacket()
	if err != nil {
		r.fail(err)
		return false
	}
	if len(b) == 0 {
		r.fail(r.c.fault(myError(ErrMalformedPacket, "empty row")))
		return false
	}

	if b[0] == _PACKET_ERR {
		r.fail(r.c.parseErrPacket(b))
		return false
	}

	if r.c.isEOFPacket(b) {
		if err = r.c.parseResultSetTerminator(b); err != nil {
			r.fail(err)
			return false
		}
		r.done = true
		r.more = r.c.statusFlags&_SERVER_MORE_RESULTS_EXISTS != 0
		if !r.more {
			r.release()
		}
		return false
	}

	r.row = b
	return true
}

// NextResultSet discards the remainder of the current result set and
// advances to the next one, if the server announced more.
func (r *Rows) NextResultSet() bool {
	if r.closed || r.err != nil {
		return false
	}

	for !r.done {
		if !r.Next() && r.err != nil {
			return false
		}
	}

	if !r.more || r.closed {
		return false
	}

	b, err := r.c.readPacket()
	if err != nil {
		r.fail(err)
		return false
	}
	if len(b) == 0 {
		r.fail(r.c.fault(myError(ErrMalformedPacket, "empty response")))
		return false
	}

	if b[0] == _PACKET_ERR {
		r.fail(r.c.parseErrPacket(b))
		return false
	}

	if b[0] == _PACKET_OK {
		res, err := r.c.parseOkPacket(b)
		if err != nil {
			r.fail(err)
			return false
		}
		r.columns = nil
		r.row = nil
		r.done = true
		r.more = res.statusFlags&_SERVER_MORE_RESULTS_EXISTS != 0
		if !r.more {
			r.release()
		}
		return true
	}

	count, n, err := getLenencInt(b)
	if err != nil || n != len(b) {
		r.fail(r.c.fault(myError(ErrMalformedPacket, "column count")))
		return false
	}

	columns, err := r.c.readColumns(count)
	if err != nil {
		r.fail(err)
		return false
	}

	r.columns = columns
	r.row = nil
	r.done = false
	r.more = false
	return true
}

// Scan decodes the current row into the given destinations, one per
// column. Next must have returned true.
func (r *Rows) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if r.row == nil || r.closed {
		return myError(ErrCursor)
	}
	if len(dest) != len(r.columns) {
		return myError(ErrParamCount, len(r.columns), len(dest))
	}

	values, err := r.Values()
	if err != nil {
		return err
	}
	for i, d := range dest {
		if err = assignValue(d, values[i], &r.columns[i]); err != nil {
			return err
		}
	}
	return nil
}

// Values decodes the current row into its natural Go types.
func (r *Rows) Values() ([]interface{}, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.row == nil || r.closed {
		return nil, myError(ErrCursor)
	}
	if r.binary {
		return r.c.parseBinaryRow(r.row, r.columns)
	}
	return r.c.parseTextRow(r.row, r.columns)
}

// Close drains whatever remains of the stream, across result sets, and
// releases the connection for the next command.
func (r *Rows) Close() error {
	if r.closed {
		return r.err
	}

	for {
		for !r.done {
			if !r.Next() && r.err != nil {
				return r.err
			}
		}
		if !r.more {
			break
		}
		if !r.NextResultSet() {
			break
		}
	}

	r.release()
	return r.err
}

// fail records the stream error. Statement-level errors end the stream
// but leave the connection in sync; fatal errors have already faulted
// the connection.
func (r *Rows) fail(err error) {
	r.err = err
	r.release()
}

// release gives the request/response slot back to the connection.
func (r *Rows) release() {
	if r.closed {
		return
	}
	r.closed = true
	r.row = nil
	if r.c.rows == r {
		r.c.rows = nil
	}
	r.c.endCommand()
}
