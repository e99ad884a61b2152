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

// Session state accessors. The counters reflect the most recently
// parsed OK/EOF packet; they are overwritten by every command.

// AffectedRows returns the row count of the last statement.
func (c *Conn) AffectedRows() uint64 {
	return c.affectedRows
}

// LastInsertId returns the generated id of the last statement.
func (c *Conn) LastInsertId() uint64 {
	return c.lastInsertId
}

// Warnings returns the warning count of the last statement.
func (c *Conn) Warnings() uint16 {
	return c.warnings
}

// StatusFlags returns the raw server status bits of the last OK/EOF.
func (c *Conn) StatusFlags() uint16 {
	return c.statusFlags
}

// InTransaction reports whether the session has an open transaction.
func (c *Conn) InTransaction() bool {
	return c.statusFlags&_SERVER_STATUS_IN_TRANS != 0
}

// Autocommit reports whether the session is in autocommit mode.
func (c *Conn) Autocommit() bool {
	return c.statusFlags&_SERVER_STATUS_AUTOCOMMIT != 0
}

// MoreResults reports whether the server announced further result sets
// for the current command.
func (c *Conn) MoreResults() bool {
	return c.statusFlags&_SERVER_MORE_RESULTS_EXISTS != 0
}

// TLSActive reports whether the connection was upgraded to TLS during
// the handshake.
func (c *Conn) TLSActive() bool {
	return c.tlsActive
}

// Capabilities returns the negotiated capability flags (the
// intersection of what the client requested and the server offered).
func (c *Conn) Capabilities() uint32 {
	return c.capabilities
}
