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

// Transactions are plain statements; the server tracks the open
// transaction in the status flags of every OK packet.

// Begin starts a transaction on the session.
func (c *Conn) Begin() error {
	_, err := c.Exec("START TRANSACTION")
	return err
}

// Commit commits the open transaction.
func (c *Conn) Commit() error {
	_, err := c.Exec("COMMIT")
	return err
}

// Rollback rolls back the open transaction.
func (c *Conn) Rollback() error {
	_, err := c.Exec("ROLLBACK")
	return err
}

// SetAutocommit toggles the session autocommit mode.
func (c *Conn) SetAutocommit(on bool) error {
	if on {
		_, err := c.Exec("SET autocommit=1")
		return err
	}
	_, err := c.Exec("SET autocommit=0")
	return err
}
