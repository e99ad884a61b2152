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

// server commands (unexported)
const (
	_ = iota // _COM_SLEEP
	_COM_QUIT
	_COM_INIT_DB
	_COM_QUERY
	_COM_FIELD_LIST
	_COM_CREATE_DB
	_COM_DROP_DB
	_COM_REFRESH
	_COM_SHUTDOWN
	_COM_STATISTICS
	_COM_PROCESS_INFO
	_ // _COM_CONNECT
	_ // _COM_PROCESS_KILL
	_ // _COM_DEBUG
	_COM_PING
	_ // _COM_TIME
	_ // _COM_DELAYED_INSERT
	_ // _COM_CHANGE_USER
	_ // _COM_BINLOG_DUMP
	_ // _COM_TABLE_DUMP
	_ // _COM_CONNECT_OUT
	_ // _COM_REGISTER_SLAVE
	_COM_STMT_PREPARE
	_COM_STMT_EXECUTE
	_COM_STMT_SEND_LONG_DATA
	_COM_STMT_CLOSE
	_COM_STMT_RESET
	_COM_SET_OPTION
	_COM_STMT_FETCH
	_        // _COM_DAEMON
	_COM_END // must always be last
)

// client/server capability flags (unexported)
const (
	_CLIENT_LONG_PASSWORD = 1 << iota
	_CLIENT_FOUND_ROWS
	_CLIENT_LONG_FLAG
	_CLIENT_CONNECT_WITH_DB
	_CLIENT_NO_SCHEMA
	_CLIENT_COMPRESS
	_CLIENT_ODBC
	_CLIENT_LOCAL_FILES
	_CLIENT_IGNORE_SPACE
	_CLIENT_PROTOCOL41
	_CLIENT_INTERACTIVE
	_CLIENT_SSL
	_CLIENT_IGNORE_SIGPIPE
	_CLIENT_TRANSACTIONS
	_CLIENT_RESERVED
	_CLIENT_SECURE_CONNECTION
	_CLIENT_MULTI_STATEMENTS
	_CLIENT_MULTI_RESULTS
	_CLIENT_PS_MULTI_RESULTS
	_CLIENT_PLUGIN_AUTH
	_CLIENT_CONNECT_ATTRS
	_CLIENT_PLUGIN_AUTH_LENENC_CLIENT_DATA
	_CLIENT_CAN_HANDLE_EXPIRED_PASSWORDS
	_CLIENT_SESSION_TRACK
	_CLIENT_DEPRECATE_EOF
	_ // unassigned, 1 << 25
	_CLIENT_ZSTD_COMPRESSION_ALGORITHM
	_
	_
	_CLIENT_PROGRESS // 1 << 29
	_CLIENT_SSL_VERIFY_SERVER_CERT
	_CLIENT_REMEMBER_OPTIONS
)

// server status flags (unexported)
const (
	_SERVER_STATUS_IN_TRANS = 1 << iota
	_SERVER_STATUS_AUTOCOMMIT
	_ // unassigned, 4
	_SERVER_MORE_RESULTS_EXISTS
	_SERVER_STATUS_NO_GOOD_INDEX_USED
	_SERVER_STATUS_NO_INDEX_USED
	_SERVER_STATUS_CURSOR_EXISTS
	_SERVER_STATUS_LAST_ROW_SENT
	_SERVER_STATUS_DB_DROPPED
	_SERVER_STATUS_NO_BACKSHASH_ESCAPES
	_SERVER_STATUS_METADATA_CHANGED
	_SERVER_QUERY_WAS_SLOW
	_SERVER_PS_OUT_PARAMS
	_SERVER_STATUS_IN_TRANS_READONLY
	_SERVER_SESSION_STATE_CHANGED
)

// generic response packets (unexported)
const (
	_PACKET_OK         = 0x00
	_PACKET_AUTH_MORE  = 0x01
	_PACKET_INFILE_REQ = 0xfb
	_PACKET_EOF        = 0xfe
	_PACKET_ERR        = 0xff
)

// column types (unexported)
const (
	_TYPE_DECIMAL = iota
	_TYPE_TINY
	_TYPE_SHORT
	_TYPE_LONG
	_TYPE_FLOAT
	_TYPE_DOUBLE
	_TYPE_NULL
	_TYPE_TIMESTAMP
	_TYPE_LONG_LONG
	_TYPE_INT24
	_TYPE_DATE
	_TYPE_TIME
	_TYPE_DATETIME
	_TYPE_YEAR
	_TYPE_NEW_DATE
	_TYPE_VARCHAR
	_TYPE_BIT
	_TYPE_TIMESTAMP2
	_TYPE_DATETIME2
	_TYPE_TIME2
	// ...
	_TYPE_JSON        = 245
	_TYPE_NEW_DECIMAL = 246
	_TYPE_ENUM        = 247
	_TYPE_SET         = 248
	_TYPE_TINY_BLOB   = 249
	_TYPE_MEDIUM_BLOB = 250
	_TYPE_LONG_BLOB   = 251
	_TYPE_BLOB        = 252
	_TYPE_VARSTRING   = 253
	_TYPE_STRING      = 254
	_TYPE_GEOMETRY    = 255
)

// column definition flags (unexported)
const (
	_FLAG_NOT_NULL = 1 << iota
	_FLAG_PRIMARY_KEY
	_FLAG_UNIQUE_KEY
	_FLAG_MULTIPLE_KEY
	_FLAG_BLOB
	_FLAG_UNSIGNED
	_FLAG_ZEROFILL
	_FLAG_BINARY
	_FLAG_ENUM
	_FLAG_AUTO_INCREMENT
	_FLAG_TIMESTAMP
	_FLAG_SET
)

// authentication plugins
const (
	_PLUGIN_NATIVE_PASSWORD = "mysql_native_password"
	_PLUGIN_CACHING_SHA2    = "caching_sha2_password"
	_PLUGIN_SHA256_PASSWORD = "sha256_password"
	_PLUGIN_CLEAR_PASSWORD  = "mysql_clear_password"
	_PLUGIN_OLD_PASSWORD    = "mysql_old_password"
)

// caching_sha2_password exchange status bytes
const (
	_CACHING_SHA2_REQUEST_PUBLIC_KEY = 2
	_CACHING_SHA2_FAST_AUTH_SUCCESS  = 3
	_CACHING_SHA2_PERFORM_FULL_AUTH  = 4
)

// character set ids, by name as accepted in the DSN
var collationIds = map[string]uint8{
	"big5":    1,
	"latin1":  8,
	"utf8":    33,
	"binary":  63,
	"utf8mb4": 45, // utf8mb4_general_ci
}

const _DEFAULT_COLLATION = "utf8mb4"

// protocol limits
const (
	_MAX_PAYLOAD_LENGTH = 1<<24 - 1 // maximum single-frame payload, 0xffffff
	_HEADER_SIZE        = 4         // 3-byte length + 1-byte sequence number
	_INFILE_CHUNK_SIZE  = 16 * 1024 // LOCAL INFILE read/write granularity
	_MIN_PROTOCOL_41    = 10        // protocol version we speak
)
