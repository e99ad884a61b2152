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
	"fmt"
	"time"
)

// Kind partitions errors into the classes a caller can act on
// programmatically: whether the connection is still usable, whether the
// failure happened before any bytes hit the wire, whether a retry can
// help.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindConnection: the transport could not be established or
	// maintained (network, TLS, timeout).
	KindConnection
	// KindAuth: credential rejection, unsupported plugin or exhausted
	// auth-switch retries during the handshake.
	KindAuth
	// KindProtocol: the client and server disagree about the state of
	// the exchange (desynchronization, unexpected packet, unconsumed
	// result stream).
	KindProtocol
	// KindMalformed: a packet violated framing or length-encoding rules.
	KindMalformed
	// KindSQL: the server reported an error for a well-formed exchange.
	KindSQL
	// KindParamCount, KindParamType: local prepared-statement binding
	// precondition failures; nothing was sent.
	KindParamCount
	KindParamType
	// KindPoolExhausted: no pool slot became available within the
	// deadline.
	KindPoolExhausted
	// KindCancelled: the caller's context was cancelled while waiting.
	KindCancelled
	// KindBadConfig: configuration was rejected before any network
	// activity.
	KindBadConfig
)

// Error is the error type produced by this package. Server-side errors
// carry the server error code and SQLSTATE; client-side errors carry one
// of the Err* codes below.
type Error struct {
	kind     Kind
	code     uint16
	sqlState string
	message  string
	warnings uint16
	when     time.Time
	cause    error
}

// client error codes
const (
	ErrWarning = 0
	ErrUnknown = 9000 + iota
	ErrConnection
	ErrRead
	ErrWrite
	ErrTimeout
	ErrTLSSupport
	ErrTLSConnection
	ErrCompressionSupport
	ErrCompression
	ErrInvalidType
	ErrInvalidDSN
	ErrInvalidProperty
	ErrInvalidPropertyValue
	ErrUnknownProperty
	ErrScheme
	ErrCursor
	ErrFile
	ErrInvalidPacket
	ErrNetPacketsOutOfOrder
	ErrNetPacketTooLarge
	ErrMalformedPacket
	ErrCommandOutOfSync
	ErrConnClosed
	ErrConnFaulted
	ErrAuthPlugin
	ErrAuthSwitch
	ErrAuthSecureConn
	ErrAuthRSA
	ErrParamCount
	ErrParamType
	ErrStmtClosed
	ErrPoolExhausted
	ErrPoolClosed
	ErrCancelled
	ErrInfileDisabled
)

var errFormat = map[uint16]string{
	ErrWarning:              "execution of last statement resulted in warning(s)",
	ErrUnknown:              "unknown error",
	ErrConnection:           "can't connect to the server (%v)",
	ErrRead:                 "can't read data from connection (%v)",
	ErrWrite:                "can't write data to connection (%v)",
	ErrTimeout:              "command timed out after %v",
	ErrTLSSupport:           "server does not support TLS connections",
	ErrTLSConnection:        "can't establish TLS connection with the server (%v)",
	ErrCompressionSupport:   "server does not support %s packet compression",
	ErrCompression:          "compression error (%v)",
	ErrInvalidType:          "invalid type (%v)",
	ErrInvalidDSN:           "can't parse data source name (%v)",
	ErrInvalidProperty:      "invalid value for property '%s' (%v)",
	ErrInvalidPropertyValue: "invalid value for property '%s' (%v)",
	ErrUnknownProperty:      "unknown property '%s'",
	ErrScheme:               "unsupported scheme '%s'",
	ErrCursor:               "result stream is closed",
	ErrFile:                 "file operation failed (%v)",
	ErrInvalidPacket:        "invalid/unexpected packet received",
	ErrNetPacketsOutOfOrder: "packets out of order (expected sequence %d, got %d)",
	ErrNetPacketTooLarge:    "protocol packet larger than maximum allowed size",
	ErrMalformedPacket:      "malformed packet (%s)",
	ErrCommandOutOfSync:     "command out of sync; a result stream is still open",
	ErrConnClosed:           "connection is closed",
	ErrConnFaulted:          "connection is faulted and can no longer be used",
	ErrAuthPlugin:           "unsupported authentication plugin '%s'",
	ErrAuthSwitch:           "server requested more than one authentication plugin switch",
	ErrAuthSecureConn:       "authentication plugin '%s' requires a secure (TLS) connection",
	ErrAuthRSA:              "RSA password encryption failed (%v)",
	ErrParamCount:           "statement expects %d parameters, got %d",
	ErrParamType:            "unsupported parameter type %T",
	ErrStmtClosed:           "prepared statement is closed",
	ErrPoolExhausted:        "connection pool exhausted",
	ErrPoolClosed:           "connection pool is closed",
	ErrCancelled:            "operation cancelled",
	ErrInfileDisabled:       "server requested a local file but LocalInfile is disabled",
}

var errKind = map[uint16]Kind{
	ErrWarning:              KindSQL,
	ErrConnection:           KindConnection,
	ErrRead:                 KindConnection,
	ErrWrite:                KindConnection,
	ErrTimeout:              KindConnection,
	ErrTLSSupport:           KindConnection,
	ErrTLSConnection:        KindConnection,
	ErrCompressionSupport:   KindConnection,
	ErrCompression:          KindConnection,
	ErrInvalidType:          KindParamType,
	ErrInvalidDSN:           KindBadConfig,
	ErrInvalidProperty:      KindBadConfig,
	ErrInvalidPropertyValue: KindBadConfig,
	ErrUnknownProperty:      KindBadConfig,
	ErrScheme:               KindBadConfig,
	ErrCursor:               KindProtocol,
	ErrFile:                 KindConnection,
	ErrInvalidPacket:        KindProtocol,
	ErrNetPacketsOutOfOrder: KindProtocol,
	ErrNetPacketTooLarge:    KindMalformed,
	ErrMalformedPacket:      KindMalformed,
	ErrCommandOutOfSync:     KindProtocol,
	ErrConnClosed:           KindConnection,
	ErrConnFaulted:          KindConnection,
	ErrAuthPlugin:           KindAuth,
	ErrAuthSwitch:           KindAuth,
	ErrAuthSecureConn:       KindAuth,
	ErrAuthRSA:              KindAuth,
	ErrParamCount:           KindParamCount,
	ErrParamType:            KindParamType,
	ErrStmtClosed:           KindProtocol,
	ErrPoolExhausted:        KindPoolExhausted,
	ErrPoolClosed:           KindConnection,
	ErrCancelled:            KindCancelled,
	ErrInfileDisabled:       KindBadConfig,
}

func myError(code uint16, a ...interface{}) *Error {
	e := &Error{
		kind:    errKind[code],
		code:    code,
		message: fmt.Sprintf(errFormat[code], a...),
		when:    time.Now(),
	}
	if e.kind == KindUnknown {
		e.kind = KindConnection
	}
	// keep the original error reachable via errors.Unwrap
	for _, v := range a {
		if err, ok := v.(error); ok {
			e.cause = err
			break
		}
	}
	return e
}

// serverError builds a KindSQL error from the fields of an ERR packet.
func serverError(code uint16, sqlState, message string) *Error {
	return &Error{
		kind:     KindSQL,
		code:     code,
		sqlState: sqlState,
		message:  message,
		when:     time.Now(),
	}
}

// authError reclassifies a server ERR packet received during the
// connection phase: the handshake never completed, so the caller should
// treat it as an authentication failure rather than a statement failure.
func authError(e *Error) *Error {
	e.kind = KindAuth
	return e
}

// Error returns the formatted error message. (also required by Go's
// error interface)
func (e *Error) Error() string {
	if e.sqlState != "" {
		return fmt.Sprintf("[mysqld] %d (%s): %s", e.code, e.sqlState, e.message)
	}
	return fmt.Sprintf("[mysql] %d : %s", e.code, e.message)
}

// Kind returns the error class.
func (e *Error) Kind() Kind {
	return e.kind
}

// Code returns the error number. For KindSQL this is the server error
// code; otherwise one of the client Err* codes.
func (e *Error) Code() uint16 {
	return e.code
}

// SQLState returns the SQLSTATE sent by the server, or "" for client
// errors.
func (e *Error) SQLState() string {
	return e.sqlState
}

// Message returns the bare error message.
func (e *Error) Message() string {
	return e.message
}

// When returns the time the error occurred.
func (e *Error) When() time.Time {
	return e.when
}

// Warnings returns the warning count reported alongside the error, if
// any.
func (e *Error) Warnings() uint16 {
	return e.warnings
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Fatal reports whether the error leaves the connection with partial
// protocol state, making it unsafe to reuse. KindSQL errors are not
// fatal: the exchange completed, only the statement failed.
func (e *Error) Fatal() bool {
	switch e.kind {
	case KindMalformed, KindConnection:
		return e.code != ErrConnClosed && e.code != ErrConnFaulted
	case KindProtocol:
		// out-of-sync and closed-cursor misuse are caught before any
		// bytes are sent
		return e.code != ErrCommandOutOfSync && e.code != ErrCursor &&
			e.code != ErrStmtClosed
	}
	return false
}
