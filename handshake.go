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
	"os"
	"runtime"
)

//<!-- connection phase packets -->

// parseGreetingPacket parses the handshake initialization packet
// received from the server. Everything extracted here is immutable for
// the life of the connection.
func (c *Conn) parseGreetingPacket(b []byte) error {
	var (
		off, n         int
		authData       []byte // authentication plugin data (salt)
		authDataLength int
		authDataOff1   int
		authDataOff2   int
	)

	if len(b) < 1 {
		return myError(ErrMalformedPacket, "empty greeting")
	}

	c.protocolVersion = b[off]
	off++
	if c.protocolVersion != _MIN_PROTOCOL_41 {
		return myError(ErrMalformedPacket, "unsupported protocol version")
	}

	c.serverVersion, n = getNullTerminatedString(b[off:]) // null-terminated
	off += n

	if len(b) < off+4+8+1+2 {
		return myError(ErrMalformedPacket, "truncated greeting")
	}

	c.connectionId = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4

	// auth-plugin-data-part-1 (8 bytes): note the offset and length
	authDataOff1 = off
	authDataLength = 8
	off += 8

	off++ // [00] filler

	// capability flags (lower 2 bytes)
	c.serverCapabilities = uint32(binary.LittleEndian.Uint16(b[off : off+2]))
	off += 2

	if len(b) > off {
		if len(b) < off+1+2+2+1+10 {
			return myError(ErrMalformedPacket, "truncated greeting")
		}

		c.serverCharset = b[off]
		off++

		c.statusFlags = binary.LittleEndian.Uint16(b[off : off+2])
		off += 2

		// capability flags (upper 2 bytes)
		c.serverCapabilities |= uint32(binary.LittleEndian.Uint16(b[off:off+2])) << 16
		off += 2

		if c.serverCapabilities&_CLIENT_PLUGIN_AUTH != 0 {
			authDataLength = int(b[off])
			off++
		} else {
			off++ // [00]
		}

		off += 10 // reserved (all [00])

		if c.serverCapabilities&_CLIENT_SECURE_CONNECTION != 0 {
			// auth-plugin-data-part-2, length max(13, authDataLength-8)
			part2 := authDataLength - 8
			if part2 < 13 {
				part2 = 13
			}
			authDataOff2 = off
			if len(b) < off+part2 {
				return myError(ErrMalformedPacket, "truncated auth plugin data")
			}
			off += part2
			authDataLength = 8 + part2 - 1 // ignore the trailing 0x00 byte
		}
		authData = make([]byte, authDataLength)
		copy(authData[0:8], b[authDataOff1:authDataOff1+8])
		if authDataLength > 8 {
			copy(authData[8:], b[authDataOff2:authDataOff2+(authDataLength-8)])
		}
		c.authPluginData = authData

		if c.serverCapabilities&_CLIENT_PLUGIN_AUTH != 0 {
			c.authPluginName, _ = getNullTerminatedString(b[off:])
		}
	} else {
		c.authPluginData = make([]byte, 8)
		copy(c.authPluginData, b[authDataOff1:authDataOff1+8])
	}

	if c.authPluginName == "" {
		c.authPluginName = _PLUGIN_NATIVE_PASSWORD
	}
	return nil
}

// clientAttributes returns the connection attributes sent under
// CLIENT_CONNECT_ATTRS, with the caller-configured attributes merged
// over the defaults.
func (c *Conn) clientAttributes() map[string]string {
	attrs := map[string]string{
		"_client_name": "brokuene-mysql",
		"_os":          runtime.GOOS,
		"_platform":    runtime.GOARCH,
		"_pid":         itoa(os.Getpid()),
	}
	for k, v := range c.cfg.Attributes {
		attrs[k] = v
	}
	return attrs
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// createHandshakeResponsePacket generates the handshake response packet.
func (c *Conn) createHandshakeResponsePacket(authData []byte) ([]byte, error) {
	payloadLength := 4 + 4 + 1 + 23
	payloadLength += c.handshakeResponse2Length(len(authData))

	b, err := c.buff.Reset(_HEADER_SIZE + payloadLength)
	if err != nil {
		return nil, err
	}

	off := _HEADER_SIZE // placeholder for protocol packet header
	off += c.populateHandshakeResponse1(b[off:])
	off += c.populateHandshakeResponse2(b[off:], authData)

	return b[0:off], nil
}

// createSSLRequestPacket generates the short SSL request packet (the
// first part of the handshake response). It is sent over the plain
// connection, after which the stream switches to TLS.
func (c *Conn) createSSLRequestPacket() ([]byte, error) {
	payloadLength := 4 + 4 + 1 + 23

	b, err := c.buff.Reset(_HEADER_SIZE + payloadLength)
	if err != nil {
		return nil, err
	}
	c.populateHandshakeResponse1(b[_HEADER_SIZE:])

	return b, nil
}

// populateHandshakeResponse1 fills in the fixed first part of the
// handshake response (before the user name) and returns the bytes
// written.
func (c *Conn) populateHandshakeResponse1(b []byte) int {
	var off int

	// negotiated capability flags
	binary.LittleEndian.PutUint32(b[off:off+4], c.capabilities)
	off += 4

	binary.LittleEndian.PutUint32(b[off:off+4], c.cfg.maxPacketSize)
	off += 4

	b[off] = c.cfg.collation
	off++

	off += 23 // reserved (all [0])

	return off
}

// populateHandshakeResponse2 fills in the variable second part of the
// handshake response (starting at the user name) and returns the bytes
// written.
func (c *Conn) populateHandshakeResponse2(b []byte, authData []byte) int {
	var off int

	off += putNullTerminatedString(b[off:], c.cfg.Username)

	if c.capabilities&_CLIENT_PLUGIN_AUTH_LENENC_CLIENT_DATA != 0 {
		off += putLenencString(b[off:], string(authData))
	} else if c.capabilities&_CLIENT_SECURE_CONNECTION != 0 {
		b[off] = byte(len(authData))
		off++
		off += copy(b[off:], authData)
	} else {
		off += putNullTerminatedString(b[off:], string(authData))
	}

	if c.capabilities&_CLIENT_CONNECT_WITH_DB != 0 {
		off += putNullTerminatedString(b[off:], c.cfg.Schema)
	}

	if c.capabilities&_CLIENT_PLUGIN_AUTH != 0 {
		off += putNullTerminatedString(b[off:], c.authPluginName)
	}

	if c.capabilities&_CLIENT_CONNECT_ATTRS != 0 {
		attrs := c.clientAttributes()
		var attrLen int
		for k, v := range attrs {
			attrLen += lenencStringSize(k) + lenencStringSize(v)
		}
		off += putLenencInt(b[off:], uint64(attrLen))
		for k, v := range attrs {
			off += putLenencString(b[off:], k)
			off += putLenencString(b[off:], v)
		}
	}

	if c.capabilities&_CLIENT_ZSTD_COMPRESSION_ALGORITHM != 0 {
		b[off] = byte(c.cfg.CompressionLevel)
		off++
	}

	return off
}

// handshakeResponse2Length returns the payload length of the handshake
// response packet starting at the user name.
func (c *Conn) handshakeResponse2Length(authLength int) (length int) {
	length += len(c.cfg.Username) + 1 // null-terminated username

	if c.capabilities&_CLIENT_PLUGIN_AUTH_LENENC_CLIENT_DATA != 0 {
		length += lenencIntSize(uint64(authLength)) + authLength
	} else {
		length += 1 + authLength
	}

	if c.capabilities&_CLIENT_CONNECT_WITH_DB != 0 {
		length += len(c.cfg.Schema) + 1
	}

	if c.capabilities&_CLIENT_PLUGIN_AUTH != 0 {
		length += len(c.authPluginName) + 1
	}

	if c.capabilities&_CLIENT_CONNECT_ATTRS != 0 {
		attrs := c.clientAttributes()
		var attrLen int
		for k, v := range attrs {
			attrLen += lenencStringSize(k) + lenencStringSize(v)
		}
		length += lenencIntSize(uint64(attrLen)) + attrLen
	}

	if c.capabilities&_CLIENT_ZSTD_COMPRESSION_ALGORITHM != 0 {
		length++ // compression level
	}
	return
}

// handshake performs the connection phase: greeting, capability
// negotiation, optional TLS upgrade, authentication (with at most one
// plugin switch), and the switch to the compressed protocol once the
// server accepts the credentials.
func (c *Conn) handshake() error {
	c.state = StateAuthenticating

	b, err := c.readPacket()
	if err != nil {
		return err
	}

	if len(b) > 0 && b[0] == _PACKET_ERR {
		// the server can reject before the greeting (host blocked,
		// too many connections)
		return authError(c.parseErrPacket(b))
	}

	if err = c.parseGreetingPacket(b); err != nil {
		return err
	}

	// capabilities can only be negotiated after the greeting: the
	// session gets the intersection of what both sides support
	c.capabilities = c.cfg.clientCapabilities & c.serverCapabilities

	useTLS := false
	switch c.cfg.TLS {
	case TLSDisabled:
	case TLSPreferred:
		useTLS = c.serverCapabilities&_CLIENT_SSL != 0
		if !useTLS {
			c.capabilities &^= _CLIENT_SSL
		}
	default: // required, verify-ca, verify-full
		if c.serverCapabilities&_CLIENT_SSL == 0 {
			return myError(ErrTLSSupport)
		}
		useTLS = true
	}

	useCompression := false
	if c.cfg.Compress {
		switch {
		case c.cfg.CompressionAlgorithm == CompressionZstd &&
			c.serverCapabilities&_CLIENT_ZSTD_COMPRESSION_ALGORITHM != 0:
			useCompression = true
			c.capabilities &^= _CLIENT_COMPRESS
		case c.serverCapabilities&_CLIENT_COMPRESS != 0:
			useCompression = true
			c.capabilities &^= _CLIENT_ZSTD_COMPRESSION_ALGORITHM
		default:
			return myError(ErrCompressionSupport, c.cfg.CompressionAlgorithm)
		}
	}

	if !supportedAuthPlugin(c.authPluginName) {
		// answer with native and let the server switch us if the
		// account really needs the advertised plugin
		c.authPluginName = _PLUGIN_NATIVE_PASSWORD
	}

	if useTLS {
		// send the short SSL request first, then switch the stream
		if b, err = c.createSSLRequestPacket(); err != nil {
			return err
		}
		if err = c.writePacket(b); err != nil {
			return err
		}
		if err = c.tlsUpgrade(); err != nil {
			return err
		}
	}

	authData, err := c.authResponse(c.authPluginName, c.authPluginData)
	if err != nil {
		return err
	}

	if b, err = c.createHandshakeResponsePacket(authData); err != nil {
		return err
	}
	if err = c.writePacket(b); err != nil {
		return err
	}

	if err = c.handleAuthResult(); err != nil {
		return err
	}

	if useCompression {
		algorithm := c.cfg.CompressionAlgorithm
		level := c.cfg.CompressionLevel
		if c.capabilities&_CLIENT_ZSTD_COMPRESSION_ALGORITHM == 0 {
			// the zlib dialect was negotiated; a zstd level above
			// zlib's range would fail on the first compressed write
			algorithm = CompressionZlib
			if level > 9 {
				level = 9
			}
		}
		rw, err := newCompressRW(c, algorithm, level)
		if err != nil {
			return err
		}
		c.rw = rw
	}

	c.state = StateReady
	logger.WithFields(connFields(c)).WithField("server", c.serverVersion).
		Debug("connection established")
	return nil
}

// handleAuthResult drives the challenge/response tail of the connection
// phase: OK, ERR, one tolerated auth-switch, or plugin continuation
// ("more data") rounds.
func (c *Conn) handleAuthResult() error {
	plugin := c.authPluginName
	salt := c.authPluginData
	switched := false

	for {
		b, err := c.readPacket()
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return myError(ErrInvalidPacket)
		}

		switch b[0] {
		case _PACKET_OK:
			c.parseOkPacket(b)
			return nil

		case _PACKET_ERR:
			return authError(c.parseErrPacket(b))

		case _PACKET_EOF: // auth switch request
			if len(b) == 1 {
				// legacy request to downgrade to mysql_old_password
				return myError(ErrAuthPlugin, _PLUGIN_OLD_PASSWORD)
			}
			if switched {
				return myError(ErrAuthSwitch)
			}
			switched = true

			name, n := getNullTerminatedString(b[1:])
			if !supportedAuthPlugin(name) {
				return myError(ErrAuthPlugin, name)
			}
			salt = b[1+n:]
			if len(salt) > 0 && salt[len(salt)-1] == 0 {
				salt = salt[:len(salt)-1]
			}
			plugin = name
			c.authPluginName = name
			c.authPluginData = salt

			logger.WithFields(connFields(c)).WithField("plugin", name).
				Debug("authentication plugin switch")

			authData, err := c.authResponse(plugin, salt)
			if err != nil {
				return err
			}
			if err = c.writeAuthPacket(authData); err != nil {
				return err
			}

		case _PACKET_AUTH_MORE:
			if err := c.handleAuthMoreData(plugin, salt, b[1:]); err != nil {
				return err
			}

		default:
			return myError(ErrInvalidPacket)
		}
	}
}

// handleAuthMoreData performs the plugin-specific continuation round.
// caching_sha2_password uses it to signal the result of the fast path
// and to run the full credential exchange when its cache is stale;
// sha256_password uses it to deliver the server's RSA public key.
func (c *Conn) handleAuthMoreData(plugin string, salt, data []byte) error {
	switch plugin {
	case _PLUGIN_CACHING_SHA2:
		if len(data) == 1 {
			switch data[0] {
			case _CACHING_SHA2_FAST_AUTH_SUCCESS:
				// the OK packet follows
				return nil
			case _CACHING_SHA2_PERFORM_FULL_AUTH:
				return c.cachingSha2FullAuth(salt)
			}
		}
		return myError(ErrInvalidPacket)

	case _PLUGIN_SHA256_PASSWORD:
		key, err := parsePublicKey(data)
		if err != nil {
			return err
		}
		enc, err := encryptPassword(c.cfg.Password, salt, key)
		if err != nil {
			return err
		}
		return c.writeAuthPacket(enc)
	}

	return myError(ErrInvalidPacket)
}

// cachingSha2FullAuth runs the caching_sha2_password full
// authentication: cleartext over a secure channel, otherwise RSA with
// the server's public key.
func (c *Conn) cachingSha2FullAuth(salt []byte) error {
	if c.tlsActive || c.cfg.Socket != "" {
		return c.writeAuthPacket(append([]byte(c.cfg.Password), 0))
	}

	// request the server's RSA public key
	if err := c.writeAuthPacket([]byte{_CACHING_SHA2_REQUEST_PUBLIC_KEY}); err != nil {
		return err
	}

	b, err := c.readPacket()
	if err != nil {
		return err
	}
	if len(b) < 2 || b[0] != _PACKET_AUTH_MORE {
		return myError(ErrInvalidPacket)
	}

	key, err := parsePublicKey(b[1:])
	if err != nil {
		return err
	}
	enc, err := encryptPassword(c.cfg.Password, salt, key)
	if err != nil {
		return err
	}
	return c.writeAuthPacket(enc)
}

// writeAuthPacket sends raw authentication data as the payload of the
// next packet in the connection-phase exchange.
func (c *Conn) writeAuthPacket(data []byte) error {
	b, err := c.buff.Reset(_HEADER_SIZE + len(data))
	if err != nil {
		return err
	}
	copy(b[_HEADER_SIZE:], data)
	return c.writePacket(b)
}
