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
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
)

// The authentication plugins form a closed set selected by the name the
// server sends: each defines a deterministic transform of (password,
// salt) and, for some, a continuation round. Unknown names fail rather
// than guessing.

// supportedAuthPlugin reports whether we can answer a challenge for the
// named plugin at all.
func supportedAuthPlugin(name string) bool {
	switch name {
	case _PLUGIN_NATIVE_PASSWORD, _PLUGIN_CACHING_SHA2,
		_PLUGIN_SHA256_PASSWORD, _PLUGIN_CLEAR_PASSWORD:
		return true
	}
	return false
}

// authResponse computes the first-round authentication response for the
// given plugin. Only the derived hash ever leaves this file; the
// cleartext password is never logged or sent except where the plugin
// demands it over an encrypted channel.
func (c *Conn) authResponse(plugin string, salt []byte) ([]byte, error) {
	switch plugin {
	case _PLUGIN_NATIVE_PASSWORD:
		return scramble41(c.cfg.Password, salt), nil

	case _PLUGIN_CACHING_SHA2:
		return scrambleSHA256(c.cfg.Password, salt), nil

	case _PLUGIN_SHA256_PASSWORD:
		if c.cfg.Password == "" {
			return nil, nil
		}
		if c.tlsActive {
			// cleartext over the encrypted channel
			return append([]byte(c.cfg.Password), 0), nil
		}
		// request the server's RSA public key in the next round
		return []byte{1}, nil

	case _PLUGIN_CLEAR_PASSWORD:
		if !c.tlsActive && c.cfg.Socket == "" {
			return nil, myError(ErrAuthSecureConn, plugin)
		}
		return append([]byte(c.cfg.Password), 0), nil
	}

	return nil, myError(ErrAuthPlugin, plugin)
}

// scramble41 returns the mysql_native_password scramble:
//
//	SHA1(salt <concat> SHA1(SHA1(password))) XOR SHA1(password)
func scramble41(password string, salt []byte) (buf []byte) {
	if len(password) == 0 {
		return
	}

	hash := sha1.New()

	// stage 1: SHA1(password)
	hash.Write([]byte(password))
	stage1 := hash.Sum(nil)

	// stage 2: SHA1(SHA1(password))
	hash.Reset()
	hash.Write(stage1)
	stage2 := hash.Sum(nil)

	hash.Reset()
	hash.Write(salt)
	hash.Write(stage2)
	buf = hash.Sum(nil)

	for i := range buf {
		buf[i] ^= stage1[i]
	}
	return
}

// scrambleSHA256 returns the caching_sha2_password fast-path scramble:
//
//	SHA256(password) XOR SHA256(SHA256(SHA256(password)) <concat> salt)
func scrambleSHA256(password string, salt []byte) (buf []byte) {
	if len(password) == 0 {
		return
	}

	hash := sha256.New()

	hash.Write([]byte(password))
	stage1 := hash.Sum(nil)

	hash.Reset()
	hash.Write(stage1)
	stage2 := hash.Sum(nil)

	hash.Reset()
	hash.Write(stage2)
	hash.Write(salt)
	buf = hash.Sum(nil)

	for i := range buf {
		buf[i] ^= stage1[i]
	}
	return
}

// encryptPassword obfuscates the password with the salt and encrypts it
// with the server's RSA public key, for the full-authentication paths of
// caching_sha2_password and sha256_password over plain connections.
func encryptPassword(password string, salt []byte, key *rsa.PublicKey) ([]byte, error) {
	plain := make([]byte, len(password)+1)
	copy(plain, password)
	for i := range plain {
		plain[i] ^= salt[i%len(salt)]
	}

	enc, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, key, plain, nil)
	if err != nil {
		return nil, myError(ErrAuthRSA, err)
	}
	return enc, nil
}

// parsePublicKey parses the PEM-encoded RSA public key the server sends
// in response to a public key request.
func parsePublicKey(b []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, myError(ErrMalformedPacket, "server public key is not PEM")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, myError(ErrMalformedPacket, "server public key unparsable")
	}
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, myError(ErrMalformedPacket, "server public key is not RSA")
	}
	return key, nil
}
