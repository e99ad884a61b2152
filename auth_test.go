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
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var authTestSalt = []byte("abcdefghijklmnopqrst")

func TestScramble41(t *testing.T) {
	got := scramble41("secret", authTestSalt)
	assert.Equal(t,
		"8817c50fa779daef010ee7577825b0847df9842e",
		hex.EncodeToString(got))
}

func TestScramble41EmptyPassword(t *testing.T) {
	assert.Empty(t, scramble41("", authTestSalt))
}

func TestScrambleSHA256(t *testing.T) {
	got := scrambleSHA256("secret", authTestSalt)
	assert.Equal(t,
		"c76e2898612a4cf042c77fa8c4702c4c64c0c2c557c53c4d75595aaa6abae809",
		hex.EncodeToString(got))
}

func TestScrambleSHA256EmptyPassword(t *testing.T) {
	assert.Empty(t, scrambleSHA256("", authTestSalt))
}

func TestSupportedAuthPlugin(t *testing.T) {
	assert.True(t, supportedAuthPlugin(_PLUGIN_NATIVE_PASSWORD))
	assert.True(t, supportedAuthPlugin(_PLUGIN_CACHING_SHA2))
	assert.True(t, supportedAuthPlugin(_PLUGIN_SHA256_PASSWORD))
	assert.True(t, supportedAuthPlugin(_PLUGIN_CLEAR_PASSWORD))
	assert.False(t, supportedAuthPlugin("mysql_old_password"))
	assert.False(t, supportedAuthPlugin("dialog"))
}

func TestAuthResponseClearRequiresSecureChannel(t *testing.T) {
	c := &Conn{cfg: &Config{Password: "secret"}}
	_, err := c.authResponse(_PLUGIN_CLEAR_PASSWORD, authTestSalt)
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindAuth, e.Kind())

	c.tlsActive = true
	resp, err := c.authResponse(_PLUGIN_CLEAR_PASSWORD, authTestSalt)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret\x00"), resp)
}

func TestAuthResponseSha256PlaintextOverTLS(t *testing.T) {
	c := &Conn{cfg: &Config{Password: "secret"}, tlsActive: true}
	resp, err := c.authResponse(_PLUGIN_SHA256_PASSWORD, authTestSalt)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret\x00"), resp)
}

func TestAuthResponseSha256RequestsPublicKey(t *testing.T) {
	c := &Conn{cfg: &Config{Password: "secret"}}
	resp, err := c.authResponse(_PLUGIN_SHA256_PASSWORD, authTestSalt)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, resp)
}

func TestEncryptPasswordRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	enc, err := encryptPassword("secret", authTestSalt, &key.PublicKey)
	require.NoError(t, err)
	require.Len(t, enc, 256)

	dec, err := decryptOAEP(key, enc)
	require.NoError(t, err)

	// the plaintext is the NUL-terminated password XORed with the
	// cycled salt
	plain := append([]byte("secret"), 0)
	for i := range plain {
		plain[i] ^= authTestSalt[i%len(authTestSalt)]
	}
	assert.Equal(t, plain, dec)
}

func decryptOAEP(key *rsa.PrivateKey, enc []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha1.New(), nil, key, enc, nil)
}

func TestParsePublicKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	parsed, err := parsePublicKey(pemBytes)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(parsed))
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	_, err := parsePublicKey([]byte("not a pem block"))
	require.Error(t, err)
}
