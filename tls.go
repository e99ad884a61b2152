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
	"crypto/tls"
	"crypto/x509"
	"os"
)

// tlsConfig maps the configured TLSMode onto a crypto/tls client
// configuration.
func (c *Conn) tlsConfig() (*tls.Config, error) {
	cfg := c.cfg

	config := &tls.Config{}

	switch cfg.TLS {
	case TLSPreferred, TLSRequired:
		// encrypted but unauthenticated; this matches the server's
		// default self-signed certificate deployment
		config.InsecureSkipVerify = true
	case TLSVerifyCA:
		// chain verification against the configured CA, but no
		// hostname check
		config.InsecureSkipVerify = true
		config.VerifyPeerCertificate = c.verifyPeerCA
	case TLSVerifyFull:
		config.ServerName = cfg.TLSServerName
		if config.ServerName == "" {
			config.ServerName = cfg.Host
		}
	}

	if cfg.TLSCA != "" {
		certPool := x509.NewCertPool()
		pemCerts, err := os.ReadFile(cfg.TLSCA)
		if err != nil {
			return nil, myError(ErrTLSConnection, err)
		}
		if !certPool.AppendCertsFromPEM(pemCerts) {
			return nil, myError(ErrInvalidPropertyValue, "TLSCA", "no certificates found")
		}
		config.RootCAs = certPool
	}

	if cfg.TLSCert != "" || cfg.TLSKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, myError(ErrTLSConnection, err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

// verifyPeerCA checks the certificate chain against the configured CA
// pool without a hostname check (TLSVerifyCA mode).
func (c *Conn) verifyPeerCA(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	pool := x509.NewCertPool()

	if len(rawCerts) == 0 {
		return myError(ErrTLSConnection, "server presented no certificate")
	}

	certs := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return err
		}
		certs = append(certs, cert)
	}
	for _, cert := range certs[1:] {
		pool.AddCert(cert)
	}

	roots, err := c.rootCAs()
	if err != nil {
		return err
	}
	_, err = certs[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: pool,
	})
	return err
}

func (c *Conn) rootCAs() (*x509.CertPool, error) {
	if c.cfg.TLSCA == "" {
		return x509.SystemCertPool()
	}
	pool := x509.NewCertPool()
	pemCerts, err := os.ReadFile(c.cfg.TLSCA)
	if err != nil {
		return nil, err
	}
	pool.AppendCertsFromPEM(pemCerts)
	return pool, nil
}

// tlsUpgrade replaces the underlying byte stream with a TLS session.
// The SSL-request short handshake packet must already have been sent.
func (c *Conn) tlsUpgrade() error {
	config, err := c.tlsConfig()
	if err != nil {
		return err
	}

	conn := tls.Client(c.conn, config)
	if err := conn.Handshake(); err != nil {
		return myError(ErrTLSConnection, err)
	}

	// all higher layers keep using c.conn transparently
	c.conn = conn
	c.tlsActive = true
	return nil
}
