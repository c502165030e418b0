// Package tlsfetch retrieves the certificate chain a host presents during a
// TLS handshake. crypto/tls exposes the full chain via ConnectionState, not
// just the leaf, so no manual AIA issuer-URL walk is needed to reconstruct
// intermediates.
package tlsfetch

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"
)

const dialTimeout = 5 * time.Second

// GetChain opens a TCP connection to host:port, negotiates TLS with SNI set
// to host, and returns the server's presented certificate chain in
// leaf-first order. Certificate validation is intentionally disabled —
// downstream checks need the chain from expired, revoked, or
// hostname-mismatched servers too — so GetChain never fails because of what
// the chain contains. It returns a nil slice (never an error) on network or
// handshake failure; callers must treat an empty chain as a hard-fail.
func GetChain(host string, port int) []*x509.Certificate {
	addr := fmt.Sprintf("%s:%d", host, port)

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true,
	})
	if err != nil {
		return nil
	}
	defer conn.Close()

	state := conn.ConnectionState()
	return state.PeerCertificates
}
