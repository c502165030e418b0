// Package certinspect implements pure certificate checks used by the
// verification engine: hostname matching, validity window, revocation
// (OCSP and CRL), and metadata-based scoring.
package certinspect

import (
	"crypto/x509"
	"strings"
)

// MatchesHostname reports whether cert is valid for host, checking each SAN
// DNSName and falling back to the CN. A single leftmost wildcard label is
// supported: "*.example.com" matches "a.example.com" but neither
// "example.com" nor "a.b.example.com". Matching is case-insensitive.
func MatchesHostname(cert *x509.Certificate, host string) bool {
	host = strings.ToLower(host)

	for _, san := range cert.DNSNames {
		if matchesPattern(strings.ToLower(san), host) {
			return true
		}
	}
	if cn := strings.ToLower(cert.Subject.CommonName); cn != "" {
		if matchesPattern(cn, host) {
			return true
		}
	}
	return false
}

func matchesPattern(pattern, host string) bool {
	if pattern == host {
		return true
	}
	if !strings.HasPrefix(pattern, "*.") {
		return false
	}

	suffix := pattern[1:] // ".example.com"
	if !strings.HasSuffix(host, suffix) {
		return false
	}

	// The wildcard must match exactly one label: the remainder of host
	// before suffix must be a single non-empty label with no further dots.
	label := strings.TrimSuffix(host, suffix)
	return label != "" && !strings.Contains(label, ".")
}
