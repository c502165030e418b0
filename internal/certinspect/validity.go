package certinspect

import (
	"crypto/x509"
	"time"
)

// InValidityWindow reports whether now (compared in UTC) falls within
// cert's NotBefore/NotAfter window, inclusive.
func InValidityWindow(cert *x509.Certificate, now time.Time) bool {
	now = now.UTC()
	return !now.Before(cert.NotBefore.UTC()) && !now.After(cert.NotAfter.UTC())
}

// IsSelfSigned reports whether cert's issuer and subject are identical,
// the name-level heuristic for a self-signed certificate.
func IsSelfSigned(cert *x509.Certificate) bool {
	return cert.Issuer.String() == cert.Subject.String()
}
