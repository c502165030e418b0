package certinspect

import (
	"crypto/x509"
	"time"
)

// MetadataPenalty holds the deductions produced by MetadataScore.
type MetadataPenalty struct {
	// Deduction is the amount to subtract from the running verification
	// score, before any ForceZero is applied.
	Deduction int
	// ForceZero means the certificate is self-signed and the score must be
	// driven to zero regardless of any other deduction.
	ForceZero bool
	Reasons   []string
}

// MetadataScore evaluates cert's freshness, remaining validity, and
// self-signed status against now, producing the soft-check penalties used
// by step 6 of the verification engine.
func MetadataScore(cert *x509.Certificate, now time.Time) MetadataPenalty {
	now = now.UTC()
	var p MetadataPenalty

	age := now.Sub(cert.NotBefore.UTC())
	if age < 7*24*time.Hour {
		p.Deduction += 15
		p.Reasons = append(p.Reasons, "Possible phishing: certificate issued less than 7 days ago")
	}

	remaining := cert.NotAfter.UTC().Sub(now)
	if remaining < 30*24*time.Hour {
		p.Deduction += 10
		p.Reasons = append(p.Reasons, "Certificate expires in less than 30 days")
	}

	if IsSelfSigned(cert) {
		p.ForceZero = true
		p.Reasons = append(p.Reasons, "Certificate is self-signed")
	}

	return p
}
