package certinspect_test

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"
	"time"

	"github.com/qrguard/broker/internal/certinspect"
)

func TestMetadataScore_FreshCertPenalized(t *testing.T) {
	now := time.Now().UTC()
	cert := &x509.Certificate{
		NotBefore: now.Add(-time.Hour),
		NotAfter:  now.Add(365 * 24 * time.Hour),
		Issuer:    pkix.Name{CommonName: "Some CA"},
		Subject:   pkix.Name{CommonName: "example.com"},
	}
	p := certinspect.MetadataScore(cert, now)
	if p.Deduction != 15 {
		t.Errorf("Deduction = %d, want 15", p.Deduction)
	}
	if p.ForceZero {
		t.Error("expected ForceZero = false for non-self-signed cert")
	}
}

func TestMetadataScore_ImminentExpiryPenalized(t *testing.T) {
	now := time.Now().UTC()
	cert := &x509.Certificate{
		NotBefore: now.Add(-365 * 24 * time.Hour),
		NotAfter:  now.Add(10 * 24 * time.Hour),
		Issuer:    pkix.Name{CommonName: "Some CA"},
		Subject:   pkix.Name{CommonName: "example.com"},
	}
	p := certinspect.MetadataScore(cert, now)
	if p.Deduction != 10 {
		t.Errorf("Deduction = %d, want 10", p.Deduction)
	}
}

func TestMetadataScore_BothPenaltiesStack(t *testing.T) {
	now := time.Now().UTC()
	cert := &x509.Certificate{
		NotBefore: now.Add(-time.Hour),
		NotAfter:  now.Add(10 * 24 * time.Hour),
		Issuer:    pkix.Name{CommonName: "Some CA"},
		Subject:   pkix.Name{CommonName: "example.com"},
	}
	p := certinspect.MetadataScore(cert, now)
	if p.Deduction != 25 {
		t.Errorf("Deduction = %d, want 25", p.Deduction)
	}
}

func TestMetadataScore_SelfSignedForcesZero(t *testing.T) {
	now := time.Now().UTC()
	name := pkix.Name{CommonName: "self.example.com"}
	cert := &x509.Certificate{
		NotBefore: now.Add(-365 * 24 * time.Hour),
		NotAfter:  now.Add(365 * 24 * time.Hour),
		Issuer:    name,
		Subject:   name,
	}
	p := certinspect.MetadataScore(cert, now)
	if !p.ForceZero {
		t.Error("expected ForceZero = true for self-signed cert")
	}
}

func TestMetadataScore_HealthyCertNoPenalty(t *testing.T) {
	now := time.Now().UTC()
	cert := &x509.Certificate{
		NotBefore: now.Add(-365 * 24 * time.Hour),
		NotAfter:  now.Add(365 * 24 * time.Hour),
		Issuer:    pkix.Name{CommonName: "Some CA"},
		Subject:   pkix.Name{CommonName: "example.com"},
	}
	p := certinspect.MetadataScore(cert, now)
	if p.Deduction != 0 || p.ForceZero {
		t.Errorf("expected no penalties, got Deduction=%d ForceZero=%v", p.Deduction, p.ForceZero)
	}
}
