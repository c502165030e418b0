package certinspect

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"
)

const ocspTimeout = 3 * time.Second

// CheckOCSP probes leaf's OCSP responder, using issuer to build the
// request. It returns revoked=true only on an explicit OCSP "revoked"
// status. A "good" response returns revoked=false with a nil error; an
// "unknown" response or any transport failure is inconclusive and reported
// via err rather than as a revocation finding — per the engine's rule that
// only a positive finding may fail verification.
func CheckOCSP(ctx context.Context, leaf, issuer *x509.Certificate) (revoked bool, err error) {
	if len(leaf.OCSPServer) == 0 {
		return false, fmt.Errorf("certinspect: no OCSP responder advertised")
	}
	if issuer == nil {
		return false, fmt.Errorf("certinspect: issuer certificate unknown")
	}

	reqBytes, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		return false, fmt.Errorf("certinspect: build OCSP request: %w", err)
	}

	var lastErr error
	for _, responderURL := range leaf.OCSPServer {
		revoked, ok, probeErr := probeResponder(ctx, responderURL, reqBytes, issuer)
		if probeErr != nil {
			lastErr = probeErr
			continue
		}
		if ok {
			return revoked, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("certinspect: no OCSP responder returned a usable answer")
	}
	return false, lastErr
}

func probeResponder(ctx context.Context, responderURL string, reqBytes []byte, issuer *x509.Certificate) (revoked bool, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, ocspTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responderURL, bytes.NewReader(reqBytes))
	if err != nil {
		return false, false, err
	}
	req.Header.Set("Content-Type", "application/ocsp-request")

	client := &http.Client{Timeout: ocspTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return false, false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, false, err
	}

	parsed, err := ocsp.ParseResponse(body, issuer)
	if err != nil {
		return false, false, err
	}

	switch parsed.Status {
	case ocsp.Good:
		return false, true, nil
	case ocsp.Revoked:
		return true, true, nil
	default:
		// Unknown or server failure: inconclusive, not a positive finding.
		return false, false, nil
	}
}
