package certinspect

import (
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"
)

const crlTimeout = 5 * time.Second

// CheckCRL fetches leaf's CRL distribution point, if any, and reports
// whether leaf's serial number appears among the list's revoked entries.
// Any fetch or parse failure is inconclusive, returned via err, and must
// not be treated as a positive revocation finding by the caller.
func CheckCRL(leaf *x509.Certificate) (revoked bool, err error) {
	if len(leaf.CRLDistributionPoints) == 0 {
		return false, fmt.Errorf("certinspect: no CRL distribution point advertised")
	}

	client := &http.Client{Timeout: crlTimeout}

	var lastErr error
	for _, dp := range leaf.CRLDistributionPoints {
		resp, err := client.Get(dp)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		crl, err := x509.ParseRevocationList(body)
		if err != nil {
			lastErr = err
			continue
		}

		for _, entry := range crl.RevokedCertificateEntries {
			if entry.SerialNumber != nil && entry.SerialNumber.Cmp(leaf.SerialNumber) == 0 {
				return true, nil
			}
		}
		return false, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("certinspect: no CRL distribution point reachable")
	}
	return false, lastErr
}
