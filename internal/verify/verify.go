// Package verify implements the broker's weighted verification engine: a
// deterministic, single-threaded pipeline that scores a claimed website URL
// against the trust-anchor registry, its TLS chain, and revocation status.
package verify

import (
	"context"
	"crypto/x509"
	"net/url"
	"strings"
	"time"

	"github.com/qrguard/broker/internal/certinspect"
	"github.com/qrguard/broker/internal/registry"
	"github.com/qrguard/broker/internal/tlsfetch"
)

// Verdict is the engine's final classification.
type Verdict string

const (
	Trusted Verdict = "TRUSTED"
	Caution Verdict = "CAUTION"
	Unsafe  Verdict = "UNSAFE"
	Error   Verdict = "ERROR"
)

// Details carries the per-step PASS/FAIL/SKIPPED record surfaced to callers.
type Details struct {
	Whitelist     string `json:"whitelist"`
	SSLValid      string `json:"ssl_valid"`
	HostnameMatch string `json:"hostname_match"`
	Revocation    string `json:"revocation"`
	Metadata      string `json:"metadata"`
	IPCorrelation string `json:"ip_correlation"`
}

// Result is the outcome of a single Verify call.
type Result struct {
	Score    int      `json:"score"`
	Verdict  Verdict  `json:"verdict"`
	Logs     []string `json:"logs"`
	Details  Details  `json:"details"`
	WebIP    string   `json:"web_ip,omitempty"`
	MobileIP string   `json:"mobile_ip,omitempty"`
}

// Engine runs the verification pipeline against a trust-anchor registry.
// getChain and now are overridable for tests; production callers use New.
type Engine struct {
	registry *registry.Registry
	getChain func(host string, port int) []*x509.Certificate
	now      func() time.Time
}

// New builds an Engine backed by reg, using the real network for TLS chain
// fetches and the real wall clock.
func New(reg *registry.Registry) *Engine {
	return &Engine{
		registry: reg,
		getChain: tlsfetch.GetChain,
		now:      time.Now,
	}
}

// Verify runs the full weighted pipeline against rawURL. webIP and mobileIP
// are recorded on the result for future IP correlation but do not currently
// influence the score; proximity is not consumed here, only by the
// session/proximity coordinator.
func (e *Engine) Verify(_ context.Context, rawURL, webIP, mobileIP string) Result {
	details := Details{
		Whitelist:     "UNKNOWN",
		SSLValid:      "UNKNOWN",
		HostnameMatch: "UNKNOWN",
		Revocation:    "UNKNOWN",
		Metadata:      "UNKNOWN",
		IPCorrelation: "SKIPPED",
	}

	hostname := extractHostname(rawURL)
	if hostname == "" {
		return Result{
			Score:    0,
			Verdict:  Unsafe,
			Logs:     []string{"Invalid URL"},
			Details:  details,
			WebIP:    webIP,
			MobileIP: mobileIP,
		}
	}

	score := 100
	var logs []string

	// Step 1: trust-anchor registry match. Weight 40, hard fail.
	if e.registry.IsTrusted(rawURL) {
		details.Whitelist = "PASS"
		logs = append(logs, "Domain is in official whitelist.")
	} else {
		details.Whitelist = "FAIL"
		logs = append(logs, "Domain NOT in official whitelist.")
		return build(0, logs, details, webIP, mobileIP)
	}

	// Step 2: TLS chain retrievable. Weight 10, hard fail.
	chain := e.getChain(hostname, 443)
	if len(chain) == 0 {
		details.SSLValid = "FAIL"
		logs = append(logs, "Failed to retrieve SSL certificate.")
		return build(0, logs, details, webIP, mobileIP)
	}
	details.SSLValid = "PASS"
	leaf := chain[0]

	// Step 3: validity window. Hard fail.
	now := e.now()
	if !certinspect.InValidityWindow(leaf, now) {
		details.SSLValid = "FAIL (expired or not yet valid)"
		logs = append(logs, "Certificate validity check failed.")
		return build(0, logs, details, webIP, mobileIP)
	}

	// Step 4: hostname match. Weight 25, hard fail.
	if certinspect.MatchesHostname(leaf, hostname) {
		details.HostnameMatch = "PASS"
		logs = append(logs, "Certificate matches hostname.")
	} else {
		details.HostnameMatch = "FAIL"
		logs = append(logs, "Certificate does NOT match hostname.")
		return build(0, logs, details, webIP, mobileIP)
	}

	// Step 5: revocation probe. Weight 20, positive finding hard fails.
	var issuer *x509.Certificate
	if len(chain) > 1 {
		issuer = chain[1]
	}
	revoked, reason := checkRevocation(leaf, issuer)
	if revoked {
		details.Revocation = "FAIL (" + reason + ")"
		logs = append(logs, "Certificate is REVOKED: "+reason)
		return build(0, logs, details, webIP, mobileIP)
	}
	details.Revocation = "PASS"
	logs = append(logs, "Certificate is NOT revoked (OCSP/CRL checked).")

	// Step 6: metadata scoring. Weight 15, soft.
	penalty := certinspect.MetadataScore(leaf, now)
	score -= penalty.Deduction
	for _, r := range penalty.Reasons {
		logs = append(logs, "CAUTION: "+r)
	}
	switch {
	case penalty.ForceZero:
		score = 0
		logs = append(logs, "UNSAFE: Self-signed certificate detected.")
		details.Metadata = "SELF_SIGNED"
	case penalty.Deduction > 0:
		details.Metadata = "SUSPICIOUS"
	default:
		details.Metadata = "PASS"
	}

	return build(score, logs, details, webIP, mobileIP)
}

// checkRevocation tries OCSP first, then CRL, returning true only on an
// explicit positive finding from either probe. Timeouts, missing
// distribution points, and unknown statuses are all inconclusive and never
// set revoked.
func checkRevocation(leaf, issuer *x509.Certificate) (revoked bool, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if ok, err := certinspect.CheckOCSP(ctx, leaf, issuer); err == nil && ok {
		return true, "OCSP"
	}

	if ok, err := certinspect.CheckCRL(leaf); err == nil && ok {
		return true, "CRL"
	}

	return false, ""
}

func build(score int, logs []string, details Details, webIP, mobileIP string) Result {
	return Result{
		Score:    score,
		Verdict:  verdictFor(score),
		Logs:     logs,
		Details:  details,
		WebIP:    webIP,
		MobileIP: mobileIP,
	}
}

func verdictFor(score int) Verdict {
	switch {
	case score >= 90:
		return Trusted
	case score >= 70:
		return Caution
	default:
		return Unsafe
	}
}

func extractHostname(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimSpace(parsed.Host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
