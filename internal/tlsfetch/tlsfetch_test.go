package tlsfetch_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/qrguard/broker/internal/tlsfetch"
)

func TestGetChain_ReturnsLeafCert(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}

	chain := tlsfetch.GetChain(u.Hostname(), port)
	if len(chain) == 0 {
		t.Fatal("expected non-empty chain from live TLS server")
	}
}

func TestGetChain_EmptyOnUnreachableHost(t *testing.T) {
	chain := tlsfetch.GetChain("127.0.0.1", 1)
	if chain != nil {
		t.Fatalf("expected nil chain for unreachable host, got %d certs", len(chain))
	}
}
