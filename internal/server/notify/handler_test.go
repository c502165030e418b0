package notify

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComputeAcceptKey_RFC6455Vector(t *testing.T) {
	// Canonical example from RFC 6455 §1.3.
	got := computeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Errorf("computeAcceptKey = %q, want %q", got, want)
	}
}

func TestIsWebSocketUpgrade(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/verification/abc", nil)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	if !isWebSocketUpgrade(req) {
		t.Error("expected valid upgrade headers to be recognized")
	}
}

func TestIsWebSocketUpgrade_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/verification/abc", nil)
	if isWebSocketUpgrade(req) {
		t.Error("expected request without upgrade headers to be rejected")
	}
}

func TestWriteTextFrame_ShortPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := []byte("hello")
	errCh := make(chan error, 1)
	go func() { errCh <- writeTextFrame(server, payload) }()

	header := make([]byte, 2)
	if _, err := readFull(client, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	if header[0] != 0x81 {
		t.Errorf("header[0] = %#x, want 0x81 (FIN+text)", header[0])
	}
	if header[1] != byte(len(payload)) {
		t.Errorf("header[1] = %d, want %d", header[1], len(payload))
	}

	body := make([]byte, len(payload))
	if _, err := readFull(client, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Errorf("body = %q, want %q", body, payload)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("writeTextFrame: %v", err)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
