package notify

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_RegisterUnderLimit(t *testing.T) {
	h := New(testLogger(), 2, 0)
	if _, err := h.Register("chan-1"); err != nil {
		t.Fatalf("Register 1: %v", err)
	}
	if _, err := h.Register("chan-1"); err != nil {
		t.Fatalf("Register 2: %v", err)
	}
}

func TestHub_RegisterOverLimit(t *testing.T) {
	h := New(testLogger(), 1, 0)
	if _, err := h.Register("chan-1"); err != nil {
		t.Fatalf("Register 1: %v", err)
	}
	if _, err := h.Register("chan-1"); err == nil {
		t.Fatal("Register over limit = nil error, want ErrChannelFull")
	}
}

func TestHub_UnregisterFreesSlot(t *testing.T) {
	h := New(testLogger(), 1, 0)
	s, err := h.Register("chan-1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	h.Unregister("chan-1", s)

	if _, err := h.Register("chan-1"); err != nil {
		t.Fatalf("Register after unregister: %v", err)
	}
}

func TestHub_SendVerificationSuccess_DeliversToRegisteredSocket(t *testing.T) {
	h := New(testLogger(), 5, 0)
	s, err := h.Register("chan-1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	h.SendVerificationSuccess("chan-1", map[string]string{"verdict": "TRUSTED"})

	select {
	case msg := <-s.send:
		if len(msg) == 0 {
			t.Error("expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivered message")
	}
}

func TestHub_SendVerificationSuccess_GivesUpWhenEmpty(t *testing.T) {
	const wait = 200 * time.Millisecond
	h := New(testLogger(), 5, wait)

	start := time.Now()
	h.SendVerificationSuccess("no-such-channel", map[string]string{"verdict": "TRUSTED"})
	elapsed := time.Since(start)

	if elapsed < wait {
		t.Errorf("SendVerificationSuccess returned after %v, want at least %v", elapsed, wait)
	}
}

func TestHub_SendVerificationSuccess_WaitsForLateSubscriber(t *testing.T) {
	const wait = 500 * time.Millisecond
	h := New(testLogger(), 5, wait)

	go func() {
		time.Sleep(50 * time.Millisecond)
		if _, err := h.Register("chan-late"); err != nil {
			t.Errorf("Register: %v", err)
		}
	}()

	start := time.Now()
	h.SendVerificationSuccess("chan-late", map[string]string{"verdict": "TRUSTED"})
	elapsed := time.Since(start)

	if elapsed >= wait {
		t.Errorf("SendVerificationSuccess waited the full timeout, want early return once subscriber arrives")
	}
}
