package nonceid_test

import (
	"regexp"
	"testing"

	"github.com/qrguard/broker/internal/nonceid"
)

var nonceFormat = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestNew_Format(t *testing.T) {
	n := nonceid.New()
	if len(n) != 36 {
		t.Fatalf("len(nonce) = %d, want 36", len(n))
	}
	if !nonceFormat.MatchString(n) {
		t.Errorf("nonce %q does not match lowercase hyphenated hex format", n)
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		n := nonceid.New()
		if seen[n] {
			t.Fatalf("duplicate nonce generated: %q", n)
		}
		seen[n] = true
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{nonceid.New(), true},
		{"abc-123", true},
		{"", false},
		{"ABC-123", false},
		{"has spaces", false},
		{"has_underscore", false},
	}
	for _, c := range cases {
		if got := nonceid.Valid(c.in); got != c.want {
			t.Errorf("Valid(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
