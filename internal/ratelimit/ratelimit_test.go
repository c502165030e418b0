package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/qrguard/broker/internal/kv"
	"github.com/qrguard/broker/internal/ratelimit"
)

func TestLimiter_AllowsUnderLimit(t *testing.T) {
	l := ratelimit.New(kv.NewMemoryStore(), ratelimit.Limits{Init: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, "init", "1.2.3.4"); err != nil {
			t.Fatalf("Check %d: %v", i, err)
		}
	}
}

func TestLimiter_RejectsOverLimit(t *testing.T) {
	l := ratelimit.New(kv.NewMemoryStore(), ratelimit.Limits{Init: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Check(ctx, "init", "1.2.3.4"); err != nil {
			t.Fatalf("Check %d: %v", i, err)
		}
	}
	if err := l.Check(ctx, "init", "1.2.3.4"); !errors.Is(err, ratelimit.ErrExceeded) {
		t.Fatalf("Check over limit = %v, want ErrExceeded", err)
	}
}

func TestLimiter_SeparateKeysIndependent(t *testing.T) {
	l := ratelimit.New(kv.NewMemoryStore(), ratelimit.Limits{Init: 1})
	ctx := context.Background()

	if err := l.Check(ctx, "init", "1.2.3.4"); err != nil {
		t.Fatalf("Check key1: %v", err)
	}
	if err := l.Check(ctx, "init", "5.6.7.8"); err != nil {
		t.Fatalf("Check key2: %v", err)
	}
}

func TestLimiter_SeparateOpsIndependent(t *testing.T) {
	l := ratelimit.New(kv.NewMemoryStore(), ratelimit.Limits{Init: 1, Verify: 1})
	ctx := context.Background()

	if err := l.Check(ctx, "init", "1.2.3.4"); err != nil {
		t.Fatalf("Check init: %v", err)
	}
	if err := l.Check(ctx, "verify", "1.2.3.4"); err != nil {
		t.Fatalf("Check verify: %v", err)
	}
}

func TestLimiter_UnknownOpUncounted(t *testing.T) {
	l := ratelimit.New(kv.NewMemoryStore(), ratelimit.DefaultLimits)
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		if err := l.Check(ctx, "unknown", "1.2.3.4"); err != nil {
			t.Fatalf("Check %d: %v", i, err)
		}
	}
}

func TestLimiter_StoreFailureFailsClosed(t *testing.T) {
	l := ratelimit.New(erroringStore{}, ratelimit.Limits{Init: 10})
	if err := l.Check(context.Background(), "init", "1.2.3.4"); err == nil {
		t.Fatal("Check with failing store = nil error, want non-nil")
	}
}

type erroringStore struct{}

func (erroringStore) SetEX(context.Context, string, time.Duration, []byte) error { return nil }
func (erroringStore) Get(context.Context, string) ([]byte, bool, error)          { return nil, false, nil }
func (erroringStore) IncrAndExpire(context.Context, string, time.Duration) (int64, error) {
	return 0, kv.ErrUnavailable
}
