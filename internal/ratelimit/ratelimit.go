// Package ratelimit implements a fixed-window request limiter backed by
// internal/kv. Each (operation, client key) pair gets its own counter keyed
// to the current wall-clock minute; the counter carries a 60s TTL so a
// minute's bucket disappears on its own once the window passes.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qrguard/broker/internal/kv"
)

// ErrExceeded is returned when the caller has exceeded the configured
// per-minute limit for the operation.
var ErrExceeded = errors.New("ratelimit: limit exceeded")

// Limits holds the per-operation per-minute ceilings.
type Limits struct {
	Init      int
	Verify    int
	Proximity int
	Poll      int
}

// DefaultLimits matches the broker's out-of-the-box configuration.
var DefaultLimits = Limits{
	Init:      20,
	Verify:    60,
	Proximity: 30,
	Poll:      120,
}

// Limiter enforces Limits against a shared kv.Store.
type Limiter struct {
	store  kv.Store
	limits Limits
}

// New builds a Limiter. A failure reaching store is always treated as fail
// closed by Check — the broker depends on store for every other stateful
// operation, so a limiter that fails open would be the least of its
// problems.
func New(store kv.Store, limits Limits) *Limiter {
	return &Limiter{store: store, limits: limits}
}

// Check increments the counter for op/key in the current minute's window and
// returns ErrExceeded once the count rises above the configured limit for
// op. An unrecognized op is always allowed uncounted.
func (l *Limiter) Check(ctx context.Context, op, key string) error {
	limit := l.limitFor(op)
	if limit <= 0 {
		return nil
	}

	minute := time.Now().UTC().Unix() / 60
	bucketKey := fmt.Sprintf("rate_limit:%s:%s:%d", op, key, minute)

	n, err := l.store.IncrAndExpire(ctx, bucketKey, 60*time.Second)
	if err != nil {
		return fmt.Errorf("ratelimit: check %s/%s: %w", op, key, err)
	}
	if n > int64(limit) {
		return ErrExceeded
	}
	return nil
}

func (l *Limiter) limitFor(op string) int {
	switch op {
	case "init":
		return l.limits.Init
	case "verify":
		return l.limits.Verify
	case "proximity":
		return l.limits.Proximity
	case "poll":
		return l.limits.Poll
	default:
		return 0
	}
}
