// Package kv provides a TTL-capable string store facade used by every
// stateful component of the broker (sessions, rate-limit counters). It is
// deliberately narrow — three operations — so that a Redis-backed
// implementation and an in-memory fake can both satisfy it for tests.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps any transport-level failure reaching the store. Per
// the broker's error-handling design, a store failure is fatal: callers
// (notably the rate limiter) fail closed rather than bypass the check.
var ErrUnavailable = errors.New("kv: store unavailable")

// Store is the key-value facade every component depends on. Values are
// opaque byte strings; callers serialize their own JSON.
type Store interface {
	// SetEX stores value under key with the given TTL, replacing any
	// existing value and TTL.
	SetEX(ctx context.Context, key string, ttl time.Duration, value []byte) error

	// Get returns the value stored under key. ok is false when the key is
	// absent or has expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// IncrAndExpire atomically increments the integer counter at key and,
	// only on the first increment (i.e. when the key did not previously
	// exist), sets its TTL. It returns the counter's new value.
	IncrAndExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
