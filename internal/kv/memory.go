package kv

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process kv.Store used by package tests across the
// broker in place of a live Redis instance. It honors TTL expiry on read
// but never reclaims memory on a background timer; this is a test double,
// not a cache.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value   []byte
	expires time.Time
}

// NewMemoryStore returns an empty MemoryStore using the real wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// NewMemoryStoreWithClock returns an empty MemoryStore whose notion of "now"
// is controlled by the caller, for deterministic TTL-expiry tests.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   now,
	}
}

func (s *MemoryStore) SetEX(_ context.Context, key string, ttl time.Duration, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.items[key] = memoryItem{value: cp, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if s.now().After(item.expires) {
		delete(s.items, key)
		return nil, false, nil
	}
	cp := make([]byte, len(item.value))
	copy(cp, item.value)
	return cp, true, nil
}

func (s *MemoryStore) IncrAndExpire(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if ok && s.now().After(item.expires) {
		ok = false
	}

	var n int64
	if ok {
		n = decodeCounter(item.value) + 1
		item.value = encodeCounter(n)
		s.items[key] = item
		return n, nil
	}

	n = 1
	s.items[key] = memoryItem{value: encodeCounter(n), expires: s.now().Add(ttl)}
	return n, nil
}

func encodeCounter(n int64) []byte {
	return []byte(itoa(n))
}

func decodeCounter(b []byte) int64 {
	var n int64
	for _, c := range b {
		n = n*10 + int64(c-'0')
	}
	return n
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
