// Package session manages the lifecycle of a verification session: the
// record created when a browser requests a QR code, through to its
// consumption by a successful verify call or its expiry.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/qrguard/broker/internal/kv"
	"github.com/qrguard/broker/internal/nonceid"
	"github.com/qrguard/broker/internal/verify"
)

// Status is the session's lifecycle state. Transitions are strictly
// PENDING -> Consumed or PENDING -> Expired; no other edges exist.
type Status string

const (
	Pending  Status = "PENDING"
	Consumed Status = "CONSUMED"
	Expired  Status = "EXPIRED"
)

// ErrNotFound means the nonce has no record and was never created, or its
// TTL in the store has elapsed with no trace left behind.
var ErrNotFound = errors.New("session: not found")

// ErrAlreadyConsumed means a second verify call observed a non-PENDING
// record; the caller must not re-run the engine.
var ErrAlreadyConsumed = errors.New("session: already consumed")

// Proximity is the optional BLE-proximity annotation on a record.
type Proximity struct {
	BLEUUID   string    `json:"ble_uuid"`
	Found     bool      `json:"found"`
	Supported bool      `json:"supported"`
	Timestamp time.Time `json:"timestamp"`
	Confirmed bool      `json:"confirmed"`
}

// Record is the full persisted state for one nonce.
type Record struct {
	URL       string         `json:"url"`
	CreatedAt time.Time      `json:"created_at"`
	Status    Status         `json:"status"`
	IP        string         `json:"ip"`
	UA        string         `json:"ua"`
	Proximity *Proximity     `json:"proximity,omitempty"`
	Result    *verify.Result `json:"result,omitempty"`
}

// Manager implements session CRUD atop a kv.Store.
type Manager struct {
	store kv.Store
	ttl   time.Duration
}

// New builds a Manager whose records live for ttl.
func New(store kv.Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

func recordKey(nonce string) string {
	return fmt.Sprintf("session:%s", nonce)
}

// Create allocates a fresh nonce, persists a PENDING record for it, and
// returns the nonce.
func (m *Manager) Create(ctx context.Context, url, ip, ua string) (string, error) {
	nonce := nonceid.New()
	rec := Record{
		URL:       url,
		CreatedAt: time.Now().UTC(),
		Status:    Pending,
		IP:        ip,
		UA:        ua,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("session: marshal record: %w", err)
	}
	if err := m.store.SetEX(ctx, recordKey(nonce), m.ttl, data); err != nil {
		return "", err
	}
	return nonce, nil
}

// Get returns the record for nonce. It reports ErrNotFound when absent or
// when the record's TTL has lapsed in the store.
func (m *Manager) Get(ctx context.Context, nonce string) (Record, error) {
	data, ok, err := m.store.Get(ctx, recordKey(nonce))
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ErrNotFound
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("session: unmarshal record: %w", err)
	}
	return rec, nil
}

// Consume performs the one-time PENDING -> CONSUMED transition, writing
// result atomically with the status change and keeping the record's
// remaining TTL as measured from its creation time. It fails with
// ErrAlreadyConsumed if the caller did not observe PENDING, enforcing
// exactly-once engine execution per nonce.
func (m *Manager) Consume(ctx context.Context, nonce string, result verify.Result) error {
	rec, err := m.Get(ctx, nonce)
	if err != nil {
		return err
	}
	if rec.Status != Pending {
		return ErrAlreadyConsumed
	}

	rec.Status = Consumed
	rec.Result = &result

	ttl := m.ttl - time.Since(rec.CreatedAt)
	if ttl <= 0 {
		return ErrNotFound
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal record: %w", err)
	}
	return m.store.SetEX(ctx, recordKey(nonce), ttl, data)
}

// UpdateProximity annotates the record for nonce with a proximity result,
// preserving the record's remaining TTL as measured from its creation time.
func (m *Manager) UpdateProximity(ctx context.Context, nonce string, p Proximity) error {
	rec, err := m.Get(ctx, nonce)
	if err != nil {
		return err
	}

	p.Confirmed = p.Supported && p.Found
	rec.Proximity = &p

	ttl := m.ttl - time.Since(rec.CreatedAt)
	if ttl <= 0 {
		return ErrNotFound
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal record: %w", err)
	}
	return m.store.SetEX(ctx, recordKey(nonce), ttl, data)
}
