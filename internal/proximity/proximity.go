// Package proximity coordinates BLE-proximity confirmations reported by a
// mobile device during a verification session.
package proximity

import (
	"context"
	"time"

	"github.com/qrguard/broker/internal/session"
)

// Report is the inbound payload submitted to /session/proximity/{nonce}.
type Report struct {
	BLEUUID   string    `json:"ble_uuid"`
	Found     bool      `json:"found"`
	Supported bool      `json:"supported"`
	Timestamp time.Time `json:"timestamp"`
}

// Coordinator persists proximity reports against their session. Proximity
// is a prerequisite for notification delivery, not for verification itself
// — the engine never consults it.
type Coordinator struct {
	sessions *session.Manager
}

// New builds a Coordinator atop the given session manager.
func New(sessions *session.Manager) *Coordinator {
	return &Coordinator{sessions: sessions}
}

// Record annotates nonce's session with report, computing
// confirmed = supported && found.
func (c *Coordinator) Record(ctx context.Context, nonce string, report Report) error {
	return c.sessions.UpdateProximity(ctx, nonce, session.Proximity{
		BLEUUID:   report.BLEUUID,
		Found:     report.Found,
		Supported: report.Supported,
		Timestamp: report.Timestamp,
	})
}
