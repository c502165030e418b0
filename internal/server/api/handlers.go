package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/qrguard/broker/internal/nonceid"
	"github.com/qrguard/broker/internal/proximity"
	"github.com/qrguard/broker/internal/ratelimit"
	"github.com/qrguard/broker/internal/session"
	"github.com/qrguard/broker/internal/uaparse"
	"github.com/qrguard/broker/internal/verify"
)

const maxURLLen = 2048

// verdictPayload is the denormalized response returned by /session/verify
// and embedded in /session/poll's result field.
type verdictPayload struct {
	Verdict    string       `json:"verdict"`
	TrustScore int          `json:"trust_score"`
	CheckedURL string       `json:"checked_url"`
	Timestamp  string       `json:"timestamp"`
	ClientIP   string       `json:"client_ip"`
	UA         string       `json:"ua"`
	UAInfo     uaparse.Info `json:"ua_info"`
	Logs       []string     `json:"logs"`
	Details    any          `json:"details"`
}

func (s *Server) rateLimit(w http.ResponseWriter, r *http.Request, op string) bool {
	err := s.limiter.Check(r.Context(), op, clientIP(r))
	if err == nil {
		return true
	}
	if errors.Is(err, ratelimit.ErrExceeded) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	writeError(w, http.StatusServiceUnavailable, "service unavailable")
	return false
}

// handleInit handles POST /api/v1/session/init.
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	if !s.rateLimit(w, r, "init") {
		return
	}

	claimedURL := r.Header.Get("X-Client-Url")
	if !validClaimedURL(claimedURL) {
		writeError(w, http.StatusUnprocessableEntity, "missing or invalid X-Client-Url header")
		return
	}

	ip := clientIP(r)
	ua := r.Header.Get("User-Agent")

	nonce, err := s.sessions.Create(r.Context(), claimedURL, ip, ua)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"nonce":      nonce,
		"expires_in": s.sessionTTL,
		"qr_payload": fmt.Sprintf("myapp://verify?token=%s", nonce),
	})
}

func validClaimedURL(raw string) bool {
	if raw == "" || len(raw) > maxURLLen {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

type verifyRequest struct {
	Token string `json:"token"`
}

// handleVerify handles POST /api/v1/session/verify.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !s.rateLimit(w, r, "verify") {
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !nonceid.Valid(req.Token) {
		writeError(w, http.StatusUnprocessableEntity, "missing or malformed token")
		return
	}

	rec, err := s.sessions.Get(r.Context(), req.Token)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	// A TTL-expired record is indistinguishable from an absent one once the
	// store evicts it, so expiry surfaces as 404 above rather than a
	// separate 410 branch here; only an explicit CONSUMED record reaches
	// this check.
	if rec.Status == session.Consumed {
		writeError(w, http.StatusConflict, "session already consumed")
		return
	}

	result := s.engine.Verify(r.Context(), rec.URL, rec.IP, clientIP(r))

	if err := s.sessions.Consume(r.Context(), req.Token, result); err != nil {
		if errors.Is(err, session.ErrAlreadyConsumed) {
			writeError(w, http.StatusConflict, "session already consumed")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	payload := buildVerdictPayload(result, rec)

	if rec.Proximity != nil && rec.Proximity.Confirmed {
		channelKey := req.Token
		if rec.Proximity.BLEUUID != "" {
			channelKey = rec.Proximity.BLEUUID
		}
		go s.hub.SendVerificationSuccess(channelKey, payload)
	}

	writeJSON(w, http.StatusOK, payload)
}

func buildVerdictPayload(result verify.Result, rec session.Record) verdictPayload {
	return verdictPayload{
		Verdict:    string(result.Verdict),
		TrustScore: result.Score,
		CheckedURL: rec.URL,
		Timestamp:  time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		ClientIP:   rec.IP,
		UA:         rec.UA,
		UAInfo:     uaparse.Parse(rec.UA),
		Logs:       result.Logs,
		Details:    result.Details,
	}
}

// handlePoll handles GET /api/v1/session/poll/{nonce}.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if !s.rateLimit(w, r, "poll") {
		return
	}

	nonce := chi.URLParam(r, "nonce")
	rec, err := s.sessions.Get(r.Context(), nonce)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	resp := map[string]any{"status": rec.Status}
	if rec.Status == session.Consumed && rec.Result != nil {
		resp["result"] = buildVerdictPayload(*rec.Result, rec)
	}
	writeJSON(w, http.StatusOK, resp)
}

type proximityRequest struct {
	BLEUUID   string    `json:"ble_uuid"`
	Found     bool      `json:"found"`
	Supported bool      `json:"supported"`
	Timestamp time.Time `json:"timestamp"`
}

// handleProximity handles POST /api/v1/session/proximity/{nonce}.
func (s *Server) handleProximity(w http.ResponseWriter, r *http.Request) {
	if !s.rateLimit(w, r, "proximity") {
		return
	}

	nonce := chi.URLParam(r, "nonce")
	if !nonceid.Valid(nonce) {
		writeError(w, http.StatusUnprocessableEntity, "malformed nonce")
		return
	}

	var req proximityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "malformed proximity payload")
		return
	}

	err := s.proximity.Record(r.Context(), nonce, proximity.Report{
		BLEUUID:   req.BLEUUID,
		Found:     req.Found,
		Supported: req.Supported,
		Timestamp: req.Timestamp,
	})
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown or expired session")
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "proximity_confirmed"})
}
