package notify

import (
	"bufio"
	"crypto/sha1" //nolint:gosec // SHA-1 is mandated by RFC 6455 §4.1; not used for security
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/qrguard/broker/internal/nonceid"
	"github.com/qrguard/broker/internal/session"
)

// maxFrameSize bounds the payload length the server accepts from a client
// frame; oversize frames cause the connection to be dropped rather than
// allocating unbounded memory.
const maxFrameSize = 64 * 1024

// wsGUID is the fixed GUID from RFC 6455 §4.1 used to compute
// Sec-WebSocket-Accept.
const wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const (
	closeSameIP       = 1008
	closeNoChannelKey = 1008
	closeOverLimit    = 1008
)

// Handler upgrades HTTP connections to WebSocket on /ws/verification/{nonce}
// and drives the per-socket read/write loop against a Hub.
type Handler struct {
	hub          *Hub
	sessions     *session.Manager
	logger       *slog.Logger
	writeTimeout time.Duration

	// relaxSameIPGuard disables the same-IP refusal for local testing; it
	// must never be set in production.
	relaxSameIPGuard bool
}

// NewHandler builds a Handler. writeTimeout <= 0 defaults to 10 seconds.
func NewHandler(hub *Hub, sessions *session.Manager, logger *slog.Logger, writeTimeout time.Duration, relaxSameIPGuard bool) *Handler {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Handler{
		hub:              hub,
		sessions:         sessions,
		logger:           logger,
		writeTimeout:     writeTimeout,
		relaxSameIPGuard: relaxSameIPGuard,
	}
}

// ServeWS handles one /ws/verification/{nonce} connection. nonce must
// already be extracted from the request path by the caller's router.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request, nonce string) {
	if !nonceid.Valid(nonce) {
		http.Error(w, "malformed nonce", http.StatusBadRequest)
		return
	}

	rec, err := h.sessions.Get(r.Context(), nonce)
	if err != nil {
		http.Error(w, "unknown or expired session", http.StatusNotFound)
		return
	}

	if !isWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusUpgradeRequired)
		return
	}
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		http.Error(w, "missing Sec-WebSocket-Key", http.StatusBadRequest)
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "server does not support hijacking", http.StatusInternalServerError)
		return
	}
	conn, bufrw, err := hj.Hijack()
	if err != nil {
		h.logger.Error("notify: hijack failed", slog.Any("error", err))
		return
	}

	accept := computeAcceptKey(key)
	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n"
	if _, err := bufrw.WriteString(resp); err != nil {
		conn.Close()
		return
	}
	if err := bufrw.Flush(); err != nil {
		conn.Close()
		return
	}

	// Socket-acceptance guard: refuse a peer whose IP equals the browser's
	// IP recorded at session-init time — the verdict must reach the other
	// device.
	peerIP := hostOf(conn.RemoteAddr().String())
	if !h.relaxSameIPGuard && peerIP != "" && peerIP == rec.IP {
		writeCloseFrame(conn, closeSameIP, "refused: same IP as browser")
		conn.Close()
		return
	}

	channelKey := nonce
	if rec.Proximity != nil && rec.Proximity.BLEUUID != "" {
		channelKey = rec.Proximity.BLEUUID
	}
	if channelKey == "" {
		writeCloseFrame(conn, closeNoChannelKey, "no channel key available")
		conn.Close()
		return
	}

	sock, err := h.hub.Register(channelKey)
	if err != nil {
		writeCloseFrame(conn, closeOverLimit, err.Error())
		conn.Close()
		return
	}
	defer h.hub.Unregister(channelKey, sock)

	h.logger.Info("notify: socket connected",
		slog.String("channel", channelKey),
		slog.String("remote_addr", conn.RemoteAddr().String()),
	)

	var closed atomic.Bool
	closeOnce := func() {
		if closed.CompareAndSwap(false, true) {
			conn.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("notify: readLoop panic recovered", slog.Any("recover", rec))
			}
		}()
		readLoop(conn, h.logger, channelKey)
		closeOnce()
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-sock.send:
			if !ok {
				closeOnce()
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
				closeOnce()
				return
			}
			if err := writeTextFrame(conn, msg); err != nil {
				closeOnce()
				return
			}
		}
	}
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

func computeAcceptKey(key string) string {
	//nolint:gosec // SHA-1 is mandated by RFC 6455; not used for security
	hsh := sha1.New()
	hsh.Write([]byte(key + wsGUID))
	return base64.StdEncoding.EncodeToString(hsh.Sum(nil))
}

func writeTextFrame(conn net.Conn, payload []byte) error {
	n := len(payload)
	var header []byte
	switch {
	case n < 126:
		header = []byte{0x81, byte(n)}
	case n < 65536:
		header = []byte{0x81, 126, 0, 0}
		binary.BigEndian.PutUint16(header[2:], uint16(n))
	default:
		header = make([]byte, 10)
		header[0] = 0x81
		header[1] = 127
		binary.BigEndian.PutUint64(header[2:], uint64(n))
	}
	if _, err := conn.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// writeCloseFrame sends an unmasked close frame carrying code and reason,
// as RFC 6455 §5.5.1 requires of server-to-client frames.
func writeCloseFrame(conn net.Conn, code int, reason string) {
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	copy(payload[2:], reason)

	header := []byte{0x88, byte(len(payload))}
	conn.Write(header)
	conn.Write(payload)
}

// readLoop reads incoming frames, answering text "ping" with "pong" and
// discarding everything else, until the connection closes or a close frame
// arrives.
func readLoop(conn net.Conn, logger *slog.Logger, channelKey string) {
	buf := bufio.NewReader(conn)
	for {
		b0, err := buf.ReadByte()
		if err != nil {
			return
		}
		b1, err := buf.ReadByte()
		if err != nil {
			return
		}

		opcode := b0 & 0x0F
		masked := (b1 & 0x80) != 0
		length := int64(b1 & 0x7F)

		switch length {
		case 126:
			var ext [2]byte
			if _, err := io.ReadFull(buf, ext[:]); err != nil {
				return
			}
			length = int64(binary.BigEndian.Uint16(ext[:]))
		case 127:
			var ext [8]byte
			if _, err := io.ReadFull(buf, ext[:]); err != nil {
				return
			}
			rawLen := binary.BigEndian.Uint64(ext[:])
			if rawLen > maxFrameSize {
				return
			}
			length = int64(rawLen)
		}

		var maskKey [4]byte
		if masked {
			if _, err := io.ReadFull(buf, maskKey[:]); err != nil {
				return
			}
		}

		payload := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(buf, payload); err != nil {
				return
			}
			if masked {
				for i := range payload {
					payload[i] ^= maskKey[i%4]
				}
			}
		}

		switch opcode {
		case 0x08: // close
			logger.Debug("notify: received close frame", slog.String("channel", channelKey))
			return
		case 0x01: // text
			if string(payload) == "ping" {
				if err := writeTextFrame(conn, []byte("pong")); err != nil {
					return
				}
			}
		}
	}
}
