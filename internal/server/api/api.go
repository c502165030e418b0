// Package api provides the broker's HTTP REST layer: a chi router and
// request handlers mapping /api/v1/session/* operations onto the session,
// verification, proximity, and notification components, with rate limiting
// in place of the JWT-auth middleware this service does not need.
package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/qrguard/broker/internal/proximity"
	"github.com/qrguard/broker/internal/ratelimit"
	"github.com/qrguard/broker/internal/server/notify"
	"github.com/qrguard/broker/internal/session"
	"github.com/qrguard/broker/internal/verify"
)

// Server holds the dependencies shared by every handler.
type Server struct {
	sessions   *session.Manager
	engine     *verify.Engine
	proximity  *proximity.Coordinator
	hub        *notify.Hub
	wsHandler  *notify.Handler
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
	sessionTTL int
}

// Deps bundles Server's constructor arguments.
type Deps struct {
	Sessions       *session.Manager
	Engine         *verify.Engine
	Proximity      *proximity.Coordinator
	Hub            *notify.Hub
	WSHandler      *notify.Handler
	Limiter        *ratelimit.Limiter
	Logger         *slog.Logger
	SessionTTLSecs int
}

// NewServer builds a Server from deps.
func NewServer(deps Deps) *Server {
	return &Server{
		sessions:   deps.Sessions,
		engine:     deps.Engine,
		proximity:  deps.Proximity,
		hub:        deps.Hub,
		wsHandler:  deps.WSHandler,
		limiter:    deps.Limiter,
		logger:     deps.Logger,
		sessionTTL: deps.SessionTTLSecs,
	}
}

// NewRouter returns a configured chi.Router for the broker's HTTP API.
func NewRouter(srv *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", srv.handleHealthz)

	r.Route("/api/v1/session", func(r chi.Router) {
		r.Post("/init", srv.handleInit)
		r.Post("/verify", srv.handleVerify)
		r.Get("/poll/{nonce}", srv.handlePoll)
		r.Post("/proximity/{nonce}", srv.handleProximity)
	})

	r.Get("/ws/verification/{nonce}", srv.handleWS)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	nonce := chi.URLParam(r, "nonce")
	s.wsHandler.ServeWS(w, r, nonce)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// clientIP returns the request's client address as rewritten by chi's
// RealIP middleware (X-Forwarded-For / X-Real-IP aware), stripped of port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
