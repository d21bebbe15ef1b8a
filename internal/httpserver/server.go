// internal/httpserver/server.go
//
// HTTP server wiring for the arena backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", GET /leaderboard.
//   - Room and game endpoints (require auth): /rooms/*, /games/*.
//   - Auth + profile endpoints: /auth/*, /stats/me.
//   - Websocket push path: GET /ws (require auth).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - /ws is mounted outside the request timeout; a socket lives as long as
//     the client keeps it open.
//   - Every game mutation goes through the registry, whichever path it came from.

package httpserver

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/robalobadob/arena/internal/events"
	"github.com/robalobadob/arena/internal/registry"
	"github.com/robalobadob/arena/internal/store"
)

// Config holds the auth and cookie settings the handlers need.
type Config struct {
	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	ClientOrigin   string
	// Production switches cookies to Secure + SameSite=None.
	Production bool
}

// ConfigFromEnv reads JWT_SECRET, JWT_EXPIRES_DAYS, COOKIE_NAME, CLIENT_ORIGIN
// and NODE_ENV.
func ConfigFromEnv() Config {
	days, err := strconv.Atoi(getEnv("JWT_EXPIRES_DAYS", "14"))
	if err != nil || days <= 0 {
		days = 14
	}
	return Config{
		JWTSecret:      getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiresDays: days,
		CookieName:     getEnv("COOKIE_NAME", "arena_token"),
		ClientOrigin:   getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		Production:     os.Getenv("NODE_ENV") == "production",
	}
}

// Server bundles the router and its collaborators.
type Server struct {
	r        *chi.Mux
	cfg      Config
	reg      *registry.Registry
	accounts store.AccountStore
	stats    store.StatsStore
	hub      *events.Hub
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg Config, reg *registry.Registry, st store.Store, hub *events.Hub) *Server {
	s := &Server{r: chi.NewRouter(), cfg: cfg, reg: reg, accounts: st, stats: st, hub: hub}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(jsonContentType) // default JSON responses
	s.r.Use(s.cors)          // credentials-friendly CORS

	// Websocket push path (no handler timeout)
	s.r.With(s.requireAuth()).Get("/ws", s.handleWS)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"arena","endpoints":["/health","/rooms","/games/{id}","/leaderboard","/auth/*","/ws"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "sessions": s.reg.Len()})
		})

		r.Get("/leaderboard", s.handleLeaderboard)
		s.mountAuthRoutes(r)
		s.mountGameRoutes(r.With(s.requireAuth()))
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string, wrap ...func(http.Handler) http.Handler) error {
	var h http.Handler = s.r
	for _, mw := range wrap {
		h = mw(h)
	}
	return http.ListenAndServe(addr, h)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------- small util --------------------------------

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
