// Package api provides the HTTP server for retext.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/retext/retext/internal/config"
	"github.com/retext/retext/internal/search"
)

// SearchEngine defines the search operations the API needs.
type SearchEngine interface {
	Search(rawQuery string, page int) (*search.Page, error)
}

// StatsStore defines the store operations the API needs.
type StatsStore interface {
	CountMessages() (int64, error)
}

// Server represents the HTTP server.
type Server struct {
	cfg         *config.Config
	engine      SearchEngine
	store       StatsStore
	sessions    *SessionStore
	logger      *slog.Logger
	router      chi.Router
	server      *http.Server
	rateLimiter *RateLimiter
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, engine SearchEngine, store StatsStore, logger *slog.Logger) *Server {
	ttl := time.Duration(cfg.Server.SessionTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		store:    store,
		sessions: NewSessionStore(ttl),
		logger:   logger,
	}
	s.router = s.setupRouter()
	return s
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(SecurityHeaders)

	// Rate limiting (10 req/sec with burst of 20) also damps login
	// brute-forcing.
	s.rateLimiter = NewRateLimiter(10, 20)
	r.Use(RateLimitMiddleware(s.rateLimiter))

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	// Session endpoints
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	// API routes (session auth required)
	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/search", s.handleSearch)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// Start begins listening for HTTP requests. Refuses to start without a
// configured password hash: the archive is personal data.
func (s *Server) Start() error {
	if s.cfg.Server.PasswordHash == "" {
		return fmt.Errorf("no password hash configured; set [server] password_hash in %s or RETEXT_PASSWORD_HASH", s.cfg.ConfigFilePath())
	}

	bindAddr := s.cfg.Server.BindAddr
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	addr := net.JoinHostPort(bindAddr, strconv.Itoa(s.cfg.Server.Port))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down server")
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// loggerMiddleware logs HTTP requests.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// authMiddleware requires a valid session cookie.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || !s.sessions.Valid(cookie.Value) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
