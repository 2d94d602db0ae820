// Package http implements the HTTP surface of stockchat: the login API,
// the health endpoint and the routes to the WebSocket hubs.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/brianly1003/stockchat/internal/domain/ports"
	"github.com/brianly1003/stockchat/internal/security"
	"github.com/brianly1003/stockchat/internal/server/http/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Hub paths.
const (
	PathChat   = "/livechat"
	PathPrices = "/stocklisting"
)

// Options configures the HTTP server.
type Options struct {
	Host string
	Port int

	Authenticator ports.Authenticator
	Health        HealthFunc
	RateLimiter   *middleware.RateLimiter
	OriginChecker *security.OriginChecker

	// Revoker enables POST /api/auth/logout when set.
	Revoker ports.TokenRevoker

	// Chat and Prices are mounted at PathChat and PathPrices.
	Chat   http.Handler
	Prices http.Handler
}

// Server is the HTTP server.
type Server struct {
	addr     string
	router   *mux.Router
	server   *http.Server
	listener net.Listener
}

// New creates a new HTTP server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		addr:   fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		router: mux.NewRouter(),
	}

	s.router.Handle("/health", NewHealthHandler(opts.Health)).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	login := http.Handler(NewLoginHandler(opts.Authenticator))
	if opts.RateLimiter != nil {
		login = opts.RateLimiter.Middleware("Too many login attempts. Please try again later.")(login)
	}
	api.Handle("/auth/login", login).Methods(http.MethodPost, http.MethodOptions)
	if opts.Revoker != nil {
		api.Handle("/auth/logout", NewLogoutHandler(opts.Revoker)).Methods(http.MethodPost, http.MethodOptions)
	}

	if opts.Chat != nil {
		s.router.Handle(PathChat, opts.Chat)
	}
	if opts.Prices != nil {
		s.router.Handle(PathPrices, opts.Prices)
	}

	s.router.Use(requestLoggingMiddleware)
	s.router.Use(corsMiddleware(opts.OriginChecker))

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// No ReadTimeout/WriteTimeout: they would cut long-lived WebSocket
		// connections. The pumps manage their own deadlines.
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound address once Start has returned, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listener and serves in the background. Bind errors are
// returned; serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server starting")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("HTTP server stopping")
	return s.server.Shutdown(ctx)
}

// requestLoggingMiddleware logs all incoming requests for debugging.
func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

// corsMiddleware echoes allowed origins so a page served elsewhere can call
// the login API.
func corsMiddleware(checker *security.OriginChecker) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (checker == nil || checker.CheckOrigin(r)) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"message": message})
}
