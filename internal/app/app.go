// Package app orchestrates all components of stockchat.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianly1003/stockchat/internal/config"
	"github.com/brianly1003/stockchat/internal/hub"
	"github.com/brianly1003/stockchat/internal/publisher"
	"github.com/brianly1003/stockchat/internal/security"
	httpserver "github.com/brianly1003/stockchat/internal/server/http"
	"github.com/brianly1003/stockchat/internal/server/http/middleware"
	"github.com/brianly1003/stockchat/internal/server/websocket"
	"github.com/brianly1003/stockchat/internal/sync"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// App is the main application struct that orchestrates all components.
type App struct {
	cfg     *config.Config
	version string

	// Core components
	registry    *hub.Registry
	chatHub     *hub.Hub
	pricesHub   *hub.Hub
	publisher   *publisher.Publisher
	tokens      *security.TokenManager
	auth        *security.Authenticator
	rateLimiter *middleware.RateLimiter
	chatWS      *websocket.Endpoint
	pricesWS    *websocket.Endpoint
	httpServer  *httpserver.Server

	// Session info
	sessionID string
	startTime time.Time
	ready     chan struct{}

	// Lifecycle
	mu      sync.RWMutex
	running bool
}

// New creates a new App instance and wires its components. Nothing is
// started until Start.
func New(cfg *config.Config, version string) (*App, error) {
	if cfg.Auth.JWTKey == "" {
		log.Warn().Msg("auth.jwt_key is not set, using a random key; tokens will not survive a restart")
	}

	tokens, err := NewTokenManager(cfg)
	if err != nil {
		return nil, err
	}

	source, err := publisher.NewUniformPriceSource(cfg.Publisher.Label, cfg.Publisher.MinPrice, cfg.Publisher.MaxPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to create price source: %w", err)
	}

	registry := hub.NewRegistry()
	chatHub := hub.New(hub.ChannelChat, registry, hub.WithValidator(hub.NewValidator(cfg.Hubs.Chat.MaxMessageLength)))
	pricesHub := hub.New(hub.ChannelPrices, registry)

	origins := security.NewOriginChecker(cfg.Server.AllowedOrigins)

	a := &App{
		cfg:       cfg,
		version:   version,
		registry:  registry,
		chatHub:   chatHub,
		pricesHub: pricesHub,
		publisher: publisher.New(source, pricesHub,
			publisher.WithInterval(time.Duration(cfg.Publisher.IntervalMS)*time.Millisecond)),
		tokens: tokens,
		auth:   security.NewAuthenticator(tokens, usersFromConfig(cfg.Auth.Users)),
		chatWS: websocket.NewEndpoint(chatHub, tokens, websocket.EndpointOptions{
			RequireAuth: true,
			CheckOrigin: origins.CheckOrigin,
		}),
		pricesWS: websocket.NewEndpoint(pricesHub, tokens, websocket.EndpointOptions{
			RequireAuth: cfg.Hubs.Prices.RequireAuth,
			CheckOrigin: origins.CheckOrigin,
		}),
		sessionID: uuid.New().String(),
		ready:     make(chan struct{}),
	}

	if cfg.Auth.LoginRateLimit > 0 {
		a.rateLimiter = middleware.NewRateLimiter(
			middleware.WithMaxRequests(cfg.Auth.LoginRateLimit),
			middleware.WithWindow(time.Minute),
			middleware.WithTrustProxy(cfg.Server.TrustProxy),
		)
	}

	a.httpServer = httpserver.New(httpserver.Options{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		Authenticator: a.auth,
		Revoker:       tokens,
		Health:        a.health,
		RateLimiter:   a.rateLimiter,
		OriginChecker: origins,
		Chat:          a.chatWS,
		Prices:        a.pricesWS,
	})

	return a, nil
}

// NewTokenManager builds the token manager described by cfg.
func NewTokenManager(cfg *config.Config) (*security.TokenManager, error) {
	tokens, err := security.NewTokenManager(security.TokenOptions{
		Secret:     []byte(cfg.Auth.JWTKey),
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ExpirySecs: cfg.Auth.TokenExpirySecs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}
	return tokens, nil
}

func usersFromConfig(entries []config.UserConfig) []security.User {
	users := make([]security.User, 0, len(entries))
	for _, u := range entries {
		users = append(users, security.User{Username: u.Username, PasswordHash: u.PasswordHash})
	}
	return users
}

// Start starts the application and blocks until context is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.startTime = time.Now()
	a.mu.Unlock()

	if err := a.httpServer.Start(); err != nil {
		a.setStopped()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// The publisher gets its own context so shutdown can stop it explicitly
	// and observe the bounded wait.
	if err := a.publisher.Start(context.Background()); err != nil {
		a.stopHTTP()
		a.setStopped()
		return fmt.Errorf("failed to start publisher: %w", err)
	}

	a.startRevocationCleanup(ctx)
	a.startConfigWatcher(ctx)

	log.Info().
		Str("session_id", a.sessionID).
		Str("version", a.version).
		Str("addr", a.httpServer.Addr()).
		Msg("session started")
	a.printConnectionInfo()
	close(a.ready)

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	return a.shutdown()
}

// Ready is closed once the listener is bound and the publisher is running.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the HTTP listen address.
func (a *App) Addr() string {
	return a.httpServer.Addr()
}

// shutdown stops the publisher first so no tick races the connection teardown,
// then closes clients and the listener.
func (a *App) shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	a.running = false

	log.Info().Msg("shutting down...")

	timeout := time.Duration(a.cfg.Server.ShutdownTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var errs []error

	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	if err := a.publisher.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("error stopping publisher")
		errs = append(errs, err)
	}
	cancel()

	if err := a.publisher.Close(); err != nil {
		log.Error().Err(err).Msg("error disposing publisher")
		errs = append(errs, err)
	}

	a.chatWS.CloseAll()
	a.pricesWS.CloseAll()

	if err := a.stopHTTP(); err != nil {
		errs = append(errs, err)
	}

	if a.rateLimiter != nil {
		a.rateLimiter.Close()
	}

	log.Info().Dur("uptime", time.Since(a.startTime)).Msg("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) stopHTTP() error {
	timeout := time.Duration(a.cfg.Server.ShutdownTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("error stopping HTTP server")
		return err
	}
	return nil
}

func (a *App) setStopped() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// health reports ok only while the publisher loop is alive.
func (a *App) health() httpserver.Health {
	state := a.publisher.State()
	h := httpserver.Health{
		Status: httpserver.StatusOK,
		Publisher: httpserver.PublisherHealth{
			State: state.String(),
			Ticks: a.publisher.Ticks(),
		},
		Connections: a.registry.Counts(),
		Sockets: map[string]int{
			hub.ChannelChat:   a.chatWS.ClientCount(),
			hub.ChannelPrices: a.pricesWS.ClientCount(),
		},
		Uptime:    a.Uptime().Truncate(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}

	if err := a.publisher.Err(); err != nil {
		h.Status = httpserver.StatusDegraded
		h.Publisher.Error = err.Error()
	} else if state != publisher.StateRunning {
		h.Status = httpserver.StatusDegraded
	}
	return h
}

// Uptime returns the time since Start, or zero before Start.
func (a *App) Uptime() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.startTime.IsZero() {
		return 0
	}
	return time.Since(a.startTime)
}

// SessionID returns the ID of this process run.
func (a *App) SessionID() string {
	return a.sessionID
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// printConnectionInfo prints connection information to the console.
func (a *App) printConnectionInfo() {
	addr := a.httpServer.Addr()

	fmt.Println()
	fmt.Println("╔════════════════════════════════════════════════════════════╗")
	fmt.Println("║                   stockchat ready                          ║")
	fmt.Println("╠════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Session ID: %-46s ║\n", a.sessionID[:8]+"...")
	fmt.Printf("║  Login:      %-46s ║\n", truncateString("http://"+addr+"/api/auth/login", 46))
	fmt.Printf("║  Chat:       %-46s ║\n", truncateString("ws://"+addr+httpserver.PathChat, 46))
	fmt.Printf("║  Prices:     %-46s ║\n", truncateString("ws://"+addr+httpserver.PathPrices, 46))
	fmt.Println("╚════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// truncateString truncates a string to maxLen characters.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
