// Package middleware provides HTTP middleware components for the stockchat server.
package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brianly1003/stockchat/internal/sync"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// RateLimiter configuration constants.
const (
	DefaultMaxRequests = 10              // Max requests per window
	DefaultWindow      = 1 * time.Minute // Time window for rate limiting
	DefaultCleanup     = 5 * time.Minute // Cleanup interval for stale buckets
)

// RateLimiter implements a sliding window rate limiter with per-key limiting.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	clock       clockwork.Clock
	trustProxy  bool

	mu      sync.Mutex
	buckets map[string]*bucket

	cleanupDone chan struct{}
	closeOnce   sync.Once
}

// bucket tracks request timestamps for a single key, oldest first.
type bucket struct {
	timestamps []time.Time
	lastAccess time.Time
}

// RateLimiterOption is a functional option for configuring RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithMaxRequests sets the maximum number of requests per window.
func WithMaxRequests(n int) RateLimiterOption {
	return func(r *RateLimiter) {
		if n > 0 {
			r.maxRequests = n
		}
	}
}

// WithWindow sets the time window for rate limiting.
func WithWindow(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithClock sets the time source.
func WithClock(c clockwork.Clock) RateLimiterOption {
	return func(r *RateLimiter) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithTrustProxy makes KeyFunc honour X-Forwarded-For and X-Real-IP.
// Enable only behind a trusted reverse proxy.
func WithTrustProxy(trust bool) RateLimiterOption {
	return func(r *RateLimiter) {
		r.trustProxy = trust
	}
}

// NewRateLimiter creates a new RateLimiter with the given options.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		maxRequests: DefaultMaxRequests,
		window:      DefaultWindow,
		clock:       clockwork.NewRealClock(),
		buckets:     make(map[string]*bucket),
		cleanupDone: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	go r.cleanupLoop()

	return r
}

// Limit returns the configured request limit per window.
func (r *RateLimiter) Limit() int {
	return r.maxRequests
}

// Allow records a request for key and reports whether it is within the
// limit, plus the number of requests left in the current window.
func (r *RateLimiter) Allow(key string) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{timestamps: make([]time.Time, 0, r.maxRequests)}
		r.buckets[key] = b
	}
	b.prune(now.Add(-r.window))
	b.lastAccess = now

	if len(b.timestamps) >= r.maxRequests {
		return false, 0
	}

	b.timestamps = append(b.timestamps, now)
	return true, r.maxRequests - len(b.timestamps)
}

// Remaining returns the number of remaining requests for a key.
func (r *RateLimiter) Remaining(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		return r.maxRequests
	}
	b.prune(r.clock.Now().Add(-r.window))
	return max(r.maxRequests-len(b.timestamps), 0)
}

// Reset clears the rate limit for a key.
func (r *RateLimiter) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buckets, key)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (r *RateLimiter) Close() {
	r.closeOnce.Do(func() {
		close(r.cleanupDone)
	})
}

// prune drops timestamps at or before cutoff.
func (b *bucket) prune(cutoff time.Time) {
	i := 0
	for i < len(b.timestamps) && !b.timestamps[i].After(cutoff) {
		i++
	}
	b.timestamps = b.timestamps[i:]
}

func (r *RateLimiter) cleanupLoop() {
	ticker := r.clock.NewTicker(DefaultCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-r.cleanupDone:
			return
		case <-ticker.Chan():
			r.cleanup()
		}
	}
}

// cleanup removes buckets that haven't been accessed for two windows.
func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.clock.Now().Add(-2 * r.window)
	for key, b := range r.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(r.buckets, key)
		}
	}
}

// KeyFunc extracts the client IP address as the rate limit key.
func (r *RateLimiter) KeyFunc(req *http.Request) string {
	if r.trustProxy {
		// X-Forwarded-For is "client, proxy1, proxy2"
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := req.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// Middleware returns an HTTP middleware that rejects requests over the limit
// with 429 and a JSON message.
func (r *RateLimiter) Middleware(message string) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(r.window.Seconds()))
	limit := strconv.Itoa(r.maxRequests)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			key := r.KeyFunc(req)

			allowed, remaining := r.Allow(key)
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				log.Warn().
					Str("key", key).
					Str("path", req.URL.Path).
					Msg("rate limit exceeded")

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}
