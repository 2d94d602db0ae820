package http

import (
	"net/http"
	"time"
)

// Health is the body of GET /health.
type Health struct {
	Status      string          `json:"status"`
	Publisher   PublisherHealth `json:"publisher"`
	Connections map[string]int  `json:"connections"`
	Sockets     map[string]int  `json:"sockets"`
	Uptime      string          `json:"uptime"`
	Timestamp   time.Time       `json:"timestamp"`
}

// PublisherHealth reports the background price feed.
type PublisherHealth struct {
	State string `json:"state"`
	Ticks uint64 `json:"ticks"`
	Error string `json:"error,omitempty"`
}

// HealthFunc produces the current health snapshot.
type HealthFunc func() Health

// Health status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// HealthHandler serves GET /health. A degraded status answers 503.
type HealthHandler struct {
	fn HealthFunc
}

// NewHealthHandler creates a health handler. A nil fn always reports ok.
func NewHealthHandler(fn HealthFunc) *HealthHandler {
	return &HealthHandler{fn: fn}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := Health{Status: StatusOK}
	if h.fn != nil {
		health = h.fn()
	}
	if health.Timestamp.IsZero() {
		health.Timestamp = time.Now().UTC()
	}

	status := http.StatusOK
	if health.Status != StatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
