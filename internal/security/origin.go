package security

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker validates WebSocket and CORS origins.
type OriginChecker struct {
	allowedOrigins []string
}

// NewOriginChecker creates a new origin checker. An empty list allows every
// origin; "*" does the same explicitly.
func NewOriginChecker(allowedOrigins []string) *OriginChecker {
	return &OriginChecker{allowedOrigins: allowedOrigins}
}

// CheckOrigin validates the origin header in a request.
func (oc *OriginChecker) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers omit Origin on same-origin requests
	if origin == "" {
		return true
	}
	if len(oc.allowedOrigins) == 0 {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	for _, allowed := range oc.allowedOrigins {
		if matchOrigin(parsed, origin, allowed) {
			return true
		}
	}
	return false
}

// matchOrigin supports "*", exact match and wildcard subdomains (*.example.com).
func matchOrigin(parsed *url.URL, origin, allowed string) bool {
	if allowed == "*" || strings.EqualFold(origin, allowed) {
		return true
	}

	if suffix, ok := strings.CutPrefix(allowed, "*."); ok {
		host := strings.ToLower(parsed.Hostname())
		suffix = strings.ToLower(suffix)
		return host == suffix || strings.HasSuffix(host, "."+suffix)
	}
	return false
}
