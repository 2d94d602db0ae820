package security

import (
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// BearerToken returns the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(bearerPrefix) || !strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(bearerPrefix):])
}
