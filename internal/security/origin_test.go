package security

import (
	"net/http/httptest"
	"testing"
)

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"https://app.example.com"}, "", true},
		{"empty allow list", nil, "https://evil.test", true},
		{"wildcard all", []string{"*"}, "https://anything.test", true},
		{"exact", []string{"https://app.example.com"}, "https://app.example.com", true},
		{"exact mismatch", []string{"https://app.example.com"}, "https://other.example.com", false},
		{"subdomain wildcard", []string{"*.example.com"}, "https://chat.example.com", true},
		{"subdomain wildcard apex", []string{"*.example.com"}, "https://example.com", true},
		{"suffix trick", []string{"*.example.com"}, "https://badexample.com", false},
		{"malformed", []string{"https://app.example.com"}, "::not a url", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oc := NewOriginChecker(tt.allowed)
			req := httptest.NewRequest("GET", "/livechat", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := oc.CheckOrigin(req); got != tt.want {
				t.Errorf("CheckOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
